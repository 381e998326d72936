package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// zeroGUID is the placeholder the UI sends for "no bank account selected".
const zeroGUID = "00000000-0000-0000-0000-000000000000"

// defaultContactName matches the original connector's fallback contact.
const defaultContactName = "LNbits Customer"

// defaultAccountCode is the Xero demo chart's Sales account, used when the
// config leaves the account code empty.
const defaultAccountCode = "200"

// maxReportedErrors caps how many per-payment failures end up in the batch
// summary message.
const maxReportedErrors = 5

// SyncService is the payment push engine: it selects eligible payments for a
// wallet, maps each to a Xero bank transaction, and records the outcome with
// at-most-once delivery per payment.
type SyncService struct {
	wallets  driven.WalletStore
	attempts driven.AttemptStore
	ledger   driven.PaymentLedger
	xero     driven.XeroClient
	settings driven.SettingsStore
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]struct{} // Config ids with a sync batch in flight.
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	wallets driven.WalletStore,
	attempts driven.AttemptStore,
	ledger driven.PaymentLedger,
	xero driven.XeroClient,
	settings driven.SettingsStore,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		wallets:  wallets,
		attempts: attempts,
		ledger:   ledger,
		xero:     xero,
		settings: settings,
		logger:   logger,
		active:   make(map[string]struct{}),
	}
}

// SyncWallet pushes all eligible payments for the wallet config with the
// given id. Returns driven.ErrNotConfigured when the config is missing,
// push-disabled, or has no usable bank account; driven.ErrAlreadySyncing when
// a batch for the same config is in flight. Per-payment failures do not abort
// the batch; they are aggregated into the result.
func (s *SyncService) SyncWallet(ctx context.Context, configID string) (model.SyncResult, error) {
	var result model.SyncResult

	cfg, err := s.wallets.Get(ctx, configID)
	if err != nil {
		return result, err
	}
	if cfg == nil || !cfg.PushPayments {
		return result, driven.ErrNotConfigured
	}
	if cfg.XeroBankAccountID == "" || cfg.XeroBankAccountID == zeroGUID {
		return result, fmt.Errorf("%w: no Xero bank account selected", driven.ErrNotConfigured)
	}

	if !s.acquire(configID) {
		return result, driven.ErrAlreadySyncing
	}
	defer s.release(configID)

	if err := s.wallets.SetStatus(ctx, configID, model.SyncStatusSyncing, nil); err != nil {
		return result, err
	}

	result, err = s.pushBatch(ctx, cfg)

	finished := time.Now().UTC()
	status := model.SyncStatusOK
	if err != nil || result.Failed > 0 {
		status = model.SyncStatusError
	}
	if stErr := s.wallets.SetStatus(ctx, configID, status, &finished); stErr != nil {
		s.logger.Error("failed to update sync status", "config_id", configID, "error", stErr)
	}

	s.logger.Info("wallet sync finished",
		"config_id", configID,
		"wallet_id", cfg.WalletID,
		"pushed", result.Pushed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"status", status,
	)
	return result, err
}

// pushBatch runs the eligibility filter and per-payment push loop.
func (s *SyncService) pushBatch(ctx context.Context, cfg *model.WalletSync) (model.SyncResult, error) {
	var result model.SyncResult

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return result, err
	}

	pushed, err := s.attempts.SuccessfulHashes(ctx, cfg.WalletID)
	if err != nil {
		return result, err
	}

	payments, err := s.ledger.ListSuccessfulIncomingPayments(ctx, cfg.WalletID, time.Time{})
	if err != nil {
		return result, fmt.Errorf("query payment ledger: %w", err)
	}

	// A payment with a recorded success is skipped forever; that is the
	// at-most-once guarantee across repeated sync triggers.
	eligible := lo.Filter(payments, func(p model.Payment, _ int) bool {
		return !pushed[p.PaymentHash]
	})
	result.Skipped = len(payments) - len(eligible)

	for _, payment := range eligible {
		// Cancellation is cooperative: stop between payments, keep what is
		// already recorded.
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !payment.HasFiat() {
			s.logger.Debug("skipping payment without fiat data", "payment_hash", payment.PaymentHash)
			result.Skipped++
			continue
		}

		amount := fiatMajorUnits(payment.FiatAmount, payment.FiatCurrency)
		if amount <= 0 {
			s.logger.Debug("skipping payment with zero fiat amount after rounding", "payment_hash", payment.PaymentHash)
			result.Skipped++
			continue
		}

		tx := buildBankTransaction(cfg, settings, payment, amount)
		txID, pushErr := s.xero.CreateBankTransaction(ctx, tx)

		attempt := model.PushAttempt{
			ID:          uuid.NewString(),
			WalletID:    cfg.WalletID,
			PaymentHash: payment.PaymentHash,
			Currency:    strings.ToUpper(payment.FiatCurrency),
			Amount:      amount,
		}
		if pushErr != nil {
			attempt.Outcome = model.PushOutcomeFailed
			attempt.Error = pushErr.Error()
			result.Failed++
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", shortHash(payment.PaymentHash), pushErr))
			}
			s.logger.Error("payment push failed", "payment_hash", payment.PaymentHash, "error", pushErr)
		} else {
			attempt.Outcome = model.PushOutcomeSuccess
			attempt.XeroTransactionID = txID
		}

		// Record regardless of outcome; a failed write here must not lose the
		// success marker, so surface it as a batch failure.
		if err := s.attempts.Record(ctx, attempt); err != nil {
			return result, fmt.Errorf("record push attempt for %s: %w", payment.PaymentHash, err)
		}

		if pushErr == nil {
			result.Pushed++
		}
	}

	return result, nil
}

// buildBankTransaction maps one payment onto the Xero payload using the
// wallet config and the organisation's tax codes.
func buildBankTransaction(cfg *model.WalletSync, settings *model.Settings, p model.Payment, amount float64) model.BankTransaction {
	description := p.Memo
	if description == "" {
		description = fmt.Sprintf("LNbits payment %s", p.PaymentHash)
	}

	contactName := cfg.ReconcileName
	if contactName == "" {
		contactName = defaultContactName
	}

	accountCode := cfg.XeroAccountCode
	if accountCode == "" {
		accountCode = defaultAccountCode
	}

	// exact and fuzzy reconciliation lean on the reconcile name as the
	// bank-feed matching hint; manual leaves the reference as-is for a human
	// to match later.
	reference := description
	if cfg.ReconcileMode != model.ReconcileModeManual && cfg.ReconcileName != "" {
		reference = cfg.ReconcileName + " " + description
	}

	return model.BankTransaction{
		ContactName:   contactName,
		BankAccountID: cfg.XeroBankAccountID,
		Description:   description,
		UnitAmount:    amount,
		AccountCode:   accountCode,
		TaxType:       settings.TaxTypeFor(cfg.TaxRate),
		Reference:     reference,
		CurrencyCode:  strings.ToUpper(p.FiatCurrency),
		Date:          p.SettledAt.UTC().Format("2006-01-02T15:04:05"),
	}
}

// fiatMajorUnits rounds a raw fiat amount half away from zero to the
// currency's minor-unit precision and returns it in major units, as Xero
// expects. money.NewFromFloat truncates trailing decimals, so the rounding
// happens before the minor-unit conversion.
func fiatMajorUnits(amount float64, currency string) float64 {
	fraction := money.NewFromFloat(0, strings.ToUpper(currency)).Currency().Fraction
	scale := math.Pow10(fraction)
	// A hair of headroom so midpoints sitting just below x.5 from binary
	// representation error (1.005 stored as 1.00499...) still round up.
	return math.Round(amount*scale*(1+1e-12)) / scale
}

// shortHash abbreviates a payment hash for error summaries.
func shortHash(hash string) string {
	if len(hash) <= 10 {
		return hash
	}
	return hash[:10]
}

// acquire marks the config as syncing. Returns false when a batch is already
// in flight; concurrent requests are rejected, not queued.
func (s *SyncService) acquire(configID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[configID]; busy {
		return false
	}
	s.active[configID] = struct{}{}
	return true
}

func (s *SyncService) release(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, configID)
}
