// Package lnbits implements the PaymentLedger port against the host
// platform's payments REST API.
package lnbits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PaymentLedger = (*Ledger)(nil)

const requestTimeout = 15 * time.Second

// Ledger queries the host platform for settled incoming payments.
type Ledger struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewLedger creates a ledger client for the platform at baseURL,
// authenticating with the platform API key.
func NewLedger(baseURL, apiKey string, logger *slog.Logger) *Ledger {
	return &Ledger{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// wirePayment is the platform's payment shape. Amount is millisatoshis,
// positive for incoming. Fiat valuation lives in the extra map.
type wirePayment struct {
	PaymentHash string  `json:"payment_hash"`
	WalletID    string  `json:"wallet_id"`
	Amount      int64   `json:"amount"`
	Memo        string  `json:"memo"`
	Status      string  `json:"status"`
	Pending     bool    `json:"pending"`
	Time        float64 `json:"time"` // Unix seconds.
	Extra       struct {
		WalletFiatCurrency string  `json:"wallet_fiat_currency"`
		WalletFiatAmount   float64 `json:"wallet_fiat_amount"`
	} `json:"extra"`
}

// ListSuccessfulIncomingPayments returns settled incoming payments for the
// wallet settled at or after since. A zero since means no lower bound.
func (l *Ledger) ListSuccessfulIncomingPayments(ctx context.Context, walletID string, since time.Time) ([]model.Payment, error) {
	q := url.Values{}
	q.Set("wallet_id", walletID)
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/v1/payments?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build payments request: %w", err)
	}
	req.Header.Set("X-Api-Key", l.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list payments for wallet %q: %w", walletID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read payments response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list payments for wallet %q: status %d: %s", walletID, resp.StatusCode, body)
	}

	var wire []wirePayment
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode payments response: %w", err)
	}

	payments := make([]model.Payment, 0, len(wire))
	for _, p := range wire {
		if !settledIncoming(p) || p.WalletID != walletID {
			continue
		}
		settledAt := time.Unix(int64(p.Time), 0).UTC()
		if !since.IsZero() && settledAt.Before(since) {
			continue
		}
		payments = append(payments, model.Payment{
			PaymentHash:  p.PaymentHash,
			WalletID:     p.WalletID,
			AmountMsat:   p.Amount,
			Memo:         p.Memo,
			FiatCurrency: p.Extra.WalletFiatCurrency,
			FiatAmount:   p.Extra.WalletFiatAmount,
			SettledAt:    settledAt,
		})
	}

	l.logger.Debug("ledger query", "wallet_id", walletID, "fetched", len(wire), "eligible", len(payments))
	return payments, nil
}

// settledIncoming filters to settled incoming payments. Older platform
// versions report pending as a boolean, newer ones a status string; accept both.
func settledIncoming(p wirePayment) bool {
	if p.Amount <= 0 {
		return false
	}
	if p.Status != "" {
		return p.Status == "success"
	}
	return !p.Pending
}
