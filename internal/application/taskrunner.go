package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// TaskRunner periodically sweeps every push-enabled wallet config through the
// sync service, so payments reach Xero without a manual push from the UI.
type TaskRunner struct {
	wallets  driven.WalletStore
	syncSvc  *SyncService
	interval time.Duration
	logger   *slog.Logger
}

// NewTaskRunner creates a TaskRunner sweeping on the given interval.
func NewTaskRunner(wallets driven.WalletStore, syncSvc *SyncService, interval time.Duration, logger *slog.Logger) *TaskRunner {
	return &TaskRunner{
		wallets:  wallets,
		syncSvc:  syncSvc,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop. It runs an immediate sweep, then sweeps on the
// configured interval. Start blocks until the context is canceled.
func (t *TaskRunner) Start(ctx context.Context) {
	if err := t.sweep(ctx); err != nil {
		t.logger.Error("initial sweep failed", "error", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("task runner stopped")
			return
		case <-ticker.C:
			if err := t.sweep(ctx); err != nil {
				t.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// sweep syncs every push-enabled config in sequence. A wallet already syncing
// (e.g. a manual push in flight) is left alone; a disconnected Xero
// credential ends the sweep early since every wallet would fail the same way.
func (t *TaskRunner) sweep(ctx context.Context) error {
	configs, err := t.wallets.ListPushEnabled(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := t.syncSvc.SyncWallet(ctx, cfg.ID)
		switch {
		case err == nil:
		case errors.Is(err, driven.ErrAlreadySyncing):
			t.logger.Debug("skipping wallet with sync in flight", "config_id", cfg.ID)
		case errors.Is(err, driven.ErrNotConfigured):
			t.logger.Debug("skipping incomplete wallet config", "config_id", cfg.ID)
		case errors.Is(err, driven.ErrNotConnected), errors.Is(err, driven.ErrRefreshFailed):
			t.logger.Warn("sweep halted, xero connection unavailable", "error", err)
			return nil
		default:
			t.logger.Error("sweep sync failed", "config_id", cfg.ID, "error", err)
		}
	}

	return nil
}
