package driven

import (
	"context"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// WalletStore persists per-wallet sync configurations.
type WalletStore interface {
	// Create inserts a new config. Returns ErrDuplicateWallet when another
	// config already claims the wallet id.
	Create(ctx context.Context, cfg model.WalletSync) error

	// Update replaces an existing config by its id. Returns ErrWalletNotFound
	// when no config has that id, ErrDuplicateWallet when the new wallet id
	// collides with another config.
	Update(ctx context.Context, cfg model.WalletSync) error

	// Delete removes a config by id. Historical push attempts are kept.
	// Returns ErrWalletNotFound when no config has that id.
	Delete(ctx context.Context, id string) error

	// Get retrieves a config by id. Returns (nil, nil) when not found.
	Get(ctx context.Context, id string) (*model.WalletSync, error)

	// GetByWalletID retrieves the push-enabled config for a Lightning wallet.
	// Returns (nil, nil) when the wallet has no push-enabled config.
	GetByWalletID(ctx context.Context, walletID string) (*model.WalletSync, error)

	// List returns a page of configs plus the total row count for the filter.
	// Search matches case-insensitively on wallet id, reconcile name, and
	// notes. Default sort is updated_at descending.
	List(ctx context.Context, opts model.ListOptions) ([]model.WalletSync, int, error)

	// ListPushEnabled returns every config with push_payments set. Used by
	// the scheduled sweep.
	ListPushEnabled(ctx context.Context) ([]model.WalletSync, error)

	// SetStatus updates the sync status of a config, and last_synced_at when
	// syncedAt is non-nil.
	SetStatus(ctx context.Context, id string, status model.SyncStatus, syncedAt *time.Time) error
}
