package driven

import (
	"context"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// AttemptStore persists push attempts. Attempts are append-only and survive
// wallet config deletion for audit.
type AttemptStore interface {
	// Record appends an attempt.
	Record(ctx context.Context, attempt model.PushAttempt) error

	// SuccessfulHashes returns the payment hashes with a successful attempt
	// for the wallet. These payments must never be pushed again.
	SuccessfulHashes(ctx context.Context, walletID string) (map[string]bool, error)

	// ListByWallet returns all attempts for the wallet, newest first.
	ListByWallet(ctx context.Context, walletID string) ([]model.PushAttempt, error)
}
