package sqlite

import (
	"context"
	"fmt"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AttemptStore = (*AttemptRepo)(nil)

// AttemptRepo is the SQLite implementation of the AttemptStore port.
// Rows are append-only; a partial unique index on (payment_hash) for
// outcome = 'success' backs the at-most-once guarantee.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new AttemptRepo backed by the given DB.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Record appends an attempt.
func (r *AttemptRepo) Record(ctx context.Context, attempt model.PushAttempt) error {
	const query = `
		INSERT INTO push_attempts (id, wallet_id, payment_hash, xero_transaction_id, outcome, error, currency, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		attempt.ID, attempt.WalletID, attempt.PaymentHash, attempt.XeroTransactionID,
		string(attempt.Outcome), attempt.Error, attempt.Currency, attempt.Amount,
	)
	if err != nil {
		return fmt.Errorf("record push attempt for payment %q: %w", attempt.PaymentHash, err)
	}

	return nil
}

// SuccessfulHashes returns the payment hashes with a successful attempt for
// the wallet.
func (r *AttemptRepo) SuccessfulHashes(ctx context.Context, walletID string) (map[string]bool, error) {
	const query = `SELECT payment_hash FROM push_attempts WHERE wallet_id = ? AND outcome = 'success'`

	rows, err := r.db.Reader.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("load successful hashes for wallet %q: %w", walletID, err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan payment hash: %w", err)
		}
		hashes[hash] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment hashes: %w", err)
	}

	return hashes, nil
}

// ListByWallet returns all attempts for the wallet, newest first.
func (r *AttemptRepo) ListByWallet(ctx context.Context, walletID string) ([]model.PushAttempt, error) {
	const query = `
		SELECT id, wallet_id, payment_hash, xero_transaction_id, outcome, error, currency, amount, created_at
		FROM push_attempts
		WHERE wallet_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list push attempts for wallet %q: %w", walletID, err)
	}
	defer rows.Close()

	attempts := []model.PushAttempt{}
	for rows.Next() {
		var a model.PushAttempt
		var outcome, createdAt string
		if err := rows.Scan(&a.ID, &a.WalletID, &a.PaymentHash, &a.XeroTransactionID,
			&outcome, &a.Error, &a.Currency, &a.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan push attempt: %w", err)
		}
		a.Outcome = model.PushOutcome(outcome)
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push attempts: %w", err)
	}

	return attempts, nil
}
