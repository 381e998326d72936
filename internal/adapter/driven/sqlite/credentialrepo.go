package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// The xero_connection table holds at most one row; tokens are encrypted with
// AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db     *DB
	sealer sealer
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (operations then return
// driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, sealer: sealer{key: key}}
}

// Get retrieves the stored credential. Returns (nil, nil) when not connected.
func (r *CredentialRepo) Get(ctx context.Context) (*model.Credential, error) {
	if r.sealer.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT access_token, refresh_token, token_expiry, tenant_id, updated_at FROM xero_connection WHERE id = 1`

	var cred model.Credential
	var access, refresh, expiry, updatedAt string

	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&access, &refresh, &expiry, &cred.TenantID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if cred.AccessToken, err = r.sealer.decrypt(access); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if cred.RefreshToken, err = r.sealer.decrypt(refresh); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	if cred.TokenExpiry, err = parseTime(expiry); err != nil {
		return nil, fmt.Errorf("parse token_expiry: %w", err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &cred, nil
}

// Put stores or replaces the credential.
func (r *CredentialRepo) Put(ctx context.Context, cred model.Credential) error {
	if r.sealer.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	access, err := r.sealer.encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := r.sealer.encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	const query = `
		INSERT INTO xero_connection (id, access_token, refresh_token, token_expiry, tenant_id, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			tenant_id = excluded.tenant_id,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.db.Writer.ExecContext(ctx, query, access, refresh, cred.TokenExpiry.UTC().Format(time.RFC3339), cred.TenantID)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential. Clearing an empty store is not an error.
func (r *CredentialRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM xero_connection WHERE id = 1`
	if _, err := r.db.Writer.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
