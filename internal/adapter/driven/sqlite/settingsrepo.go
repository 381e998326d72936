package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port.
// The settings table holds a single row; the client secret is encrypted at rest.
type SettingsRepo struct {
	db     *DB
	sealer sealer
}

// NewSettingsRepo creates a new SettingsRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable secret storage.
func NewSettingsRepo(db *DB, key []byte) *SettingsRepo {
	return &SettingsRepo{db: db, sealer: sealer{key: key}}
}

// Get retrieves the settings. Returns zero-value settings when none are saved.
func (r *SettingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	if r.sealer.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `
		SELECT xero_client_id, xero_client_secret, xero_tax_standard, xero_tax_zero, xero_tax_exempt, updated_at
		FROM settings WHERE id = 1
	`

	var s model.Settings
	var secret, updatedAt string

	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&s.XeroClientID, &secret, &s.XeroTaxStandard, &s.XeroTaxZero, &s.XeroTaxExempt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if secret != "" {
		if s.XeroClientSecret, err = r.sealer.decrypt(secret); err != nil {
			return nil, fmt.Errorf("decrypt client secret: %w", err)
		}
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &s, nil
}

// Put stores or replaces the settings.
func (r *SettingsRepo) Put(ctx context.Context, settings model.Settings) error {
	if r.sealer.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	secret := ""
	if settings.XeroClientSecret != "" {
		var err error
		if secret, err = r.sealer.encrypt(settings.XeroClientSecret); err != nil {
			return fmt.Errorf("encrypt client secret: %w", err)
		}
	}

	const query = `
		INSERT INTO settings (id, xero_client_id, xero_client_secret, xero_tax_standard, xero_tax_zero, xero_tax_exempt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			xero_client_id = excluded.xero_client_id,
			xero_client_secret = excluded.xero_client_secret,
			xero_tax_standard = excluded.xero_tax_standard,
			xero_tax_zero = excluded.xero_tax_zero,
			xero_tax_exempt = excluded.xero_tax_exempt,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		settings.XeroClientID, secret, settings.XeroTaxStandard, settings.XeroTaxZero, settings.XeroTaxExempt,
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
