package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WalletStore = (*WalletRepo)(nil)

// defaultRowsPerPage bounds listings when the caller passes no page size.
const defaultRowsPerPage = 25

// sortColumns whitelists the columns a listing may sort by. Anything else
// falls back to updated_at.
var sortColumns = map[string]string{
	"wallet":         "wallet_id",
	"wallet_id":      "wallet_id",
	"reconcile_name": "reconcile_name",
	"status":         "status",
	"last_synced_at": "last_synced_at",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

// WalletRepo is the SQLite implementation of the WalletStore port.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new WalletRepo backed by the given DB.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

const walletColumns = `id, wallet_id, pull_payments, push_payments, reconcile_name, reconcile_mode,
	xero_bank_account_id, xero_account_code, tax_rate, fee_handling, notes,
	last_synced_at, status, created_at, updated_at`

// Create inserts a new config. Returns driven.ErrDuplicateWallet when another
// config already claims the wallet id.
func (r *WalletRepo) Create(ctx context.Context, cfg model.WalletSync) error {
	const query = `
		INSERT INTO wallet_syncs (
			id, wallet_id, pull_payments, push_payments, reconcile_name, reconcile_mode,
			xero_bank_account_id, xero_account_code, tax_rate, fee_handling, notes,
			last_synced_at, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cfg.ID, cfg.WalletID, boolToInt(cfg.PullPayments), boolToInt(cfg.PushPayments),
		cfg.ReconcileName, string(cfg.ReconcileMode), cfg.XeroBankAccountID, cfg.XeroAccountCode,
		string(cfg.TaxRate), boolToInt(cfg.FeeHandling), cfg.Notes,
		nullableTime(cfg.LastSyncedAt), string(cfg.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return driven.ErrDuplicateWallet
		}
		return fmt.Errorf("create wallet sync %q: %w", cfg.WalletID, err)
	}

	return nil
}

// Update replaces an existing config by id. The sync status and timestamps are
// owned by the push engine and left untouched here.
func (r *WalletRepo) Update(ctx context.Context, cfg model.WalletSync) error {
	const query = `
		UPDATE wallet_syncs SET
			wallet_id = ?, pull_payments = ?, push_payments = ?, reconcile_name = ?,
			reconcile_mode = ?, xero_bank_account_id = ?, xero_account_code = ?,
			tax_rate = ?, fee_handling = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		cfg.WalletID, boolToInt(cfg.PullPayments), boolToInt(cfg.PushPayments), cfg.ReconcileName,
		string(cfg.ReconcileMode), cfg.XeroBankAccountID, cfg.XeroAccountCode,
		string(cfg.TaxRate), boolToInt(cfg.FeeHandling), cfg.Notes,
		cfg.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return driven.ErrDuplicateWallet
		}
		return fmt.Errorf("update wallet sync %q: %w", cfg.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wallet sync %q: rows affected: %w", cfg.ID, err)
	}
	if rows == 0 {
		return driven.ErrWalletNotFound
	}

	return nil
}

// Delete removes a config by id. Push attempts are kept for audit.
func (r *WalletRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM wallet_syncs WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete wallet sync %q: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete wallet sync %q: rows affected: %w", id, err)
	}
	if rows == 0 {
		return driven.ErrWalletNotFound
	}

	return nil
}

// Get retrieves a config by id. Returns (nil, nil) when not found.
func (r *WalletRepo) Get(ctx context.Context, id string) (*model.WalletSync, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_syncs WHERE id = ?`

	cfg, err := scanWallet(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet sync %q: %w", id, err)
	}

	return cfg, nil
}

// GetByWalletID retrieves the push-enabled config for a Lightning wallet.
// Returns (nil, nil) when the wallet has no push-enabled config.
func (r *WalletRepo) GetByWalletID(ctx context.Context, walletID string) (*model.WalletSync, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_syncs WHERE wallet_id = ? AND push_payments = 1`

	cfg, err := scanWallet(r.db.Reader.QueryRowContext(ctx, query, walletID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet sync for wallet %q: %w", walletID, err)
	}

	return cfg, nil
}

// List returns a page of configs plus the total row count for the filter.
func (r *WalletRepo) List(ctx context.Context, opts model.ListOptions) ([]model.WalletSync, int, error) {
	where := ""
	var args []any
	if opts.Search != "" {
		where = `WHERE wallet_id LIKE ? COLLATE NOCASE OR reconcile_name LIKE ? COLLATE NOCASE OR notes LIKE ? COLLATE NOCASE`
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM wallet_syncs ` + where
	if err := r.db.Reader.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet syncs: %w", err)
	}

	column, ok := sortColumns[strings.ToLower(opts.SortBy)]
	if !ok {
		column = "updated_at"
		opts.Descending = true
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	rowsPerPage := opts.RowsPerPage
	if rowsPerPage < 1 {
		rowsPerPage = defaultRowsPerPage
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf(`SELECT %s FROM wallet_syncs %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		walletColumns, where, column, direction)
	args = append(args, rowsPerPage, (page-1)*rowsPerPage)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet syncs: %w", err)
	}
	defer rows.Close()

	configs := []model.WalletSync{}
	for rows.Next() {
		cfg, err := scanWallet(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet sync: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet syncs: %w", err)
	}

	return configs, total, nil
}

// ListPushEnabled returns every config with push_payments set.
func (r *WalletRepo) ListPushEnabled(ctx context.Context) ([]model.WalletSync, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_syncs WHERE push_payments = 1 ORDER BY wallet_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list push-enabled wallet syncs: %w", err)
	}
	defer rows.Close()

	var configs []model.WalletSync
	for rows.Next() {
		cfg, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet sync: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet syncs: %w", err)
	}

	return configs, nil
}

// SetStatus updates the sync status, and last_synced_at when syncedAt is non-nil.
func (r *WalletRepo) SetStatus(ctx context.Context, id string, status model.SyncStatus, syncedAt *time.Time) error {
	var res sql.Result
	var err error

	if syncedAt != nil {
		const query = `UPDATE wallet_syncs SET status = ?, last_synced_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
		res, err = r.db.Writer.ExecContext(ctx, query, string(status), syncedAt.UTC().Format(time.RFC3339), id)
	} else {
		const query = `UPDATE wallet_syncs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
		res, err = r.db.Writer.ExecContext(ctx, query, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("set status for wallet sync %q: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status for wallet sync %q: rows affected: %w", id, err)
	}
	if rows == 0 {
		return driven.ErrWalletNotFound
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type scanner interface {
	Scan(dest ...any) error
}

// scanWallet reads one wallet_syncs row in walletColumns order.
func scanWallet(s scanner) (*model.WalletSync, error) {
	var cfg model.WalletSync
	var pull, push, fee int
	var mode, rate, status string
	var lastSynced sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&cfg.ID, &cfg.WalletID, &pull, &push, &cfg.ReconcileName, &mode,
		&cfg.XeroBankAccountID, &cfg.XeroAccountCode, &rate, &fee, &cfg.Notes,
		&lastSynced, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.PullPayments = pull != 0
	cfg.PushPayments = push != 0
	cfg.FeeHandling = fee != 0
	cfg.ReconcileMode = model.ReconcileMode(mode)
	cfg.TaxRate = model.TaxRate(rate)
	cfg.Status = model.SyncStatus(status)

	if lastSynced.Valid && lastSynced.String != "" {
		t, err := parseTime(lastSynced.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_synced_at: %w", err)
		}
		cfg.LastSyncedAt = &t
	}
	if cfg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &cfg, nil
}

// boolToInt maps Go bools onto SQLite integer columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableTime binds a *time.Time as NULL or RFC 3339 text.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// isUniqueViolation detects SQLite UNIQUE constraint errors across driver
// error string variants.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
