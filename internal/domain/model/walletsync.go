package model

import "time"

// WalletSync is the per-wallet synchronization configuration. WalletID refers
// to the Lightning wallet on the host platform and is unique across configs.
type WalletSync struct {
	ID                string
	WalletID          string
	PullPayments      bool
	PushPayments      bool
	ReconcileName     string
	ReconcileMode     ReconcileMode
	XeroBankAccountID string
	XeroAccountCode   string
	TaxRate           TaxRate
	FeeHandling       bool
	Notes             string
	LastSyncedAt      *time.Time
	Status            SyncStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ListOptions controls pagination, search, and sorting for wallet config listings.
type ListOptions struct {
	Search      string
	SortBy      string
	Descending  bool
	Page        int // 1-based; values below 1 are treated as 1.
	RowsPerPage int // Values below 1 fall back to the default page size.
}
