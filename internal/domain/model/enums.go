package model

// SyncStatus represents the sync state of a wallet configuration.
// Transitions happen only through the push engine.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
	SyncStatusOK      SyncStatus = "ok"
)

// ReconcileMode is the strategy for matching a pushed transaction against an
// existing Xero bank-feed entry.
type ReconcileMode string

const (
	ReconcileModeExact  ReconcileMode = "exact"
	ReconcileModeFuzzy  ReconcileMode = "fuzzy"
	ReconcileModeManual ReconcileMode = "manual"
)

// Valid reports whether the mode is one of the known reconcile strategies.
func (m ReconcileMode) Valid() bool {
	switch m {
	case ReconcileModeExact, ReconcileModeFuzzy, ReconcileModeManual:
		return true
	}
	return false
}

// TaxRate selects which configured Xero tax type code a pushed line item carries.
type TaxRate string

const (
	TaxRateNone     TaxRate = "none" // Omit TaxType; the account's default applies.
	TaxRateStandard TaxRate = "standard"
	TaxRateZero     TaxRate = "zero"
	TaxRateExempt   TaxRate = "exempt"
)

// Valid reports whether the rate is one of the known tax rate selections.
func (t TaxRate) Valid() bool {
	switch t {
	case TaxRateNone, TaxRateStandard, TaxRateZero, TaxRateExempt:
		return true
	}
	return false
}

// PushOutcome is the result of a single payment push attempt.
type PushOutcome string

const (
	PushOutcomeSuccess PushOutcome = "success"
	PushOutcomeFailed  PushOutcome = "failed"
)
