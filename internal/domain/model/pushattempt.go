package model

import (
	"fmt"
	"strings"
	"time"
)

// PushAttempt records the outcome of pushing one payment to Xero. The payment
// hash is the idempotency key: a payment with a successful attempt is never
// pushed again. Attempts outlive their wallet config for audit.
type PushAttempt struct {
	ID                string
	WalletID          string
	PaymentHash       string
	XeroTransactionID string
	Outcome           PushOutcome
	Error             string
	Currency          string
	Amount            float64
	CreatedAt         time.Time
}

// SyncResult summarizes one sync batch for a wallet.
type SyncResult struct {
	Pushed  int
	Skipped int
	Failed  int
	Errors  []string
}

// Message renders the batch summary in the form surfaced to the UI.
func (r SyncResult) Message() string {
	msg := fmt.Sprintf("Pushed %d payment(s); skipped %d; failed %d.", r.Pushed, r.Skipped, r.Failed)
	if len(r.Errors) > 0 {
		msg += " Errors: " + strings.Join(r.Errors, ", ")
	}
	return msg
}
