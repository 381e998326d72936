package driven

import (
	"context"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// XeroClient is the typed, retrying HTTP layer over the Xero accounting API.
// Implementations obtain a fresh access token per call from the OAuth manager
// and must not be used before a connection exists.
type XeroClient interface {
	// ListAccounts fetches the chart of accounts, projected for select inputs.
	ListAccounts(ctx context.Context) ([]model.XeroAccountRef, error)

	// ListBankAccounts fetches bank-type accounts, projected for select inputs.
	ListBankAccounts(ctx context.Context) ([]model.XeroBankAccountRef, error)

	// CreateBankTransaction creates a RECEIVE bank transaction and returns
	// the Xero transaction id.
	CreateBankTransaction(ctx context.Context, tx model.BankTransaction) (string, error)
}
