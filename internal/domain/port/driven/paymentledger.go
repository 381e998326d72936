package driven

import (
	"context"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// PaymentLedger queries the host platform for settled incoming Lightning
// payments. The ledger is owned by the platform; this port is read-only.
type PaymentLedger interface {
	// ListSuccessfulIncomingPayments returns settled incoming payments for
	// the wallet settled at or after since. A zero since means no lower bound.
	ListSuccessfulIncomingPayments(ctx context.Context, walletID string, since time.Time) ([]model.Payment, error)
}
