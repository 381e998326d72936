package driven

import (
	"context"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// CredentialStore persists the single per-installation Xero credential.
// The adapter layer owns encryption at rest; this interface operates on
// plaintext tokens at the domain boundary. Writes trigger no external calls.
type CredentialStore interface {
	// Get retrieves the stored credential. Returns (nil, nil) when no
	// credential exists (not connected).
	Get(ctx context.Context) (*model.Credential, error)

	// Put stores or replaces the credential.
	Put(ctx context.Context, cred model.Credential) error

	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
