// Package driven declares the driven ports (outbound interfaces) of the sync
// engine, plus the sentinel errors adapters use to signal well-known failures
// across the port boundary.
package driven

import "errors"

var (
	// ErrNotConnected is returned when no Xero credential is stored or the
	// stored credential can no longer be used. The caller should surface a
	// "reconnect to Xero" state.
	ErrNotConnected = errors.New("not connected to Xero")

	// ErrNotConfigured is returned when the Xero client id/secret are missing
	// from settings, or a wallet has no push-enabled sync configuration.
	ErrNotConfigured = errors.New("xero sync not configured")

	// ErrInvalidState is returned by the OAuth callback when the state value
	// does not match one issued for a pending authorization.
	ErrInvalidState = errors.New("oauth state mismatch")

	// ErrTokenExchangeFailed is returned when the provider rejects the
	// authorization code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrRefreshFailed is returned when the provider rejects the refresh
	// token. Terminal for the attempt; the user must reconnect.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrUnauthorized is returned when a Xero API call still gets a 401 after
	// one forced token refresh.
	ErrUnauthorized = errors.New("unauthorized by Xero")

	// ErrAlreadySyncing is returned when a sync is requested for a wallet
	// that has a sync batch in flight. Requests are rejected, not queued.
	ErrAlreadySyncing = errors.New("wallet sync already in progress")

	// ErrDuplicateWallet is returned on create/update when another config
	// already claims the wallet id.
	ErrDuplicateWallet = errors.New("wallet already has a sync configuration")

	// ErrWalletNotFound is returned when no config exists for the given id.
	ErrWalletNotFound = errors.New("wallet sync configuration not found")

	// ErrEncryptionKeyNotSet is returned by stores that encrypt at rest when
	// XEROSYNC_SECRET_KEY has not been configured.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set XEROSYNC_SECRET_KEY")
)
