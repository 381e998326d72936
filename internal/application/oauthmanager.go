// Package application contains the use-case services of the sync engine:
// the OAuth flow manager, the payment push engine, and the scheduled sweep.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Xero OAuth2 endpoints.
var xeroEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.xero.com/identity/connect/authorize",
	TokenURL: "https://identity.xero.com/connect/token",
}

const xeroConnectionsURL = "https://api.xero.com/connections"

// oauthScopes are the scopes the sync engine needs: identity for the consent
// screen, settings and transactions for the API, offline_access for refresh
// tokens.
var oauthScopes = []string{
	"openid", "profile", "email",
	"accounting.settings", "accounting.transactions",
	"offline_access",
}

const (
	// refreshMargin is the safety window before expiry inside which the
	// access token is refreshed rather than used.
	refreshMargin = 60 * time.Second

	// stateTTL bounds how long a pending authorization may wait for the
	// callback before its state value expires.
	stateTTL = 10 * time.Minute
)

// pendingAuth is one issued-but-unconsumed OAuth state value.
type pendingAuth struct {
	userID  string
	expires time.Time
}

// OAuthManager drives the authorization-code grant and token refresh against
// Xero. It is the only component that mutates the stored credential.
type OAuthManager struct {
	creds       driven.CredentialStore
	settings    driven.SettingsStore
	redirectURL string
	logger      *slog.Logger

	// Overridable for tests against httptest servers.
	endpoint       oauth2.Endpoint
	connectionsURL string
	httpClient     *http.Client

	mu           sync.Mutex // Guards pending and forceRefresh.
	pending      map[string]pendingAuth
	forceRefresh bool

	refresh singleflight.Group
}

// NewOAuthManager creates an OAuthManager. redirectURL is the externally
// reachable /oauth/callback URL registered with the Xero app.
func NewOAuthManager(creds driven.CredentialStore, settings driven.SettingsStore, redirectURL string, logger *slog.Logger) *OAuthManager {
	return &OAuthManager{
		creds:          creds,
		settings:       settings,
		redirectURL:    redirectURL,
		logger:         logger,
		endpoint:       xeroEndpoint,
		connectionsURL: xeroConnectionsURL,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		pending:        make(map[string]pendingAuth),
	}
}

// config builds the oauth2 config from the stored settings. Returns
// driven.ErrNotConfigured when client id/secret are missing.
func (m *OAuthManager) config(ctx context.Context) (*oauth2.Config, error) {
	s, err := m.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !s.HasClientCredentials() {
		return nil, driven.ErrNotConfigured
	}

	return &oauth2.Config{
		ClientID:     s.XeroClientID,
		ClientSecret: s.XeroClientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  m.redirectURL,
		Scopes:       oauthScopes,
	}, nil
}

// BeginAuthorization builds the provider authorization URL with an opaque
// state value bound to the requesting user. The state expires after 10
// minutes or on first use, whichever comes first.
func (m *OAuthManager) BeginAuthorization(ctx context.Context, userID string) (string, error) {
	cfg, err := m.config(ctx)
	if err != nil {
		return "", err
	}

	state := uuid.NewString()

	m.mu.Lock()
	m.prunePendingLocked()
	m.pending[state] = pendingAuth{userID: userID, expires: time.Now().Add(stateTTL)}
	m.mu.Unlock()

	m.logger.Info("authorization started", "user_id", userID)
	return cfg.AuthCodeURL(state), nil
}

// CompleteAuthorization validates the callback state, exchanges the code for
// tokens, resolves the tenant id, and stores the credential.
func (m *OAuthManager) CompleteAuthorization(ctx context.Context, code, state string) (*model.Credential, error) {
	m.mu.Lock()
	pending, ok := m.pending[state]
	if ok {
		delete(m.pending, state)
	}
	m.mu.Unlock()

	if !ok || time.Now().After(pending.expires) {
		return nil, driven.ErrInvalidState
	}

	cfg, err := m.config(ctx)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", driven.ErrTokenExchangeFailed, err)
	}

	tenantID, err := m.fetchTenantID(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	cred := model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
		TenantID:     tenantID,
	}
	if err := m.creds.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	m.logger.Info("xero connection established", "tenant_id", tenantID, "user_id", pending.userID)
	return &cred, nil
}

// Token returns a valid access token and tenant id, refreshing first when the
// stored token expires within the safety margin. Concurrent callers needing a
// refresh are collapsed into a single provider call.
func (m *OAuthManager) Token(ctx context.Context) (string, string, error) {
	cred, err := m.creds.Get(ctx)
	if err != nil {
		return "", "", err
	}
	if cred == nil {
		return "", "", driven.ErrNotConnected
	}

	m.mu.Lock()
	stale := m.forceRefresh
	m.mu.Unlock()

	if !stale && !cred.ExpiresWithin(refreshMargin) {
		return cred.AccessToken, cred.TenantID, nil
	}

	v, err, _ := m.refresh.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", "", err
	}

	refreshed := v.(*model.Credential)
	return refreshed.AccessToken, refreshed.TenantID, nil
}

// Invalidate forces a refresh on the next Token call. Used by the API client
// after a 401 when the provider revoked the token early.
func (m *OAuthManager) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.forceRefresh = true
	m.mu.Unlock()
	return nil
}

// Disconnect clears the stored credential.
func (m *OAuthManager) Disconnect(ctx context.Context) error {
	if err := m.creds.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info("xero connection cleared")
	return nil
}

// doRefresh performs the refresh-token grant and persists the rotated pair.
// Runs inside singleflight; callers that lost the race re-read the result.
func (m *OAuthManager) doRefresh(ctx context.Context) (*model.Credential, error) {
	// Re-read inside the flight: an earlier winner may have refreshed already.
	cred, err := m.creds.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, driven.ErrNotConnected
	}

	m.mu.Lock()
	stale := m.forceRefresh
	m.mu.Unlock()

	if !stale && !cred.ExpiresWithin(refreshMargin) {
		return cred, nil
	}

	cfg, err := m.config(ctx)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", driven.ErrRefreshFailed, err)
	}

	refreshed := model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
		TenantID:     cred.TenantID,
	}
	// Some providers rotate refresh tokens only sometimes; keep the old one
	// when the response omits it.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}

	if err := m.creds.Put(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("store refreshed credential: %w", err)
	}

	m.mu.Lock()
	m.forceRefresh = false
	m.mu.Unlock()

	m.logger.Info("access token refreshed", "expires", refreshed.TokenExpiry)
	return &refreshed, nil
}

// fetchTenantID resolves the organisation the new token is connected to.
// The first connection wins, matching the original single-organisation setup.
func (m *OAuthManager) fetchTenantID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.connectionsURL, nil)
	if err != nil {
		return "", fmt.Errorf("build connections request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch xero connections: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read connections response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: connections returned %d: %s", driven.ErrTokenExchangeFailed, resp.StatusCode, body)
	}

	var connections []struct {
		TenantID string `json:"tenantId"`
	}
	if err := json.Unmarshal(body, &connections); err != nil {
		return "", fmt.Errorf("decode connections response: %w", err)
	}
	if len(connections) == 0 {
		return "", fmt.Errorf("%w: no organisations connected", driven.ErrTokenExchangeFailed)
	}

	return connections[0].TenantID, nil
}

// prunePendingLocked drops expired state values. Caller holds m.mu.
func (m *OAuthManager) prunePendingLocked() {
	now := time.Now()
	for state, p := range m.pending {
		if now.After(p.expires) {
			delete(m.pending, state)
		}
	}
}
