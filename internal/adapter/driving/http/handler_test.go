package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnbridge/xerosync/internal/application"
	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

const testAPIKey = "test-api-key"

type stubWalletStore struct {
	mu      sync.Mutex
	configs map[string]*model.WalletSync
}

func newStubWalletStore() *stubWalletStore {
	return &stubWalletStore{configs: make(map[string]*model.WalletSync)}
}

func (s *stubWalletStore) Create(_ context.Context, cfg model.WalletSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.configs {
		if c.WalletID == cfg.WalletID {
			return driven.ErrDuplicateWallet
		}
	}
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt
	s.configs[cfg.ID] = &cfg
	return nil
}

func (s *stubWalletStore) Update(_ context.Context, cfg model.WalletSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.configs[cfg.ID]
	if !ok {
		return driven.ErrWalletNotFound
	}
	for id, c := range s.configs {
		if id != cfg.ID && c.WalletID == cfg.WalletID {
			return driven.ErrDuplicateWallet
		}
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[cfg.ID] = &cfg
	return nil
}

func (s *stubWalletStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return driven.ErrWalletNotFound
	}
	delete(s.configs, id)
	return nil
}

func (s *stubWalletStore) Get(_ context.Context, id string) (*model.WalletSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[id], nil
}

func (s *stubWalletStore) GetByWalletID(_ context.Context, walletID string) (*model.WalletSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.configs {
		if c.WalletID == walletID && c.PushPayments {
			return c, nil
		}
	}
	return nil, nil
}

func (s *stubWalletStore) List(_ context.Context, _ model.ListOptions) ([]model.WalletSync, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.WalletSync{}
	for _, c := range s.configs {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (s *stubWalletStore) ListPushEnabled(_ context.Context) ([]model.WalletSync, error) {
	return nil, nil
}

func (s *stubWalletStore) SetStatus(_ context.Context, id string, status model.SyncStatus, syncedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.configs[id]; ok {
		c.Status = status
		if syncedAt != nil {
			c.LastSyncedAt = syncedAt
		}
	}
	return nil
}

type stubAttemptStore struct {
	attempts []model.PushAttempt
}

func (s *stubAttemptStore) Record(_ context.Context, a model.PushAttempt) error {
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *stubAttemptStore) SuccessfulHashes(_ context.Context, _ string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (s *stubAttemptStore) ListByWallet(_ context.Context, walletID string) ([]model.PushAttempt, error) {
	out := []model.PushAttempt{}
	for _, a := range s.attempts {
		if a.WalletID == walletID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubSettingsStore struct {
	settings model.Settings
}

func (s *stubSettingsStore) Get(_ context.Context) (*model.Settings, error) {
	out := s.settings
	return &out, nil
}

func (s *stubSettingsStore) Put(_ context.Context, settings model.Settings) error {
	s.settings = settings
	return nil
}

type stubCredentialStore struct {
	cred *model.Credential
}

func (s *stubCredentialStore) Get(_ context.Context) (*model.Credential, error) {
	return s.cred, nil
}

func (s *stubCredentialStore) Put(_ context.Context, cred model.Credential) error {
	s.cred = &cred
	return nil
}

func (s *stubCredentialStore) Clear(_ context.Context) error {
	s.cred = nil
	return nil
}

type stubXeroClient struct {
	accounts     []model.XeroAccountRef
	bankAccounts []model.XeroBankAccountRef
	err          error
}

func (s *stubXeroClient) ListAccounts(_ context.Context) ([]model.XeroAccountRef, error) {
	return s.accounts, s.err
}

func (s *stubXeroClient) ListBankAccounts(_ context.Context) ([]model.XeroBankAccountRef, error) {
	return s.bankAccounts, s.err
}

func (s *stubXeroClient) CreateBankTransaction(_ context.Context, tx model.BankTransaction) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "xero-txn-1", nil
}

type stubLedger struct {
	payments []model.Payment
}

func (s *stubLedger) ListSuccessfulIncomingPayments(_ context.Context, walletID string, _ time.Time) ([]model.Payment, error) {
	out := []model.Payment{}
	for _, p := range s.payments {
		if p.WalletID == walletID {
			out = append(out, p)
		}
	}
	return out, nil
}

// testEnv bundles the handler's collaborators so tests can reach through to
// the stores behind the HTTP surface.
type testEnv struct {
	srv      *httptest.Server
	wallets  *stubWalletStore
	attempts *stubAttemptStore
	settings *stubSettingsStore
	creds    *stubCredentialStore
	xero     *stubXeroClient
	ledger   *stubLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		wallets:  newStubWalletStore(),
		attempts: &stubAttemptStore{},
		settings: &stubSettingsStore{settings: model.Settings{XeroClientID: "client-id", XeroClientSecret: "client-secret"}},
		creds:    &stubCredentialStore{},
		xero:     &stubXeroClient{},
		ledger:   &stubLedger{},
	}

	logger := slog.Default()
	oauth := application.NewOAuthManager(env.creds, env.settings, "http://localhost:8080/oauth/callback", logger)
	syncSvc := application.NewSyncService(env.wallets, env.attempts, env.ledger, env.xero, env.settings, logger)
	h := NewHandler(env.settings, env.wallets, env.attempts, env.xero, oauth, syncSvc, "admin", logger)

	env.srv = httptest.NewServer(NewServeMux(h, testAPIKey, logger))
	t.Cleanup(env.srv.Close)
	return env
}

// request performs an authenticated request and decodes the JSON response into out.
func (env *testEnv) request(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.srv.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", testAPIKey)

	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, out))
		}
	}
	return resp.StatusCode
}

func (env *testEnv) seedWallet(t *testing.T, walletID string) *model.WalletSync {
	t.Helper()
	cfg := &model.WalletSync{
		ID:                uuid.NewString(),
		WalletID:          walletID,
		PushPayments:      true,
		ReconcileMode:     model.ReconcileModeManual,
		XeroBankAccountID: "bank-1",
		TaxRate:           model.TaxRateNone,
		Status:            model.SyncStatusIdle,
	}
	require.NoError(t, env.wallets.Create(context.Background(), *cfg))
	return cfg
}

func TestAPI_RequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_WrongAPIKeyRejected(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/health", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t)

	var body HealthResponse
	status := env.request(t, http.MethodGet, "/api/v1/health", nil, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Time)
}

func TestAPI_SettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	put := SettingsRequest{
		XeroClientID:     "new-client",
		XeroClientSecret: "new-secret",
		XeroTaxStandard:  "OUTPUT",
	}
	status := env.request(t, http.MethodPut, "/api/v1/settings", put, nil)
	assert.Equal(t, http.StatusOK, status)

	var got SettingsRequest
	status = env.request(t, http.MethodGet, "/api/v1/settings", nil, &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, put, got)
}

func TestAPI_CreateWallet(t *testing.T) {
	env := newTestEnv(t)

	var created WalletResponse
	status := env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{
		Wallet:            "wallet-1",
		PushPayments:      true,
		ReconcileName:     "Coffee Shop",
		ReconcileMode:     "exact",
		XeroBankAccountID: "bank-1",
		TaxRate:           "standard",
	}, &created)

	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "wallet-1", created.Wallet)
	assert.Equal(t, "exact", created.ReconcileMode)
	assert.Equal(t, "standard", created.TaxRate)
	assert.Equal(t, "idle", created.Status)
}

func TestAPI_CreateWalletDefaults(t *testing.T) {
	env := newTestEnv(t)

	var created WalletResponse
	status := env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{Wallet: "wallet-1"}, &created)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "manual", created.ReconcileMode)
	assert.Equal(t, "none", created.TaxRate)
	assert.False(t, created.PushPayments)
}

func TestAPI_CreateWalletValidation(t *testing.T) {
	env := newTestEnv(t)

	status := env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "wallet id is required")

	status = env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{Wallet: "w", ReconcileMode: "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{Wallet: "w", TaxRate: "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_CreateWalletDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedWallet(t, "wallet-1")

	status := env.request(t, http.MethodPost, "/api/v1/wallets", WalletRequest{Wallet: "wallet-1"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_GetWallet(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")

	var got WalletResponse
	status := env.request(t, http.MethodGet, "/api/v1/wallets/"+cfg.ID, nil, &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, cfg.ID, got.ID)

	status = env.request(t, http.MethodGet, "/api/v1/wallets/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_UpdateWallet(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")

	var updated WalletResponse
	status := env.request(t, http.MethodPut, "/api/v1/wallets/"+cfg.ID, WalletRequest{
		Wallet:        "wallet-1",
		ReconcileName: "Renamed",
		ReconcileMode: "fuzzy",
	}, &updated)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Renamed", updated.ReconcileName)
	assert.Equal(t, "fuzzy", updated.ReconcileMode)

	status = env.request(t, http.MethodPut, "/api/v1/wallets/"+uuid.NewString(), WalletRequest{Wallet: "w"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_DeleteWallet(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")

	status := env.request(t, http.MethodDelete, "/api/v1/wallets/"+cfg.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status = env.request(t, http.MethodDelete, "/api/v1/wallets/"+cfg.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_ListWallets(t *testing.T) {
	env := newTestEnv(t)
	env.seedWallet(t, "wallet-1")
	env.seedWallet(t, "wallet-2")

	var page WalletPage
	status := env.request(t, http.MethodGet, "/api/v1/wallets/paginated?page=1&rowsPerPage=10", nil, &page)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Data, 2)
}

func TestAPI_PushWallet(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")
	env.ledger.payments = []model.Payment{{
		PaymentHash:  "hash-a",
		WalletID:     "wallet-1",
		AmountMsat:   21_000_000,
		Memo:         "Invoice 42",
		FiatCurrency: "EUR",
		FiatAmount:   1.05,
		SettledAt:    time.Now().UTC(),
	}}

	var resp PushResponse
	status := env.request(t, http.MethodPost, "/api/v1/wallets/"+cfg.ID+"/push", nil, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, resp.Message, "Pushed 1 payment(s)")
	assert.Len(t, env.attempts.attempts, 1)
}

func TestAPI_PushWalletNotFound(t *testing.T) {
	env := newTestEnv(t)

	status := env.request(t, http.MethodPost, "/api/v1/wallets/"+uuid.NewString()+"/push", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_PushWalletPushDisabled(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")
	cfg.PushPayments = false
	require.NoError(t, env.wallets.Update(context.Background(), *cfg))

	status := env.request(t, http.MethodPost, "/api/v1/wallets/"+cfg.ID+"/push", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ListAttempts(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedWallet(t, "wallet-1")
	require.NoError(t, env.attempts.Record(context.Background(), model.PushAttempt{
		ID:          uuid.NewString(),
		WalletID:    "wallet-1",
		PaymentHash: "hash-a",
		Outcome:     model.PushOutcomeSuccess,
		Currency:    "EUR",
		Amount:      1.05,
	}))

	var attempts []AttemptResponse
	status := env.request(t, http.MethodGet, "/api/v1/wallets/"+cfg.ID+"/attempts", nil, &attempts)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, attempts, 1)
	assert.Equal(t, "hash-a", attempts[0].PaymentHash)
	assert.Equal(t, "success", attempts[0].Outcome)

	status = env.request(t, http.MethodGet, "/api/v1/wallets/"+uuid.NewString()+"/attempts", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_ListAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.xero.accounts = []model.XeroAccountRef{{Value: "200", Label: "200 - Sales", Type: "REVENUE"}}

	var refs []model.XeroAccountRef
	status := env.request(t, http.MethodGet, "/api/v1/accounts", nil, &refs)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, refs, 1)
	assert.Equal(t, "200", refs[0].Value)
}

func TestAPI_ListAccountsNotConnected(t *testing.T) {
	env := newTestEnv(t)
	env.xero.err = driven.ErrNotConnected

	status := env.request(t, http.MethodGet, "/api/v1/accounts", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ListBankAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.xero.bankAccounts = []model.XeroBankAccountRef{{Value: "bank-1", Label: "Business Account"}}

	var refs []model.XeroBankAccountRef
	status := env.request(t, http.MethodGet, "/api/v1/bank_accounts", nil, &refs)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, refs, 1)
}

func TestAPI_OAuthStartRedirects(t *testing.T) {
	env := newTestEnv(t)

	client := env.srv.Client()
	client.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(env.srv.URL + "/oauth/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "login.xero.com")
	assert.Contains(t, resp.Header.Get("Location"), "state=")
}

func TestAPI_OAuthStartWithoutClientCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.settings.settings = model.Settings{}

	resp, err := env.srv.Client().Get(env.srv.URL + "/oauth/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Disconnect(t *testing.T) {
	env := newTestEnv(t)
	env.creds.cred = &model.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  time.Now().Add(time.Hour),
		TenantID:     "tenant-1",
	}

	status := env.request(t, http.MethodDelete, "/api/v1/connection", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Nil(t, env.creds.cred)
}

func TestAPI_OAuthCallbackValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.srv.Client().Get(env.srv.URL + "/oauth/callback")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing code and state")

	resp, err = env.srv.Client().Get(env.srv.URL + "/oauth/callback?code=abc&state=forged")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown state")
}
