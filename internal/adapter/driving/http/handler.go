// Package httphandler is the HTTP driving adapter serving the admin JSON API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lnbridge/xerosync/internal/application"
	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Handler serves the REST API consumed by the admin UI.
type Handler struct {
	settings driven.SettingsStore
	wallets  driven.WalletStore
	attempts driven.AttemptStore
	xero     driven.XeroClient
	oauth    *application.OAuthManager
	syncSvc  *application.SyncService
	userID   string
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. userID is the
// installation identity used to seed OAuth state values.
func NewHandler(
	settings driven.SettingsStore,
	wallets driven.WalletStore,
	attempts driven.AttemptStore,
	xero driven.XeroClient,
	oauth *application.OAuthManager,
	syncSvc *application.SyncService,
	userID string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settings: settings,
		wallets:  wallets,
		attempts: attempts,
		xero:     xero,
		oauth:    oauth,
		syncSvc:  syncSvc,
		userID:   userID,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with auth, logging, and recovery middleware.
func NewServeMux(h *Handler, apiKey string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/settings", h.UpdateSettings)

	mux.HandleFunc("GET /api/v1/wallets/paginated", h.ListWallets)
	mux.HandleFunc("POST /api/v1/wallets", h.CreateWallet)
	mux.HandleFunc("GET /api/v1/wallets/{id}", h.GetWallet)
	mux.HandleFunc("PUT /api/v1/wallets/{id}", h.UpdateWallet)
	mux.HandleFunc("DELETE /api/v1/wallets/{id}", h.DeleteWallet)
	mux.HandleFunc("POST /api/v1/wallets/{id}/push", h.PushWallet)
	mux.HandleFunc("GET /api/v1/wallets/{id}/attempts", h.ListAttempts)

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("GET /api/v1/bank_accounts", h.ListBankAccounts)

	mux.HandleFunc("GET /oauth/start", h.OAuthStart)
	mux.HandleFunc("GET /oauth/callback", h.OAuthCallback)
	mux.HandleFunc("DELETE /api/v1/connection", h.Disconnect)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = authMiddleware(apiKey, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// GetSettings returns the stored Xero app settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SettingsRequest{
		XeroClientID:     s.XeroClientID,
		XeroClientSecret: s.XeroClientSecret,
		XeroTaxStandard:  s.XeroTaxStandard,
		XeroTaxZero:      s.XeroTaxZero,
		XeroTaxExempt:    s.XeroTaxExempt,
	})
}

// UpdateSettings replaces the stored Xero app settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.settings.Put(r.Context(), model.Settings{
		XeroClientID:     req.XeroClientID,
		XeroClientSecret: req.XeroClientSecret,
		XeroTaxStandard:  req.XeroTaxStandard,
		XeroTaxZero:      req.XeroTaxZero,
		XeroTaxExempt:    req.XeroTaxExempt,
	})
	if err != nil {
		h.logger.Error("failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// ListWallets returns a page of wallet sync configs.
// Query: search, sortBy, page, rowsPerPage, descending.
func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	rowsPerPage, _ := strconv.Atoi(q.Get("rowsPerPage"))
	descending := q.Get("descending") == "true"

	opts := model.ListOptions{
		Search:      q.Get("search"),
		SortBy:      q.Get("sortBy"),
		Descending:  descending,
		Page:        page,
		RowsPerPage: rowsPerPage,
	}

	configs, total, err := h.wallets.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list wallet configs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, WalletPage{
		Data:  lo.Map(configs, func(cfg model.WalletSync, _ int) WalletResponse { return toWalletResponse(cfg) }),
		Total: total,
	})
}

// CreateWallet creates a wallet sync config.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, errMsg := walletFromRequest(req)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	cfg.ID = uuid.NewString()
	cfg.Status = model.SyncStatusIdle

	if err := h.wallets.Create(r.Context(), cfg); err != nil {
		if errors.Is(err, driven.ErrDuplicateWallet) {
			writeError(w, http.StatusConflict, "wallet already has a sync configuration")
			return
		}
		h.logger.Error("failed to create wallet config", "wallet", req.Wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := h.wallets.Get(r.Context(), cfg.ID)
	if err != nil || created == nil {
		cfg.CreatedAt = time.Now().UTC()
		cfg.UpdatedAt = cfg.CreatedAt
		writeJSON(w, http.StatusCreated, toWalletResponse(cfg))
		return
	}
	writeJSON(w, http.StatusCreated, toWalletResponse(*created))
}

// GetWallet returns a single wallet sync config by id.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.wallets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get wallet config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "wallet sync configuration not found")
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(*cfg))
}

// UpdateWallet updates an existing wallet sync config.
func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.wallets.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get wallet config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "wallet sync configuration not found")
		return
	}

	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, errMsg := walletFromRequest(req)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	cfg.ID = id

	if err := h.wallets.Update(r.Context(), cfg); err != nil {
		switch {
		case errors.Is(err, driven.ErrDuplicateWallet):
			writeError(w, http.StatusConflict, "wallet already has a sync configuration")
		case errors.Is(err, driven.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "wallet sync configuration not found")
		default:
			h.logger.Error("failed to update wallet config", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	updated, err := h.wallets.Get(r.Context(), id)
	if err != nil || updated == nil {
		writeJSON(w, http.StatusOK, toWalletResponse(cfg))
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(*updated))
}

// DeleteWallet removes a wallet sync config. Push attempts are kept for audit.
func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.wallets.Delete(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "wallet sync configuration not found")
			return
		}
		h.logger.Error("failed to delete wallet config", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PushWallet triggers a sync batch for the wallet config.
func (h *Handler) PushWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cfg, err := h.wallets.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get wallet config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "wallet sync configuration not found")
		return
	}

	result, err := h.syncSvc.SyncWallet(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrAlreadySyncing):
			writeError(w, http.StatusConflict, "a sync for this wallet is already in progress")
		case errors.Is(err, driven.ErrNotConfigured):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, driven.ErrNotConnected), errors.Is(err, driven.ErrRefreshFailed):
			writeError(w, http.StatusBadRequest, "not connected to Xero, reconnect required")
		default:
			h.logger.Error("wallet sync failed", "id", id, "error", err)
			writeError(w, http.StatusBadGateway, "sync failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, PushResponse{Message: result.Message()})
}

// ListAttempts returns the push history for a wallet config.
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.wallets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get wallet config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "wallet sync configuration not found")
		return
	}

	attempts, err := h.attempts.ListByWallet(r.Context(), cfg.WalletID)
	if err != nil {
		h.logger.Error("failed to list push attempts", "wallet", cfg.WalletID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(attempts, func(a model.PushAttempt, _ int) AttemptResponse {
		return toAttemptResponse(a)
	}))
}

// ListAccounts proxies the Xero chart of accounts for select inputs.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	refs, err := h.xero.ListAccounts(r.Context())
	if err != nil {
		h.writeUpstreamError(w, "list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

// ListBankAccounts proxies the Xero bank accounts for select inputs.
func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	refs, err := h.xero.ListBankAccounts(r.Context())
	if err != nil {
		h.writeUpstreamError(w, "list bank accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeUpstreamError maps Xero client failures onto API status codes.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrNotConnected), errors.Is(err, driven.ErrRefreshFailed),
		errors.Is(err, driven.ErrUnauthorized):
		writeError(w, http.StatusBadRequest, "not connected to Xero, reconnect required")
	case errors.Is(err, driven.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, "Xero client id/secret not configured")
	default:
		h.logger.Error("xero api call failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "Xero API request failed")
	}
}

// walletFromRequest validates a request body and maps it onto the domain
// config. Empty enum fields fall back to their defaults.
func walletFromRequest(req WalletRequest) (model.WalletSync, string) {
	if req.Wallet == "" {
		return model.WalletSync{}, "wallet is required"
	}

	mode := model.ReconcileMode(req.ReconcileMode)
	if req.ReconcileMode == "" {
		mode = model.ReconcileModeManual
	}
	if !mode.Valid() {
		return model.WalletSync{}, "invalid reconcile_mode: expected exact, fuzzy, or manual"
	}

	rate := model.TaxRate(req.TaxRate)
	if req.TaxRate == "" {
		rate = model.TaxRateNone
	}
	if !rate.Valid() {
		return model.WalletSync{}, "invalid tax_rate: expected none, standard, zero, or exempt"
	}

	return model.WalletSync{
		WalletID:          req.Wallet,
		PullPayments:      req.PullPayments,
		PushPayments:      req.PushPayments,
		ReconcileName:     req.ReconcileName,
		ReconcileMode:     mode,
		XeroBankAccountID: req.XeroBankAccountID,
		XeroAccountCode:   req.XeroAccountCode,
		TaxRate:           rate,
		FeeHandling:       req.FeeHandling,
		Notes:             req.Notes,
	}, ""
}
