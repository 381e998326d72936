package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// SettingsRequest is the JSON body for the settings endpoint, and doubles as
// its response shape.
type SettingsRequest struct {
	XeroClientID     string `json:"xero_client_id"`
	XeroClientSecret string `json:"xero_client_secret"`
	XeroTaxStandard  string `json:"xero_tax_standard"`
	XeroTaxZero      string `json:"xero_tax_zero"`
	XeroTaxExempt    string `json:"xero_tax_exempt"`
}

// WalletRequest is the JSON body for wallet config create/update.
type WalletRequest struct {
	Wallet            string `json:"wallet"`
	PullPayments      bool   `json:"pull_payments"`
	PushPayments      bool   `json:"push_payments"`
	ReconcileName     string `json:"reconcile_name"`
	ReconcileMode     string `json:"reconcile_mode"`
	XeroBankAccountID string `json:"xero_bank_account_id"`
	XeroAccountCode   string `json:"xero_account_code"`
	TaxRate           string `json:"tax_rate"`
	FeeHandling       bool   `json:"fee_handling"`
	Notes             string `json:"notes"`
}

// WalletResponse is the JSON representation of a wallet sync config.
type WalletResponse struct {
	ID                string `json:"id"`
	Wallet            string `json:"wallet"`
	PullPayments      bool   `json:"pull_payments"`
	PushPayments      bool   `json:"push_payments"`
	ReconcileName     string `json:"reconcile_name"`
	ReconcileMode     string `json:"reconcile_mode"`
	XeroBankAccountID string `json:"xero_bank_account_id"`
	XeroAccountCode   string `json:"xero_account_code"`
	TaxRate           string `json:"tax_rate"`
	FeeHandling       bool   `json:"fee_handling"`
	Notes             string `json:"notes"`
	LastSyncedAt      string `json:"last_synced_at,omitempty"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// WalletPage is the paginated listing envelope.
type WalletPage struct {
	Data  []WalletResponse `json:"data"`
	Total int              `json:"total"`
}

// AttemptResponse is the JSON representation of one push attempt.
type AttemptResponse struct {
	ID                string  `json:"id"`
	Wallet            string  `json:"wallet"`
	PaymentHash       string  `json:"payment_hash"`
	XeroTransactionID string  `json:"xero_transaction_id,omitempty"`
	Outcome           string  `json:"outcome"`
	Error             string  `json:"error,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	Amount            float64 `json:"amount"`
	CreatedAt         string  `json:"created_at"`
}

// PushResponse is returned by the push endpoint.
type PushResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toWalletResponse converts a domain config to its JSON shape.
func toWalletResponse(cfg model.WalletSync) WalletResponse {
	resp := WalletResponse{
		ID:                cfg.ID,
		Wallet:            cfg.WalletID,
		PullPayments:      cfg.PullPayments,
		PushPayments:      cfg.PushPayments,
		ReconcileName:     cfg.ReconcileName,
		ReconcileMode:     string(cfg.ReconcileMode),
		XeroBankAccountID: cfg.XeroBankAccountID,
		XeroAccountCode:   cfg.XeroAccountCode,
		TaxRate:           string(cfg.TaxRate),
		FeeHandling:       cfg.FeeHandling,
		Notes:             cfg.Notes,
		Status:            string(cfg.Status),
		CreatedAt:         cfg.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         cfg.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if cfg.LastSyncedAt != nil {
		resp.LastSyncedAt = cfg.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toAttemptResponse converts a domain push attempt to its JSON shape.
func toAttemptResponse(a model.PushAttempt) AttemptResponse {
	return AttemptResponse{
		ID:                a.ID,
		Wallet:            a.WalletID,
		PaymentHash:       a.PaymentHash,
		XeroTransactionID: a.XeroTransactionID,
		Outcome:           string(a.Outcome),
		Error:             a.Error,
		Currency:          a.Currency,
		Amount:            a.Amount,
		CreatedAt:         a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
