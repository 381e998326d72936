package httphandler

import (
	"errors"
	"net/http"

	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// connectedPage is shown in the browser tab Xero redirects back to.
const connectedPage = `<!doctype html>
<html>
  <body>
    <h3>Xero connection successful</h3>
    <p>You can close this tab and return to the dashboard.</p>
  </body>
</html>
`

// OAuthStart redirects the browser to the Xero authorization URL.
func (h *Handler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.oauth.BeginAuthorization(r.Context(), h.userID)
	if err != nil {
		if errors.Is(err, driven.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "Xero client id/secret not configured")
			return
		}
		h.logger.Error("failed to begin authorization", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback completes the authorization-code exchange after the user
// grants access in Xero.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "missing code or state in callback")
		return
	}

	if _, err := h.oauth.CompleteAuthorization(r.Context(), code, state); err != nil {
		switch {
		case errors.Is(err, driven.ErrInvalidState):
			writeError(w, http.StatusBadRequest, "invalid or expired state")
		case errors.Is(err, driven.ErrTokenExchangeFailed):
			h.logger.Error("token exchange failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to exchange code with Xero")
		case errors.Is(err, driven.ErrNotConfigured):
			writeError(w, http.StatusBadRequest, "Xero client id/secret not configured")
		default:
			h.logger.Error("oauth callback failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(connectedPage))
}

// Disconnect clears the stored Xero credential. Wallet configs and push
// history are kept; a new connection picks them back up.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.oauth.Disconnect(r.Context()); err != nil {
		h.logger.Error("failed to disconnect", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
