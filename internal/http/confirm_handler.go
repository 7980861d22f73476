package http

import (
	"net/http"
	"strings"

	"log/slog"

	"stridelog/internal/identity"
)

// ConfirmHandler completes magic-link style verification flows started by
// the identity gateway (email confirmations, invites, recovery).
type ConfirmHandler struct {
	gateway      identity.Gateway
	logger       *slog.Logger
	secureCookie bool
}

// NewConfirmHandler creates a new ConfirmHandler.
func NewConfirmHandler(gateway identity.Gateway, env string, logger *slog.Logger) *ConfirmHandler {
	return &ConfirmHandler{
		gateway:      gateway,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Confirm handles GET /auth/confirm.
// Verifies the one-time token, installs the session cookie pair, and sends
// the browser on to the requested page.
func (h *ConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tokenHash := query.Get("token_hash")
	otpType := query.Get("type")

	next := query.Get("next")
	if next == "" || !isValidRedirectPath(next) {
		next = dashboardPath
	}

	if tokenHash == "" || !identity.ValidOTPType(otpType) {
		http.Redirect(w, r, loginPath+"?error=invalid_token", http.StatusFound)
		return
	}

	session, user, err := h.gateway.VerifyOneTimeToken(r.Context(), tokenHash, identity.OTPType(otpType))
	if err != nil {
		h.logger.Error("token verification failed", "type", otpType, "error", err)
		http.Redirect(w, r, loginPath+"?error=verification_failed", http.StatusFound)
		return
	}

	if session != nil {
		setSessionCookies(w, session, h.secureCookie)
		if user != nil {
			h.logger.Info("session created", "user_id", user.ID, "email", user.Email)
		}
	}

	http.Redirect(w, r, next, http.StatusFound)
}
