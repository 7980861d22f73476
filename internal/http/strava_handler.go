package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"stridelog/internal/auth"
	"stridelog/internal/metrics"
	"stridelog/internal/strava"
)

type stravaAuthenticator interface {
	AuthCodeURL() string
	Exchange(ctx context.Context, code string) (*strava.TokenGrant, error)
}

// StravaHandler drives the Strava OAuth bridge endpoints.
type StravaHandler struct {
	strava       stravaAuthenticator
	authService  *auth.Service
	recorder     metrics.Recorder
	logger       *slog.Logger
	secureCookie bool
}

// NewStravaHandler creates a new StravaHandler.
func NewStravaHandler(stravaClient stravaAuthenticator, authService *auth.Service, recorder metrics.Recorder, env string, logger *slog.Logger) *StravaHandler {
	return &StravaHandler{
		strava:       stravaClient,
		authService:  authService,
		recorder:     recorder,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Initiate handles GET /api/auth/strava.
// Sends the browser to Strava's authorization page; no local state is
// created here.
func (h *StravaHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.strava.AuthCodeURL(), http.StatusFound)
}

// Callback handles GET /api/auth/strava/callback.
// Every terminal outcome is a redirect: to the dashboard on success, or to
// the login page with a machine-readable error tag. The browser never sees
// a raw 500 from this endpoint.
func (h *StravaHandler) Callback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("strava callback panicked", "panic", rec)
			h.redirectWithError(w, r, "callback_failed")
		}
	}()

	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("strava oauth error", "error", errParam)
		h.redirectWithError(w, r, "strava_denied")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectWithError(w, r, "no_code")
		return
	}

	start := time.Now()
	grant, err := h.strava.Exchange(r.Context(), code)
	if h.recorder != nil {
		h.recorder.RecordTokenExchangeLatency(time.Since(start))
	}
	if err != nil {
		h.logger.Error("strava token exchange failed", "error", err)
		h.redirectWithError(w, r, "token_exchange_failed")
		return
	}

	session, user, err := h.authService.SignInWithStrava(r.Context(), grant)
	if err != nil {
		h.logger.Error("strava sign-in failed", "athlete_id", grant.Athlete.ID, "error", err)
		h.redirectWithError(w, r, callbackErrorTag(err))
		return
	}

	setSessionCookies(w, session, h.secureCookie)

	if h.recorder != nil {
		h.recorder.RecordCallbackOutcome("success")
	}
	h.logger.Info("strava sign-in successful", "user_id", user.ID, "athlete_id", grant.Athlete.ID)

	http.Redirect(w, r, dashboardPath, http.StatusFound)
}

// callbackErrorTag maps bridge failures to the tags the login page renders.
func callbackErrorTag(err error) string {
	switch {
	case errors.Is(err, auth.ErrUserCreation):
		return "user_creation_failed"
	case errors.Is(err, auth.ErrSessionGeneration):
		return "session_failed"
	case errors.Is(err, auth.ErrSessionVerification):
		return "session_creation_failed"
	default:
		return "callback_failed"
	}
}

func (h *StravaHandler) redirectWithError(w http.ResponseWriter, r *http.Request, tag string) {
	if h.recorder != nil {
		h.recorder.RecordCallbackOutcome(tag)
	}
	http.Redirect(w, r, loginPath+"?error="+tag, http.StatusFound)
}
