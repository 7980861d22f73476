package http

import (
	"context"
	"net/http"
	"strings"

	"log/slog"

	"stridelog/internal/authstate"
	"stridelog/internal/identity"
	"stridelog/internal/metrics"
	"stridelog/internal/store"
)

// Route prefixes that require an authenticated user.
var protectedPrefixes = []string{
	"/dashboard",
	"/calendar",
	"/friends",
	"/leaderboard",
	"/profile",
	"/settings",
}

// Auth pages that authenticated users are redirected away from.
var authPrefixes = []string{
	"/auth/login",
	"/auth/register",
}

const (
	loginPath     = "/auth/login"
	dashboardPath = "/dashboard"
)

// RequestContext is the per-request snapshot of authentication state. It is
// built fresh by the gate on every request and never persisted.
type RequestContext struct {
	User            *identity.User
	Profile         *store.Profile
	StravaConnected bool
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const requestContextKey contextKey = "requestContext"

// RequestContextFrom extracts the gate's snapshot from the request context.
// Returns the anonymous state if the gate has not run.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey).(RequestContext)
	return rc
}

// gateResult is the explicit continuation-or-redirect outcome of the gate.
type gateResult struct {
	rc           RequestContext
	clearCookies bool

	// redirectTo is empty for a pass-through continuation.
	redirectTo     string
	redirectReason string
}

// Gate restores the session from cookies, loads the request's auth state,
// and enforces route protection ahead of every handler.
type Gate struct {
	gateway      identity.Gateway
	repo         store.Repository
	state        *authstate.Store
	recorder     metrics.Recorder
	logger       *slog.Logger
	secureCookie bool
}

// NewGate creates a request gate.
func NewGate(gateway identity.Gateway, repo store.Repository, state *authstate.Store, recorder metrics.Recorder, env string, logger *slog.Logger) *Gate {
	return &Gate{
		gateway:      gateway,
		repo:         repo,
		state:        state,
		recorder:     recorder,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Middleware runs the gate once per request.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := g.resolve(r)

			if result.clearCookies {
				clearSessionCookies(w, g.secureCookie)
			}

			g.publish(result.rc)

			if result.redirectTo != "" {
				if g.recorder != nil {
					g.recorder.RecordGateRedirect(result.redirectReason)
				}
				http.Redirect(w, r, result.redirectTo, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), requestContextKey, result.rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve computes the gate outcome for a request. Session problems are
// downgraded to the anonymous state, never surfaced as errors.
func (g *Gate) resolve(r *http.Request) gateResult {
	result := gateResult{}

	accessToken := cookieValue(r, accessTokenCookie)
	if accessToken != "" {
		refreshToken := cookieValue(r, refreshTokenCookie)

		user, err := g.gateway.EstablishSession(r.Context(), accessToken, refreshToken)
		if err != nil {
			g.logger.Warn("session validation failed", "error", err)
		}

		if user == nil {
			// Invalid tokens: drop them and continue anonymously.
			result.clearCookies = true
		} else {
			result.rc.User = user

			profile, err := g.repo.FindProfile(r.Context(), user.ID)
			if err != nil {
				g.logger.Error("profile lookup failed", "user_id", user.ID, "error", err)
			}
			result.rc.Profile = profile

			connected, err := g.repo.StravaConnected(r.Context(), user.ID)
			if err != nil {
				g.logger.Error("connection lookup failed", "user_id", user.ID, "error", err)
			}
			result.rc.StravaConnected = connected
		}
	}

	path := r.URL.Path
	if result.rc.User == nil && hasPrefix(path, protectedPrefixes) {
		result.redirectTo = loginPath
		result.redirectReason = "login_required"
		return result
	}
	if result.rc.User != nil && hasPrefix(path, authPrefixes) {
		result.redirectTo = dashboardPath
		result.redirectReason = "already_authenticated"
		return result
	}

	return result
}

// publish mirrors the request context into the UI auth-state cache.
func (g *Gate) publish(rc RequestContext) {
	if g.state == nil {
		return
	}
	if rc.User == nil {
		g.state.Reset()
		return
	}
	g.state.SetUser(rc.User)
	g.state.SetProfile(rc.Profile)
	g.state.SetStravaConnected(rc.StravaConnected)
}

func hasPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
