package http

import (
	"net/http"
	"time"

	"stridelog/internal/identity"
)

const (
	accessTokenCookie  = "sb-access-token"
	refreshTokenCookie = "sb-refresh-token"

	accessTokenTTL  = 7 * 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// setSessionCookies writes the paired session cookies. The pair is always
// set together; callers never write one without the other.
func setSessionCookies(w http.ResponseWriter, session *identity.Session, secure bool) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, session.AccessToken, accessTokenTTL, secure))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, session.RefreshToken, refreshTokenTTL, secure))
}

// clearSessionCookies expires both session cookies together.
func clearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cleared := sessionCookie(name, "", 0, secure)
		cleared.MaxAge = -1
		cleared.Expires = time.Unix(0, 0)
		http.SetCookie(w, cleared)
	}
}

func sessionCookie(name, value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(ttl.Seconds()),
	}
}
