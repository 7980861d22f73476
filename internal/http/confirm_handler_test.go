package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"stridelog/internal/identity"
)

func confirmRequest(params url.Values) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/auth/confirm?"+params.Encode(), nil)
}

func TestConfirmRequiresTokenHashAndType(t *testing.T) {
	handler := NewConfirmHandler(&gatewayStub{}, "development", testLogger())

	cases := []url.Values{
		{},
		{"token_hash": {"abc"}},
		{"type": {"magiclink"}},
		{"token_hash": {"abc"}, "type": {"sms"}},
	}

	for _, params := range cases {
		rec := httptest.NewRecorder()
		handler.Confirm(rec, confirmRequest(params))

		if rec.Code != http.StatusFound {
			t.Fatalf("%v: expected status 302, got %d", params, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "/auth/login?error=invalid_token" {
			t.Fatalf("%v: unexpected redirect %q", params, got)
		}
	}
}

func TestConfirmVerificationFailure(t *testing.T) {
	gateway := &gatewayStub{
		verifyOneTimeToken: func(ctx context.Context, tokenHash string, otpType identity.OTPType) (*identity.Session, *identity.User, error) {
			return nil, nil, errors.New("expired")
		},
	}
	handler := NewConfirmHandler(gateway, "development", testLogger())

	rec := httptest.NewRecorder()
	handler.Confirm(rec, confirmRequest(url.Values{"token_hash": {"abc"}, "type": {"magiclink"}}))

	if got := rec.Header().Get("Location"); got != "/auth/login?error=verification_failed" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestConfirmSetsCookiesAndRedirectsToNext(t *testing.T) {
	var gotType identity.OTPType
	gateway := &gatewayStub{
		verifyOneTimeToken: func(ctx context.Context, tokenHash string, otpType identity.OTPType) (*identity.Session, *identity.User, error) {
			gotType = otpType
			session := &identity.Session{AccessToken: "confirmed-access", RefreshToken: "confirmed-refresh", ExpiresAt: time.Now().Add(time.Hour)}
			return session, &identity.User{ID: uuid.New(), Email: "strava_42@stridelog.app"}, nil
		},
	}
	handler := NewConfirmHandler(gateway, "development", testLogger())

	rec := httptest.NewRecorder()
	handler.Confirm(rec, confirmRequest(url.Values{
		"token_hash": {"abc"},
		"type":       {"signup"},
		"next":       {"/settings"},
	}))

	if gotType != identity.OTPSignup {
		t.Fatalf("expected signup verification, got %q", gotType)
	}
	if got := rec.Header().Get("Location"); got != "/settings" {
		t.Fatalf("unexpected redirect %q", got)
	}

	cookies := rec.Result().Cookies()
	access := findCookie(cookies, accessTokenCookie)
	refresh := findCookie(cookies, refreshTokenCookie)
	if access == nil || refresh == nil {
		t.Fatal("expected both session cookies set")
	}
	if access.Value != "confirmed-access" || refresh.Value != "confirmed-refresh" {
		t.Fatalf("unexpected cookie values %q/%q", access.Value, refresh.Value)
	}
}

func TestConfirmDefaultsNextToDashboard(t *testing.T) {
	handler := NewConfirmHandler(&gatewayStub{}, "development", testLogger())

	rec := httptest.NewRecorder()
	handler.Confirm(rec, confirmRequest(url.Values{"token_hash": {"abc"}, "type": {"magiclink"}}))

	if got := rec.Header().Get("Location"); got != "/dashboard" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestConfirmRejectsAbsoluteNext(t *testing.T) {
	handler := NewConfirmHandler(&gatewayStub{}, "development", testLogger())

	for _, next := range []string{"https://evil.test/", "//evil.test", "/%2f%2fevil.test"} {
		rec := httptest.NewRecorder()
		handler.Confirm(rec, confirmRequest(url.Values{
			"token_hash": {"abc"},
			"type":       {"magiclink"},
			"next":       {next},
		}))

		if got := rec.Header().Get("Location"); got != "/dashboard" {
			t.Fatalf("next=%q: expected dashboard fallback, got %q", next, got)
		}
	}
}
