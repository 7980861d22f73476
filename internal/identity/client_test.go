package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func newGatewayServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "service-key"), srv
}

func writeUser(w http.ResponseWriter, id uuid.UUID, email string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":    id.String(),
		"email": email,
		"user_metadata": map[string]any{
			"full_name": "Test Athlete",
		},
	})
}

func TestEstablishSessionReturnsUserForValidToken(t *testing.T) {
	userID := uuid.New()
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		writeUser(w, userID, "strava_42@stridelog.app")
	})

	user, err := client.EstablishSession(context.Background(), "access-token", "refresh-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.ID != userID {
		t.Fatalf("expected user %s, got %+v", userID, user)
	}
	if user.Metadata.FullName != "Test Athlete" {
		t.Fatalf("expected metadata round-trip, got %+v", user.Metadata)
	}
}

func TestEstablishSessionFallsBackToRefreshGrant(t *testing.T) {
	userID := uuid.New()
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			w.WriteHeader(http.StatusUnauthorized)
		case "/token":
			if r.URL.Query().Get("grant_type") != "refresh_token" {
				t.Fatalf("unexpected grant type %q", r.URL.Query().Get("grant_type"))
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "refresh-token" {
				t.Fatalf("unexpected refresh token %q", body["refresh_token"])
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "new-access",
				"refresh_token": "new-refresh",
				"expires_in":    3600,
				"user":          map[string]any{"id": userID.String(), "email": "strava_42@stridelog.app"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	user, err := client.EstablishSession(context.Background(), "stale-access", "refresh-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.ID != userID {
		t.Fatalf("expected refreshed user, got %+v", user)
	}
}

func TestEstablishSessionReturnsNilForRejectedTokens(t *testing.T) {
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	user, err := client.EstablishSession(context.Background(), "bad", "also-bad")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

func TestEstablishSessionWithoutRefreshTokenStopsAfterOneCall(t *testing.T) {
	calls := 0
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	user, err := client.EstablishSession(context.Background(), "bad", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
	if calls != 1 {
		t.Fatalf("expected a single gateway call, got %d", calls)
	}
}

func TestCreateUserSendsAdminRequest(t *testing.T) {
	userID := uuid.New()
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Fatalf("expected service key bearer, got %q", got)
		}
		var body struct {
			Email        string       `json:"email"`
			EmailConfirm bool         `json:"email_confirm"`
			Metadata     UserMetadata `json:"user_metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Email != "strava_42@stridelog.app" || !body.EmailConfirm {
			t.Fatalf("unexpected body %+v", body)
		}
		if body.Metadata.StravaID != 42 {
			t.Fatalf("expected strava id in metadata, got %+v", body.Metadata)
		}
		w.WriteHeader(http.StatusCreated)
		writeUser(w, userID, body.Email)
	})

	user, err := client.CreateUser(context.Background(), CreateUserParams{
		Email:          "strava_42@stridelog.app",
		EmailConfirmed: true,
		Metadata:       UserMetadata{FullName: "Test Athlete", StravaID: 42},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != userID {
		t.Fatalf("expected user %s, got %s", userID, user.ID)
	}
}

func TestCreateUserWrapsGatewayFailure(t *testing.T) {
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := client.CreateUser(context.Background(), CreateUserParams{Email: "x@y"})
	if !errors.Is(err, ErrUserCreation) {
		t.Fatalf("expected ErrUserCreation, got %v", err)
	}
}

func TestGenerateMagicLinkReturnsHashedToken(t *testing.T) {
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/generate_link" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "magiclink" {
			t.Fatalf("unexpected link type %q", body["type"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"hashed_token": "hashed-123"})
	})

	token, err := client.GenerateMagicLink(context.Background(), "strava_42@stridelog.app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "hashed-123" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestGenerateMagicLinkRejectsEmptyToken(t *testing.T) {
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := client.GenerateMagicLink(context.Background(), "x@y")
	if !errors.Is(err, ErrLinkGeneration) {
		t.Fatalf("expected ErrLinkGeneration, got %v", err)
	}
}

func TestVerifyOneTimeTokenReturnsSessionAndUser(t *testing.T) {
	userID := uuid.New()
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token_hash"] != "hashed-123" || body["type"] != "magiclink" {
			t.Fatalf("unexpected body %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "session-access",
			"refresh_token": "session-refresh",
			"expires_in":    3600,
			"user":          map[string]any{"id": userID.String(), "email": "strava_42@stridelog.app"},
		})
	})

	session, user, err := client.VerifyOneTimeToken(context.Background(), "hashed-123", OTPMagicLink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "session-access" || session.RefreshToken != "session-refresh" {
		t.Fatalf("unexpected session %+v", session)
	}
	if user.ID != userID {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestVerifyOneTimeTokenWrapsRejection(t *testing.T) {
	client, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := client.VerifyOneTimeToken(context.Background(), "expired", OTPMagicLink)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
}

func TestValidOTPType(t *testing.T) {
	for _, valid := range []string{"magiclink", "signup", "recovery", "invite", "email_change"} {
		if !ValidOTPType(valid) {
			t.Fatalf("expected %q to be valid", valid)
		}
	}
	if ValidOTPType("sms") {
		t.Fatal("expected sms to be invalid")
	}
}
