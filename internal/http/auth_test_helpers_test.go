package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"stridelog/internal/identity"
	"stridelog/internal/store"
)

type gatewayStub struct {
	establishSession   func(ctx context.Context, access, refresh string) (*identity.User, error)
	createUser         func(ctx context.Context, params identity.CreateUserParams) (*identity.User, error)
	generateMagicLink  func(ctx context.Context, email string) (string, error)
	verifyOneTimeToken func(ctx context.Context, tokenHash string, otpType identity.OTPType) (*identity.Session, *identity.User, error)

	establishCalls  int
	createUserCalls int
}

func (g *gatewayStub) EstablishSession(ctx context.Context, access, refresh string) (*identity.User, error) {
	g.establishCalls++
	if g.establishSession != nil {
		return g.establishSession(ctx, access, refresh)
	}
	return nil, nil
}

func (g *gatewayStub) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.User, error) {
	g.createUserCalls++
	if g.createUser != nil {
		return g.createUser(ctx, params)
	}
	return &identity.User{ID: uuid.New(), Email: params.Email, Metadata: params.Metadata}, nil
}

func (g *gatewayStub) GenerateMagicLink(ctx context.Context, email string) (string, error) {
	if g.generateMagicLink != nil {
		return g.generateMagicLink(ctx, email)
	}
	return "hashed-token", nil
}

func (g *gatewayStub) VerifyOneTimeToken(ctx context.Context, tokenHash string, otpType identity.OTPType) (*identity.Session, *identity.User, error) {
	if g.verifyOneTimeToken != nil {
		return g.verifyOneTimeToken(ctx, tokenHash, otpType)
	}
	session := &identity.Session{AccessToken: "session-access", RefreshToken: "session-refresh", ExpiresAt: time.Now().Add(time.Hour)}
	return session, &identity.User{ID: uuid.New(), Email: "strava_42@stridelog.app"}, nil
}

type repoStub struct {
	store.Repository

	findProfile func(ctx context.Context, userID uuid.UUID) (*store.Profile, error)
	connected   func(ctx context.Context, userID uuid.UUID) (bool, error)
}

func (r *repoStub) FindProfile(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	if r.findProfile != nil {
		return r.findProfile(ctx, userID)
	}
	return r.Repository.FindProfile(ctx, userID)
}

func (r *repoStub) StravaConnected(ctx context.Context, userID uuid.UUID) (bool, error) {
	if r.connected != nil {
		return r.connected(ctx, userID)
	}
	return r.Repository.StravaConnected(ctx, userID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
