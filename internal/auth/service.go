package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"stridelog/internal/identity"
	"stridelog/internal/store"
	"stridelog/internal/strava"
)

// Terminal failures of the sign-in bridge, mapped to redirect tags by the
// HTTP layer.
var (
	ErrUserCreation        = errors.New("auth: user creation failed")
	ErrSessionGeneration   = errors.New("auth: session link generation failed")
	ErrSessionVerification = errors.New("auth: session verification failed")
)

// Service bridges a Strava token grant to a local user and gateway session.
type Service struct {
	gateway     identity.Gateway
	repo        store.Repository
	emailDomain string
	logger      *slog.Logger
}

// NewService creates a new bridge Service.
func NewService(gateway identity.Gateway, repo store.Repository, emailDomain string, logger *slog.Logger) *Service {
	return &Service{
		gateway:     gateway,
		repo:        repo,
		emailDomain: emailDomain,
		logger:      logger,
	}
}

// SyntheticEmail derives the deterministic internal email for an athlete.
// Strava does not expose athlete emails; the format is a compatibility
// requirement for rows created by earlier deployments.
func (s *Service) SyntheticEmail(athleteID int64) string {
	return fmt.Sprintf("strava_%d@%s", athleteID, s.emailDomain)
}

// DisplayName joins the athlete's name fields, falling back to a placeholder.
func DisplayName(first, last string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return "Athlete"
	}
	return name
}

// SignInWithStrava completes the provider handshake: it maps the athlete to a
// local user (creating one on first connect), records the provider tokens,
// and issues a gateway session via a server-side magic-link verification.
//
// Connection bookkeeping failures after the user exists are logged and
// tolerated; the user can always sign in even if the connection row lags.
func (s *Service) SignInWithStrava(ctx context.Context, grant *strava.TokenGrant) (*identity.Session, *identity.User, error) {
	athlete := grant.Athlete
	email := s.SyntheticEmail(athlete.ID)
	fullName := DisplayName(athlete.FirstName, athlete.LastName)

	existing, err := s.repo.FindConnectionByAthleteID(ctx, athlete.ID)
	if err != nil {
		s.logger.Error("connection lookup failed", "athlete_id", athlete.ID, "error", err)
	}

	if existing != nil {
		// Reconnect: overwrite tokens keyed by athlete id, reuse the user.
		update := store.TokenUpdate{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
			Scope:        grant.Scope,
		}
		if err := s.repo.UpdateConnectionTokens(ctx, athlete.ID, update); err != nil {
			s.logger.Error("connection token update failed", "athlete_id", athlete.ID, "error", err)
		} else {
			s.logger.Info("updated strava connection", "user_id", existing.UserID, "athlete_id", athlete.ID)
		}
	} else {
		user, err := s.gateway.CreateUser(ctx, identity.CreateUserParams{
			Email:          email,
			EmailConfirmed: true,
			Metadata: identity.UserMetadata{
				FullName:  fullName,
				AvatarURL: athlete.AvatarURL(),
				StravaID:  athlete.ID,
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUserCreation, err)
		}

		conn := store.StravaConnection{
			ID:           uuid.New(),
			UserID:       user.ID,
			AthleteID:    athlete.ID,
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
			Scope:        grant.Scope,
		}
		if err := s.repo.InsertConnection(ctx, conn); err != nil {
			// Non-fatal: the user record exists, so sign-in proceeds.
			s.logger.Error("connection insert failed", "user_id", user.ID, "athlete_id", athlete.ID, "error", err)
		}

		profile := store.Profile{
			ID:        user.ID,
			Email:     email,
			FullName:  fullName,
			AvatarURL: athlete.AvatarURL(),
			CreatedAt: time.Now(),
		}
		if err := s.repo.UpsertProfile(ctx, profile); err != nil {
			s.logger.Error("profile upsert failed", "user_id", user.ID, "error", err)
		}

		s.logger.Info("created user from strava", "user_id", user.ID, "athlete_id", athlete.ID)
	}

	hashedToken, err := s.gateway.GenerateMagicLink(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionGeneration, err)
	}

	session, user, err := s.gateway.VerifyOneTimeToken(ctx, hashedToken, identity.OTPMagicLink)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionVerification, err)
	}
	if session == nil || user == nil {
		return nil, nil, fmt.Errorf("%w: gateway returned no session", ErrSessionVerification)
	}

	return session, user, nil
}
