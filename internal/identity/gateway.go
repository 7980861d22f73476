package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is an identity record owned by the external gateway.
type User struct {
	ID        uuid.UUID    `json:"id"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
	Metadata  UserMetadata `json:"user_metadata"`
}

// UserMetadata carries the provider attributes attached at user creation.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	StravaID  int64  `json:"strava_id,omitempty"`
}

// Session is a paired access/refresh bearer token set issued by the gateway.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CreateUserParams describes an administrative user-creation request.
type CreateUserParams struct {
	Email          string
	EmailConfirmed bool
	Metadata       UserMetadata
}

// OTPType identifies the kind of one-time token being verified.
type OTPType string

const (
	OTPMagicLink   OTPType = "magiclink"
	OTPSignup      OTPType = "signup"
	OTPRecovery    OTPType = "recovery"
	OTPInvite      OTPType = "invite"
	OTPEmailChange OTPType = "email_change"
)

// ValidOTPType reports whether s names a supported one-time token type.
func ValidOTPType(s string) bool {
	switch OTPType(s) {
	case OTPMagicLink, OTPSignup, OTPRecovery, OTPInvite, OTPEmailChange:
		return true
	}
	return false
}

// Sentinel errors surfaced by gateway implementations.
var (
	ErrUserCreation   = errors.New("identity: user creation failed")
	ErrLinkGeneration = errors.New("identity: one-time link generation failed")
	ErrVerification   = errors.New("identity: one-time token verification failed")
)

// Gateway is the external service of record for accounts and sessions.
// Implementations make no retries; a failed call is final for the request.
type Gateway interface {
	// EstablishSession validates the token pair and returns the session's
	// user. A rejected token pair yields (nil, nil), not an error.
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*User, error)

	// CreateUser provisions a user through the gateway's admin API.
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)

	// GenerateMagicLink creates a one-time sign-in artifact for the email
	// and returns its hashed token.
	GenerateMagicLink(ctx context.Context, email string) (string, error)

	// VerifyOneTimeToken redeems a hashed one-time token for a session.
	VerifyOneTimeToken(ctx context.Context, tokenHash string, otpType OTPType) (*Session, *User, error)
}
