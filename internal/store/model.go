package store

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the one-to-one profile row for a user; may be absent.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StravaConnection maps a local user to a Strava athlete and holds that
// athlete's OAuth tokens. At most one row per user; the idempotent-upsert
// key is the athlete id.
type StravaConnection struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenUpdate carries refreshed provider tokens for an existing connection.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}
