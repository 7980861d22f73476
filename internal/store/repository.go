package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrConnectionNotFound is returned by token updates targeting an
	// athlete with no stored connection.
	ErrConnectionNotFound = errors.New("store: connection not found")

	// ErrConnectionExists is returned by inserts for an athlete or user
	// that already has a connection row.
	ErrConnectionExists = errors.New("store: connection already exists")
)

// Repository defines profile and Strava-connection persistence. Single-row
// lookups tolerate zero rows by returning a nil record and nil error.
type Repository interface {
	FindProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error

	StravaConnected(ctx context.Context, userID uuid.UUID) (bool, error)
	FindConnectionByAthleteID(ctx context.Context, athleteID int64) (*StravaConnection, error)
	InsertConnection(ctx context.Context, conn StravaConnection) error
	UpdateConnectionTokens(ctx context.Context, athleteID int64, update TokenUpdate) error
}
