package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	profiles    map[uuid.UUID]Profile
	connections map[int64]StravaConnection
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:    make(map[uuid.UUID]Profile),
		connections: make(map[int64]StravaConnection),
	}
}

// FindProfile returns the stored profile for the user, or nil.
func (r *MemoryRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	copy := profile
	return &copy, nil
}

// UpsertProfile stores the profile keyed by user id.
func (r *MemoryRepository) UpsertProfile(ctx context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.profiles[profile.ID] = profile
	return nil
}

// StravaConnected reports whether the user has a connection.
func (r *MemoryRepository) StravaConnected(ctx context.Context, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conn := range r.connections {
		if conn.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// FindConnectionByAthleteID returns the connection for the athlete, or nil.
func (r *MemoryRepository) FindConnectionByAthleteID(ctx context.Context, athleteID int64) (*StravaConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[athleteID]
	if !ok {
		return nil, nil
	}
	copy := conn
	return &copy, nil
}

// InsertConnection stores a new connection keyed by athlete id. Duplicate
// athlete or user rows fail the same way the unique constraints do in
// Postgres.
func (r *MemoryRepository) InsertConnection(ctx context.Context, conn StravaConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn.AthleteID]; ok {
		return ErrConnectionExists
	}
	for _, existing := range r.connections {
		if existing.UserID == conn.UserID {
			return ErrConnectionExists
		}
	}

	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = now
	}
	r.connections[conn.AthleteID] = conn
	return nil
}

// UpdateConnectionTokens overwrites the stored tokens for the athlete.
func (r *MemoryRepository) UpdateConnectionTokens(ctx context.Context, athleteID int64, update TokenUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[athleteID]
	if !ok {
		return ErrConnectionNotFound
	}

	conn.AccessToken = update.AccessToken
	conn.RefreshToken = update.RefreshToken
	conn.ExpiresAt = update.ExpiresAt
	conn.Scope = update.Scope
	conn.UpdatedAt = time.Now()
	r.connections[athleteID] = conn
	return nil
}
