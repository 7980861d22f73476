package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type profileRow struct {
	ID        uuid.UUID      `db:"id"`
	Email     string         `db:"email"`
	FullName  sql.NullString `db:"full_name"`
	AvatarURL sql.NullString `db:"avatar_url"`
	Bio       sql.NullString `db:"bio"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r profileRow) toProfile() *Profile {
	return &Profile{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  r.FullName.String,
		AvatarURL: r.AvatarURL.String,
		Bio:       r.Bio.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type connectionRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	AthleteID    int64     `db:"strava_athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	Scope        string    `db:"scope"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r connectionRow) toConnection() *StravaConnection {
	return &StravaConnection{
		ID:           r.ID,
		UserID:       r.UserID,
		AthleteID:    r.AthleteID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Scope:        r.Scope,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// FindProfile returns the profile row for the user, or nil when absent.
func (r *PostgresRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	const query = `
		SELECT id, email, full_name, avatar_url, bio, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toProfile(), nil
}

// UpsertProfile inserts or refreshes the profile row keyed by user id.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile Profile) error {
	const query = `
		INSERT INTO profiles (id, email, full_name, avatar_url, bio, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.AvatarURL,
		profile.Bio,
		now,
		now,
	)
	return err
}

// StravaConnected reports whether the user has a connection row.
func (r *PostgresRepository) StravaConnected(ctx context.Context, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM strava_connections WHERE user_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, err
	}
	return exists, nil
}

// FindConnectionByAthleteID returns the connection for the athlete, or nil.
func (r *PostgresRepository) FindConnectionByAthleteID(ctx context.Context, athleteID int64) (*StravaConnection, error) {
	const query = `
		SELECT id, user_id, strava_athlete_id, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM strava_connections
		WHERE strava_athlete_id = $1
	`

	var row connectionRow
	if err := r.db.GetContext(ctx, &row, query, athleteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toConnection(), nil
}

// InsertConnection inserts a new connection row.
func (r *PostgresRepository) InsertConnection(ctx context.Context, conn StravaConnection) error {
	const query = `
		INSERT INTO strava_connections (id, user_id, strava_athlete_id, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.AthleteID,
		conn.AccessToken,
		conn.RefreshToken,
		conn.ExpiresAt,
		conn.Scope,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrConnectionExists
	}
	return err
}

// UpdateConnectionTokens overwrites the stored tokens, keyed by athlete id.
func (r *PostgresRepository) UpdateConnectionTokens(ctx context.Context, athleteID int64, update TokenUpdate) error {
	const query = `
		UPDATE strava_connections
		SET access_token = $2, refresh_token = $3, expires_at = $4, scope = $5, updated_at = $6
		WHERE strava_athlete_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		athleteID,
		update.AccessToken,
		update.RefreshToken,
		update.ExpiresAt,
		update.Scope,
		time.Now(),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}
