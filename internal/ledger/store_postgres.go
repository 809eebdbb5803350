package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
	"kudos/pkg/platform/sentinel"
)

// PostgresStore is the production ledger backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ledger tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS karma_activities (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			activity_type TEXT NOT NULL,
			points INTEGER NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_karma_activities_user_created
			ON karma_activities (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_ranks (
			user_id UUID PRIMARY KEY,
			rank TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// Append inserts an activity. The ledger is append-only and idempotent:
// duplicate ids are ignored via ON CONFLICT DO NOTHING.
func (s *PostgresStore) Append(ctx context.Context, act karma.Activity) error {
	if err := act.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO karma_activities (id, user_id, activity_type, points, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	var description sql.NullString
	if act.Description != "" {
		description = sql.NullString{String: act.Description, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(act.ID),
		uuid.UUID(act.UserID),
		act.Type,
		act.Points,
		description,
		act.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert karma activity: %w", err)
	}
	return nil
}

// RecentActivities returns up to limit activities for the user, newest first.
func (s *PostgresStore) RecentActivities(ctx context.Context, userID id.UserID, limit int) ([]karma.Activity, error) {
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be positive")
	}

	query := `
		SELECT id, user_id, activity_type, points, description, created_at
		FROM karma_activities
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("query karma activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

func (s *PostgresStore) StoredRank(ctx context.Context, userID id.UserID) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT rank FROM user_ranks WHERE user_id = $1`,
		uuid.UUID(userID),
	).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("stored rank for %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query stored rank: %w", err)
	}
	return label, nil
}

func (s *PostgresStore) SetStoredRank(ctx context.Context, userID id.UserID, label string) error {
	query := `
		INSERT INTO user_ranks (user_id, rank)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET rank = EXCLUDED.rank
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), label); err != nil {
		return fmt.Errorf("upsert stored rank: %w", err)
	}
	return nil
}

func scanActivities(rows *sql.Rows) ([]karma.Activity, error) {
	var activities []karma.Activity

	for rows.Next() {
		var (
			act         karma.Activity
			activityID  uuid.UUID
			userID      uuid.UUID
			description sql.NullString
		)

		err := rows.Scan(
			&activityID,
			&userID,
			&act.Type,
			&act.Points,
			&description,
			&act.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan karma activity: %w", err)
		}

		act.ID = id.ActivityID(activityID)
		act.UserID = id.UserID(userID)
		if description.Valid {
			act.Description = description.String
		}

		activities = append(activities, act)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate karma activities: %w", err)
	}

	return activities, nil
}
