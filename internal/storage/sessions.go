package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrAlreadyCompleted is returned when completing a session that is already completed.
var ErrAlreadyCompleted = errors.New("session already completed")

const sessionColumns = `id, client_id, workout_id, status, scheduled_date, started_at, completed_at,
	duration_minutes, notes, exercise_count, exercises, created_at`

func scanSession(row pgx.Row) (models.WorkoutSession, error) {
	var s models.WorkoutSession
	var blob []byte
	err := row.Scan(&s.ID, &s.ClientID, &s.WorkoutID, &s.Status, &s.ScheduledDate, &s.StartedAt,
		&s.CompletedAt, &s.DurationMinutes, &s.Notes, &s.ExerciseCount, &blob, &s.CreatedAt)
	if err != nil {
		return models.WorkoutSession{}, err
	}
	if len(blob) > 0 {
		s.Exercises = json.RawMessage(blob)
	}
	return s, nil
}

// CreateSession inserts a new session and returns the stored row.
func (db *DB) CreateSession(ctx context.Context, s models.WorkoutSession) (models.WorkoutSession, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SessionNotStarted
	}
	row := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions (id, client_id, workout_id, status, scheduled_date, duration_minutes, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+sessionColumns,
		s.ID, s.ClientID, s.WorkoutID, s.Status, s.ScheduledDate, s.DurationMinutes, s.Notes)
	created, err := scanSession(row)
	if err != nil {
		return models.WorkoutSession{}, fmt.Errorf("inserting session: %w", err)
	}
	return created, nil
}

// GetSession retrieves a single session by ID.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		return models.WorkoutSession{}, notFound(err, "querying session")
	}
	return s, nil
}

// ListSessions returns a client's sessions, most recently scheduled first.
func (db *DB) ListSessions(ctx context.Context, clientID uuid.UUID) ([]models.WorkoutSession, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE client_id = $1
		 ORDER BY scheduled_date DESC NULLS LAST, created_at DESC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UpdateSession applies the non-nil fields of patch and returns the stored row.
// Moving to in-progress stamps started_at; moving to completed stamps completed_at.
// A status change away from completed matches no row and returns
// ErrAlreadyCompleted, even when the session was completed concurrently.
func (db *DB) UpdateSession(ctx context.Context, id uuid.UUID, patch models.SessionPatch) (models.WorkoutSession, error) {
	sets := []string{}
	args := []any{id}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.Status != nil {
		add("status = $%d", *patch.Status)
		switch *patch.Status {
		case models.SessionInProgress:
			sets = append(sets, "started_at = COALESCE(started_at, NOW())")
		case models.SessionCompleted:
			sets = append(sets, "completed_at = COALESCE(completed_at, NOW())")
		}
	}
	if patch.ScheduledDate != nil {
		add("scheduled_date = $%d", *patch.ScheduledDate)
	}
	if patch.DurationMinutes != nil {
		add("duration_minutes = $%d", *patch.DurationMinutes)
	}
	if patch.Notes != nil {
		add("notes = $%d", *patch.Notes)
	}
	if patch.WorkoutID != nil {
		add("workout_id = $%d", *patch.WorkoutID)
	}
	if len(sets) == 0 {
		return db.GetSession(ctx, id)
	}

	where := "id = $1"
	reopening := patch.Status != nil && *patch.Status != models.SessionCompleted
	if reopening {
		where += " AND status <> 'completed'"
	}

	row := db.Pool.QueryRow(ctx,
		`UPDATE workout_sessions SET `+strings.Join(sets, ", ")+`
		 WHERE `+where+`
		 RETURNING `+sessionColumns,
		args...)
	s, err := scanSession(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || !reopening {
		return models.WorkoutSession{}, notFound(err, "updating session")
	}
	return models.WorkoutSession{}, db.completedOrMissing(ctx, id, "updating session")
}

// DeleteSession removes a session and, through cascades, its logged exercises and sets.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workout_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting session: %w", ErrNotFound)
	}
	return nil
}

// MarkSessionCompleted moves a session to completed, setting duration and notes
// when given and the exercise count always. The update only matches sessions that
// are not yet completed, so concurrent completions of the same session cannot
// both succeed: the loser gets ErrAlreadyCompleted.
func (db *DB) MarkSessionCompleted(ctx context.Context, id uuid.UUID, durationMinutes *int, notes *string, exerciseCount int) (models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`UPDATE workout_sessions
		 SET status = 'completed',
		     completed_at = NOW(),
		     duration_minutes = COALESCE($2, duration_minutes),
		     notes = COALESCE($3, notes),
		     exercise_count = $4
		 WHERE id = $1 AND status <> 'completed'
		 RETURNING `+sessionColumns,
		id, durationMinutes, notes, exerciseCount)
	s, err := scanSession(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.WorkoutSession{}, fmt.Errorf("completing session: %w", err)
	}

	return models.WorkoutSession{}, db.completedOrMissing(ctx, id, "completing session")
}

// completedOrMissing explains a conditional session update that matched no row.
func (db *DB) completedOrMissing(ctx context.Context, id uuid.UUID, op string) error {
	var exists bool
	if err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM workout_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists {
		return ErrAlreadyCompleted
	}
	return fmt.Errorf("%s: %w", op, ErrNotFound)
}

// SaveSessionExercisesBlob stores the raw exercises payload on the session row.
func (db *DB) SaveSessionExercisesBlob(ctx context.Context, id uuid.UUID, raw json.RawMessage) (models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`UPDATE workout_sessions SET exercises = $2::jsonb
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		id, string(raw))
	s, err := scanSession(row)
	if err != nil {
		return models.WorkoutSession{}, notFound(err, "saving exercises blob")
	}
	return s, nil
}

// GetSessionDetail returns a session with its logged exercises and sets.
func (db *DB) GetSessionDetail(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	s, err := db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	exercises, err := db.ListSessionExercises(ctx, id)
	if err != nil {
		return nil, err
	}
	sets, err := db.ListSessionSets(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{WorkoutSession: s, SessionExercises: exercises, Sets: sets}, nil
}
