package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// InsertLegacyWorkoutSets batch-inserts rows into the legacy workout_sets table.
// Returns count inserted.
func (db *DB) InsertLegacyWorkoutSets(ctx context.Context, rows []models.LegacyWorkoutSetRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO workout_sets (id, workout_exercise_id, workout_session_id, set_number,
		reps, weight, duration_seconds) VALUES `
	args := make([]any, 0, len(rows)*7)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		base := i * 7
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args, r.ID, r.WorkoutExerciseID, r.WorkoutSessionID, r.SetNumber,
			r.Reps, r.Weight, r.DurationSeconds)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting legacy workout sets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QueryLegacyWorkoutSets returns the mirrored sets of a session.
func (db *DB) QueryLegacyWorkoutSets(ctx context.Context, sessionID uuid.UUID) ([]models.LegacyWorkoutSetRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, workout_exercise_id, workout_session_id, set_number, reps, weight, duration_seconds
		 FROM workout_sets
		 WHERE workout_session_id = $1
		 ORDER BY workout_exercise_id, set_number ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying legacy workout sets: %w", err)
	}
	defer rows.Close()

	var result []models.LegacyWorkoutSetRow
	for rows.Next() {
		var r models.LegacyWorkoutSetRow
		if err := rows.Scan(&r.ID, &r.WorkoutExerciseID, &r.WorkoutSessionID, &r.SetNumber,
			&r.Reps, &r.Weight, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scanning legacy workout set: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
