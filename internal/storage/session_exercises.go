package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// InsertSessionExercises batch-inserts session exercises in the order given.
// Row ids are assigned by the caller so positions in rows stay meaningful after the insert.
func (db *DB) InsertSessionExercises(ctx context.Context, rows []models.SessionExerciseRow) ([]models.SessionExerciseRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	query := `INSERT INTO session_exercises (id, workout_session_id, workout_exercise_id, exercise_id,
		exercise_name, order_index, planned_sets, planned_reps, planned_weight, planned_rest_seconds, notes) VALUES `
	args := make([]any, 0, len(rows)*11)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		if r.ID == uuid.Nil {
			rows[i].ID = uuid.New()
			r.ID = rows[i].ID
		}
		base := i * 11
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args, r.ID, r.WorkoutSessionID, r.WorkoutExerciseID, r.ExerciseID,
			r.ExerciseName, r.OrderIndex, r.PlannedSets, r.PlannedReps, r.PlannedWeight,
			r.PlannedRestSeconds, r.Notes)
	}

	query += strings.Join(valueStrings, ",")

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting session exercises: %w", err)
	}
	return rows, nil
}

// ListSessionExercises returns the exercises logged for a session in order.
func (db *DB) ListSessionExercises(ctx context.Context, sessionID uuid.UUID) ([]models.SessionExerciseRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, workout_session_id, workout_exercise_id, exercise_id, exercise_name, order_index,
		 planned_sets, planned_reps, planned_weight, planned_rest_seconds, notes
		 FROM session_exercises
		 WHERE workout_session_id = $1
		 ORDER BY order_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}
	defer rows.Close()

	var result []models.SessionExerciseRow
	for rows.Next() {
		var r models.SessionExerciseRow
		if err := rows.Scan(&r.ID, &r.WorkoutSessionID, &r.WorkoutExerciseID, &r.ExerciseID,
			&r.ExerciseName, &r.OrderIndex, &r.PlannedSets, &r.PlannedReps, &r.PlannedWeight,
			&r.PlannedRestSeconds, &r.Notes); err != nil {
			return nil, fmt.Errorf("scanning session exercise: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
