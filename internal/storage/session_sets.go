package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// InsertSessionSets batch-inserts performed sets. Returns the rows with ids assigned.
func (db *DB) InsertSessionSets(ctx context.Context, rows []models.SessionSetRow) ([]models.SessionSetRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	query := `INSERT INTO session_sets (id, session_exercise_id, set_number, reps_completed, weight_used, duration_seconds) VALUES `
	args := make([]any, 0, len(rows)*6)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		if r.ID == uuid.Nil {
			rows[i].ID = uuid.New()
			r.ID = rows[i].ID
		}
		base := i * 6
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, r.ID, r.SessionExerciseID, r.SetNumber, r.RepsCompleted, r.WeightUsed, r.DurationSeconds)
	}

	query += strings.Join(valueStrings, ",")

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting session sets: %w", err)
	}
	return rows, nil
}

// ListSessionSets returns every set logged in a session, grouped by exercise order.
func (db *DB) ListSessionSets(ctx context.Context, sessionID uuid.UUID) ([]models.SessionSetRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT ss.id, ss.session_exercise_id, ss.set_number, ss.reps_completed, ss.weight_used, ss.duration_seconds
		 FROM session_sets ss
		 JOIN session_exercises se ON se.id = ss.session_exercise_id
		 WHERE se.workout_session_id = $1
		 ORDER BY se.order_index ASC, ss.set_number ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session sets: %w", err)
	}
	defer rows.Close()

	var result []models.SessionSetRow
	for rows.Next() {
		var r models.SessionSetRow
		if err := rows.Scan(&r.ID, &r.SessionExerciseID, &r.SetNumber, &r.RepsCompleted, &r.WeightUsed, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scanning session set: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
