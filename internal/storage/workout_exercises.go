package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const workoutExerciseColumns = `id, workout_id, exercise_id, order_index, sets, reps, weight, rest_seconds, notes`

func scanWorkoutExercise(row pgx.Row) (models.WorkoutExercise, error) {
	var we models.WorkoutExercise
	err := row.Scan(&we.ID, &we.WorkoutID, &we.ExerciseID, &we.OrderIndex, &we.Sets, &we.Reps,
		&we.Weight, &we.RestSeconds, &we.Notes)
	return we, err
}

// ListWorkoutExercises returns the exercises of a workout in order.
func (db *DB) ListWorkoutExercises(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutExercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+workoutExerciseColumns+` FROM workout_exercises WHERE workout_id = $1 ORDER BY order_index`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutExercise
	for rows.Next() {
		we, err := scanWorkoutExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		result = append(result, we)
	}
	return result, rows.Err()
}

// CreateWorkoutExercise adds an exercise to a workout.
func (db *DB) CreateWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error) {
	if we.ID == uuid.Nil {
		we.ID = uuid.New()
	}
	created, err := scanWorkoutExercise(db.Pool.QueryRow(ctx,
		`INSERT INTO workout_exercises (id, workout_id, exercise_id, order_index, sets, reps, weight, rest_seconds, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING `+workoutExerciseColumns,
		we.ID, we.WorkoutID, we.ExerciseID, we.OrderIndex, we.Sets, we.Reps, we.Weight, we.RestSeconds, we.Notes))
	if err != nil {
		return models.WorkoutExercise{}, fmt.Errorf("inserting workout exercise: %w", err)
	}
	return created, nil
}

// UpdateWorkoutExercise overwrites the prescription of a workout exercise.
func (db *DB) UpdateWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error) {
	updated, err := scanWorkoutExercise(db.Pool.QueryRow(ctx,
		`UPDATE workout_exercises
		 SET order_index = $2, sets = $3, reps = $4, weight = $5, rest_seconds = $6, notes = $7
		 WHERE id = $1
		 RETURNING `+workoutExerciseColumns,
		we.ID, we.OrderIndex, we.Sets, we.Reps, we.Weight, we.RestSeconds, we.Notes))
	if err != nil {
		return models.WorkoutExercise{}, notFound(err, "updating workout exercise")
	}
	return updated, nil
}

// DeleteWorkoutExercise removes an exercise from its workout.
func (db *DB) DeleteWorkoutExercise(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workout_exercises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting workout exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting workout exercise: %w", ErrNotFound)
	}
	return nil
}
