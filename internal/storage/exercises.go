package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const exerciseColumns = `id, coach_id, name, muscle_group, equipment, instructions, created_at`

func scanExercise(row pgx.Row) (models.Exercise, error) {
	var e models.Exercise
	err := row.Scan(&e.ID, &e.CoachID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.Instructions, &e.CreatedAt)
	return e, err
}

// ListExercises returns a coach's exercise library sorted by name.
func (db *DB) ListExercises(ctx context.Context, coachID uuid.UUID) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE coach_id = $1 ORDER BY name`,
		coachID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CreateExercise inserts an exercise and returns the stored row.
func (db *DB) CreateExercise(ctx context.Context, e models.Exercise) (models.Exercise, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	created, err := scanExercise(db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (id, coach_id, name, muscle_group, equipment, instructions)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING `+exerciseColumns,
		e.ID, e.CoachID, e.Name, e.MuscleGroup, e.Equipment, e.Instructions))
	if err != nil {
		return models.Exercise{}, fmt.Errorf("inserting exercise: %w", err)
	}
	return created, nil
}

// UpdateExercise overwrites an exercise's descriptive fields.
func (db *DB) UpdateExercise(ctx context.Context, e models.Exercise) (models.Exercise, error) {
	updated, err := scanExercise(db.Pool.QueryRow(ctx,
		`UPDATE exercises
		 SET name = $2, muscle_group = $3, equipment = $4, instructions = $5
		 WHERE id = $1
		 RETURNING `+exerciseColumns,
		e.ID, e.Name, e.MuscleGroup, e.Equipment, e.Instructions))
	if err != nil {
		return models.Exercise{}, notFound(err, "updating exercise")
	}
	return updated, nil
}

// DeleteExercise removes an exercise.
func (db *DB) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting exercise: %w", ErrNotFound)
	}
	return nil
}
