package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const goalColumns = `id, client_id, title, description, target_value, current_value, unit, target_date, status, created_at`

func scanGoal(row pgx.Row) (models.ClientGoal, error) {
	var g models.ClientGoal
	err := row.Scan(&g.ID, &g.ClientID, &g.Title, &g.Description, &g.TargetValue, &g.CurrentValue,
		&g.Unit, &g.TargetDate, &g.Status, &g.CreatedAt)
	return g, err
}

// ListGoals returns a client's goals, newest first.
func (db *DB) ListGoals(ctx context.Context, clientID uuid.UUID) ([]models.ClientGoal, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+goalColumns+` FROM client_goals WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("querying goals: %w", err)
	}
	defer rows.Close()

	var result []models.ClientGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// CreateGoal inserts a goal and returns the stored row.
func (db *DB) CreateGoal(ctx context.Context, g models.ClientGoal) (models.ClientGoal, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = "active"
	}
	created, err := scanGoal(db.Pool.QueryRow(ctx,
		`INSERT INTO client_goals (id, client_id, title, description, target_value, current_value, unit, target_date, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING `+goalColumns,
		g.ID, g.ClientID, g.Title, g.Description, g.TargetValue, g.CurrentValue, g.Unit, g.TargetDate, g.Status))
	if err != nil {
		return models.ClientGoal{}, fmt.Errorf("inserting goal: %w", err)
	}
	return created, nil
}

// UpdateGoal overwrites the editable fields of a goal. The client cannot change.
func (db *DB) UpdateGoal(ctx context.Context, g models.ClientGoal) (models.ClientGoal, error) {
	updated, err := scanGoal(db.Pool.QueryRow(ctx,
		`UPDATE client_goals
		 SET title = $2, description = $3, target_value = $4, current_value = $5,
		     unit = $6, target_date = $7, status = COALESCE(NULLIF($8, ''), status)
		 WHERE id = $1
		 RETURNING `+goalColumns,
		g.ID, g.Title, g.Description, g.TargetValue, g.CurrentValue, g.Unit, g.TargetDate, g.Status))
	if err != nil {
		return models.ClientGoal{}, notFound(err, "updating goal")
	}
	return updated, nil
}

// DeleteGoal removes a goal.
func (db *DB) DeleteGoal(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM client_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting goal: %w", ErrNotFound)
	}
	return nil
}
