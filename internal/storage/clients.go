package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// ListClients returns the clients of a coach sorted by name.
func (db *DB) ListClients(ctx context.Context, coachID uuid.UUID) ([]models.Client, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, coach_id, user_id, name, email, created_at
		 FROM clients WHERE coach_id = $1 ORDER BY name`,
		coachID)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer rows.Close()

	var result []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.CoachID, &c.UserID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// CreateClient inserts a client. Used by seeding and integration tests; client
// sign-up itself happens at the identity provider.
func (db *DB) CreateClient(ctx context.Context, c models.Client) (models.Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO clients (id, coach_id, user_id, name, email)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		c.ID, c.CoachID, c.UserID, c.Name, c.Email).Scan(&c.CreatedAt)
	if err != nil {
		return models.Client{}, fmt.Errorf("inserting client: %w", err)
	}
	return c, nil
}
