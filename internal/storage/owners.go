package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// ownerQueries resolve the owning coach of each resource with a single read.
var ownerQueries = map[models.Resource]string{
	models.ResourceClient:   `SELECT coach_id FROM clients WHERE id = $1`,
	models.ResourceGoal:     `SELECT c.coach_id FROM client_goals g JOIN clients c ON c.id = g.client_id WHERE g.id = $1`,
	models.ResourceExercise: `SELECT coach_id FROM exercises WHERE id = $1`,
	models.ResourceProgram:  `SELECT coach_id FROM programs WHERE id = $1`,
	models.ResourceWorkout:  `SELECT p.coach_id FROM workouts w JOIN programs p ON p.id = w.program_id WHERE w.id = $1`,
	models.ResourceWorkoutExercise: `SELECT p.coach_id FROM workout_exercises we
		JOIN workouts w ON w.id = we.workout_id
		JOIN programs p ON p.id = w.program_id
		WHERE we.id = $1`,
	models.ResourceSession: `SELECT c.coach_id FROM workout_sessions s JOIN clients c ON c.id = s.client_id WHERE s.id = $1`,
}

// CoachOf returns the coach that owns the given resource.
func (db *DB) CoachOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error) {
	q, ok := ownerQueries[kind]
	if !ok {
		return uuid.Nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	var coachID uuid.UUID
	if err := db.Pool.QueryRow(ctx, q, id).Scan(&coachID); err != nil {
		return uuid.Nil, notFound(err, fmt.Sprintf("resolving owner of %s %s", kind, id))
	}
	return coachID, nil
}

// ClientUserOf returns the identity-provider user linked to the client behind
// a client or session, or uuid.Nil when the client has no login.
func (db *DB) ClientUserOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error) {
	var q string
	switch kind {
	case models.ResourceClient:
		q = `SELECT user_id FROM clients WHERE id = $1`
	case models.ResourceSession:
		q = `SELECT c.user_id FROM workout_sessions s JOIN clients c ON c.id = s.client_id WHERE s.id = $1`
	default:
		return uuid.Nil, fmt.Errorf("resource kind %q has no client user", kind)
	}
	var userID *uuid.UUID
	if err := db.Pool.QueryRow(ctx, q, id).Scan(&userID); err != nil {
		return uuid.Nil, notFound(err, fmt.Sprintf("resolving client user of %s %s", kind, id))
	}
	if userID == nil {
		return uuid.Nil, nil
	}
	return *userID, nil
}
