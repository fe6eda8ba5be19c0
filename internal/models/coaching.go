package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is a coached person. UserID links the client to an identity-provider
// account when the client logs in themselves.
type Client struct {
	ID        uuid.UUID  `json:"id"`
	CoachID   uuid.UUID  `json:"coach_id"`
	UserID    *uuid.UUID `json:"user_id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
}

// Exercise is a coach-owned exercise definition.
type Exercise struct {
	ID           uuid.UUID `json:"id"`
	CoachID      uuid.UUID `json:"coach_id"`
	Name         string    `json:"name"`
	MuscleGroup  *string   `json:"muscle_group"`
	Equipment    *string   `json:"equipment"`
	Instructions *string   `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

// WorkoutExercise places an exercise into a workout with its prescription.
type WorkoutExercise struct {
	ID          uuid.UUID `json:"id"`
	WorkoutID   uuid.UUID `json:"workout_id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	OrderIndex  int       `json:"order_index"`
	Sets        *int      `json:"sets"`
	Reps        *string   `json:"reps"`
	Weight      *string   `json:"weight"`
	RestSeconds *int      `json:"rest_seconds"`
	Notes       *string   `json:"notes"`
}

// ClientGoal is a target a coach sets for a client.
type ClientGoal struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"client_id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description"`
	TargetValue  *float64   `json:"target_value"`
	CurrentValue *float64   `json:"current_value"`
	Unit         *string    `json:"unit"`
	TargetDate   *time.Time `json:"target_date"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}
