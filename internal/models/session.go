package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not-started"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionNotStarted, SessionInProgress, SessionCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a session may move from s to next.
// Completed is terminal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == SessionCompleted {
		return next == SessionCompleted
	}
	return next.Valid()
}

// WorkoutSession is a row of the workout_sessions table.
type WorkoutSession struct {
	ID              uuid.UUID       `json:"id"`
	ClientID        uuid.UUID       `json:"client_id"`
	WorkoutID       *uuid.UUID      `json:"workout_id"`
	Status          SessionStatus   `json:"status"`
	ScheduledDate   *time.Time      `json:"scheduled_date"`
	StartedAt       *time.Time      `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	DurationMinutes *int            `json:"duration_minutes"`
	Notes           *string         `json:"notes"`
	ExerciseCount   int             `json:"exercise_count"`
	Exercises       json.RawMessage `json:"exercises,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SessionExerciseRow is a row of the session_exercises table.
type SessionExerciseRow struct {
	ID                 uuid.UUID  `json:"id"`
	WorkoutSessionID   uuid.UUID  `json:"workout_session_id"`
	WorkoutExerciseID  *uuid.UUID `json:"workout_exercise_id"`
	ExerciseID         *uuid.UUID `json:"exercise_id"`
	ExerciseName       string     `json:"exercise_name"`
	OrderIndex         int        `json:"order_index"`
	PlannedSets        *int       `json:"planned_sets"`
	PlannedReps        *string    `json:"planned_reps"`
	PlannedWeight      *string    `json:"planned_weight"`
	PlannedRestSeconds *int       `json:"planned_rest_seconds"`
	Notes              *string    `json:"notes"`
}

// SessionSetRow is a row of the session_sets table.
type SessionSetRow struct {
	ID                uuid.UUID `json:"id"`
	SessionExerciseID uuid.UUID `json:"session_exercise_id"`
	SetNumber         int       `json:"set_number"`
	RepsCompleted     *int      `json:"reps_completed"`
	WeightUsed        *float64  `json:"weight_used"`
	DurationSeconds   *int      `json:"duration_seconds"`
}

// LegacyWorkoutSetRow is a row of the legacy workout_sets mirror table.
// WorkoutExerciseID holds the originating workout exercise when it could be
// resolved, otherwise the session exercise id.
type LegacyWorkoutSetRow struct {
	ID                uuid.UUID `json:"id"`
	WorkoutExerciseID uuid.UUID `json:"workout_exercise_id"`
	WorkoutSessionID  uuid.UUID `json:"workout_session_id"`
	SetNumber         int       `json:"set_number"`
	Reps              *int      `json:"reps"`
	Weight            *float64  `json:"weight"`
	DurationSeconds   *int      `json:"duration_seconds"`
}

// SessionDetail is a session with its logged exercises and sets.
type SessionDetail struct {
	WorkoutSession
	SessionExercises []SessionExerciseRow `json:"session_exercises"`
	Sets             []SessionSetRow      `json:"sets"`
}

// SessionPatch holds the mutable fields of a session. Nil fields are left unchanged.
type SessionPatch struct {
	Status          *SessionStatus
	ScheduledDate   *time.Time
	DurationMinutes *int
	Notes           *string
	WorkoutID       *uuid.UUID
}
