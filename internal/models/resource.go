package models

import "errors"

// ErrNotFound is returned by repositories when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// Resource names an entity whose ownership can be checked.
type Resource string

const (
	ResourceClient          Resource = "client"
	ResourceGoal            Resource = "goal"
	ResourceExercise        Resource = "exercise"
	ResourceProgram         Resource = "program"
	ResourceWorkout         Resource = "workout"
	ResourceWorkoutExercise Resource = "workout_exercise"
	ResourceSession         Resource = "session"
)
