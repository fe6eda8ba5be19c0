package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// --- Client goals ---

type goalBody struct {
	ID           string   `json:"id"`
	ClientID     string   `json:"client_id"`
	Title        string   `json:"title"`
	Description  *string  `json:"description"`
	TargetValue  *float64 `json:"target_value"`
	CurrentValue *float64 `json:"current_value"`
	Unit         *string  `json:"unit"`
	TargetDate   string   `json:"target_date"`
	Status       string   `json:"status"`
}

func (b goalBody) goal() (models.ClientGoal, error) {
	if strings.TrimSpace(b.Title) == "" {
		return models.ClientGoal{}, apperr.Invalid("title is required")
	}
	target, err := parseDate(b.TargetDate, "target_date")
	if err != nil {
		return models.ClientGoal{}, err
	}
	return models.ClientGoal{
		Title:        strings.TrimSpace(b.Title),
		Description:  b.Description,
		TargetValue:  b.TargetValue,
		CurrentValue: b.CurrentValue,
		Unit:         b.Unit,
		TargetDate:   target,
		Status:       b.Status,
	}, nil
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	clientID, err := requireUUID(r.URL.Query().Get("client_id"), "client_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.guard.RequireParticipant(r.Context(), models.ResourceClient, clientID, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	goals, err := s.db.ListGoals(r.Context(), clientID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []models.ClientGoal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var body goalBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	clientID, err := requireUUID(body.ClientID, "client_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := body.goal()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	goal.ClientID = clientID

	if err := s.guard.Require(r.Context(), models.ResourceClient, clientID, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.db.CreateGoal(r.Context(), goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var body goalBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := requireUUID(body.ID, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := body.goal()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	goal.ID = id

	if err := s.guard.Require(r.Context(), models.ResourceGoal, id, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.db.UpdateGoal(r.Context(), goal)
	if err != nil {
		s.writeError(w, r, storageErr(err, "goal"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	s.deleteOwned(w, r, models.ResourceGoal, s.db.DeleteGoal)
}

// --- Exercise library ---

type exerciseBody struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MuscleGroup  *string `json:"muscle_group"`
	Equipment    *string `json:"equipment"`
	Instructions *string `json:"instructions"`
}

func (b exerciseBody) exercise() (models.Exercise, error) {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return models.Exercise{}, apperr.Invalid("name is required")
	}
	return models.Exercise{
		Name:         name,
		MuscleGroup:  b.MuscleGroup,
		Equipment:    b.Equipment,
		Instructions: b.Instructions,
	}, nil
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.db.ListExercises(r.Context(), callerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if exercises == nil {
		exercises = []models.Exercise{}
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var body exerciseBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ex, err := body.exercise()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ex.CoachID = callerID(r)

	created, err := s.db.CreateExercise(r.Context(), ex)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var body exerciseBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := requireUUID(body.ID, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ex, err := body.exercise()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ex.ID = id

	if err := s.guard.Require(r.Context(), models.ResourceExercise, id, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.db.UpdateExercise(r.Context(), ex)
	if err != nil {
		s.writeError(w, r, storageErr(err, "exercise"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	s.deleteOwned(w, r, models.ResourceExercise, s.db.DeleteExercise)
}

// --- Workout exercises ---

type workoutExerciseBody struct {
	ID          string  `json:"id"`
	WorkoutID   string  `json:"workout_id"`
	ExerciseID  string  `json:"exercise_id"`
	OrderIndex  int     `json:"order_index"`
	Sets        *int    `json:"sets"`
	Reps        *string `json:"reps"`
	Weight      *string `json:"weight"`
	RestSeconds *int    `json:"rest_seconds"`
	Notes       *string `json:"notes"`
}

func (b workoutExerciseBody) workoutExercise() models.WorkoutExercise {
	return models.WorkoutExercise{
		OrderIndex:  b.OrderIndex,
		Sets:        b.Sets,
		Reps:        b.Reps,
		Weight:      b.Weight,
		RestSeconds: b.RestSeconds,
		Notes:       b.Notes,
	}
}

func (s *Server) handleListWorkoutExercises(w http.ResponseWriter, r *http.Request) {
	workoutID, err := requireUUID(r.URL.Query().Get("workout_id"), "workout_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.guard.Require(r.Context(), models.ResourceWorkout, workoutID, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.db.ListWorkoutExercises(r.Context(), workoutID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.WorkoutExercise{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	var body workoutExerciseBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	workoutID, err := requireUUID(body.WorkoutID, "workout_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exerciseID, err := requireUUID(body.ExerciseID, "exercise_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := callerID(r)
	if err := s.guard.Require(r.Context(), models.ResourceWorkout, workoutID, caller); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.guard.Require(r.Context(), models.ResourceExercise, exerciseID, caller); err != nil {
		s.writeError(w, r, err)
		return
	}

	we := body.workoutExercise()
	we.WorkoutID = workoutID
	we.ExerciseID = exerciseID
	created, err := s.db.CreateWorkoutExercise(r.Context(), we)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	var body workoutExerciseBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := requireUUID(body.ID, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.guard.Require(r.Context(), models.ResourceWorkoutExercise, id, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	we := body.workoutExercise()
	we.ID = id
	updated, err := s.db.UpdateWorkoutExercise(r.Context(), we)
	if err != nil {
		s.writeError(w, r, storageErr(err, "workout exercise"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	s.deleteOwned(w, r, models.ResourceWorkoutExercise, s.db.DeleteWorkoutExercise)
}

// deleteOwned removes a coach-owned row after checking the caller owns it.
func (s *Server) deleteOwned(w http.ResponseWriter, r *http.Request, kind models.Resource, del func(context.Context, uuid.UUID) error) {
	id, err := deleteTarget(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.guard.Require(r.Context(), kind, id, callerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.writeError(w, r, storageErr(err, strings.ReplaceAll(string(kind), "_", " ")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
