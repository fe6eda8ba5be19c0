package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// Store is the persistence the completion strategies need.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (models.WorkoutSession, error)
	MarkSessionCompleted(ctx context.Context, id uuid.UUID, durationMinutes *int, notes *string, exerciseCount int) (models.WorkoutSession, error)
	InsertSessionExercises(ctx context.Context, rows []models.SessionExerciseRow) ([]models.SessionExerciseRow, error)
	InsertSessionSets(ctx context.Context, rows []models.SessionSetRow) ([]models.SessionSetRow, error)
	InsertLegacyWorkoutSets(ctx context.Context, rows []models.LegacyWorkoutSetRow) (int64, error)
	SaveSessionExercisesBlob(ctx context.Context, id uuid.UUID, raw json.RawMessage) (models.WorkoutSession, error)
	HasCompletionProcedure(ctx context.Context) (bool, error)
	CallCompletionProcedure(ctx context.Context, sessionID uuid.UUID, durationMinutes *int, notes *string, exercises json.RawMessage) (storage.ProcedureResult, error)
}

var _ Store = (*storage.DB)(nil)

// ErrNotApplied marks a strategy failure that wrote nothing, so the next
// strategy may run.
var ErrNotApplied = errors.New("completion strategy not applied")

// Result is what a completion produces.
type Result struct {
	Session       models.WorkoutSession       `json:"session"`
	Exercises     []models.SessionExerciseRow `json:"exercises,omitempty"`
	Sets          []models.SessionSetRow      `json:"sets,omitempty"`
	RPC           bool                        `json:"rpc"`
	FallbackSaved bool                        `json:"fallback_saved"`

	// mirror holds legacy rows to write after the critical path has returned.
	mirror []models.LegacyWorkoutSetRow
}

// Strategy persists a completed session.
type Strategy interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Result, error)
}

// ProcedureStrategy completes a session with the complete_workout_session
// database function, which applies every write in one transaction.
type ProcedureStrategy struct {
	store Store
}

// NewProcedureStrategy returns a ProcedureStrategy backed by store.
func NewProcedureStrategy(store Store) *ProcedureStrategy {
	return &ProcedureStrategy{store: store}
}

func (s *ProcedureStrategy) Name() string { return "procedure" }

func (s *ProcedureStrategy) Complete(ctx context.Context, req Request) (*Result, error) {
	res, err := s.store.CallCompletionProcedure(ctx, req.SessionID, req.DurationMinutes, req.Notes, req.RawExercises)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotApplied, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: procedure reported %q", ErrNotApplied, res.Error)
	}

	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("reloading completed session: %w", err)
	}
	return &Result{Session: session, RPC: true}, nil
}

// FallbackStrategy completes a session with a sequence of single-table writes.
// If the exercise insert fails, the raw exercises payload is saved on the
// session row instead.
type FallbackStrategy struct {
	store  Store
	logger *slog.Logger
}

// NewFallbackStrategy returns a FallbackStrategy backed by store.
func NewFallbackStrategy(store Store, logger *slog.Logger) *FallbackStrategy {
	return &FallbackStrategy{store: store, logger: logger}
}

func (s *FallbackStrategy) Name() string { return "fallback" }

func (s *FallbackStrategy) Complete(ctx context.Context, req Request) (*Result, error) {
	session, err := s.store.MarkSessionCompleted(ctx, req.SessionID, req.DurationMinutes, req.Notes, len(req.Exercises))
	if err != nil {
		return nil, err
	}
	result := &Result{Session: session}
	if len(req.Exercises) == 0 {
		return result, nil
	}

	exercises, err := s.store.InsertSessionExercises(ctx, sessionExerciseRows(req))
	if err != nil {
		s.logger.Error("inserting session exercises failed, saving raw payload",
			"session_id", req.SessionID, "error", err)
		saved, blobErr := s.store.SaveSessionExercisesBlob(ctx, req.SessionID, req.RawExercises)
		if blobErr != nil {
			return nil, errors.Join(
				fmt.Errorf("inserting session exercises: %w", err),
				fmt.Errorf("saving exercises payload: %w", blobErr),
			)
		}
		result.Session = saved
		result.FallbackSaved = true
		return result, nil
	}
	result.Exercises = exercises

	sets := sessionSetRows(req, exercises)
	if len(sets) > 0 {
		inserted, err := s.store.InsertSessionSets(ctx, sets)
		if err != nil {
			// Exercise rows stay committed without sets and no payload copy is kept.
			s.logger.Error("inserting session sets failed after exercises were saved",
				"session_id", req.SessionID, "exercises", len(exercises), "sets", len(sets),
				"gap", "sets_without_blob", "error", err)
			return nil, fmt.Errorf("inserting session sets: %w", err)
		}
		result.Sets = inserted
	}
	result.mirror = legacyRows(req, exercises, result.Sets)
	return result, nil
}

// sessionExerciseRows builds one row per input exercise, in input order.
func sessionExerciseRows(req Request) []models.SessionExerciseRow {
	rows := make([]models.SessionExerciseRow, len(req.Exercises))
	for i, ex := range req.Exercises {
		order := i + 1
		if ex.Order != nil {
			order = *ex.Order
		}
		rows[i] = models.SessionExerciseRow{
			ID:                 uuid.New(),
			WorkoutSessionID:   req.SessionID,
			WorkoutExerciseID:  ex.WorkoutExerciseID,
			ExerciseID:         ex.ExerciseID,
			ExerciseName:       ex.ExerciseName,
			OrderIndex:         order,
			PlannedSets:        ex.PlannedSets,
			PlannedReps:        ex.PlannedReps,
			PlannedWeight:      ex.PlannedWeight,
			PlannedRestSeconds: ex.PlannedRestSeconds,
			Notes:              ex.Notes,
		}
	}
	return rows
}

// sessionSetRows builds set rows for the inserted exercises. exercises[i]
// was created from req.Exercises[i].
func sessionSetRows(req Request, exercises []models.SessionExerciseRow) []models.SessionSetRow {
	var rows []models.SessionSetRow
	for i, se := range exercises {
		if i >= len(req.Exercises) {
			break
		}
		for j, set := range req.Exercises[i].CompletedSets {
			number := j + 1
			if set.SetNumber != nil {
				number = *set.SetNumber
			}
			rows = append(rows, models.SessionSetRow{
				ID:                uuid.New(),
				SessionExerciseID: se.ID,
				SetNumber:         number,
				RepsCompleted:     set.RepsCompleted,
				WeightUsed:        set.WeightUsed,
				DurationSeconds:   set.DurationSeconds,
			})
		}
	}
	return rows
}

// legacyRows projects inserted sets onto the legacy workout_sets table. The
// key is the originating workout exercise when an input exercise carries the
// same id, otherwise the session exercise id.
func legacyRows(req Request, exercises []models.SessionExerciseRow, sets []models.SessionSetRow) []models.LegacyWorkoutSetRow {
	if len(sets) == 0 {
		return nil
	}
	planned := make(map[uuid.UUID]bool, len(req.Exercises))
	for _, ex := range req.Exercises {
		if ex.WorkoutExerciseID != nil {
			planned[*ex.WorkoutExerciseID] = true
		}
	}
	keys := make(map[uuid.UUID]uuid.UUID, len(exercises))
	for _, se := range exercises {
		key := se.ID
		if se.WorkoutExerciseID != nil && planned[*se.WorkoutExerciseID] {
			key = *se.WorkoutExerciseID
		}
		keys[se.ID] = key
	}

	rows := make([]models.LegacyWorkoutSetRow, 0, len(sets))
	for _, set := range sets {
		key, ok := keys[set.SessionExerciseID]
		if !ok {
			key = set.SessionExerciseID
		}
		rows = append(rows, models.LegacyWorkoutSetRow{
			ID:                uuid.New(),
			WorkoutExerciseID: key,
			WorkoutSessionID:  req.SessionID,
			SetNumber:         set.SetNumber,
			Reps:              set.RepsCompleted,
			Weight:            set.WeightUsed,
			DurationSeconds:   set.DurationSeconds,
		})
	}
	return rows
}
