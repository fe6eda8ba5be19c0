package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// memStore is an in-memory Store that records how often each write ran.
type memStore struct {
	mu sync.Mutex

	sessions  map[uuid.UUID]models.WorkoutSession
	exercises []models.SessionExerciseRow
	sets      []models.SessionSetRow
	legacy    []models.LegacyWorkoutSetRow

	hasProcedure bool
	procResult   storage.ProcedureResult
	procErr      error
	probeErr     error

	exercisesErr error
	setsErr      error
	legacyErr    error
	blobErr      error
	markErr      error

	calls map[string]int
}

func newMemStore(sessionIDs ...uuid.UUID) *memStore {
	m := &memStore{
		sessions: make(map[uuid.UUID]models.WorkoutSession),
		calls:    make(map[string]int),
	}
	for _, id := range sessionIDs {
		m.sessions[id] = models.WorkoutSession{ID: id, Status: models.SessionInProgress}
	}
	return m
}

func (m *memStore) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// writes counts calls that change rows.
func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls["MarkSessionCompleted"] + m.calls["InsertSessionExercises"] +
		m.calls["InsertSessionSets"] + m.calls["InsertLegacyWorkoutSets"] +
		m.calls["SaveSessionExercisesBlob"]
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (models.WorkoutSession, error) {
	m.count("GetSession")
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.WorkoutSession{}, fmt.Errorf("querying session: %w", storage.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) MarkSessionCompleted(_ context.Context, id uuid.UUID, durationMinutes *int, notes *string, exerciseCount int) (models.WorkoutSession, error) {
	m.count("MarkSessionCompleted")
	if m.markErr != nil {
		return models.WorkoutSession{}, m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.WorkoutSession{}, fmt.Errorf("completing session: %w", storage.ErrNotFound)
	}
	if s.Status == models.SessionCompleted {
		return models.WorkoutSession{}, storage.ErrAlreadyCompleted
	}
	s.Status = models.SessionCompleted
	if durationMinutes != nil {
		s.DurationMinutes = durationMinutes
	}
	if notes != nil {
		s.Notes = notes
	}
	s.ExerciseCount = exerciseCount
	m.sessions[id] = s
	return s, nil
}

func (m *memStore) InsertSessionExercises(_ context.Context, rows []models.SessionExerciseRow) ([]models.SessionExerciseRow, error) {
	m.count("InsertSessionExercises")
	if m.exercisesErr != nil {
		return nil, m.exercisesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exercises = append(m.exercises, rows...)
	return rows, nil
}

func (m *memStore) InsertSessionSets(_ context.Context, rows []models.SessionSetRow) ([]models.SessionSetRow, error) {
	m.count("InsertSessionSets")
	if m.setsErr != nil {
		return nil, m.setsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, rows...)
	return rows, nil
}

func (m *memStore) InsertLegacyWorkoutSets(_ context.Context, rows []models.LegacyWorkoutSetRow) (int64, error) {
	m.count("InsertLegacyWorkoutSets")
	if m.legacyErr != nil {
		return 0, m.legacyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = append(m.legacy, rows...)
	return int64(len(rows)), nil
}

func (m *memStore) SaveSessionExercisesBlob(_ context.Context, id uuid.UUID, raw json.RawMessage) (models.WorkoutSession, error) {
	m.count("SaveSessionExercisesBlob")
	if m.blobErr != nil {
		return models.WorkoutSession{}, m.blobErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.WorkoutSession{}, fmt.Errorf("saving exercises blob: %w", storage.ErrNotFound)
	}
	s.Exercises = append(json.RawMessage(nil), raw...)
	m.sessions[id] = s
	return s, nil
}

func (m *memStore) HasCompletionProcedure(context.Context) (bool, error) {
	m.count("HasCompletionProcedure")
	return m.hasProcedure, m.probeErr
}

// CallCompletionProcedure marks the session completed when procResult reports success.
func (m *memStore) CallCompletionProcedure(_ context.Context, sessionID uuid.UUID, durationMinutes *int, notes *string, _ json.RawMessage) (storage.ProcedureResult, error) {
	m.count("CallCompletionProcedure")
	if m.procErr != nil {
		return storage.ProcedureResult{}, m.procErr
	}
	if m.procResult.Success {
		m.mu.Lock()
		s := m.sessions[sessionID]
		s.Status = models.SessionCompleted
		s.DurationMinutes = durationMinutes
		s.Notes = notes
		m.sessions[sessionID] = s
		m.mu.Unlock()
	}
	return m.procResult, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
