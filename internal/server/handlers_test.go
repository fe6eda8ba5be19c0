package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return env
}

// fixture is a coach with one client and one not-started session.
type fixture struct {
	store      *fakeStore
	completer  *fakeCompleter
	srv        *Server
	coach      uuid.UUID
	clientUser uuid.UUID
	client     uuid.UUID
	session    uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		store:      newFakeStore(),
		completer:  &fakeCompleter{},
		coach:      uuid.New(),
		clientUser: uuid.New(),
		client:     uuid.New(),
		session:    uuid.New(),
	}
	f.store.owners[f.client] = f.coach
	f.store.owners[f.session] = f.coach
	f.store.clientUsers[f.client] = f.clientUser
	f.store.clientUsers[f.session] = f.clientUser
	f.store.sessions[f.session] = models.WorkoutSession{
		ID: f.session, ClientID: f.client, Status: models.SessionNotStarted,
	}
	f.srv = newTestServer(f.store, f.completer)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, user uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, authedRequest(t, method, target, body, user))
	return rec
}

func completeBody(sessionID string) string {
	return fmt.Sprintf(`{"action":"complete_with_details","payload":{
		"session_id":%q,"duration_minutes":45,
		"exercises":[{"exercise_name":"Squat","sets":3,"completed_sets":[
			{"set_number":1,"reps_completed":5,"weight_used":100}]}]}}`, sessionID)
}

func TestCompleteWithDetails(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/workout-sessions", completeBody(f.session.String()), f.coach)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.OK {
		t.Errorf("ok = false, error = %q", env.Error)
	}
	if f.completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", f.completer.calls)
	}
	got := f.completer.got
	if got.SessionID != f.session {
		t.Errorf("session id = %s, want %s", got.SessionID, f.session)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 45 {
		t.Errorf("duration = %v, want 45", got.DurationMinutes)
	}
	if len(got.Exercises) != 1 || got.Exercises[0].ExerciseName != "Squat" {
		t.Errorf("exercises = %+v, want one Squat", got.Exercises)
	}
}

func TestCompleteByLinkedClient(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/workout-sessions", completeBody(f.session.String()), f.clientUser)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
}

func TestCompleteRejectsMissingSessionIDBeforeBackend(t *testing.T) {
	f := newFixture()

	body := `{"action":"complete_with_details","payload":{"exercises":[]}}`
	rec := f.do(t, http.MethodPost, "/api/workout-sessions", body, f.coach)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.OK || env.Error != "session_id is required" {
		t.Errorf("envelope = %+v, want ok=false with session_id error", env)
	}
	if f.store.calls != 0 {
		t.Errorf("store calls = %d, want 0", f.store.calls)
	}
	if f.completer.calls != 0 {
		t.Errorf("completer calls = %d, want 0", f.completer.calls)
	}
}

func TestCompleteForbiddenForOtherCoach(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/workout-sessions", completeBody(f.session.String()), uuid.New())

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if f.completer.calls != 0 {
		t.Errorf("completer calls = %d, want 0", f.completer.calls)
	}
}

func TestCompleteUnknownSession(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/workout-sessions", completeBody(uuid.NewString()), f.coach)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCompleteErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", apperr.E(apperr.Conflict, "session already completed", nil), http.StatusConflict},
		{"backend", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.completer.err = tt.err

			rec := f.do(t, http.MethodPost, "/api/workout-sessions", completeBody(f.session.String()), f.coach)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			env := decodeEnvelope(t, rec)
			if env.OK || env.Error != tt.err.Error() {
				t.Errorf("envelope = %+v, want error %q", env, tt.err.Error())
			}
		})
	}
}

func TestSessionActionValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"no action", `{"payload":{}}`},
		{"unknown action", `{"action":"archive","payload":{}}`},
		{"create without client", `{"action":"create","payload":{}}`},
		{"create bad status", fmt.Sprintf(`{"action":"create","payload":{"client_id":%q,"status":"paused"}}`, uuid.New())},
		{"update bad id", `{"action":"update","payload":{"id":"42"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := authedRequest(t, http.MethodPost, "/api/workout-sessions", tt.body, f.coach)
			if tt.body == "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateSession(t *testing.T) {
	f := newFixture()

	body := fmt.Sprintf(`{"action":"create","payload":{"client_id":%q,"scheduled_date":"2026-03-02"}}`, f.client)
	rec := f.do(t, http.MethodPost, "/api/workout-sessions", body, f.coach)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
	var s models.WorkoutSession
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if s.ClientID != f.client {
		t.Errorf("client_id = %s, want %s", s.ClientID, f.client)
	}
	if s.ScheduledDate == nil || s.ScheduledDate.Format("2006-01-02") != "2026-03-02" {
		t.Errorf("scheduled_date = %v, want 2026-03-02", s.ScheduledDate)
	}
}

func TestUpdateCompletedSessionRejected(t *testing.T) {
	f := newFixture()
	s := f.store.sessions[f.session]
	s.Status = models.SessionCompleted
	f.store.sessions[f.session] = s

	body := fmt.Sprintf(`{"action":"update","payload":{"id":%q,"status":"in-progress"}}`, f.session)
	rec := f.do(t, http.MethodPost, "/api/workout-sessions", body, f.coach)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}
	if f.store.sessions[f.session].Status != models.SessionCompleted {
		t.Error("completed session was modified")
	}
}

func TestUpdateLosesToConcurrentCompletion(t *testing.T) {
	f := newFixture()
	f.store.beforeUpdate = func() {
		s := f.store.sessions[f.session]
		s.Status = models.SessionCompleted
		f.store.sessions[f.session] = s
	}

	body := fmt.Sprintf(`{"action":"update","payload":{"id":%q,"status":"in-progress"}}`, f.session)
	rec := f.do(t, http.MethodPost, "/api/workout-sessions", body, f.coach)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.OK {
		t.Error("ok = true on conflict")
	}
	if f.store.sessions[f.session].Status != models.SessionCompleted {
		t.Error("completed session moved back")
	}
}

func TestUpdateSessionStatus(t *testing.T) {
	f := newFixture()

	body := fmt.Sprintf(`{"action":"update","payload":{"id":%q,"status":"in-progress","notes":"warmup done"}}`, f.session)
	rec := f.do(t, http.MethodPost, "/api/workout-sessions", body, f.clientUser)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	got := f.store.sessions[f.session]
	if got.Status != models.SessionInProgress {
		t.Errorf("status = %s, want in-progress", got.Status)
	}
	if got.Notes == nil || *got.Notes != "warmup done" {
		t.Errorf("notes = %v, want warmup done", got.Notes)
	}
}

func TestListAndGetSessions(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/workout-sessions?client_id="+f.client.String(), "", f.coach)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var list []models.WorkoutSession
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != f.session {
		t.Errorf("list = %+v, want the fixture session", list)
	}

	rec = f.do(t, http.MethodGet, "/api/workout-sessions/"+f.session.String(), "", f.coach)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/workout-sessions/not-a-uuid", "", f.coach)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodDelete, "/api/workout-sessions?id="+f.session.String(), "", f.coach)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != f.session {
		t.Errorf("deleted = %v, want [%s]", f.store.deleted, f.session)
	}
}

func TestGoalHandlers(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/client-goals", fmt.Sprintf(`{"client_id":%q}`, f.client), f.coach)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create without title status = %d, want 400", rec.Code)
	}

	body := fmt.Sprintf(`{"client_id":%q,"title":"Squat 140kg","target_value":140,"unit":"kg","target_date":"2026-12-01"}`, f.client)
	rec = f.do(t, http.MethodPost, "/api/client-goals", body, f.coach)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}

	// Goals are coach-managed: the linked client may read but not write.
	rec = f.do(t, http.MethodPost, "/api/client-goals", body, f.clientUser)
	if rec.Code != http.StatusForbidden {
		t.Errorf("client create status = %d, want 403", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/client-goals?client_id="+f.client.String(), "", f.clientUser)
	if rec.Code != http.StatusOK {
		t.Fatalf("client list status = %d, want 200", rec.Code)
	}
	var goals []models.ClientGoal
	if err := json.NewDecoder(rec.Body).Decode(&goals); err != nil {
		t.Fatalf("decode goals: %v", err)
	}
	if len(goals) != 1 || goals[0].Title != "Squat 140kg" {
		t.Errorf("goals = %+v, want one goal", goals)
	}
}

func TestDeleteUnknownGoal(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodDelete, "/api/client-goals", fmt.Sprintf(`{"id":%q}`, uuid.New()), f.coach)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(f.store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", f.store.deleted)
	}
}

func TestCreateExerciseUsesCaller(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/exercises", `{"name":"  Romanian Deadlift ","coach_id":"ignored"}`, f.coach)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
	var ex models.Exercise
	if err := json.NewDecoder(rec.Body).Decode(&ex); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ex.CoachID != f.coach {
		t.Errorf("coach_id = %s, want caller %s", ex.CoachID, f.coach)
	}
	if ex.Name != "Romanian Deadlift" {
		t.Errorf("name = %q, want trimmed", ex.Name)
	}
}

func TestCreateWorkoutExerciseChecksBothOwners(t *testing.T) {
	f := newFixture()
	workout, exercise := uuid.New(), uuid.New()
	f.store.owners[workout] = f.coach
	f.store.owners[exercise] = uuid.New()

	body := fmt.Sprintf(`{"workout_id":%q,"exercise_id":%q,"order_index":1,"sets":3}`, workout, exercise)
	rec := f.do(t, http.MethodPost, "/api/workout-exercises", body, f.coach)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	f.store.owners[exercise] = f.coach
	rec = f.do(t, http.MethodPost, "/api/workout-exercises", body, f.coach)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
}

func TestExerciseSearch(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodGet, "/api/exercises/search?muscle=biceps", "", f.coach)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		search := &stubSearch{err: apperr.E(apperr.ExternalService, "exercise lookup returned 500", nil)}
		s := New(newFakeStore(), &fakeCompleter{}, search, testAuthConfig(), discardLogger())
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/exercises/search?name=press", "", uuid.New()))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("results", func(t *testing.T) {
		search := &stubSearch{out: []lookup.Exercise{{Name: "Hammer Curl", Muscle: "biceps"}}}
		s := New(newFakeStore(), &fakeCompleter{}, search, testAuthConfig(), discardLogger())
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/exercises/search?muscle=biceps", "", uuid.New()))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if search.got.Muscle != "biceps" {
			t.Errorf("query muscle = %q, want biceps", search.got.Muscle)
		}
		var out []lookup.Exercise
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if len(out) != 1 || out[0].Name != "Hammer Curl" {
			t.Errorf("results = %+v", out)
		}
	})
}

func TestHealthzUnavailable(t *testing.T) {
	store := newFakeStore()
	store.pingErr = errors.New("connection refused")
	s := newTestServer(store, &fakeCompleter{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
