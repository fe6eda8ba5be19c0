package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/completion"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store. owners maps any resource id to its coach;
// clientUsers maps client and session ids to the linked client login.
type fakeStore struct {
	owners      map[uuid.UUID]uuid.UUID
	clientUsers map[uuid.UUID]uuid.UUID
	sessions    map[uuid.UUID]models.WorkoutSession
	goals       []models.ClientGoal
	pingErr     error
	calls       int
	deleted     []uuid.UUID

	// beforeUpdate runs at the start of UpdateSession, after the handler's own reads.
	beforeUpdate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:      map[uuid.UUID]uuid.UUID{},
		clientUsers: map[uuid.UUID]uuid.UUID{},
		sessions:    map[uuid.UUID]models.WorkoutSession{},
	}
}

func (f *fakeStore) CoachOf(_ context.Context, _ models.Resource, id uuid.UUID) (uuid.UUID, error) {
	f.calls++
	coach, ok := f.owners[id]
	if !ok {
		return uuid.Nil, models.ErrNotFound
	}
	return coach, nil
}

func (f *fakeStore) ClientUserOf(_ context.Context, _ models.Resource, id uuid.UUID) (uuid.UUID, error) {
	f.calls++
	if _, ok := f.owners[id]; !ok {
		return uuid.Nil, models.ErrNotFound
	}
	return f.clientUsers[id], nil
}

func (f *fakeStore) Ping(context.Context) error {
	f.calls++
	return f.pingErr
}

func (f *fakeStore) ListSessions(_ context.Context, clientID uuid.UUID) ([]models.WorkoutSession, error) {
	f.calls++
	var out []models.WorkoutSession
	for _, s := range f.sessions {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (models.WorkoutSession, error) {
	f.calls++
	s, ok := f.sessions[id]
	if !ok {
		return models.WorkoutSession{}, models.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetSessionDetail(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	s, err := f.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{WorkoutSession: s}, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s models.WorkoutSession) (models.WorkoutSession, error) {
	f.calls++
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = models.SessionNotStarted
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, id uuid.UUID, patch models.SessionPatch) (models.WorkoutSession, error) {
	f.calls++
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	s, ok := f.sessions[id]
	if !ok {
		return models.WorkoutSession{}, models.ErrNotFound
	}
	if patch.Status != nil {
		if s.Status == models.SessionCompleted && *patch.Status != models.SessionCompleted {
			return models.WorkoutSession{}, storage.ErrAlreadyCompleted
		}
		s.Status = *patch.Status
	}
	if patch.Notes != nil {
		s.Notes = patch.Notes
	}
	f.sessions[id] = s
	return s, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListGoals(context.Context, uuid.UUID) ([]models.ClientGoal, error) {
	f.calls++
	return f.goals, nil
}

func (f *fakeStore) CreateGoal(_ context.Context, g models.ClientGoal) (models.ClientGoal, error) {
	f.calls++
	g.ID = uuid.New()
	f.goals = append(f.goals, g)
	return g, nil
}

func (f *fakeStore) UpdateGoal(_ context.Context, g models.ClientGoal) (models.ClientGoal, error) {
	f.calls++
	return g, nil
}

func (f *fakeStore) DeleteGoal(_ context.Context, id uuid.UUID) error {
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListExercises(context.Context, uuid.UUID) ([]models.Exercise, error) {
	f.calls++
	return nil, nil
}

func (f *fakeStore) CreateExercise(_ context.Context, e models.Exercise) (models.Exercise, error) {
	f.calls++
	e.ID = uuid.New()
	return e, nil
}

func (f *fakeStore) UpdateExercise(_ context.Context, e models.Exercise) (models.Exercise, error) {
	f.calls++
	return e, nil
}

func (f *fakeStore) DeleteExercise(_ context.Context, id uuid.UUID) error {
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListWorkoutExercises(context.Context, uuid.UUID) ([]models.WorkoutExercise, error) {
	f.calls++
	return nil, nil
}

func (f *fakeStore) CreateWorkoutExercise(_ context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error) {
	f.calls++
	we.ID = uuid.New()
	return we, nil
}

func (f *fakeStore) UpdateWorkoutExercise(_ context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error) {
	f.calls++
	return we, nil
}

func (f *fakeStore) DeleteWorkoutExercise(_ context.Context, id uuid.UUID) error {
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCompleter struct {
	calls int
	got   completion.Request
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) (*completion.Result, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &completion.Result{
		Session: models.WorkoutSession{ID: req.SessionID, Status: models.SessionCompleted},
		RPC:     true,
	}, nil
}

type stubSearch struct {
	got lookup.Query
	out []lookup.Exercise
	err error
}

func (s *stubSearch) Search(_ context.Context, q lookup.Query) ([]lookup.Exercise, error) {
	s.got = q
	return s.out, s.err
}

const (
	testJWTSecret      = "test-jwt-secret"
	testSentinelSecret = "test-sentinel-secret"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:      testJWTSecret,
		AccessCookie:   "sb-access-token",
		RefreshCookie:  "sb-refresh-token",
		SentinelCookie: "repcoach_session",
		SentinelSecret: testSentinelSecret,
		SentinelTTL:    time.Hour,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(store *fakeStore, completer *fakeCompleter) *Server {
	return New(store, completer, nil, testAuthConfig(), discardLogger())
}

// signToken issues an HS256 token the way the identity provider does.
func signToken(t *testing.T, secret string, sub string, ttl time.Duration) string {
	t.Helper()
	claims := tokenClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// authedRequest builds a JSON request carrying a valid access token for user.
func authedRequest(t *testing.T, method, target, body string, user uuid.UUID) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: signToken(t, testJWTSecret, user.String(), time.Hour)})
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
