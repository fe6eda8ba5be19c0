package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/repcoach/internal/completion"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/lookup"
	repmcp "github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/ownership"
	"github.com/claude/repcoach/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Store is the persistence the HTTP handlers need.
type Store interface {
	ownership.Lookup
	Ping(ctx context.Context) error

	ListSessions(ctx context.Context, clientID uuid.UUID) ([]models.WorkoutSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (models.WorkoutSession, error)
	GetSessionDetail(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error)
	CreateSession(ctx context.Context, s models.WorkoutSession) (models.WorkoutSession, error)
	UpdateSession(ctx context.Context, id uuid.UUID, patch models.SessionPatch) (models.WorkoutSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	ListGoals(ctx context.Context, clientID uuid.UUID) ([]models.ClientGoal, error)
	CreateGoal(ctx context.Context, g models.ClientGoal) (models.ClientGoal, error)
	UpdateGoal(ctx context.Context, g models.ClientGoal) (models.ClientGoal, error)
	DeleteGoal(ctx context.Context, id uuid.UUID) error

	ListExercises(ctx context.Context, coachID uuid.UUID) ([]models.Exercise, error)
	CreateExercise(ctx context.Context, e models.Exercise) (models.Exercise, error)
	UpdateExercise(ctx context.Context, e models.Exercise) (models.Exercise, error)
	DeleteExercise(ctx context.Context, id uuid.UUID) error

	ListWorkoutExercises(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutExercise, error)
	CreateWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error)
	UpdateWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (models.WorkoutExercise, error)
	DeleteWorkoutExercise(ctx context.Context, id uuid.UUID) error
}

var _ Store = (*storage.DB)(nil)

// Completer runs the session completion pipeline.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Result, error)
}

var _ Completer = (*completion.Pipeline)(nil)

// Searcher queries the external exercise catalogue.
type Searcher interface {
	Search(ctx context.Context, q lookup.Query) ([]lookup.Exercise, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db        Store
	guard     *ownership.Guard
	completer Completer
	search    Searcher
	auth      config.AuthConfig
	log       *slog.Logger
	router    chi.Router
}

// New creates a new Server with all routes configured. search may be nil, in
// which case the catalogue search route answers 502.
func New(db Store, completer Completer, search Searcher, auth config.AuthConfig, log *slog.Logger) *Server {
	s := &Server{
		db:        db,
		guard:     ownership.New(db),
		completer: completer,
		search:    search,
		auth:      auth,
		log:       log,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(SecurityHeaders)
	s.router.Use(CORS)
	s.router.Use(SessionCookies(s.auth, s.log))
	if s.auth.CSRFKey != "" {
		s.router.Use(CSRF([]byte(s.auth.CSRFKey), !s.auth.InsecureCookie))
	}

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(RequireSession)
		r.Get("/me", s.handleMe)

		r.Route("/workout-sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Post("/", s.handleSessionAction)
			r.Delete("/", s.handleDeleteSession)
		})

		r.Route("/client-goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Put("/", s.handleUpdateGoal)
			r.Delete("/", s.handleDeleteGoal)
		})

		r.Route("/exercises", func(r chi.Router) {
			r.Get("/search", s.handleExerciseSearch)
			r.Get("/", s.handleListExercises)
			r.Post("/", s.handleCreateExercise)
			r.Put("/", s.handleUpdateExercise)
			r.Delete("/", s.handleDeleteExercise)
		})

		r.Route("/workout-exercises", func(r chi.Router) {
			r.Get("/", s.handleListWorkoutExercises)
			r.Post("/", s.handleCreateWorkoutExercise)
			r.Put("/", s.handleUpdateWorkoutExercise)
			r.Delete("/", s.handleDeleteWorkoutExercise)
		})
	})
}

// MountMCP serves the MCP server over streamable HTTP at /mcp. Tools see the
// caller's identity through mcp.CoachIDFromContext.
func (s *Server) MountMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := IdentityFromContext(r.Context()); ok {
				return repmcp.WithCoachID(ctx, id.UserID)
			}
			return ctx
		}),
	)
	s.router.With(RequireSession).Handle("/mcp", h)
}
