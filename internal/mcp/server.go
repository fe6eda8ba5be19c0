package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/repcoach/internal/ownership"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const coachIDKey contextKey = iota

// CoachIDFromContext extracts the caller injected by the transport layer.
// It returns uuid.Nil when none is set, which no ownership check accepts.
func CoachIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(coachIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithCoachID returns a context carrying the caller's user id.
func WithCoachID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, coachIDKey, id)
}

// New creates an MCP server with all tools and resources registered.
// search may be nil when no catalogue API key is configured.
func New(ds DataSource, search Searcher, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCoach coaching server. Query clients, logged workout sessions, goals, and the exercise catalogue. All data is scoped to the authenticated coach."),
	)

	h := &handlers{ds: ds, guard: ownership.New(ds), search: search, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListClients, Handler: h.listClients},
		server.ServerTool{Tool: toolListClientSessions, Handler: h.listClientSessions},
		server.ServerTool{Tool: toolGetWorkoutSession, Handler: h.getWorkoutSession},
		server.ServerTool{Tool: toolListClientGoals, Handler: h.listClientGoals},
	)
	if search != nil {
		s.AddTool(toolSearchExercises, h.searchExercises)
	}

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resClients, Handler: h.clients},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds     DataSource
	guard  *ownership.Guard
	search Searcher
	log    *slog.Logger
}

// --- Resource definitions ---

var resClients = mcp.NewResource(
	"repcoach://clients",
	"Clients",
	mcp.WithResourceDescription("Clients coached by the authenticated user"),
	mcp.WithMIMEType("application/json"),
)
