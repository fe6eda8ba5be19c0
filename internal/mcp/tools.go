package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// sessionTime is the date a session is filed under: its scheduled date,
// falling back to when it was created.
func sessionTime(s models.WorkoutSession) time.Time {
	if s.ScheduledDate != nil {
		return *s.ScheduledDate
	}
	return s.CreatedAt
}

// --- Tool definitions ---

var toolListClients = mcp.NewTool("list_clients",
	mcp.WithDescription("List the clients coached by the authenticated user."),
)

var toolListClientSessions = mcp.NewTool("list_client_sessions",
	mcp.WithDescription("List a client's workout sessions in a date range with status, duration, and exercise count."),
	mcp.WithString("client_id", mcp.Required(), mcp.Description("Client UUID")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("status", mcp.Description("Only sessions with this status."), mcp.Enum("not-started", "in-progress", "completed")),
)

var toolGetWorkoutSession = mcp.NewTool("get_workout_session",
	mcp.WithDescription("Get one workout session with its logged exercises and sets."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolListClientGoals = mcp.NewTool("list_client_goals",
	mcp.WithDescription("List a client's goals with target and current values."),
	mcp.WithString("client_id", mcp.Required(), mcp.Description("Client UUID")),
)

var toolSearchExercises = mcp.NewTool("search_exercises",
	mcp.WithDescription("Search the external exercise catalogue by target muscle and/or name."),
	mcp.WithString("muscle", mcp.Description("Target muscle (e.g. 'biceps', 'quadriceps')")),
	mcp.WithString("name", mcp.Description("Exercise name (partial match, e.g. 'press')")),
)

// --- Tool handlers ---

// requireID parses a required UUID argument. It returns a tool error result
// when the argument is missing or malformed.
func requireID(req mcp.CallToolRequest, key string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(key + " parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(key + " must be a UUID")
	}
	return id, nil
}

func (h *handlers) authorize(ctx context.Context, kind models.Resource, id uuid.UUID) *mcp.CallToolResult {
	if err := h.guard.RequireParticipant(ctx, kind, id, CoachIDFromContext(ctx)); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

func (h *handlers) listClients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clients, err := h.ds.ListClients(ctx, CoachIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_clients", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(clients), nil
}

func (h *handlers) listClientSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, bad := requireID(req, "client_id")
	if bad != nil {
		return bad, nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	status := models.SessionStatus(req.GetString("status", ""))

	if denied := h.authorize(ctx, models.ResourceClient, clientID); denied != nil {
		return denied, nil
	}

	sessions, err := h.ds.ListSessions(ctx, clientID)
	if err != nil {
		h.log.Error("mcp list_client_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	filtered := make([]models.WorkoutSession, 0, len(sessions))
	for _, s := range sessions {
		at := sessionTime(s)
		if at.Before(start) || at.After(end) {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		filtered = append(filtered, s)
	}
	return jsonResult(filtered), nil
}

func (h *handlers) getWorkoutSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, bad := requireID(req, "session_id")
	if bad != nil {
		return bad, nil
	}
	if denied := h.authorize(ctx, models.ResourceSession, sessionID); denied != nil {
		return denied, nil
	}

	detail, err := h.ds.GetSessionDetail(ctx, sessionID)
	if err != nil {
		h.log.Error("mcp get_workout_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(detail), nil
}

func (h *handlers) listClientGoals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, bad := requireID(req, "client_id")
	if bad != nil {
		return bad, nil
	}
	if denied := h.authorize(ctx, models.ResourceClient, clientID); denied != nil {
		return denied, nil
	}

	goals, err := h.ds.ListGoals(ctx, clientID)
	if err != nil {
		h.log.Error("mcp list_client_goals", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(goals), nil
}

func (h *handlers) searchExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := lookup.Query{
		Muscle: req.GetString("muscle", ""),
		Name:   req.GetString("name", ""),
	}
	if CoachIDFromContext(ctx) == uuid.Nil {
		return mcp.NewToolResultError("unauthorized"), nil
	}

	exercises, err := h.search.Search(ctx, q)
	if err != nil {
		h.log.Warn("mcp search_exercises", "error", err)
		return mcp.NewToolResultError("search failed: " + err.Error()), nil
	}
	return jsonResult(exercises), nil
}
