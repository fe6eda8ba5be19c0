package mcp

import (
	"context"

	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. It includes the owner
// lookups so tools can apply the ownership guard.
type DataSource interface {
	CoachOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error)
	ClientUserOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error)
	ListClients(ctx context.Context, coachID uuid.UUID) ([]models.Client, error)
	ListSessions(ctx context.Context, clientID uuid.UUID) ([]models.WorkoutSession, error)
	GetSessionDetail(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error)
	ListGoals(ctx context.Context, clientID uuid.UUID) ([]models.ClientGoal, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)

// Searcher queries the external exercise catalogue.
type Searcher interface {
	Search(ctx context.Context, q lookup.Query) ([]lookup.Exercise, error)
}

var _ Searcher = (*lookup.Client)(nil)
