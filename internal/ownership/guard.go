// Package ownership decides whether a caller may mutate a resource by comparing
// the resource's owning coach with the caller's identity.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// Decision is the outcome of an ownership check.
type Decision int

const (
	Authorized Decision = iota
	NotFound
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case NotFound:
		return "not-found"
	default:
		return "forbidden"
	}
}

// Lookup resolves owners. *storage.DB satisfies it.
type Lookup interface {
	CoachOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error)
	ClientUserOf(ctx context.Context, kind models.Resource, id uuid.UUID) (uuid.UUID, error)
}

// Guard checks ownership. It never writes.
type Guard struct {
	lookup Lookup
}

// New creates a Guard backed by lookup.
func New(lookup Lookup) *Guard {
	return &Guard{lookup: lookup}
}

// Check reads the coach that owns (kind, id) and compares it with coachID.
// Lookup failures other than not-found are returned as errors.
func (g *Guard) Check(ctx context.Context, kind models.Resource, id, coachID uuid.UUID) (Decision, error) {
	owner, err := g.lookup.CoachOf(ctx, kind, id)
	if errors.Is(err, models.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return Forbidden, err
	}
	if coachID == uuid.Nil || owner != coachID {
		return Forbidden, nil
	}
	return Authorized, nil
}

// CheckParticipant authorizes the owning coach and also the client user linked
// to a client or session, so clients can log their own sessions.
func (g *Guard) CheckParticipant(ctx context.Context, kind models.Resource, id, userID uuid.UUID) (Decision, error) {
	d, err := g.Check(ctx, kind, id, userID)
	if err != nil || d != Forbidden {
		return d, err
	}
	clientUser, err := g.lookup.ClientUserOf(ctx, kind, id)
	if errors.Is(err, models.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return Forbidden, err
	}
	if clientUser != uuid.Nil && clientUser == userID {
		return Authorized, nil
	}
	return Forbidden, nil
}

// Require converts a Check into an error suitable for handlers: nil when
// authorized, apperr NotFound/Forbidden otherwise.
func (g *Guard) Require(ctx context.Context, kind models.Resource, id, coachID uuid.UUID) error {
	d, err := g.Check(ctx, kind, id, coachID)
	return decisionErr(kind, id, d, err)
}

// RequireParticipant is Require for CheckParticipant.
func (g *Guard) RequireParticipant(ctx context.Context, kind models.Resource, id, userID uuid.UUID) error {
	d, err := g.CheckParticipant(ctx, kind, id, userID)
	return decisionErr(kind, id, d, err)
}

func decisionErr(kind models.Resource, id uuid.UUID, d Decision, err error) error {
	if err != nil {
		return apperr.E(apperr.Backend, "checking ownership", err)
	}
	switch d {
	case Authorized:
		return nil
	case NotFound:
		return apperr.E(apperr.NotFound, fmt.Sprintf("%s not found", kind), nil)
	default:
		return apperr.E(apperr.Forbidden, fmt.Sprintf("not authorized for %s %s", kind, id), nil)
	}
}
