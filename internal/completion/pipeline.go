// Package completion persists a finished workout session together with its
// performed exercises and sets.
//
// Two strategies exist: a database procedure that applies every write in one
// transaction, and a sequence of single-table writes that saves the raw
// payload on the session when structured inserts fail. A Selector decides
// whether the procedure is tried first. Sets are mirrored into the legacy
// workout_sets table after the result is known; mirror failures are logged
// and never reach the caller.
package completion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// Pipeline runs the completion strategies in order.
type Pipeline struct {
	store     Store
	selector  *Selector
	procedure Strategy
	fallback  Strategy
	logger    *slog.Logger
}

// NewPipeline builds a Pipeline over store with the given selector.
func NewPipeline(store Store, selector *Selector, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		selector:  selector,
		procedure: NewProcedureStrategy(store),
		fallback:  NewFallbackStrategy(store, logger),
		logger:    logger,
	}
}

// Complete marks the session completed and records what was performed.
// Returned errors are classified with apperr.
func (p *Pipeline) Complete(ctx context.Context, req Request) (*Result, error) {
	if req.SessionID == uuid.Nil {
		return nil, apperr.Invalid("session_id is required")
	}

	p.logger.Debug("completing session", "session_id", req.SessionID,
		"exercises", len(req.Exercises), "sets", req.TotalSets())

	strategies := []Strategy{p.fallback}
	if p.selector.UseProcedure(ctx) {
		strategies = []Strategy{p.procedure, p.fallback}
	}

	var (
		result *Result
		err    error
	)
	for _, s := range strategies {
		result, err = s.Complete(ctx, req)
		if err == nil {
			p.logger.Info("session completed",
				"session_id", req.SessionID, "strategy", s.Name(),
				"exercises", len(result.Exercises), "sets", len(result.Sets),
				"fallback_saved", result.FallbackSaved)
			break
		}
		if errors.Is(err, storage.ErrProcedureMissing) {
			p.selector.Invalidate()
		}
		if errors.Is(err, ErrNotApplied) {
			p.logger.Warn("completion strategy not applied, trying next",
				"session_id", req.SessionID, "strategy", s.Name(), "error", err)
			continue
		}
		return nil, classify(err)
	}
	if err != nil {
		return nil, classify(err)
	}

	p.mirror(context.WithoutCancel(ctx), req, result)
	return result, nil
}

// mirror writes the legacy projection of the inserted sets.
func (p *Pipeline) mirror(ctx context.Context, req Request, result *Result) {
	if len(result.mirror) == 0 {
		return
	}
	n, err := p.store.InsertLegacyWorkoutSets(ctx, result.mirror)
	if err != nil {
		p.logger.Warn("mirroring sets to workout_sets failed",
			"session_id", req.SessionID, "rows", len(result.mirror), "error", err)
		return
	}
	p.logger.Debug("mirrored sets to workout_sets", "session_id", req.SessionID, "rows", n)
}

func classify(err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, storage.ErrAlreadyCompleted):
		return apperr.E(apperr.Conflict, "session already completed", nil)
	case errors.Is(err, storage.ErrNotFound):
		return apperr.E(apperr.NotFound, "session not found", nil)
	default:
		return apperr.E(apperr.Backend, "", err)
	}
}
