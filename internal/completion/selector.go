package completion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mode controls whether the procedure strategy is attempted.
type Mode string

const (
	ModeAuto   Mode = "auto"   // probe for the procedure
	ModeAlways Mode = "always" // always try it first
	ModeNever  Mode = "never"  // sequential writes only
)

// ParseMode validates a configured mode. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAlways, ModeNever:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown completion mode %q", s)
}

// Prober reports whether the completion procedure is installed.
type Prober interface {
	HasCompletionProcedure(ctx context.Context) (bool, error)
}

// Selector decides whether the procedure strategy should be tried. In auto
// mode the probe result is cached for ttl; probe errors are not cached.
type Selector struct {
	mode   Mode
	probe  Prober
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

// NewSelector creates a Selector.
func NewSelector(mode Mode, probe Prober, ttl time.Duration, logger *slog.Logger) *Selector {
	return &Selector{mode: mode, probe: probe, ttl: ttl, logger: logger, now: time.Now}
}

// UseProcedure reports whether the procedure strategy should run first.
func (s *Selector) UseProcedure(ctx context.Context) bool {
	switch s.mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.checkedAt.IsZero() && now.Sub(s.checkedAt) < s.ttl {
		return s.available
	}

	ok, err := s.probe.HasCompletionProcedure(ctx)
	if err != nil {
		s.logger.Warn("completion procedure probe failed", "error", err)
		return false
	}
	if ok != s.available || s.checkedAt.IsZero() {
		s.logger.Info("completion procedure probed", "available", ok)
	}
	s.available = ok
	s.checkedAt = now
	return ok
}

// Invalidate forces the next UseProcedure call to probe again.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	s.checkedAt = time.Time{}
	s.mu.Unlock()
}
