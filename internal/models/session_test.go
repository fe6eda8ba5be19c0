package models

import "testing"

// TestStatusTransitions verifies completed is terminal and the other states move freely.
func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{SessionNotStarted, SessionInProgress, true},
		{SessionNotStarted, SessionCompleted, true},
		{SessionInProgress, SessionCompleted, true},
		{SessionInProgress, SessionNotStarted, true},
		{SessionCompleted, SessionCompleted, true},
		{SessionCompleted, SessionInProgress, false},
		{SessionCompleted, SessionNotStarted, false},
		{SessionNotStarted, SessionStatus("paused"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if SessionStatus("done").Valid() {
		t.Error(`"done" should not be valid`)
	}
	if !SessionInProgress.Valid() {
		t.Error("in-progress should be valid")
	}
}
