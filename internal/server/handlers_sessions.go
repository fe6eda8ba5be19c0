package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/completion"
	"github.com/claude/repcoach/internal/models"
	"github.com/go-chi/chi/v5"
)

// /api/workout-sessions answers with {ok, data} or {ok:false, error}.

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"ok": true, "data": data})
}

func (s *Server) writeFail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("workout session request failed", "method", r.Method, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

type sessionAction struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type createSessionPayload struct {
	ClientID        string               `json:"client_id"`
	WorkoutID       string               `json:"workout_id"`
	Status          models.SessionStatus `json:"status"`
	ScheduledDate   string               `json:"scheduled_date"`
	DurationMinutes *int                 `json:"duration_minutes"`
	Notes           *string              `json:"notes"`
}

type updateSessionPayload struct {
	ID              string                `json:"id"`
	WorkoutID       *string               `json:"workout_id"`
	Status          *models.SessionStatus `json:"status"`
	ScheduledDate   *string               `json:"scheduled_date"`
	DurationMinutes *int                  `json:"duration_minutes"`
	Notes           *string               `json:"notes"`
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Invalid(field + " must be a date (YYYY-MM-DD or RFC 3339)")
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	clientID, err := requireUUID(r.URL.Query().Get("client_id"), "client_id")
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	if err := s.guard.RequireParticipant(r.Context(), models.ResourceClient, clientID, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}
	sessions, err := s.db.ListSessions(r.Context(), clientID)
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.WorkoutSession{}
	}
	writeOK(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := requireUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	if err := s.guard.RequireParticipant(r.Context(), models.ResourceSession, id, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}
	detail, err := s.db.GetSessionDetail(r.Context(), id)
	if err != nil {
		s.writeFail(w, r, storageErr(err, "session"))
		return
	}
	writeOK(w, http.StatusOK, detail)
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	var req sessionAction
	if err := decodeBody(r, &req); err != nil {
		s.writeFail(w, r, err)
		return
	}

	switch req.Action {
	case "create":
		s.createSession(w, r, req.Payload)
	case "update":
		s.updateSession(w, r, req.Payload)
	case "complete_with_details":
		s.completeSession(w, r, req.Payload)
	case "":
		s.writeFail(w, r, apperr.Invalid("action is required"))
	default:
		s.writeFail(w, r, apperr.Invalid(fmt.Sprintf("unknown action %q", req.Action)))
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	var p createSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.writeFail(w, r, apperr.E(apperr.Validation, "invalid payload", err))
		return
	}
	clientID, err := requireUUID(p.ClientID, "client_id")
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	session := models.WorkoutSession{
		ClientID:        clientID,
		Status:          p.Status,
		DurationMinutes: p.DurationMinutes,
		Notes:           p.Notes,
	}
	if p.WorkoutID != "" {
		workoutID, err := requireUUID(p.WorkoutID, "workout_id")
		if err != nil {
			s.writeFail(w, r, err)
			return
		}
		session.WorkoutID = &workoutID
	}
	if session.Status != "" && !session.Status.Valid() {
		s.writeFail(w, r, apperr.Invalid(fmt.Sprintf("unknown status %q", session.Status)))
		return
	}
	if session.ScheduledDate, err = parseDate(p.ScheduledDate, "scheduled_date"); err != nil {
		s.writeFail(w, r, err)
		return
	}

	if err := s.guard.RequireParticipant(r.Context(), models.ResourceClient, clientID, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}
	created, err := s.db.CreateSession(r.Context(), session)
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, created)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	var p updateSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.writeFail(w, r, apperr.E(apperr.Validation, "invalid payload", err))
		return
	}
	id, err := requireUUID(p.ID, "id")
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	patch := models.SessionPatch{
		Status:          p.Status,
		DurationMinutes: p.DurationMinutes,
		Notes:           p.Notes,
	}
	if p.Status != nil && !p.Status.Valid() {
		s.writeFail(w, r, apperr.Invalid(fmt.Sprintf("unknown status %q", *p.Status)))
		return
	}
	if p.ScheduledDate != nil {
		if patch.ScheduledDate, err = parseDate(*p.ScheduledDate, "scheduled_date"); err != nil {
			s.writeFail(w, r, err)
			return
		}
	}
	if p.WorkoutID != nil {
		workoutID, err := requireUUID(*p.WorkoutID, "workout_id")
		if err != nil {
			s.writeFail(w, r, err)
			return
		}
		patch.WorkoutID = &workoutID
	}

	if err := s.guard.RequireParticipant(r.Context(), models.ResourceSession, id, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}
	if patch.Status != nil {
		current, err := s.db.GetSession(r.Context(), id)
		if err != nil {
			s.writeFail(w, r, storageErr(err, "session"))
			return
		}
		if !current.Status.CanTransitionTo(*patch.Status) {
			s.writeFail(w, r, apperr.E(apperr.Conflict,
				fmt.Sprintf("cannot move session from %s to %s", current.Status, *patch.Status), nil))
			return
		}
	}

	updated, err := s.db.UpdateSession(r.Context(), id, patch)
	if err != nil {
		s.writeFail(w, r, storageErr(err, "session"))
		return
	}
	writeOK(w, http.StatusOK, updated)
}

func (s *Server) completeSession(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	req, err := completion.DecodeRequest(raw)
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	if err := s.guard.RequireParticipant(r.Context(), models.ResourceSession, req.SessionID, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}

	result, err := s.completer.Complete(r.Context(), req)
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := deleteTarget(r)
	if err != nil {
		s.writeFail(w, r, err)
		return
	}
	if err := s.guard.RequireParticipant(r.Context(), models.ResourceSession, id, callerID(r)); err != nil {
		s.writeFail(w, r, err)
		return
	}
	if err := s.db.DeleteSession(r.Context(), id); err != nil {
		s.writeFail(w, r, storageErr(err, "session"))
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id.String()})
}
