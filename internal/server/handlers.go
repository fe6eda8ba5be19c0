package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes {"error": msg}.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// callerID returns the authenticated user. RequireSession guarantees it is set.
func callerID(r *http.Request) uuid.UUID {
	id, _ := IdentityFromContext(r.Context())
	return id.UserID
}

// decodeBody decodes a JSON request body into v. An empty body is a validation error.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return apperr.Invalid("request body is required")
	default:
		return apperr.E(apperr.Validation, "invalid JSON", err)
	}
}

// requireUUID parses a required id from a query parameter or body field.
func requireUUID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, apperr.Invalid(field + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid(field + " must be a UUID")
	}
	return id, nil
}

// storageErr classifies a missing row as NotFound and everything else as Backend.
func storageErr(err error, what string) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return apperr.E(apperr.NotFound, what+" not found", nil)
	case errors.Is(err, storage.ErrAlreadyCompleted):
		return apperr.E(apperr.Conflict, what+" already completed", nil)
	}
	return err
}

// idBody is the {"id": ...} body of DELETE requests.
type idBody struct {
	ID string `json:"id"`
}

// deleteTarget reads the id to delete from ?id= or the JSON body.
func deleteTarget(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("id"); raw != "" {
		return requireUUID(raw, "id")
	}
	var body idBody
	if err := decodeBody(r, &body); err != nil {
		return uuid.Nil, err
	}
	return requireUUID(body.ID, "id")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExerciseSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "exercise lookup is not configured"})
		return
	}
	q := lookup.Query{
		Muscle: r.URL.Query().Get("muscle"),
		Name:   r.URL.Query().Get("name"),
	}
	exercises, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if exercises == nil {
		exercises = []lookup.Exercise{}
	}
	writeJSON(w, http.StatusOK, exercises)
}
