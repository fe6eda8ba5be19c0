package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// CompletionProcedure is the name of the server-side function that completes
// a session in a single transaction.
const CompletionProcedure = "complete_workout_session"

// ErrProcedureMissing is returned when complete_workout_session is not installed.
var ErrProcedureMissing = errors.New("completion procedure not installed")

// undefinedFunction is the SQLSTATE for a call to a function that does not exist.
const undefinedFunction = "42883"

// ProcedureResult is the JSON object returned by complete_workout_session.
type ProcedureResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HasCompletionProcedure reports whether complete_workout_session is installed.
func (db *DB) HasCompletionProcedure(ctx context.Context) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`,
		CompletionProcedure).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probing %s: %w", CompletionProcedure, err)
	}
	return exists, nil
}

// CallCompletionProcedure invokes complete_workout_session with the raw
// exercises payload. A non-nil error means the call itself failed; a
// reported failure comes back in ProcedureResult.
func (db *DB) CallCompletionProcedure(ctx context.Context, sessionID uuid.UUID, durationMinutes *int, notes *string, exercises json.RawMessage) (ProcedureResult, error) {
	if len(exercises) == 0 {
		exercises = json.RawMessage("[]")
	}
	var raw []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT complete_workout_session($1, $2, $3, $4::jsonb)`,
		sessionID, durationMinutes, notes, string(exercises)).Scan(&raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedFunction {
			return ProcedureResult{}, fmt.Errorf("calling %s: %w", CompletionProcedure, ErrProcedureMissing)
		}
		return ProcedureResult{}, fmt.Errorf("calling %s: %w", CompletionProcedure, err)
	}

	var res ProcedureResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ProcedureResult{}, fmt.Errorf("decoding %s result: %w", CompletionProcedure, err)
	}
	return res, nil
}
