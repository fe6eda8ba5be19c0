//go:build integration

package completion_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/claude/repcoach/internal/completion"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/claude/repcoach/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squatPayload = `{
	"session_id": %q,
	"duration_minutes": 45,
	"exercises": [
		{"workout_exercise_id": null, "exercise_name": "Squat", "sets": 3, "reps": "5",
		 "completed_sets": [
			{"set_number": 1, "reps_completed": 5, "weight_used": 100},
			{"set_number": 2, "reps_completed": 5, "weight_used": 100},
			{"set_number": 3, "reps_completed": 4, "weight_used": 100}]}
	]
}`

func newSession(t *testing.T, db *storage.DB) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	client, err := db.CreateClient(ctx, models.Client{CoachID: uuid.New(), Name: "Sam"})
	require.NoError(t, err)
	s, err := db.CreateSession(ctx, models.WorkoutSession{ClientID: client.ID})
	require.NoError(t, err)
	return s.ID
}

func TestPipelineStrategiesAgree(t *testing.T) {
	db := testutil.SetupPostgres(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, mode := range []completion.Mode{completion.ModeAlways, completion.ModeNever} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			sessionID := newSession(t, db)
			p := completion.NewPipeline(db, completion.NewSelector(mode, db, time.Minute, log), log)

			req, err := completion.DecodeRequest([]byte(fmt.Sprintf(squatPayload, sessionID.String())))
			require.NoError(t, err)

			result, err := p.Complete(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, mode == completion.ModeAlways, result.RPC)
			assert.Equal(t, models.SessionCompleted, result.Session.Status)
			assert.Equal(t, 1, result.Session.ExerciseCount)

			detail, err := db.GetSessionDetail(ctx, sessionID)
			require.NoError(t, err)
			require.Len(t, detail.SessionExercises, 1)
			assert.Equal(t, "Squat", detail.SessionExercises[0].ExerciseName)
			assert.Equal(t, 1, detail.SessionExercises[0].OrderIndex)
			require.Len(t, detail.Sets, 3)
			require.NotNil(t, detail.Sets[2].RepsCompleted)
			assert.Equal(t, 4, *detail.Sets[2].RepsCompleted)

			mirrored, err := db.QueryLegacyWorkoutSets(ctx, sessionID)
			require.NoError(t, err)
			require.Len(t, mirrored, 3)
			assert.Equal(t, detail.SessionExercises[0].ID, mirrored[0].WorkoutExerciseID)

			_, err = p.Complete(ctx, req)
			assert.True(t, apperr.Is(err, apperr.Conflict), "second completion: %v", err)
		})
	}
}

func TestPipelineUnknownSession(t *testing.T) {
	db := testutil.SetupPostgres(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := completion.NewPipeline(db, completion.NewSelector(completion.ModeAuto, db, time.Minute, log), log)

	req, err := completion.DecodeRequest([]byte(fmt.Sprintf(squatPayload, uuid.NewString())))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
}
