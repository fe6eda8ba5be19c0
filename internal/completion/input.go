package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/claude/repcoach/internal/apperr"
	"github.com/google/uuid"
)

// Request is a decoded complete_with_details payload.
type Request struct {
	SessionID       uuid.UUID
	DurationMinutes *int
	Notes           *string
	Exercises       []ExerciseInput

	// RawExercises is the exercises array exactly as received. It is what the
	// procedure receives and what the blob fallback stores.
	RawExercises json.RawMessage
}

// ExerciseInput is one performed exercise.
type ExerciseInput struct {
	WorkoutExerciseID  *uuid.UUID
	ExerciseID         *uuid.UUID
	ExerciseName       string
	Order              *int
	PlannedSets        *int
	PlannedReps        *string
	PlannedWeight      *string
	PlannedRestSeconds *int
	Notes              *string
	CompletedSets      []SetInput
}

// SetInput is one performed set.
type SetInput struct {
	SetNumber       *int
	RepsCompleted   *int
	WeightUsed      *float64
	DurationSeconds *int
}

// TotalSets returns the number of completed sets across all exercises.
func (r Request) TotalSets() int {
	n := 0
	for _, ex := range r.Exercises {
		n += len(ex.CompletedSets)
	}
	return n
}

type requestWire struct {
	SessionID            flexText        `json:"session_id"`
	SessionIDCamel       flexText        `json:"sessionId"`
	DurationMinutes      flexInt         `json:"duration_minutes"`
	DurationMinutesCamel flexInt         `json:"durationMinutes"`
	Notes                flexText        `json:"notes"`
	Exercises            json.RawMessage `json:"exercises"`
}

type exerciseWire struct {
	WorkoutExerciseID       flexUUID `json:"workout_exercise_id"`
	WorkoutExerciseIDCamel  flexUUID `json:"workoutExerciseId"`
	ExerciseID              flexUUID `json:"exercise_id"`
	ExerciseIDCamel         flexUUID `json:"exerciseId"`
	ExerciseName            flexText `json:"exercise_name"`
	ExerciseNameCamel       flexText `json:"exerciseName"`
	Order                   flexInt  `json:"order"`
	Sets                    flexInt  `json:"sets"`
	PlannedSets             flexInt  `json:"planned_sets"`
	PlannedSetsCamel        flexInt  `json:"plannedSets"`
	Reps                    flexText `json:"reps"`
	PlannedReps             flexText `json:"planned_reps"`
	PlannedRepsCamel        flexText `json:"plannedReps"`
	Weight                  flexText `json:"weight"`
	PlannedWeight           flexText `json:"planned_weight"`
	PlannedWeightCamel      flexText `json:"plannedWeight"`
	RestSeconds             flexInt  `json:"rest_seconds"`
	PlannedRestSeconds      flexInt  `json:"planned_rest_seconds"`
	PlannedRestSecondsCamel flexInt  `json:"plannedRestSeconds"`
	Notes                   flexText `json:"notes"`
	CompletedSets           setList  `json:"completedSets"`
	CompletedSetsSnake      setList  `json:"completed_sets"`
}

type setWire struct {
	SetNumber            flexInt   `json:"set_number"`
	SetNumberCamel       flexInt   `json:"setNumber"`
	RepsCompleted        flexInt   `json:"reps_completed"`
	RepsCompletedCamel   flexInt   `json:"repsCompleted"`
	Reps                 flexInt   `json:"reps"`
	WeightUsed           flexFloat `json:"weight_used"`
	WeightUsedCamel      flexFloat `json:"weightUsed"`
	Weight               flexFloat `json:"weight"`
	DurationSeconds      flexInt   `json:"duration_seconds"`
	DurationSecondsCamel flexInt   `json:"durationSeconds"`
	Duration             flexInt   `json:"duration"`
}

// DecodeRequest parses a complete_with_details payload. A missing or malformed
// session id is a validation error. Individual exercise and set fields never
// fail decoding: anything missing or unparseable becomes nil.
func DecodeRequest(payload json.RawMessage) (Request, error) {
	var w requestWire
	if len(bytes.TrimSpace(payload)) == 0 {
		return Request{}, apperr.Invalid("session_id is required")
	}
	if err := json.Unmarshal(payload, &w); err != nil {
		return Request{}, apperr.E(apperr.Validation, "invalid payload", err)
	}

	rawID := firstText(w.SessionID, w.SessionIDCamel)
	if rawID == nil || strings.TrimSpace(*rawID) == "" {
		return Request{}, apperr.Invalid("session_id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(*rawID))
	if err != nil {
		return Request{}, apperr.Invalid("session_id must be a UUID")
	}

	req := Request{
		SessionID:       id,
		DurationMinutes: firstInt(w.DurationMinutes, w.DurationMinutesCamel),
		Notes:           w.Notes.v,
		RawExercises:    json.RawMessage("[]"),
	}

	raw := bytes.TrimSpace(w.Exercises)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return req, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return Request{}, apperr.Invalid("exercises must be an array")
	}
	req.RawExercises = append(json.RawMessage(nil), raw...)

	req.Exercises = make([]ExerciseInput, 0, len(items))
	for i, item := range items {
		var ew exerciseWire
		if err := json.Unmarshal(item, &ew); err != nil {
			return Request{}, apperr.Invalid(fmt.Sprintf("exercises[%d] must be an object", i))
		}
		req.Exercises = append(req.Exercises, ew.toInput())
	}
	return req, nil
}

func (ew exerciseWire) toInput() ExerciseInput {
	in := ExerciseInput{
		WorkoutExerciseID:  firstUUID(ew.WorkoutExerciseID, ew.WorkoutExerciseIDCamel),
		ExerciseID:         firstUUID(ew.ExerciseID, ew.ExerciseIDCamel),
		Order:              ew.Order.v,
		PlannedSets:        firstInt(ew.Sets, ew.PlannedSets, ew.PlannedSetsCamel),
		PlannedReps:        firstText(ew.Reps, ew.PlannedReps, ew.PlannedRepsCamel),
		PlannedWeight:      firstText(ew.Weight, ew.PlannedWeight, ew.PlannedWeightCamel),
		PlannedRestSeconds: firstInt(ew.RestSeconds, ew.PlannedRestSeconds, ew.PlannedRestSecondsCamel),
		Notes:              ew.Notes.v,
	}
	if name := firstText(ew.ExerciseName, ew.ExerciseNameCamel); name != nil {
		in.ExerciseName = *name
	}

	sets := ew.CompletedSets
	if len(sets) == 0 {
		sets = ew.CompletedSetsSnake
	}
	for _, sw := range sets {
		in.CompletedSets = append(in.CompletedSets, SetInput{
			SetNumber:       firstInt(sw.SetNumber, sw.SetNumberCamel),
			RepsCompleted:   firstInt(sw.RepsCompleted, sw.RepsCompletedCamel, sw.Reps),
			WeightUsed:      firstFloat(sw.WeightUsed, sw.WeightUsedCamel, sw.Weight),
			DurationSeconds: firstInt(sw.DurationSeconds, sw.DurationSecondsCamel, sw.Duration),
		})
	}
	return in
}

// flexInt accepts a JSON number or a numeric string holding a whole value that
// fits a database integer. Anything else is nil.
type flexInt struct{ v *int }

func (f *flexInt) UnmarshalJSON(b []byte) error {
	f.v = nil
	n, ok := parseNumber(b)
	if !ok || n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return nil
	}
	i := int(n)
	f.v = &i
	return nil
}

// flexFloat is flexInt for fractional values such as weights.
type flexFloat struct{ v *float64 }

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.v = nil
	if n, ok := parseNumber(b); ok {
		f.v = &n
	}
	return nil
}

// flexText accepts a JSON string or number and keeps its text. null is nil.
type flexText struct{ v *string }

func (f *flexText) UnmarshalJSON(b []byte) error {
	f.v = nil
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.v = &s
		return nil
	}
	lit := strings.TrimSpace(string(b))
	if _, err := strconv.ParseFloat(lit, 64); err == nil {
		f.v = &lit
	}
	return nil
}

// flexUUID accepts a UUID string. Empty or malformed values are nil.
type flexUUID struct{ v *uuid.UUID }

func (f *flexUUID) UnmarshalJSON(b []byte) error {
	f.v = nil
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
		f.v = &id
	}
	return nil
}

// setList decodes an array of sets and ignores anything that is not one.
type setList []setWire

func (l *setList) UnmarshalJSON(b []byte) error {
	*l = nil
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	for _, item := range items {
		var sw setWire
		if err := json.Unmarshal(item, &sw); err != nil {
			sw = setWire{}
		}
		*l = append(*l, sw)
	}
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func parseNumber(b []byte) (float64, bool) {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
	}
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func firstInt(vals ...flexInt) *int {
	for _, v := range vals {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}

func firstFloat(vals ...flexFloat) *float64 {
	for _, v := range vals {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}

func firstText(vals ...flexText) *string {
	for _, v := range vals {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}

func firstUUID(vals ...flexUUID) *uuid.UUID {
	for _, v := range vals {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}
