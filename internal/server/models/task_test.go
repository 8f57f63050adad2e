package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestNewTask_StartsProcessing(t *testing.T) {
	task := NewTask("t1", "u1", "f1", KindRemoveBackground, t0)

	assert.Equal(t, StateProcessing, task.State())
	assert.Equal(t, t0, task.CreatedAt)
	assert.Equal(t, t0, task.UpdatedAt)
	_, ok := task.Outcome.Result()
	assert.False(t, ok)
	_, ok = task.Outcome.FailureMessage()
	assert.False(t, ok)
}

func TestTask_AdvanceOnce(t *testing.T) {
	task := NewTask("t1", "u1", "f1", KindRemoveBackground, t0)
	later := t0.Add(time.Minute)

	require.NoError(t, task.Advance(Failed("boom"), later))
	assert.Equal(t, StateFailed, task.State())
	assert.Equal(t, later, task.UpdatedAt)

	err := task.Advance(Failed("again"), later.Add(time.Minute))
	assert.ErrorIs(t, err, common.ErrTaskTerminal)
	msg, _ := task.Outcome.FailureMessage()
	assert.Equal(t, "boom", msg)
	assert.Equal(t, later, task.UpdatedAt)

	err = task.Advance(Succeeded(TaskResult{ProcessedKey: "k"}), later)
	assert.ErrorIs(t, err, common.ErrTaskTerminal)
	_, ok := task.Outcome.Result()
	assert.False(t, ok)
}

func TestTask_AdvanceRejectsProcessing(t *testing.T) {
	task := NewTask("t1", "u1", "f1", KindRemoveBackground, t0)
	err := task.Advance(Outcome{}, t0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, StateProcessing, task.State())
}

func TestOutcome_ExactlyOnePayload(t *testing.T) {
	ok := Succeeded(TaskResult{ProcessedKey: "processed/f1_remove-background.png"})
	r, has := ok.Result()
	assert.True(t, has)
	assert.Equal(t, "processed/f1_remove-background.png", r.ProcessedKey)
	_, has = ok.FailureMessage()
	assert.False(t, has)

	bad := Failed("")
	msg, has := bad.FailureMessage()
	assert.True(t, has)
	assert.NotEmpty(t, msg)
	_, has = bad.Result()
	assert.False(t, has)
}

func TestOutcomeFor(t *testing.T) {
	msg := "x"
	res := &TaskResult{ProcessedKey: "k"}

	tests := []struct {
		name    string
		state   TaskState
		result  *TaskResult
		errMsg  *string
		wantErr bool
	}{
		{name: "processing", state: StateProcessing},
		{name: "processing with error", state: StateProcessing, errMsg: &msg, wantErr: true},
		{name: "completed", state: StateCompleted, result: res},
		{name: "completed without result", state: StateCompleted, wantErr: true},
		{name: "completed with both", state: StateCompleted, result: res, errMsg: &msg, wantErr: true},
		{name: "failed", state: StateFailed, errMsg: &msg},
		{name: "failed with result", state: StateFailed, result: res, errMsg: &msg, wantErr: true},
		{name: "bogus", state: "queued", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := OutcomeFor(tt.state, tt.result, tt.errMsg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.state, o.State())
		})
	}
}

func TestTask_JSONKeepsOutcome(t *testing.T) {
	task := NewTask("t1", "u1", "f1", KindRemoveBackground, t0)
	require.NoError(t, task.Advance(Succeeded(TaskResult{
		ProcessedKey: "processed/f1_remove-background.png",
		OriginalSize: Size{Width: 640, Height: 480},
		ProcessedAt:  t0,
	}), t0.Add(time.Second)))

	b, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"completed"`)
	assert.NotContains(t, string(b), `"error"`)

	var got Task
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, StateCompleted, got.State())
	r, ok := got.Outcome.Result()
	require.True(t, ok)
	assert.Equal(t, 640, r.OriginalSize.Width)
}

func TestTask_UnmarshalRejectsMixedPayload(t *testing.T) {
	var got Task
	err := json.Unmarshal([]byte(`{"id":"t1","state":"failed","error":"x","result":{"processedKey":"k"}}`), &got)
	assert.Error(t, err)
}

func TestKindAndFileHelpers(t *testing.T) {
	assert.True(t, KindObjectRemoval.Known())
	assert.False(t, TaskKind("sharpen").Known())
	assert.Equal(t, "processed/f1_remove-background.png", ProcessedKey("f1", KindRemoveBackground))

	f := &File{Width: 3, Height: 4}
	assert.Equal(t, Size{Width: 3, Height: 4}, f.Size())

	u := &User{SubscriptionStatus: SubscriptionActive}
	assert.True(t, u.Entitled())
	assert.False(t, (&User{}).Entitled())
}
