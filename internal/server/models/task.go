package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
)

// TaskState is the lifecycle state of a task. Processing is the only
// non-terminal state.
type TaskState string

const (
	StateProcessing TaskState = "processing"
	StateCompleted  TaskState = "completed"
	StateFailed     TaskState = "failed"
)

// Terminal reports whether no further transition is accepted from s.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TaskKind names the image operation a task performs.
type TaskKind string

const (
	KindRemoveBackground TaskKind = "remove-background"
	KindExtendImage      TaskKind = "extend-image"
	KindEnhanceClarity   TaskKind = "enhance-clarity"
	KindObjectRemoval    TaskKind = "object-removal"
)

// Known reports whether k is one of the operations the API exposes,
// implemented or not.
func (k TaskKind) Known() bool {
	switch k {
	case KindRemoveBackground, KindExtendImage, KindEnhanceClarity, KindObjectRemoval:
		return true
	}
	return false
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TaskResult is the payload of a completed task.
type TaskResult struct {
	ProcessedKey  string    `json:"processedKey"`
	OriginalSize  Size      `json:"originalSize"`
	ProcessedSize *Size     `json:"processedSize,omitempty"`
	ProcessedAt   time.Time `json:"processedAt"`
}

// Outcome is the tagged result of a task. The zero value means the task is
// still processing. A completed outcome carries a result and no error, a
// failed one carries an error message and no result. Build terminal values
// with Succeeded or Failed.
type Outcome struct {
	state  TaskState
	result *TaskResult
	err    string
}

const unknownFailure = "unknown error"

func Succeeded(r TaskResult) Outcome {
	return Outcome{state: StateCompleted, result: &r}
}

// Failed builds a failed outcome. An empty message is replaced so a failed
// task always explains itself.
func Failed(msg string) Outcome {
	if msg == "" {
		msg = unknownFailure
	}
	return Outcome{state: StateFailed, err: msg}
}

// State of the task carrying o.
func (o Outcome) State() TaskState {
	if o.state == "" {
		return StateProcessing
	}
	return o.state
}

// Result returns a copy of the result of a completed outcome.
func (o Outcome) Result() (TaskResult, bool) {
	if o.state != StateCompleted || o.result == nil {
		return TaskResult{}, false
	}
	return *o.result, true
}

// FailureMessage returns the error message of a failed outcome.
func (o Outcome) FailureMessage() (string, bool) {
	if o.state != StateFailed {
		return "", false
	}
	return o.err, true
}

// OutcomeFor rebuilds an Outcome from stored columns and rejects
// combinations that break the one-payload-per-terminal-state rule.
func OutcomeFor(state TaskState, result *TaskResult, errMsg *string) (Outcome, error) {
	switch state {
	case StateProcessing:
		if result != nil || errMsg != nil {
			return Outcome{}, fmt.Errorf("processing task with payload")
		}
		return Outcome{}, nil
	case StateCompleted:
		if result == nil || errMsg != nil {
			return Outcome{}, fmt.Errorf("completed task without result or with error")
		}
		return Succeeded(*result), nil
	case StateFailed:
		if errMsg == nil || result != nil {
			return Outcome{}, fmt.Errorf("failed task without error or with result")
		}
		return Failed(*errMsg), nil
	default:
		return Outcome{}, fmt.Errorf("unknown task state %q", state)
	}
}

// Task is one asynchronous processing job.
type Task struct {
	ID        string
	OwnerID   string
	FileID    string
	Kind      TaskKind
	CreatedAt time.Time
	UpdatedAt time.Time
	Outcome   Outcome
}

// NewTask returns a processing task stamped with now.
func NewTask(id, ownerID, fileID string, kind TaskKind, now time.Time) *Task {
	now = now.UTC()
	return &Task{
		ID:        id,
		OwnerID:   ownerID,
		FileID:    fileID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Task) State() TaskState {
	return t.Outcome.State()
}

// Advance moves a processing task to the terminal outcome o and refreshes
// UpdatedAt. A terminal task is left untouched and common.ErrTaskTerminal
// is returned.
func (t *Task) Advance(o Outcome, at time.Time) error {
	if t.State().Terminal() {
		return common.ErrTaskTerminal
	}
	if !o.State().Terminal() {
		return fmt.Errorf("%w: advance to %s", common.ErrInvalidInput, o.State())
	}
	t.Outcome = o
	t.UpdatedAt = at.UTC()
	return nil
}

type taskJSON struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"ownerId"`
	FileID    string      `json:"fileId"`
	Kind      TaskKind    `json:"kind"`
	State     TaskState   `json:"state"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Result    *TaskResult `json:"result,omitempty"`
	Error     *string     `json:"error,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	v := taskJSON{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		FileID:    t.FileID,
		Kind:      t.Kind,
		State:     t.State(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if r, ok := t.Outcome.Result(); ok {
		v.Result = &r
	}
	if msg, ok := t.Outcome.FailureMessage(); ok {
		v.Error = &msg
	}
	return json.Marshal(v)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var v taskJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o, err := OutcomeFor(v.State, v.Result, v.Error)
	if err != nil {
		return err
	}
	*t = Task{
		ID:        v.ID,
		OwnerID:   v.OwnerID,
		FileID:    v.FileID,
		Kind:      v.Kind,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
		Outcome:   o,
	}
	return nil
}
