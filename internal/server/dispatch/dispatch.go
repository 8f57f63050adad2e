// Package dispatch hands background jobs to workers detached from the
// request that created them, either in-process (Pool) or through a Kafka
// topic (KafkaProducer and KafkaConsumer).
package dispatch

import (
	"context"

	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

// Job identifies one task run.
type Job struct {
	TaskID  string          `json:"task_id"`
	OwnerID string          `json:"owner_id"`
	FileID  string          `json:"file_id"`
	Kind    models.TaskKind `json:"kind"`
	TraceID string          `json:"trace_id,omitempty"`
}

// Handler performs a job.
type Handler func(ctx context.Context, job Job) error

// Dispatcher accepts a job without waiting for it to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}
