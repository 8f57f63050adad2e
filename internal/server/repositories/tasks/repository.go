// Package tasks persists task records and enforces their state machine:
// a task is created in processing and advances once, to completed or
// failed. Terminal records never change again.
package tasks

import (
	"context"

	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type Repository interface {
	// Create inserts a processing task. An existing id yields
	// common.ErrAlreadyExists and the stored record is kept.
	Create(ctx context.Context, task *models.Task) error
	// Complete and Fail write state, updated_at, result and error together.
	// An unknown id yields common.ErrorNotFound, a terminal one
	// common.ErrTaskTerminal.
	Complete(ctx context.Context, id string, result models.TaskResult) error
	Fail(ctx context.Context, id string, msg string) error
	// Get returns common.ErrorNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*models.Task, error)
}
