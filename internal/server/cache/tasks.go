package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/tasks"
)

const taskKeyPrefix = "task:"

// TaskRepository decorates a tasks.Repository with a read-through cache.
// Only terminal tasks are cached: they never change, so entries need no
// invalidation. Cache failures are logged and the inner repository is
// used.
type TaskRepository struct {
	tasks.Repository
	backend Backend
	ttl     time.Duration
	logger  logging.Logger
}

func NewTaskRepository(inner tasks.Repository, backend Backend, ttl time.Duration, logger logging.Logger) *TaskRepository {
	return &TaskRepository{Repository: inner, backend: backend, ttl: ttl, logger: logger}
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	key := taskKeyPrefix + id

	data, err := r.backend.Get(ctx, key)
	switch {
	case err == nil:
		var t models.Task
		if err := json.Unmarshal([]byte(data), &t); err == nil {
			return &t, nil
		}
		r.logger.Warn(ctx, "dropping undecodable cached task", "task_id", id)
	case !errors.Is(err, ErrMiss):
		r.logger.Warn(ctx, "task cache read failed", "task_id", id, "error", err)
	}

	t, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.State().Terminal() {
		b, err := json.Marshal(t)
		if err == nil {
			err = r.backend.Set(ctx, key, b, r.ttl)
		}
		if err != nil {
			r.logger.Warn(ctx, "task cache write failed", "task_id", id, "error", err)
		}
	}
	return t, nil
}
