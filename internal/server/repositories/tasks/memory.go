package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

// MemoryRepository keeps tasks in process memory. Records are copied in
// and out so callers never share state with the store. Writers are
// serialized by mu, readers go straight to the map.
type MemoryRepository struct {
	mu    sync.Mutex
	tasks *haxmap.Map[string, models.Task]
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: haxmap.New[string, models.Task](),
		now:   time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, task *models.Task) error {
	if task.State() != models.StateProcessing {
		return fmt.Errorf("%w: new task must be processing", common.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks.Get(task.ID); ok {
		return common.ErrAlreadyExists
	}
	r.tasks.Set(task.ID, *task)
	return nil
}

func (r *MemoryRepository) Complete(_ context.Context, id string, result models.TaskResult) error {
	return r.advance(id, models.Succeeded(result))
}

func (r *MemoryRepository) Fail(_ context.Context, id string, msg string) error {
	return r.advance(id, models.Failed(msg))
}

func (r *MemoryRepository) advance(id string, o models.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks.Get(id)
	if !ok {
		return common.ErrorNotFound
	}
	if err := t.Advance(o, r.now()); err != nil {
		return err
	}
	r.tasks.Set(id, t)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Task, error) {
	t, ok := r.tasks.Get(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}
