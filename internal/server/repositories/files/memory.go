package files

import (
	"context"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.Mutex
	files *haxmap.Map[string, models.File]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{files: haxmap.New[string, models.File]()}
}

// Put stores a copy of f, replacing any file with the same id.
func (r *MemoryRepository) Put(f *models.File) {
	c := *f
	c.ProcessedKeys = append([]string(nil), f.ProcessedKeys...)
	r.files.Set(c.ID, c)
}

func (r *MemoryRepository) Get(_ context.Context, fileID string) (*models.File, error) {
	f, ok := r.files.Get(fileID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	f.ProcessedKeys = append([]string(nil), f.ProcessedKeys...)
	return &f, nil
}

func (r *MemoryRepository) AppendProcessedKey(_ context.Context, fileID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files.Get(fileID)
	if !ok {
		return common.ErrorNotFound
	}
	f.ProcessedKeys = append(append([]string(nil), f.ProcessedKeys...), key)
	r.files.Set(fileID, f)
	return nil
}
