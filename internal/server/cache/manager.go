package cache

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/tasks"
)

// Manager wraps a RepositoryManager so every tasks.Repository it vends
// reads through the cache. Other repositories are passed through.
type Manager struct {
	repomanager.RepositoryManager
	backend Backend
	ttl     time.Duration
	logger  logging.Logger
}

func WrapManager(inner repomanager.RepositoryManager, backend Backend, ttl time.Duration, logger logging.Logger) *Manager {
	return &Manager{RepositoryManager: inner, backend: backend, ttl: ttl, logger: logger}
}

func (m *Manager) Tasks(db *sql.DB) tasks.Repository {
	return NewTaskRepository(m.RepositoryManager.Tasks(db), m.backend, m.ttl, m.logger)
}
