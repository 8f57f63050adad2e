package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/photomagic/internal/dbx"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/files"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/users"
)

// MemoryRepositoryManager hands out the same in-memory repositories on
// every call, so all callers see one dataset.
type MemoryRepositoryManager struct {
	tasks *tasks.MemoryRepository
	files *files.MemoryRepository
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		tasks: tasks.NewMemoryRepository(),
		files: files.NewMemoryRepository(),
		users: users.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Tasks(*sql.DB) tasks.Repository { return m.tasks }

func (m *MemoryRepositoryManager) Files(dbx.DBTX) files.Repository { return m.files }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

// FileStore and UserStore expose the concrete stores for seeding.
func (m *MemoryRepositoryManager) FileStore() *files.MemoryRepository { return m.files }

func (m *MemoryRepositoryManager) UserStore() *users.MemoryRepository { return m.users }
