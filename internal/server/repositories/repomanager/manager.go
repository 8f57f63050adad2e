package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/photomagic/internal/dbx"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/files"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/users"
)

// RepositoryManager vends repositories for one storage backend. The db
// arguments are ignored by backends that do not use SQL.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Tasks(db *sql.DB) tasks.Repository
	Files(db dbx.DBTX) files.Repository
	Users(db dbx.DBTX) users.Repository
}
