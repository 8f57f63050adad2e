package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/dbx"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the file row. processed_keys is read as a JSON array so the
// driver does not need to know about Postgres arrays.
func (r *PostgresRepository) Get(ctx context.Context, fileID string) (*models.File, error) {
	query := `SELECT file_id, owner_id, original_key, width, height,
		COALESCE(to_json(processed_keys)::text, '[]'), created_at
		FROM files WHERE file_id = $1
		`

	f := &models.File{}
	var keys string
	err := r.db.QueryRowContext(ctx, query, fileID).
		Scan(&f.ID, &f.OwnerID, &f.OriginalKey, &f.Width, &f.Height, &keys, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}

	if err := json.Unmarshal([]byte(keys), &f.ProcessedKeys); err != nil {
		return nil, fmt.Errorf("decode processed keys: %w", err)
	}
	return f, nil
}

// AppendProcessedKey appends key to processed_keys. Exactly one row must
// be affected.
func (r *PostgresRepository) AppendProcessedKey(ctx context.Context, fileID, key string) error {
	query := `UPDATE files SET processed_keys = array_append(processed_keys, $2) WHERE file_id = $1`

	res, err := r.db.ExecContext(ctx, query, fileID, key)
	if err != nil {
		return fmt.Errorf("failed to append processed key: %w", err)
	}
	n, err := dbx.AffectedRows(res)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
