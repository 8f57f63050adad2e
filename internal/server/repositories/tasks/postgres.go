package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/dbx"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) error {
	if task.State() != models.StateProcessing {
		return fmt.Errorf("%w: new task must be processing", common.ErrInvalidInput)
	}

	query :=
		`INSERT INTO tasks (task_id, owner_id, file_id, kind, state, created_at, updated_at, result, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL)
		 ON CONFLICT (task_id) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.FileID, string(task.Kind), string(models.StateProcessing), task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := dbx.AffectedRows(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id string, result models.TaskResult) error {
	return r.advance(ctx, id, models.Succeeded(result))
}

func (r *PostgresRepository) Fail(ctx context.Context, id string, msg string) error {
	return r.advance(ctx, id, models.Failed(msg))
}

// advance locks the row, rejects terminal records and writes the whole
// terminal field set in one statement.
func (r *PostgresRepository) advance(ctx context.Context, id string, o models.Outcome) error {
	var resultArg, errorArg any
	if res, ok := o.Result(); ok {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultArg = string(b)
	}
	if msg, ok := o.FailureMessage(); ok {
		errorArg = msg
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var state string
		err := tx.QueryRowContext(ctx, `SELECT state FROM tasks WHERE task_id = $1 FOR UPDATE`, id).Scan(&state)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if models.TaskState(state).Terminal() {
			return common.ErrTaskTerminal
		}

		query :=
			`UPDATE tasks SET state = $2, updated_at = $3, result = $4, error = $5
			 WHERE task_id = $1 AND state = 'processing'
			 `
		res, err := tx.ExecContext(ctx, query, id, string(o.State()), r.now().UTC(), resultArg, errorArg)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := dbx.AffectedRows(res)
		if err != nil {
			return err
		}
		if n != 1 {
			return common.ErrTaskTerminal
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	query :=
		`SELECT task_id, owner_id, file_id, kind, state, created_at, updated_at, result, error
		 FROM tasks WHERE task_id = $1
		 `

	var (
		t          models.Task
		kind       string
		state      string
		resultJSON []byte
		errMsg     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.OwnerID, &t.FileID, &kind, &state, &t.CreatedAt, &t.UpdatedAt, &resultJSON, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Kind = models.TaskKind(kind)

	var result *models.TaskResult
	if resultJSON != nil {
		result = &models.TaskResult{}
		if err := json.Unmarshal(resultJSON, result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	var msg *string
	if errMsg.Valid {
		msg = &errMsg.String
	}

	t.Outcome, err = models.OutcomeFor(models.TaskState(state), result, msg)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return &t, nil
}
