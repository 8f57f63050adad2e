package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/dbx"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetEntitlement(ctx context.Context, ownerID string) (bool, error) {
	query :=
		`SELECT subscription_status FROM users
		 WHERE id = $1
		 `

	user := &models.User{ID: ownerID}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&user.SubscriptionStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return user.Entitled(), nil
}
