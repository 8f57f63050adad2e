package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const entitlementQ = `(?s)^SELECT\s+subscription_status\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1`

func TestGetEntitlement(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: "active", want: true},
		{status: "canceled", want: false},
		{status: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(entitlementQ).WithArgs("u1").
				WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow(tt.status))

			got, err := repo.GetEntitlement(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetEntitlement_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(entitlementQ).WithArgs("u1").WillReturnError(sql.ErrNoRows)

	got, err := repo.GetEntitlement(context.Background(), "u1")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	assert.False(t, got)
}

func TestGetEntitlement_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(entitlementQ).WithArgs("u1").WillReturnError(errors.New("db down"))

	_, err := repo.GetEntitlement(context.Background(), "u1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMemory_GetEntitlement(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(&models.User{ID: "u1", SubscriptionStatus: models.SubscriptionActive})
	repo.Put(&models.User{ID: "u2"})

	ok, err := repo.GetEntitlement(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.GetEntitlement(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetEntitlement(context.Background(), "u3")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
