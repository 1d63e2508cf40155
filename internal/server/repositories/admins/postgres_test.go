package admins

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
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

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+admins\b.*ON\s+CONFLICT\s+DO\s+NOTHING$`
	now := time.Now()
	a := &models.Admin{ID: "a1", Email: "admin@x.com", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(q).WithArgs("a1", "admin@x.com", "h", now, now).WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec(q).WithArgs("a1", "admin@x.com", "h", now, now).WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, created)

	mock.ExpectExec(q).WillReturnError(errors.New("boom"))
	_, err = repo.Create(context.Background(), a)
	require.Error(t, err)
}

func TestGetByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)FROM\s+admins\s+WHERE\s+lower\(email\)\s*=\s*lower\(\$1\)$`
	now := time.Now()
	mock.ExpectQuery(q).WithArgs("Admin@X.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("a1", "admin@x.com", "h", now, now))
	mock.ExpectQuery(q).WithArgs("none@x.com").WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByEmail(context.Background(), "Admin@X.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	_, err = repo.GetByEmail(context.Background(), "none@x.com")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+admins\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("a1").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByID(context.Background(), "a1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdatePassword(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+admins\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1$`
	at := time.Now()

	mock.ExpectExec(q).WithArgs("a1", "h2", at).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePassword(context.Background(), "a1", "h2", at))

	mock.ExpectExec(q).WithArgs("a9", "h2", at).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdatePassword(context.Background(), "a9", "h2", at), common.ErrNotFound)
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+COUNT\(\*\)\s+FROM\s+admins$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
