package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"id", "username", "email", "full_name", "role", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT INTO users \(id, username, email, full_name, role\).*ON CONFLICT \(id\) DO UPDATE.*RETURNING created_at, updated_at`).
		WithArgs(int64(7), "alice", "alice@uni.edu", "Alice", "STUDENT").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &models.User{ID: 7, Username: "alice", Email: "alice@uni.edu", FullName: "Alice", Role: models.RoleStudent}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{ID: 7, Username: "alice", Role: models.RoleStudent})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^UPDATE users SET username = \$2.*WHERE id = \$1`).
		WithArgs(int64(7), "alice2", "a2@uni.edu", "Alice", "TEACHER").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery(`UPDATE users`).WillReturnError(sql.ErrNoRows)

	u := &models.User{ID: 7, Username: "alice2", Email: "a2@uni.edu", FullName: "Alice", Role: models.RoleTeacher}
	require.NoError(t, repo.Update(context.Background(), u))
	assert.Equal(t, now, u.UpdatedAt)

	err := repo.Update(context.Background(), &models.User{ID: 8})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, email, full_name, role, created_at, updated_at FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "alice", "a@uni.edu", "Alice", "ADMIN", now, now))

	u, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.IsAdmin())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByUsername_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("bob").WillReturnError(errors.New("db down"))

	_, err := repo.GetByUsername(context.Background(), "bob")
	assert.ErrorContains(t, err, "db error: db down")
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM users ORDER BY id OFFSET \$1 LIMIT \$2`).
		WithArgs(0, 2).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(1), "a", "a@x", "", "ADMIN", now, now).
			AddRow(int64(2), "b", "b@x", "", "STUDENT", now, now))

	got, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Username)
}
