package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	id  *models.Identity
	err error
}

func (p *fakeProvider) Validate(ctx context.Context, token string) (*models.Identity, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := *p.id
	return &out, nil
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestMapRole(t *testing.T) {
	tests := []struct {
		isAdmin  bool
		userType string
		want     models.Role
	}{
		{true, "lecturer", models.RoleAdmin},
		{true, "student", models.RoleAdmin},
		{false, "lecturer", models.RoleTeacher},
		{false, "student", models.RoleStudent},
		{false, "", models.RoleStudent},
		{false, "Lecturer", models.RoleStudent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapRole(tt.isAdmin, tt.userType), "%v/%q", tt.isAdmin, tt.userType)
	}
}

func TestIdentity_Authenticate_SyncsUser(t *testing.T) {
	db, mock := newSQLMockDB(t)
	st := newMemStore()
	prov := &fakeProvider{id: &models.Identity{
		UserID: 42, Username: "lee", Email: "lee@uni.edu", FullName: "Dr. Lee",
		UserType: "lecturer", DepartmentID: ptr(int64(5)),
	}}
	svc := NewIdentityService(db, &fakeRepoManager{st: st}, prov, logging.Nop{})
	ctx := context.Background()

	// first call inserts, second finds nothing to change, third updates
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	caller, err := svc.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, caller.User.Role)
	assert.Equal(t, int64(5), *caller.DepartmentID)
	assert.Equal(t, "tok", caller.Token)
	assert.Equal(t, 1, st.userCreates)

	_, err = svc.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, st.userCreates)
	assert.Zero(t, st.userUpdates, "unchanged identity is not rewritten")

	prov.id.IsAdmin = true
	prov.id.Email = "lee@new.uni.edu"
	caller, err = svc.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, caller.User.Role)
	assert.Equal(t, 1, st.userUpdates)
	assert.Equal(t, "lee@new.uni.edu", st.users[42].Email)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentity_Authenticate_ProviderErrors(t *testing.T) {
	db, _ := newSQLMockDB(t)
	prov := &fakeProvider{err: common.Errorf(common.ErrorServiceUnavailable, "identity service timed out")}
	svc := NewIdentityService(db, &fakeRepoManager{st: newMemStore()}, prov, logging.Nop{})

	_, err := svc.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorServiceUnavailable)

	prov.err = common.Errorf(common.ErrorUnauthorized, "expired")
	_, err = svc.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = svc.Authenticate(context.Background(), "  ")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

type brokenUsers struct {
	users.Repository
}

func (brokenUsers) GetByID(context.Context, int64) (*models.User, error) {
	return nil, errors.New("db error: connection reset")
}

type brokenUsersManager struct {
	*fakeRepoManager
}

func (*brokenUsersManager) Users(dbx.DBTX) users.Repository { return brokenUsers{} }

func TestIdentity_Authenticate_PersistenceFailureRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	prov := &fakeProvider{id: &models.Identity{UserID: 1, Username: "a", Email: "a@uni.edu"}}
	svc := NewIdentityService(db, &brokenUsersManager{&fakeRepoManager{st: newMemStore()}}, prov, logging.Nop{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentity_Authenticate_UsernameClashIsServerError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	st := newMemStore()
	st.addUser(1, "ann", models.RoleStudent, nil)
	prov := &fakeProvider{id: &models.Identity{UserID: 2, Username: "ann", Email: "ann2@uni.edu"}}
	svc := NewIdentityService(db, &fakeRepoManager{st: st}, prov, logging.Nop{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Authenticate(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrorConflict)
	assert.Len(t, st.users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

// staleUsers never sees committed rows, like a transaction that read before a
// concurrent first login inserted the user.
type staleUsers struct {
	memUsers
}

func (staleUsers) GetByID(context.Context, int64) (*models.User, error) {
	return nil, common.ErrorNotFound
}

type staleUsersManager struct {
	*fakeRepoManager
}

func (m *staleUsersManager) Users(dbx.DBTX) users.Repository {
	return staleUsers{memUsers{m.st}}
}

func TestIdentity_Authenticate_ConcurrentFirstLogin(t *testing.T) {
	db, mock := newSQLMockDB(t)
	st := newMemStore()
	prov := &fakeProvider{id: &models.Identity{UserID: 9, Username: "kim", Email: "kim@uni.edu", FullName: "Kim"}}
	svc := NewIdentityService(db, &staleUsersManager{&fakeRepoManager{st: st}}, prov, logging.Nop{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	prov.id.FullName = "Kim Park"
	caller, err := svc.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, "Kim Park", caller.User.FullName)
	assert.Len(t, st.users, 1)
	assert.Equal(t, "Kim Park", st.users[9].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
