package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/auth"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
)

const userTypeLecturer = "lecturer"

// MapRole derives the local role from an identity assertion.
func MapRole(isAdmin bool, userType string) models.Role {
	switch {
	case isAdmin:
		return models.RoleAdmin
	case userType == userTypeLecturer:
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}

// IdentityService turns bearer tokens into callers and keeps the local users
// table in step with the identity provider.
type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    auth.IdentityProvider
	log         logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, p auth.IdentityProvider, log logging.Logger) *IdentityService {
	return &IdentityService{db: db, repomanager: m, provider: p, log: log.With("module", "identity")}
}

// Authenticate validates token and upserts the local user. The row is only
// written when username, email, full name or role changed.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*models.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, common.Errorf(common.ErrorUnauthorized, "missing bearer token")
	}

	id, err := s.provider.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	want := &models.User{
		ID:       id.UserID,
		Username: id.Username,
		Email:    id.Email,
		FullName: id.FullName,
		Role:     MapRole(id.IsAdmin, id.UserType),
	}

	var user *models.User
	err = withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.sync(ctx, tx, want)
		return err
	})
	if err != nil {
		s.log.Error(ctx, "user sync failed", "user_id", want.ID, "error", err)
		return nil, wrapInternal("sync user", err)
	}

	return &models.Caller{User: user, DepartmentID: id.DepartmentID, Token: token}, nil
}

func (s *IdentityService) sync(ctx context.Context, tx dbx.DBTX, want *models.User) (*models.User, error) {
	repo := s.repomanager.Users(tx)

	cur, err := repo.GetByID(ctx, want.ID)
	if errors.Is(err, common.ErrorNotFound) {
		if err := repo.Create(ctx, want); err != nil {
			return nil, identityClash(want, err)
		}
		s.log.Info(ctx, "user created", "user_id", want.ID, "role", want.Role)
		return want, nil
	}
	if err != nil {
		return nil, err
	}

	if cur.Username == want.Username && cur.Email == want.Email &&
		cur.FullName == want.FullName && cur.Role == want.Role {
		return cur, nil
	}

	cur.Username, cur.Email, cur.FullName, cur.Role = want.Username, want.Email, want.FullName, want.Role
	if err := repo.Update(ctx, cur); err != nil {
		return nil, identityClash(want, err)
	}
	return cur, nil
}

// identityClash reports a username or email collision with another local user
// as a server error.
func identityClash(want *models.User, err error) error {
	if errors.Is(err, common.ErrorConflict) {
		return common.Errorf(common.ErrorInternal, "user %d clashes with a stored user: %v", want.ID, err)
	}
	return err
}
