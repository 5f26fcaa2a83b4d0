// Package services contains the server-side business logic of hpcdrive. Each
// service holds the database handle and the repository manager and runs its
// multi-step mutations through withTx, so repositories obtained from the
// transaction handle share one commit.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	withTx = dbx.WithTx
	now    = func() time.Time { return time.Now().UTC() }

	validate = validator.New(validator.WithRequiredStructEnabled())
)

const nameRules = "required,max=255,excludesall=/\\"

func validateName(name string) error {
	if strings.TrimSpace(name) != name {
		return common.Errorf(common.ErrorBadRequest, "name %q has leading or trailing spaces", name)
	}
	if err := validate.Var(name, nameRules); err != nil {
		return common.Errorf(common.ErrorBadRequest, "invalid name %q", name)
	}
	return nil
}

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return common.Errorf(common.ErrorBadRequest, "field %s fails %q", verrs[0].Field(), verrs[0].Tag())
		}
		return common.Errorf(common.ErrorBadRequest, "%v", err)
	}
	return nil
}

// notFound replaces a bare repository ErrorNotFound with a descriptive one.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.Errorf(common.ErrorNotFound, format, args...)
	}
	return err
}

func requireCaller(caller *models.Caller) error {
	if caller == nil || caller.User == nil {
		return common.Errorf(common.ErrorUnauthorized, "authentication required")
	}
	return nil
}

func requireAdmin(caller *models.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.User.IsAdmin() {
		return common.Errorf(common.ErrorForbidden, "admin role required")
	}
	return nil
}

func newItem(owner *models.User, name string, t models.ItemType, parentID *uuid.UUID) *models.Item {
	ts := now()
	return &models.Item{
		ID:             uuid.New(),
		Name:           name,
		Type:           t,
		Visibility:     models.VisibilityPrivate,
		CreatedAt:      ts,
		UpdatedAt:      ts,
		OwnerID:        owner.ID,
		OwnerCategory:  models.OwnerCategoryFor(owner.Role),
		RepositoryType: models.RepositoryPersonal,
		ProcessStatus:  models.ProcessReady,
		ParentID:       parentID,
	}
}

// checkSibling fails with Conflict when ownerID already has an item named
// name under parentID other than except.
func checkSibling(ctx context.Context, repo items.Repository, ownerID int64, parentID *uuid.UUID, name string, except *uuid.UUID) error {
	s, err := repo.FindSibling(ctx, ownerID, parentID, name)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil
	case err != nil:
		return err
	case except != nil && s.ID == *except:
		return nil
	}
	return common.Errorf(common.ErrorConflict, "an item named %q already exists in this folder", name)
}

// ownedItem loads id and hides it unless ownerID owns it.
func ownedItem(ctx context.Context, repo items.Repository, ownerID int64, id uuid.UUID) (*models.Item, error) {
	it, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "item %s not found", id)
	}
	if it.OwnerID != ownerID {
		return nil, common.Errorf(common.ErrorNotFound, "item %s not found", id)
	}
	return it, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func wrapInternal(op string, err error) error {
	if err == nil || common.Category(err) != common.ErrorInternal {
		return err
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
