package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SearchFilter narrows Search. Empty fields match everything.
type SearchFilter struct {
	Name     string          `validate:"max=255"`
	Type     models.ItemType `validate:"omitempty,oneof=FILE FOLDER"`
	MimeType string          `validate:"max=255"`
}

type SharingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewSharingService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *SharingService {
	return &SharingService{db: db, repomanager: m, log: log.With("module", "sharing")}
}

// Share grants VIEWER access on an owned item to the user named
// granteeUsername and marks the item SHARED.
func (s *SharingService) Share(ctx context.Context, caller *models.Caller, itemID uuid.UUID, granteeUsername string) (*models.SharePermission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var grant *models.SharePermission
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := s.repomanager.Items(tx)
		shareRepo := s.repomanager.Shares(tx)

		it, err := ownedItem(ctx, itemRepo, caller.User.ID, itemID)
		if err != nil {
			return err
		}
		grantee, err := s.repomanager.Users(tx).GetByUsername(ctx, granteeUsername)
		if err != nil {
			return notFound(err, "user %q not found", granteeUsername)
		}
		if grantee.ID == caller.User.ID {
			return common.Errorf(common.ErrorBadRequest, "you cannot share an item with yourself")
		}

		exists, err := shareRepo.Exists(ctx, it.ID, grantee.ID)
		if err != nil {
			return err
		}
		if exists {
			return common.Errorf(common.ErrorConflict, "item is already shared with %s", granteeUsername)
		}

		grant = &models.SharePermission{ItemID: it.ID, SharedWithUserID: grantee.ID, Level: models.PermissionViewer}
		if err := shareRepo.Create(ctx, grant); err != nil {
			return err
		}
		if it.Visibility != models.VisibilityShared {
			it.Visibility = models.VisibilityShared
			return itemRepo.Update(ctx, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "item shared", "item_id", itemID, "grantee_id", grant.SharedWithUserID)
	return grant, nil
}

// Unshare revokes a grant. The item turns PRIVATE again once no grant is
// left.
func (s *SharingService) Unshare(ctx context.Context, caller *models.Caller, itemID uuid.UUID, granteeUsername string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	return withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := s.repomanager.Items(tx)
		shareRepo := s.repomanager.Shares(tx)

		it, err := ownedItem(ctx, itemRepo, caller.User.ID, itemID)
		if err != nil {
			return err
		}
		grantee, err := s.repomanager.Users(tx).GetByUsername(ctx, granteeUsername)
		if err != nil {
			return notFound(err, "user %q not found", granteeUsername)
		}
		if err := shareRepo.Delete(ctx, it.ID, grantee.ID); err != nil {
			return notFound(err, "item is not shared with %s", granteeUsername)
		}

		left, err := shareRepo.CountForItem(ctx, it.ID)
		if err != nil {
			return err
		}
		if left == 0 && it.Visibility != models.VisibilityPrivate {
			it.Visibility = models.VisibilityPrivate
			return itemRepo.Update(ctx, it)
		}
		return nil
	})
}

func (s *SharingService) ListGrants(ctx context.Context, caller *models.Caller, itemID uuid.UUID) ([]*models.SharePermission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if _, err := ownedItem(ctx, s.repomanager.Items(s.db), caller.User.ID, itemID); err != nil {
		return nil, err
	}
	return s.repomanager.Shares(s.db).ListForItem(ctx, itemID)
}

// ListSharedWithMe returns non-trashed items other users granted to the
// caller.
func (s *SharingService) ListSharedWithMe(ctx context.Context, caller *models.Caller) ([]*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).ListSharedWith(ctx, caller.User.ID)
}

// Search looks through the caller's own and shared-with-them items.
func (s *SharingService) Search(ctx context.Context, caller *models.Caller, f SearchFilter) ([]*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateInput(f); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).Search(ctx, caller.User.ID, items.SearchFilter{
		Name:     f.Name,
		Type:     f.Type,
		MimeType: f.MimeType,
	})
}
