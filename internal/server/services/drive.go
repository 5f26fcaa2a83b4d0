package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/policy"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ViewPolicy decides whether a caller may read a repository partition.
type ViewPolicy interface {
	CanView(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64) error
}

// UpdateInput renames and/or moves an item. A nil field keeps the current
// value; ToRoot moves the item to the top level.
type UpdateInput struct {
	Name     *string
	ParentID *uuid.UUID
	ToRoot   bool
}

// DriveService implements the personal drive: the folder tree, uploads, and
// the trash lifecycle.
type DriveService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	policy      RepositoryPolicy
	log         logging.Logger
}

func NewDriveService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, p RepositoryPolicy, log logging.Logger) *DriveService {
	return &DriveService{db: db, repomanager: m, blobs: blobs, policy: p, log: log.With("module", "drive")}
}

// personalFolder resolves a parent in the caller's personal drive.
func personalFolder(ctx context.Context, repo items.Repository, ownerID int64, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	p, err := ownedItem(ctx, repo, ownerID, *id)
	if err != nil {
		return notFound(err, "parent folder %s not found", *id)
	}
	if p.RepositoryType != models.RepositoryPersonal || p.Trashed {
		return common.Errorf(common.ErrorNotFound, "parent folder %s not found", *id)
	}
	if !p.IsFolder() {
		return common.Errorf(common.ErrorBadRequest, "parent %s is not a folder", *id)
	}
	return nil
}

func (s *DriveService) CreateFolder(ctx context.Context, caller *models.Caller, name string, parentID *uuid.UUID) (*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	item := newItem(caller.User, name, models.ItemTypeFolder, parentID)
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		if err := personalFolder(ctx, repo, caller.User.ID, parentID); err != nil {
			return err
		}
		if err := checkSibling(ctx, repo, caller.User.ID, parentID, name, nil); err != nil {
			return err
		}
		return repo.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListChildren returns the caller's non-trashed items directly under
// parentID, files before folders.
func (s *DriveService) ListChildren(ctx context.Context, caller *models.Caller, parentID *uuid.UUID) ([]*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	repo := s.repomanager.Items(s.db)
	if err := personalFolder(ctx, repo, caller.User.ID, parentID); err != nil {
		return nil, err
	}
	return repo.ListChildren(ctx, items.ChildFilter{
		OwnerID:        &caller.User.ID,
		ParentID:       parentID,
		RepositoryType: models.RepositoryPersonal,
	})
}

// GetItem returns the item if the caller may see it. The owner always may;
// anyone else only while it is not trashed and either shared with them or
// readable under its repository policy. Everything else is NotFound.
func (s *DriveService) GetItem(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.visibleItem(ctx, s.db, caller, id)
}

func (s *DriveService) visibleItem(ctx context.Context, db dbx.DBTX, caller *models.Caller, id uuid.UUID) (*models.Item, error) {
	it, err := s.repomanager.Items(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "item %s not found", id)
	}
	if it.OwnerID == caller.User.ID {
		return it, nil
	}
	hidden := common.Errorf(common.ErrorNotFound, "item %s not found", id)
	if it.Trashed {
		return nil, hidden
	}

	shared, err := s.repomanager.Shares(db).Exists(ctx, id, caller.User.ID)
	if err != nil {
		return nil, err
	}
	if shared {
		return it, nil
	}

	if it.RepositoryType != models.RepositoryPersonal {
		err := s.policy.CanView(ctx, caller, it.RepositoryType, policy.ContextOf(it))
		switch {
		case err == nil:
			return it, nil
		case errors.Is(err, common.ErrorServiceUnavailable):
			return nil, err
		}
	}
	return nil, hidden
}

// GetFileMetadata returns the payload description of a FILE visible to the
// caller.
func (s *DriveService) GetFileMetadata(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.FileMetadata, error) {
	it, err := s.GetItem(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if it.IsFolder() {
		return nil, common.Errorf(common.ErrorBadRequest, "item %s is a folder", id)
	}
	if it.File != nil {
		return it.File, nil
	}
	meta, err := s.repomanager.FileMetadata(s.db).GetByItemID(ctx, id)
	if err != nil {
		return nil, notFound(err, "metadata of %s not found", id)
	}
	return meta, nil
}

// Update renames and/or moves an item. A request that changes nothing
// returns the item as is.
func (s *DriveService) Update(ctx context.Context, caller *models.Caller, id uuid.UUID, in UpdateInput) (*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return nil, err
		}
	}

	var out *models.Item
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		it, err := ownedItem(ctx, repo, caller.User.ID, id)
		if err != nil {
			return err
		}

		name, parent := it.Name, it.ParentID
		if in.Name != nil {
			name = *in.Name
		}
		switch {
		case in.ToRoot:
			parent = nil
		case in.ParentID != nil:
			parent = in.ParentID
		}
		if name == it.Name && sameParent(parent, it.ParentID) {
			out = it
			return nil
		}
		if it.IsLocked {
			return common.Errorf(common.ErrorForbidden, "item %q is locked", it.Name)
		}

		if parent == nil && it.RepositoryType != models.RepositoryPersonal {
			return common.Errorf(common.ErrorBadRequest, "repository items cannot be moved to the top level")
		}
		if !sameParent(parent, it.ParentID) && parent != nil {
			if err := s.checkMoveTarget(ctx, repo, caller, it, *parent); err != nil {
				return err
			}
		}
		if err := checkSibling(ctx, repo, caller.User.ID, parent, name, &it.ID); err != nil {
			return err
		}

		it.Name, it.ParentID = name, parent
		if err := repo.Update(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkMoveTarget resolves the folder it moves into. Personal items move
// between the caller's own folders; repository items move to any folder of
// the same repository the caller may upload into.
func (s *DriveService) checkMoveTarget(ctx context.Context, repo items.Repository, caller *models.Caller, it *models.Item, parentID uuid.UUID) error {
	var target *models.Item
	if it.RepositoryType == models.RepositoryPersonal {
		p, err := ownedItem(ctx, repo, caller.User.ID, parentID)
		if err != nil {
			return notFound(err, "parent folder %s not found", parentID)
		}
		if !p.IsFolder() {
			return common.Errorf(common.ErrorBadRequest, "parent %s is not a folder", parentID)
		}
		if p.Trashed || !p.InRepository(it.RepositoryType, it.RepositoryContextID) {
			return common.Errorf(common.ErrorNotFound, "parent folder %s not found", parentID)
		}
		target = p
	} else {
		contextID := policy.ContextOf(it)
		if err := s.policy.CanUpload(ctx, caller, it.RepositoryType, contextID); err != nil {
			return err
		}
		p, err := repositoryFolder(ctx, repo, it.RepositoryType, contextID, &parentID)
		if err != nil {
			return err
		}
		target = p
	}

	cycle, err := isDescendant(ctx, repo, it.ID, target)
	if err != nil {
		return err
	}
	if cycle {
		return common.Errorf(common.ErrorBadRequest, "cannot move %q into itself or one of its subfolders", it.Name)
	}
	return nil
}

// Trash marks a single item as trashed. Its children are left untouched and
// disappear from listings only through their parent.
func (s *DriveService) Trash(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.Item, error) {
	return s.setTrashed(ctx, caller, id, true)
}

func (s *DriveService) Restore(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.Item, error) {
	return s.setTrashed(ctx, caller, id, false)
}

func (s *DriveService) setTrashed(ctx context.Context, caller *models.Caller, id uuid.UUID, trashed bool) (*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var out *models.Item
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		it, err := ownedItem(ctx, repo, caller.User.ID, id)
		if err != nil {
			return err
		}
		switch {
		case trashed && it.Trashed:
			return common.Errorf(common.ErrorBadRequest, "item %q is already in trash", it.Name)
		case !trashed && !it.Trashed:
			return common.Errorf(common.ErrorBadRequest, "item %q is not in trash", it.Name)
		case trashed && it.IsLocked:
			return common.Errorf(common.ErrorForbidden, "item %q is locked", it.Name)
		}

		it.Trashed = trashed
		it.TrashedAt = nil
		if trashed {
			ts := now()
			it.TrashedAt = &ts
		}
		if err := repo.Update(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrash returns the caller's trashed items, most recently trashed first.
func (s *DriveService) ListTrash(ctx context.Context, caller *models.Caller) ([]*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).ListTrashed(ctx, caller.User.ID)
}

// Purge permanently deletes a trashed item, its subtree and their payloads.
// It returns the number of items removed.
func (s *DriveService) Purge(ctx context.Context, caller *models.Caller, id uuid.UUID) (int, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}

	var n int
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		it, err := ownedItem(ctx, repo, caller.User.ID, id)
		if err != nil {
			return err
		}
		if !it.Trashed {
			return common.Errorf(common.ErrorBadRequest, "item %q must be trashed before it can be deleted", it.Name)
		}
		if it.IsLocked {
			return common.Errorf(common.ErrorForbidden, "item %q is locked", it.Name)
		}
		n, err = purgeSubtree(ctx, repo, s.blobs, it)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "item purged", "item_id", id, "owner_id", caller.User.ID, "removed", n)
	return n, nil
}

// EmptyTrash permanently deletes every trashed item of the caller. Items that
// sit inside another trashed item's subtree are removed with that ancestor.
// It returns the number of top-level items removed.
func (s *DriveService) EmptyTrash(ctx context.Context, caller *models.Caller) (int, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}

	var removed int
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		trashed, err := repo.ListTrashed(ctx, caller.User.ID)
		if err != nil {
			return err
		}

		trees := make([][]*models.Item, len(trashed))
		covered := map[uuid.UUID]int{}
		for i, it := range trashed {
			if trees[i], err = subtree(ctx, repo, it); err != nil {
				return err
			}
			for _, n := range trees[i][1:] {
				covered[n.ID]++
			}
		}

		for i, it := range trashed {
			if covered[it.ID] > 0 {
				continue
			}
			if err := repo.Delete(ctx, it.ID); err != nil {
				return notFound(err, "item %s not found", it.ID)
			}
			if err := deletePayloads(ctx, s.blobs, trees[i]); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "trash emptied", "owner_id", caller.User.ID, "removed", removed)
	return removed, nil
}
