package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const defaultPageLimit = 100

// Page is an offset window. A zero Limit means defaultPageLimit.
type Page struct {
	Skip  int `validate:"gte=0"`
	Limit int `validate:"gte=0,lte=1000"`
}

func (p Page) normalize() (Page, error) {
	if err := validateInput(p); err != nil {
		return p, err
	}
	if p.Limit == 0 {
		p.Limit = defaultPageLimit
	}
	return p, nil
}

// AdminService exposes unrestricted read and delete operations to admins.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	log         logging.Logger
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, log logging.Logger) *AdminService {
	return &AdminService{db: db, repomanager: m, blobs: blobs, log: log.With("module", "admin")}
}

func (s *AdminService) ListUsers(ctx context.Context, caller *models.Caller, p Page) ([]*models.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx, p.Skip, p.Limit)
}

func (s *AdminService) GetUser(ctx context.Context, caller *models.Caller, id int64) (*models.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user %d not found", id)
	}
	return u, nil
}

func (s *AdminService) ListUserItems(ctx context.Context, caller *models.Caller, userID int64, includeTrashed bool) ([]*models.Item, error) {
	if _, err := s.GetUser(ctx, caller, userID); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).ListByOwner(ctx, userID, includeTrashed)
}

// ListItems pages through every item, newest first.
func (s *AdminService) ListItems(ctx context.Context, caller *models.Caller, p Page) ([]*models.Item, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).List(ctx, p.Skip, p.Limit)
}

func (s *AdminService) GetItem(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.Item, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	it, err := s.repomanager.Items(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "item %s not found", id)
	}
	return it, nil
}

// PurgeItem deletes any item with its subtree and payloads, trashed or not,
// locked or not.
func (s *AdminService) PurgeItem(ctx context.Context, caller *models.Caller, id uuid.UUID) (int, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, err
	}

	var n int
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		it, err := repo.GetByID(ctx, id)
		if err != nil {
			return notFound(err, "item %s not found", id)
		}
		n, err = purgeSubtree(ctx, repo, s.blobs, it)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Warn(ctx, "item purged by admin", "item_id", id, "admin_id", caller.User.ID, "removed", n)
	return n, nil
}
