package items

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

// ChildFilter selects non-trashed direct children of ParentID (nil = root).
// OwnerID and ContextID are applied only when non-nil.
type ChildFilter struct {
	OwnerID        *int64
	ParentID       *uuid.UUID
	RepositoryType models.RepositoryType
	ContextID      *int64
}

// SearchFilter narrows Search results. Empty fields are ignored.
type SearchFilter struct {
	Name     string
	Type     models.ItemType
	MimeType string
}

type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	// FindSibling returns the item owned by ownerID named name under
	// parentID, trashed or not.
	FindSibling(ctx context.Context, ownerID int64, parentID *uuid.UUID, name string) (*models.Item, error)
	GetRepositoryRoot(ctx context.Context, t models.RepositoryType, contextID int64) (*models.Item, error)
	ListChildren(ctx context.Context, f ChildFilter) ([]*models.Item, error)
	// ListAllChildren returns every direct child regardless of owner or
	// trash state.
	ListAllChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Item, error)
	ListTrashed(ctx context.Context, ownerID int64) ([]*models.Item, error)
	ListSharedWith(ctx context.Context, userID int64) ([]*models.Item, error)
	Search(ctx context.Context, userID int64, f SearchFilter) ([]*models.Item, error)
	ListByOwner(ctx context.Context, ownerID int64, includeTrashed bool) ([]*models.Item, error)
	List(ctx context.Context, skip, limit int) ([]*models.Item, error)
}
