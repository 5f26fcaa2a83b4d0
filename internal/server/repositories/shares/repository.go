package shares

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, share *models.SharePermission) error
	Delete(ctx context.Context, itemID uuid.UUID, userID int64) error
	Exists(ctx context.Context, itemID uuid.UUID, userID int64) (bool, error)
	CountForItem(ctx context.Context, itemID uuid.UUID) (int, error)
	ListForItem(ctx context.Context, itemID uuid.UUID) ([]*models.SharePermission, error)
}
