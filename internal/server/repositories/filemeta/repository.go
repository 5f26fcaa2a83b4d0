package filemeta

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, meta *models.FileMetadata) error
	GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.FileMetadata, error)
}
