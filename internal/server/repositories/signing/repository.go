package signing

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, req *models.SigningRequest) error
	// GetByID returns the request with file, requester and approver names.
	GetByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error)
	// LockByID reads the request row with FOR UPDATE; it must run in a
	// transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error)
	Update(ctx context.Context, req *models.SigningRequest) error
	HasOpenForItem(ctx context.Context, itemID uuid.UUID) (bool, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]*models.SigningRequest, error)
	ListByStatus(ctx context.Context, status models.SigningStatus) ([]*models.SigningRequest, error)
}
