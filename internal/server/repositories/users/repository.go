package users

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
)

type Repository interface {
	// Create inserts user, or overwrites the row with the same id.
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, skip, limit int) ([]*models.User, error)
}
