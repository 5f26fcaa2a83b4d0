package shares

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a grant. A second grant for the same (item, user) pair is a
// conflict.
func (r *PostgresRepository) Create(ctx context.Context, share *models.SharePermission) error {
	query := `
		INSERT INTO share_permissions (item_id, shared_with_user_id, permission_level)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, share.ItemID, share.SharedWithUserID, string(share.Level)).
		Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Errorf(common.ErrorConflict, "item is already shared with this user")
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, itemID uuid.UUID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM share_permissions WHERE item_id = $1 AND shared_with_user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, itemID uuid.UUID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM share_permissions WHERE item_id = $1 AND shared_with_user_id = $2)`,
		itemID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) CountForItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM share_permissions WHERE item_id = $1`, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListForItem(ctx context.Context, itemID uuid.UUID) ([]*models.SharePermission, error) {
	query := `
		SELECT id, item_id, shared_with_user_id, permission_level, created_at
		  FROM share_permissions
		 WHERE item_id = $1
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SharePermission
	for rows.Next() {
		var (
			s     models.SharePermission
			level string
		)
		if err := rows.Scan(&s.ID, &s.ItemID, &s.SharedWithUserID, &level, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Level = models.PermissionLevel(level)
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
