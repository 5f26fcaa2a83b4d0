package filemeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the metadata row of a FILE item. It must run in the same
// transaction that created the item. A reused storage path is a conflict.
func (r *PostgresRepository) Create(ctx context.Context, meta *models.FileMetadata) error {
	if meta.Version == 0 {
		meta.Version = 1
	}
	query := `
		INSERT INTO file_metadata (item_id, mime_type, size, storage_path, document_type, version)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		meta.ItemID, meta.MimeType, meta.Size, meta.StoragePath, meta.DocumentType, meta.Version)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Errorf(common.ErrorConflict, "storage path %q is already in use", meta.StoragePath)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.FileMetadata, error) {
	query := `
		SELECT item_id, mime_type, size, storage_path, document_type, version
		  FROM file_metadata
		 WHERE item_id = $1`

	var (
		m       models.FileMetadata
		docType sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, itemID).
		Scan(&m.ItemID, &m.MimeType, &m.Size, &m.StoragePath, &docType, &m.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if docType.Valid {
		m.DocumentType = &docType.String
	}
	return &m, nil
}
