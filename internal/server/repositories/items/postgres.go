package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements item storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectItem = `SELECT i.item_id, i.name, i.item_type, i.is_trashed, i.trashed_at, i.permission,
       i.created_at, i.updated_at, i.owner_id, i.owner_type, i.repository_type, i.repository_context_id,
       i.process_status, i.is_system_generated, i.is_locked, i.parent_id,
       f.mime_type, f.size, f.storage_path, f.document_type, f.version
  FROM drive_items i
  LEFT JOIN file_metadata f ON f.item_id = i.item_id`

// Listing order: item type, then byte-order name.
const (
	orderByTypeName = ` ORDER BY i.item_type, i.name COLLATE "C"`
	orderByName     = ` ORDER BY i.name COLLATE "C"`
)

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var (
		it                              models.Item
		itemType, visibility, ownerType string
		repoType, processStatus         string
		trashedAt                       sql.NullTime
		contextID                       sql.NullInt64
		parentID                        uuid.NullUUID
		mime, storagePath, documentType sql.NullString
		size                            sql.NullInt64
		version                         sql.NullInt32
	)
	err := row.Scan(&it.ID, &it.Name, &itemType, &it.Trashed, &trashedAt, &visibility,
		&it.CreatedAt, &it.UpdatedAt, &it.OwnerID, &ownerType, &repoType, &contextID,
		&processStatus, &it.IsSystemGenerated, &it.IsLocked, &parentID,
		&mime, &size, &storagePath, &documentType, &version)
	if err != nil {
		return nil, err
	}

	it.Type = models.ItemType(itemType)
	it.Visibility = models.Visibility(visibility)
	it.OwnerCategory = models.OwnerCategory(ownerType)
	it.RepositoryType = models.RepositoryType(repoType)
	it.ProcessStatus = models.ProcessStatus(processStatus)
	if trashedAt.Valid {
		t := trashedAt.Time
		it.TrashedAt = &t
	}
	if contextID.Valid {
		v := contextID.Int64
		it.RepositoryContextID = &v
	}
	if parentID.Valid {
		p := parentID.UUID
		it.ParentID = &p
	}
	if storagePath.Valid {
		it.File = &models.FileMetadata{
			ItemID:      it.ID,
			MimeType:    mime.String,
			Size:        size.Int64,
			StoragePath: storagePath.String,
			Version:     int(version.Int32),
		}
		if documentType.Valid {
			d := documentType.String
			it.File.DocumentType = &d
		}
	}
	return &it, nil
}

func (r *PostgresRepository) queryItems(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func conflict(err error, item *models.Item) error {
	if dbx.IsUniqueViolation(err) {
		return common.Errorf(common.ErrorConflict, "an item named %q already exists in this folder", item.Name)
	}
	return fmt.Errorf("db error: %w", err)
}

// Create inserts item. A sibling-name or repository-root collision is
// reported as common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO drive_items (item_id, name, item_type, is_trashed, trashed_at, permission, owner_id, owner_type,
			repository_type, repository_context_id, process_status, is_system_generated, is_locked, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		item.ID, item.Name, string(item.Type), item.Trashed, item.TrashedAt, string(item.Visibility),
		item.OwnerID, string(item.OwnerCategory), string(item.RepositoryType), item.RepositoryContextID,
		string(item.ProcessStatus), item.IsSystemGenerated, item.IsLocked, nullUUID(item.ParentID),
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return conflict(err, item)
	}
	return nil
}

// Update persists the mutable columns of item and refreshes UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE drive_items
		   SET name = $2, parent_id = $3, is_trashed = $4, trashed_at = $5, permission = $6,
		       process_status = $7, updated_at = now()
		 WHERE item_id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		item.ID, item.Name, nullUUID(item.ParentID), item.Trashed, item.TrashedAt,
		string(item.Visibility), string(item.ProcessStatus),
	).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return conflict(err, item)
	}
	return nil
}

// Delete removes the row; descendants, metadata, shares and signing requests
// go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drive_items WHERE item_id = $1`, id)
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

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return r.getOne(ctx, selectItem+` WHERE i.item_id = $1`, id)
}

func (r *PostgresRepository) FindSibling(ctx context.Context, ownerID int64, parentID *uuid.UUID, name string) (*models.Item, error) {
	return r.getOne(ctx, selectItem+` WHERE i.owner_id = $1 AND i.parent_id IS NOT DISTINCT FROM $2 AND i.name = $3`,
		ownerID, nullUUID(parentID), name)
}

func (r *PostgresRepository) GetRepositoryRoot(ctx context.Context, t models.RepositoryType, contextID int64) (*models.Item, error) {
	return r.getOne(ctx, selectItem+`
		WHERE i.repository_type = $1 AND i.repository_context_id = $2
		  AND i.parent_id IS NULL AND i.is_system_generated`,
		string(t), contextID)
}

func (r *PostgresRepository) ListChildren(ctx context.Context, f ChildFilter) ([]*models.Item, error) {
	var (
		where = []string{"NOT i.is_trashed", "i.repository_type = $1"}
		args  = []any{string(f.RepositoryType)}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ParentID == nil {
		where = append(where, "i.parent_id IS NULL")
	} else {
		add("i.parent_id = $%d", *f.ParentID)
	}
	if f.OwnerID != nil {
		add("i.owner_id = $%d", *f.OwnerID)
	}
	if f.ContextID != nil {
		add("i.repository_context_id = $%d", *f.ContextID)
	}

	query := selectItem + ` WHERE ` + strings.Join(where, " AND ") + orderByTypeName
	return r.queryItems(ctx, query, args...)
}

func (r *PostgresRepository) ListAllChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Item, error) {
	return r.queryItems(ctx, selectItem+` WHERE i.parent_id = $1`+orderByTypeName, parentID)
}

// ListTrashed returns the owner's trashed items, most recently trashed first.
func (r *PostgresRepository) ListTrashed(ctx context.Context, ownerID int64) ([]*models.Item, error) {
	return r.queryItems(ctx, selectItem+` WHERE i.owner_id = $1 AND i.is_trashed ORDER BY i.trashed_at DESC`, ownerID)
}

func (r *PostgresRepository) ListSharedWith(ctx context.Context, userID int64) ([]*models.Item, error) {
	query := selectItem + `
		JOIN share_permissions s ON s.item_id = i.item_id
		WHERE s.shared_with_user_id = $1 AND NOT i.is_trashed` + orderByTypeName
	return r.queryItems(ctx, query, userID)
}

// Search looks through items owned by or shared with userID. Name matching
// is a case-insensitive substring; a mime filter only matches files.
func (r *PostgresRepository) Search(ctx context.Context, userID int64, f SearchFilter) ([]*models.Item, error) {
	var (
		where = []string{
			"NOT i.is_trashed",
			`(i.owner_id = $1 OR EXISTS (
				SELECT 1 FROM share_permissions s WHERE s.item_id = i.item_id AND s.shared_with_user_id = $1))`,
		}
		args = []any{userID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Name != "" {
		add("i.name ILIKE $%d", "%"+escapeLike(f.Name)+"%")
	}
	if f.Type != "" {
		add("i.item_type = $%d", string(f.Type))
	}
	if f.MimeType != "" {
		add("f.mime_type ILIKE $%d", "%"+escapeLike(f.MimeType)+"%")
	}

	query := selectItem + ` WHERE ` + strings.Join(where, " AND ") + orderByName
	return r.queryItems(ctx, query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64, includeTrashed bool) ([]*models.Item, error) {
	query := selectItem + ` WHERE i.owner_id = $1 AND ($2::boolean OR NOT i.is_trashed) ORDER BY i.created_at DESC`
	return r.queryItems(ctx, query, ownerID, includeTrashed)
}

// List pages through every item, newest first.
func (r *PostgresRepository) List(ctx context.Context, skip, limit int) ([]*models.Item, error) {
	return r.queryItems(ctx, selectItem+` ORDER BY i.created_at DESC OFFSET $1 LIMIT $2`, skip, limit)
}
