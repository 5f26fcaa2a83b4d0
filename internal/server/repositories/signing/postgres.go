package signing

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `r.request_id, r.drive_item_id, r.requester_id, r.approver_id, r.current_status,
       r.admin_comment, r.signed_file_path, r.created_at, r.updated_at, r.approved_at`

const selectDetailed = `SELECT ` + requestColumns + `,
       i.name, u.full_name, u.username, a.full_name
  FROM signing_requests r
  JOIN drive_items i ON i.item_id = r.drive_item_id
  JOIN users u ON u.id = r.requester_id
  LEFT JOIN users a ON a.id = r.approver_id`

type scanner interface{ Scan(...any) error }

func scanRequest(row scanner, detailed bool) (*models.SigningRequest, error) {
	var (
		req                              models.SigningRequest
		status                           string
		approverID                       sql.NullInt64
		comment, signedPath              sql.NullString
		approvedAt                       sql.NullTime
		requesterFullName, requesterName string
		approverName                     sql.NullString
	)
	dest := []any{&req.ID, &req.ItemID, &req.RequesterID, &approverID, &status,
		&comment, &signedPath, &req.CreatedAt, &req.UpdatedAt, &approvedAt}
	if detailed {
		dest = append(dest, &req.FileName, &requesterFullName, &requesterName, &approverName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	req.Status = models.SigningStatus(status)
	if approverID.Valid {
		req.ApproverID = &approverID.Int64
	}
	if comment.Valid {
		req.AdminComment = &comment.String
	}
	if signedPath.Valid {
		req.SignedFilePath = &signedPath.String
	}
	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}
	if detailed {
		req.RequesterName = requesterFullName
		if req.RequesterName == "" {
			req.RequesterName = requesterName
		}
		if approverName.Valid {
			req.ApproverName = &approverName.String
		}
	}
	return &req, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.SigningRequest) error {
	query := `
		INSERT INTO signing_requests (request_id, drive_item_id, requester_id, approver_id, current_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, req.ID, req.ItemID, req.RequesterID, req.ApproverID, string(req.Status)).
		Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.Errorf(common.ErrorConflict, "an open signing request already exists for this file")
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, selectDetailed+` WHERE r.request_id = $1`, id), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM signing_requests r WHERE r.request_id = $1 FOR UPDATE`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

// Update writes the workflow columns of req.
func (r *PostgresRepository) Update(ctx context.Context, req *models.SigningRequest) error {
	query := `
		UPDATE signing_requests
		   SET current_status = $2, approver_id = $3, admin_comment = $4, signed_file_path = $5,
		       approved_at = $6, updated_at = now()
		 WHERE request_id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		req.ID, string(req.Status), req.ApproverID, req.AdminComment, req.SignedFilePath, req.ApprovedAt,
	).Scan(&req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasOpenForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM signing_requests
			 WHERE drive_item_id = $1 AND current_status IN ('DRAFT', 'PENDING'))`, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.SigningRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SigningRequest
	for rows.Next() {
		req, err := scanRequest(rows, true)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByRequester returns the requester's requests, newest first.
func (r *PostgresRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*models.SigningRequest, error) {
	return r.list(ctx, selectDetailed+` WHERE r.requester_id = $1 ORDER BY r.created_at DESC`, requesterID)
}

// ListByStatus returns requests in status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status models.SigningStatus) ([]*models.SigningRequest, error) {
	return r.list(ctx, selectDetailed+` WHERE r.current_status = $1 ORDER BY r.created_at ASC`, string(status))
}
