package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	notifySigningApproved = "SIGNING_APPROVED"
	notifySigningRejected = "SIGNING_REJECTED"
	priorityHigh          = "HIGH"

	pdfMimeType = "application/pdf"
)

// Notifier delivers a single notification.
type Notifier interface {
	Notify(ctx context.Context, token string, n models.Notification) error
}

// SigningService runs the DRAFT -> PENDING -> APPROVED|REJECTED workflow.
type SigningService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	log         logging.Logger
}

func NewSigningService(db *sql.DB, m repomanager.RepositoryManager, n Notifier, log logging.Logger) *SigningService {
	return &SigningService{db: db, repomanager: m, notifier: n, log: log.With("module", "signing")}
}

func isPDF(it *models.Item) bool {
	if strings.HasSuffix(strings.ToLower(it.Name), ".pdf") {
		return true
	}
	return it.File != nil && it.File.MimeType == pdfMimeType
}

// Create opens a DRAFT request for a PDF the caller owns. Admins may open
// requests for any file.
func (s *SigningService) Create(ctx context.Context, caller *models.Caller, itemID uuid.UUID, approverID *int64) (*models.SigningRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.User.IsStudent() {
		return nil, common.Errorf(common.ErrorForbidden, "only lecturers and admins can request signatures")
	}

	req := &models.SigningRequest{
		ID:          uuid.New(),
		ItemID:      itemID,
		RequesterID: caller.User.ID,
		ApproverID:  approverID,
		Status:      models.SigningDraft,
	}
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		it, err := s.repomanager.Items(tx).GetByID(ctx, itemID)
		if err != nil {
			return notFound(err, "item %s not found", itemID)
		}
		if it.OwnerID != caller.User.ID && !caller.User.IsAdmin() {
			return common.Errorf(common.ErrorForbidden, "you can only request signatures for your own files")
		}
		if it.IsFolder() {
			return common.Errorf(common.ErrorBadRequest, "only files can be signed")
		}
		if !isPDF(it) {
			return common.Errorf(common.ErrorBadRequest, "only PDF files can be signed")
		}
		if it.Trashed {
			return common.Errorf(common.ErrorBadRequest, "item %q is in trash", it.Name)
		}
		if approverID != nil {
			if _, err := s.repomanager.Users(tx).GetByID(ctx, *approverID); err != nil {
				return notFound(err, "approver %d not found", *approverID)
			}
		}

		repo := s.repomanager.SigningRequests(tx)
		open, err := repo.HasOpenForItem(ctx, itemID)
		if err != nil {
			return err
		}
		if open {
			return common.Errorf(common.ErrorConflict, "an open signing request already exists for %q", it.Name)
		}
		req.FileName = it.Name
		return repo.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	req.RequesterName = caller.User.FullName
	return req, nil
}

// Submit moves a DRAFT request to PENDING.
func (s *SigningService) Submit(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.SigningRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, func(req *models.SigningRequest) error {
		if req.RequesterID != caller.User.ID && !caller.User.IsAdmin() {
			return common.Errorf(common.ErrorForbidden, "only the requester can submit this request")
		}
		if req.Status != models.SigningDraft {
			return common.Errorf(common.ErrorBadRequest, "request is %s, only DRAFT requests can be submitted", req.Status)
		}
		req.Status = models.SigningPending
		return nil
	})
}

func (s *SigningService) Approve(ctx context.Context, caller *models.Caller, id uuid.UUID, comment *string) (*models.SigningRequest, error) {
	return s.decide(ctx, caller, id, comment, models.SigningApproved)
}

func (s *SigningService) Reject(ctx context.Context, caller *models.Caller, id uuid.UUID, comment *string) (*models.SigningRequest, error) {
	return s.decide(ctx, caller, id, comment, models.SigningRejected)
}

func (s *SigningService) decide(ctx context.Context, caller *models.Caller, id uuid.UUID, comment *string, to models.SigningStatus) (*models.SigningRequest, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	req, err := s.transition(ctx, id, func(req *models.SigningRequest) error {
		if req.Status != models.SigningPending {
			return common.Errorf(common.ErrorBadRequest, "request is %s, only PENDING requests can be decided", req.Status)
		}
		req.Status = to
		req.ApproverID = &caller.User.ID
		req.AdminComment = comment
		if to == models.SigningApproved {
			ts := now()
			req.ApprovedAt = &ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRequester(ctx, caller, req)
	return req, nil
}

// transition locks the request row, lets apply validate and mutate it, and
// persists the result in the same transaction.
func (s *SigningService) transition(ctx context.Context, id uuid.UUID, apply func(*models.SigningRequest) error) (*models.SigningRequest, error) {
	var out *models.SigningRequest
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.SigningRequests(tx)
		req, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFound(err, "signing request %s not found", id)
		}
		if err := apply(req); err != nil {
			return err
		}
		if err := repo.Update(ctx, req); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "signing request updated", "request_id", id, "status", out.Status)
	return out, nil
}

func (s *SigningService) notifyRequester(ctx context.Context, caller *models.Caller, req *models.SigningRequest) {
	n := models.Notification{
		RecipientID: req.RequesterID,
		Priority:    priorityHigh,
		Metadata: map[string]any{
			"request_id": req.ID.String(),
			"item_id":    req.ItemID.String(),
		},
	}
	switch req.Status {
	case models.SigningApproved:
		n.Type = notifySigningApproved
		n.Title = "Signing request approved"
		n.Message = fmt.Sprintf("Your request to sign %q was approved", req.FileName)
	default:
		n.Type = notifySigningRejected
		n.Title = "Signing request rejected"
		n.Message = fmt.Sprintf("Your request to sign %q was rejected", req.FileName)
	}
	if req.AdminComment != nil && *req.AdminComment != "" {
		n.Message += ": " + *req.AdminComment
	}

	if err := s.notifier.Notify(ctx, caller.Token, n); err != nil {
		s.log.Warn(ctx, "signing notification failed", "request_id", req.ID, "error", err)
	}
}

// Get returns a request to its requester or to an admin.
func (s *SigningService) Get(ctx context.Context, caller *models.Caller, id uuid.UUID) (*models.SigningRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	req, err := s.repomanager.SigningRequests(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "signing request %s not found", id)
	}
	if req.RequesterID != caller.User.ID && !caller.User.IsAdmin() {
		return nil, common.Errorf(common.ErrorNotFound, "signing request %s not found", id)
	}
	return req, nil
}

// ListMine returns the caller's requests, newest first.
func (s *SigningService) ListMine(ctx context.Context, caller *models.Caller) ([]*models.SigningRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.repomanager.SigningRequests(s.db).ListByRequester(ctx, caller.User.ID)
}

// ListPending returns the review queue, oldest first.
func (s *SigningService) ListPending(ctx context.Context, caller *models.Caller) ([]*models.SigningRequest, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repomanager.SigningRequests(s.db).ListByStatus(ctx, models.SigningPending)
}
