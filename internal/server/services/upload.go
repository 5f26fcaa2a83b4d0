package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const defaultMimeType = "application/octet-stream"

// UploadInput is a file to store. Content is read once.
type UploadInput struct {
	Name     string `validate:"required,max=255,excludesall=/\\"`
	ParentID *uuid.UUID
	MimeType string `validate:"omitempty,max=255"`
	Size     int64  `validate:"gte=0"`
	Content  io.Reader
}

// NewUploadInput wraps an in-memory payload.
func NewUploadInput(name string, parentID *uuid.UUID, mimeType string, content []byte) UploadInput {
	return UploadInput{
		Name:     name,
		ParentID: parentID,
		MimeType: mimeType,
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}
}

func (in *UploadInput) normalize() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if err := validateName(in.Name); err != nil {
		return err
	}
	if in.Content == nil {
		return common.Errorf(common.ErrorBadRequest, "upload %q has no content", in.Name)
	}
	if in.MimeType == "" {
		in.MimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(in.Name)))
	}
	if in.MimeType == "" {
		in.MimeType = defaultMimeType
	}
	return nil
}

// placement locates a new file: its partition and a resolver that returns the
// parent folder id inside the transaction.
type placement struct {
	repoType  models.RepositoryType
	contextID *int64
	parent    func(ctx context.Context, repo items.Repository) (*uuid.UUID, error)
}

// storeFile writes the payload, then records the FILE item and its metadata
// in one transaction. The payload is removed again when the transaction
// fails.
func storeFile(ctx context.Context, db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, log logging.Logger,
	caller *models.Caller, in UploadInput, pl placement) (*models.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	key := blobstore.NewStorageKey(caller.User.ID, now())
	if err := blobs.Put(ctx, key, in.Content, in.Size, in.MimeType); err != nil {
		return nil, common.Errorf(common.ErrorServiceUnavailable, "store payload: %v", err)
	}

	var item *models.Item
	err := withTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.Items(tx)
		parentID, err := pl.parent(ctx, repo)
		if err != nil {
			return err
		}
		if err := checkSibling(ctx, repo, caller.User.ID, parentID, in.Name, nil); err != nil {
			return err
		}

		item = newItem(caller.User, in.Name, models.ItemTypeFile, parentID)
		item.RepositoryType = pl.repoType
		item.RepositoryContextID = pl.contextID
		if err := repo.Create(ctx, item); err != nil {
			return err
		}

		item.File = &models.FileMetadata{
			ItemID:      item.ID,
			MimeType:    in.MimeType,
			Size:        in.Size,
			StoragePath: key,
			Version:     1,
		}
		return m.FileMetadata(tx).Create(ctx, item.File)
	})
	if err != nil {
		if derr := blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.Warn(ctx, "orphaned payload left in storage", "key", key, "error", derr)
		}
		return nil, err
	}

	log.Info(ctx, "file stored", "item_id", item.ID, "owner_id", caller.User.ID,
		"repository", item.RepositoryType, "size", in.Size)
	return item, nil
}

// Upload stores a file in the caller's personal drive.
func (s *DriveService) Upload(ctx context.Context, caller *models.Caller, in UploadInput) (*models.Item, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return storeFile(ctx, s.db, s.repomanager, s.blobs, s.log, caller, in, placement{
		repoType: models.RepositoryPersonal,
		parent: func(ctx context.Context, repo items.Repository) (*uuid.UUID, error) {
			return in.ParentID, personalFolder(ctx, repo, caller.User.ID, in.ParentID)
		},
	})
}
