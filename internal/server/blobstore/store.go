// Package blobstore persists file payloads outside the relational store.
// Rows in file_metadata name a key; the key's payload is owned by that row.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/server/config"
	"github.com/google/uuid"
)

// Store writes and removes payloads by key. Delete of a missing key is not an
// error.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a fresh key for a payload owned by ownerID.
func NewStorageKey(ownerID int64, now time.Time) string {
	return fmt.Sprintf("users/%d/%04d/%02d/%02d/%s", ownerID, now.Year(), now.Month(), now.Day(), uuid.New())
}

// New builds the backend selected by cfg.BlobBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return NewS3Store(ctx, S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.BlobBackendMinio:
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.S3RootUser,
			SecretKey: cfg.S3RootPassword,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
