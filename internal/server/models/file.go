package models

import "github.com/google/uuid"

// FileMetadata describes the stored payload of a FILE item. The payload
// itself lives in blob storage under StoragePath.
type FileMetadata struct {
	ItemID       uuid.UUID
	MimeType     string
	Size         int64
	StoragePath  string
	DocumentType *string
	Version      int
}
