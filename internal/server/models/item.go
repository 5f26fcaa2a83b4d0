package models

import (
	"time"

	"github.com/google/uuid"
)

type ItemType string

const (
	ItemTypeFile   ItemType = "FILE"
	ItemTypeFolder ItemType = "FOLDER"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
)

// OwnerCategory snapshots the owner's role when the item was created.
type OwnerCategory string

const (
	OwnerStudent  OwnerCategory = "STUDENT"
	OwnerLecturer OwnerCategory = "LECTURER"
	OwnerAdmin    OwnerCategory = "ADMIN"
)

// OwnerCategoryFor maps a role to the category stored on new items.
func OwnerCategoryFor(r Role) OwnerCategory {
	switch r {
	case RoleAdmin:
		return OwnerAdmin
	case RoleTeacher:
		return OwnerLecturer
	default:
		return OwnerStudent
	}
}

// RepositoryType selects the storage partition and its permission policy.
type RepositoryType string

const (
	RepositoryPersonal   RepositoryType = "PERSONAL"
	RepositoryClass      RepositoryType = "CLASS"
	RepositoryDepartment RepositoryType = "DEPARTMENT"
)

func (t RepositoryType) Valid() bool {
	switch t {
	case RepositoryPersonal, RepositoryClass, RepositoryDepartment:
		return true
	}
	return false
}

// ProcessStatus is the malware-scan lifecycle of an uploaded payload. Uploads
// currently go straight to READY.
type ProcessStatus string

const (
	ProcessPendingUpload ProcessStatus = "PENDING_UPLOAD"
	ProcessScanning      ProcessStatus = "SCANNING"
	ProcessReady         ProcessStatus = "READY"
	ProcessInfected      ProcessStatus = "INFECTED"
	ProcessError         ProcessStatus = "ERROR"
)

// Item is a file or folder node.
type Item struct {
	ID                  uuid.UUID
	Name                string
	Type                ItemType
	Trashed             bool
	TrashedAt           *time.Time
	Visibility          Visibility
	CreatedAt           time.Time
	UpdatedAt           time.Time
	OwnerID             int64
	OwnerCategory       OwnerCategory
	RepositoryType      RepositoryType
	RepositoryContextID *int64
	ProcessStatus       ProcessStatus
	IsSystemGenerated   bool
	IsLocked            bool
	ParentID            *uuid.UUID

	// File is populated for FILE items when the query joins metadata.
	File *FileMetadata
}

func (i *Item) IsFolder() bool { return i.Type == ItemTypeFolder }

// InRepository reports whether the item belongs to the given partition.
func (i *Item) InRepository(t RepositoryType, contextID *int64) bool {
	if i.RepositoryType != t {
		return false
	}
	if i.RepositoryContextID == nil || contextID == nil {
		return i.RepositoryContextID == nil && contextID == nil
	}
	return *i.RepositoryContextID == *contextID
}
