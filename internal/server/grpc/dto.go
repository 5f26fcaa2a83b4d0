package grpc

import (
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/services"
	"github.com/google/uuid"
)

// Requests.

type empty struct{}

type idRequest struct {
	ID uuid.UUID `json:"id"`
}

type parentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

type createFolderRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type updateItemRequest struct {
	ID       uuid.UUID  `json:"id"`
	Name     *string    `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
	ToRoot   bool       `json:"to_root"`
}

// Content is base64 in the JSON form.
type uploadRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
	MimeType string     `json:"mime_type"`
	Content  []byte     `json:"content"`
}

func (r *uploadRequest) input() services.UploadInput {
	return services.NewUploadInput(r.Name, r.ParentID, r.MimeType, r.Content)
}

type shareRequest struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type searchRequest struct {
	Name     string          `json:"name"`
	Type     models.ItemType `json:"type"`
	MimeType string          `json:"mime_type"`
}

type repositoryRequest struct {
	Type      models.RepositoryType `json:"repository_type"`
	ContextID int64                 `json:"context_id"`
	ParentID  *uuid.UUID            `json:"parent_id"`
}

type repositoryFolderRequest struct {
	repositoryRequest
	Name string `json:"name"`
}

type repositoryUploadRequest struct {
	repositoryRequest
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"content"`
}

func (r *repositoryUploadRequest) input() services.UploadInput {
	return services.NewUploadInput(r.Name, r.ParentID, r.MimeType, r.Content)
}

type signingCreateRequest struct {
	ItemID     uuid.UUID `json:"item_id"`
	ApproverID *int64    `json:"approver_id"`
}

type decisionRequest struct {
	ID      uuid.UUID `json:"id"`
	Comment *string   `json:"comment"`
}

type pageRequest struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func (r *pageRequest) page() services.Page { return services.Page{Skip: r.Skip, Limit: r.Limit} }

type userItemsRequest struct {
	UserID         int64 `json:"user_id"`
	IncludeTrashed bool  `json:"include_trashed"`
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

// Responses.

type list[T any] struct {
	Items []T `json:"items"`
}

func listOf[S any, T any](in []S, conv func(S) T) list[T] {
	out := list[T]{Items: make([]T, 0, len(in))}
	for _, v := range in {
		out.Items = append(out.Items, conv(v))
	}
	return out
}

type removedResponse struct {
	Removed int `json:"removed"`
}

type fileDTO struct {
	MimeType     string  `json:"mime_type"`
	Size         int64   `json:"size"`
	DocumentType *string `json:"document_type,omitempty"`
	Version      int     `json:"version"`
}

func toFile(m *models.FileMetadata) *fileDTO {
	if m == nil {
		return nil
	}
	return &fileDTO{MimeType: m.MimeType, Size: m.Size, DocumentType: m.DocumentType, Version: m.Version}
}

type itemDTO struct {
	ID                  uuid.UUID             `json:"id"`
	Name                string                `json:"name"`
	Type                models.ItemType       `json:"item_type"`
	ParentID            *uuid.UUID            `json:"parent_id"`
	OwnerID             int64                 `json:"owner_id"`
	OwnerCategory       models.OwnerCategory  `json:"owner_category"`
	Visibility          models.Visibility     `json:"visibility"`
	RepositoryType      models.RepositoryType `json:"repository_type"`
	RepositoryContextID *int64                `json:"repository_context_id"`
	Trashed             bool                  `json:"is_trashed"`
	TrashedAt           *time.Time            `json:"trashed_at"`
	Locked              bool                  `json:"is_locked"`
	SystemGenerated     bool                  `json:"is_system_generated"`
	ProcessStatus       models.ProcessStatus  `json:"process_status"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	File                *fileDTO              `json:"file,omitempty"`
}

func toItem(it *models.Item) itemDTO {
	return itemDTO{
		ID:                  it.ID,
		Name:                it.Name,
		Type:                it.Type,
		ParentID:            it.ParentID,
		OwnerID:             it.OwnerID,
		OwnerCategory:       it.OwnerCategory,
		Visibility:          it.Visibility,
		RepositoryType:      it.RepositoryType,
		RepositoryContextID: it.RepositoryContextID,
		Trashed:             it.Trashed,
		TrashedAt:           it.TrashedAt,
		Locked:              it.IsLocked,
		SystemGenerated:     it.IsSystemGenerated,
		ProcessStatus:       it.ProcessStatus,
		CreatedAt:           it.CreatedAt,
		UpdatedAt:           it.UpdatedAt,
		File:                toFile(it.File),
	}
}

type userDTO struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FullName  string      `json:"full_name"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toUser(u *models.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type shareDTO struct {
	ID               int64                  `json:"id"`
	ItemID           uuid.UUID              `json:"item_id"`
	SharedWithUserID int64                  `json:"shared_with_user_id"`
	Permission       models.PermissionLevel `json:"permission_level"`
	CreatedAt        time.Time              `json:"created_at"`
}

func toShare(p *models.SharePermission) shareDTO {
	return shareDTO{
		ID:               p.ID,
		ItemID:           p.ItemID,
		SharedWithUserID: p.SharedWithUserID,
		Permission:       p.Level,
		CreatedAt:        p.CreatedAt,
	}
}

type signingDTO struct {
	ID             uuid.UUID            `json:"id"`
	ItemID         uuid.UUID            `json:"item_id"`
	FileName       string               `json:"file_name"`
	RequesterID    int64                `json:"requester_id"`
	RequesterName  string               `json:"requester_name"`
	ApproverID     *int64               `json:"approver_id"`
	ApproverName   *string              `json:"approver_name"`
	Status         models.SigningStatus `json:"status"`
	AdminComment   *string              `json:"admin_comment"`
	SignedFilePath *string              `json:"signed_file_path"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	ApprovedAt     *time.Time           `json:"approved_at"`
}

func toSigning(r *models.SigningRequest) signingDTO {
	return signingDTO{
		ID:             r.ID,
		ItemID:         r.ItemID,
		FileName:       r.FileName,
		RequesterID:    r.RequesterID,
		RequesterName:  r.RequesterName,
		ApproverID:     r.ApproverID,
		ApproverName:   r.ApproverName,
		Status:         r.Status,
		AdminComment:   r.AdminComment,
		SignedFilePath: r.SignedFilePath,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ApprovedAt:     r.ApprovedAt,
	}
}

type unitDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func toClass(c models.Class) unitDTO { return unitDTO{ID: c.ID, Name: c.Name, Code: c.Code} }

type generatedFolderDTO struct {
	Path string  `json:"path"`
	Item itemDTO `json:"item"`
}

type generationDTO struct {
	Root             itemDTO              `json:"root"`
	Folders          []generatedFolderDTO `json:"folders"`
	SkippedSemesters []int                `json:"skipped_semesters"`
}

func toGeneration(g *services.GenerationSummary) generationDTO {
	out := generationDTO{
		Root:             toItem(g.Root),
		Folders:          make([]generatedFolderDTO, 0, len(g.Folders)),
		SkippedSemesters: g.SkippedSemesters,
	}
	if out.SkippedSemesters == nil {
		out.SkippedSemesters = []int{}
	}
	for _, f := range g.Folders {
		out.Folders = append(out.Folders, generatedFolderDTO{Path: f.Path, Item: toItem(f.Item)})
	}
	return out
}
