package models

import (
	"time"

	"github.com/google/uuid"
)

type SigningStatus string

const (
	SigningDraft    SigningStatus = "DRAFT"
	SigningPending  SigningStatus = "PENDING"
	SigningApproved SigningStatus = "APPROVED"
	SigningRejected SigningStatus = "REJECTED"
)

// Open reports whether the status still blocks a new request for the item.
func (s SigningStatus) Open() bool {
	return s == SigningDraft || s == SigningPending
}

// SigningRequest moves one file through DRAFT -> PENDING -> APPROVED|REJECTED.
type SigningRequest struct {
	ID             uuid.UUID
	ItemID         uuid.UUID
	RequesterID    int64
	ApproverID     *int64
	Status         SigningStatus
	AdminComment   *string
	SignedFilePath *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ApprovedAt     *time.Time

	// Filled by listing queries.
	FileName      string
	RequesterName string
	ApproverName  *string
}
