package models

import (
	"time"

	"github.com/google/uuid"
)

type PermissionLevel string

const (
	PermissionViewer PermissionLevel = "VIEWER"
	PermissionEditor PermissionLevel = "EDITOR"
)

// SharePermission grants a non-owner read access to one item.
type SharePermission struct {
	ID               int64
	ItemID           uuid.UUID
	SharedWithUserID int64
	Level            PermissionLevel
	CreatedAt        time.Time
}
