// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the locally cached authorization role of a user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// User is the local copy of an externally issued identity. The id is
// assigned by the identity provider.
type User struct {
	ID        int64
	Username  string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Identity is a validated identity assertion returned by the identity
// provider.
type Identity struct {
	UserID       int64
	Username     string
	Email        string
	FullName     string
	IsAdmin      bool
	UserType     string
	DepartmentID *int64
}

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	User *User
	// DepartmentID comes from the identity assertion, not from the local
	// cache.
	DepartmentID *int64
	// Token is forwarded to collaborators that authorize on the caller's
	// behalf.
	Token string
}
