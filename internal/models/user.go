package models

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the access level carried in a user's token.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleVendor    Role = "vendor"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes value and reports whether it names a known role.
func ParseRole(value string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleAttendee, RoleVendor, RoleOrganizer, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// User represents an account of any role.
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `gorm:"size:16;not null;default:attendee" json:"role"`
}

// Identity is the authenticated caller of a single request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// Is reports whether the identity holds the given role.
func (i Identity) Is(role Role) bool {
	return i.Role == role
}
