package model

import (
	"github.com/google/uuid"
)

// User role constants
const (
	UserRoleAdmin     = "admin"
	UserRoleModerator = "moderator"
	UserRoleMember    = "member"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is the slice of the club member entity this subsystem reads. Account
// management lives elsewhere; notifications only need enough to enrich an
// actor and resolve a principal.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"`
	ProfilePicID *string   `json:"-" db:"profile_pic_id"`
	Status       string    `json:"status" db:"status"`
}
