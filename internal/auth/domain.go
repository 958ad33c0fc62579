package auth

import (
	"time"

	"github.com/sunlease/portal/internal/identity"
)

// User represents a portal account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         identity.Role
	Status       identity.Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the account into the identity handed to sessions.
func (u *User) Identity(perms identity.PermissionMap) *identity.Identity {
	return &identity.Identity{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		Permissions: perms,
	}
}
