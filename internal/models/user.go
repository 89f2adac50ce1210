package models

import (
	"time"

	"github.com/google/uuid"
)

// GlobalRole represents a system-wide user role.
type GlobalRole string

const (
	RoleAdmin GlobalRole = "admin"
	RoleUser  GlobalRole = "user"
)

// Valid reports whether the role is one of the known global roles.
func (r GlobalRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a platform user. Users are created on registration or
// provisioned lazily when a booking references an unknown email.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	Role      GlobalRole `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
