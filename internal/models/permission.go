package models

import "github.com/google/uuid"

// RoomRole is a role scoped to a single room via RoomPermission.
type RoomRole string

const (
	RoomRoleAdmin RoomRole = "admin"
	RoomRoleUser  RoomRole = "user"
)

// Valid reports whether the role is one of the known room roles.
func (r RoomRole) Valid() bool {
	return r == RoomRoleAdmin || r == RoomRoleUser
}

// RoomPermission grants a user (by email) a delegated role on one room.
// Unique per (roomId, userEmail); re-adding the same pair overwrites the role.
// It scopes authorization only and does not imply booking ownership.
type RoomPermission struct {
	RoomID    uuid.UUID `json:"roomId"`
	UserEmail string    `json:"userEmail"`
	Role      RoomRole  `json:"role"`
}
