// Package authz decides whether a principal may perform an action on a room
// or booking. The resolver is pure with respect to its inputs: it reads the
// injected permission store and returns a boolean, never an HTTP error.
package authz

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/roomline/backend/internal/models"
)

// Action is an operation subject to authorization.
type Action string

const (
	ActionManageRoom        Action = "manage_room"
	ActionBook              Action = "book"
	ActionEditBooking       Action = "edit_booking"
	ActionDeleteBooking     Action = "delete_booking"
	ActionManagePermissions Action = "manage_permissions"
)

// Principal is the authenticated identity making a request.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   models.GlobalRole
}

// BookingRef identifies the owner of a booking targeted by an action.
// Ownership is matched by user id or, failing that, by email: a booking may
// carry a provisioned user id distinct from the caller's current id while
// sharing the same address.
type BookingRef struct {
	OwnerID    uuid.UUID
	OwnerEmail string
}

// Request carries the action and its target context.
type Request struct {
	Action  Action
	RoomID  uuid.UUID
	Booking *BookingRef // set for booking-scoped actions
}

// PermissionStore resolves the delegated room role for an email, if any.
// Implementations must read the freshest available state at decision time.
type PermissionStore interface {
	RoleFor(ctx context.Context, roomID uuid.UUID, email string) (models.RoomRole, bool, error)
}

// Resolver answers authorization questions against a permission store.
type Resolver struct {
	store PermissionStore
}

// NewResolver creates a Resolver backed by the given permission store.
func NewResolver(store PermissionStore) *Resolver {
	return &Resolver{store: store}
}

// CanAct reports whether the principal may perform the requested action.
// Rules are evaluated in precedence order; the first match wins:
//
//  1. a global admin may do anything;
//  2. the owner of a booking (by id or email) may edit or delete it;
//  3. any authenticated principal may create a booking;
//  4. a delegated room admin may manage the room, its permissions, and any
//     booking in it;
//  5. everything else is denied.
func (r *Resolver) CanAct(ctx context.Context, p Principal, req Request) (bool, error) {
	if p.Role == models.RoleAdmin {
		return true, nil
	}

	if req.Booking != nil && (req.Action == ActionEditBooking || req.Action == ActionDeleteBooking) {
		if isOwner(p, *req.Booking) {
			return true, nil
		}
	}

	// Creating a booking is open to any authenticated principal and does not
	// depend on delegated room roles.
	if req.Action == ActionBook {
		return true, nil
	}

	role, found, err := r.store.RoleFor(ctx, req.RoomID, p.Email)
	if err != nil {
		return false, err
	}
	if found && role == models.RoomRoleAdmin {
		switch req.Action {
		case ActionManageRoom, ActionManagePermissions, ActionEditBooking, ActionDeleteBooking:
			return true, nil
		}
	}

	return false, nil
}

func isOwner(p Principal, b BookingRef) bool {
	if b.OwnerID != uuid.Nil && p.UserID == b.OwnerID {
		return true
	}
	return b.OwnerEmail != "" && strings.EqualFold(p.Email, b.OwnerEmail)
}
