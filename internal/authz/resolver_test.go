package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/roomline/backend/internal/models"
)

type stubStore struct {
	roles map[string]models.RoomRole // key: roomID + "|" + email
	err   error
}

func (s *stubStore) RoleFor(_ context.Context, roomID uuid.UUID, email string) (models.RoomRole, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	role, ok := s.roles[roomID.String()+"|"+email]
	return role, ok, nil
}

func TestCanActMatrix(t *testing.T) {
	roomA := uuid.New()
	roomB := uuid.New()
	ownerID := uuid.New()

	globalAdmin := Principal{UserID: uuid.New(), Email: "root@example.com", Role: models.RoleAdmin}
	delegated := Principal{UserID: uuid.New(), Email: "delegate@example.com", Role: models.RoleUser}
	roomUser := Principal{UserID: uuid.New(), Email: "member@example.com", Role: models.RoleUser}
	owner := Principal{UserID: ownerID, Email: "owner@example.com", Role: models.RoleUser}
	stranger := Principal{UserID: uuid.New(), Email: "stranger@example.com", Role: models.RoleUser}

	store := &stubStore{roles: map[string]models.RoomRole{
		roomA.String() + "|delegate@example.com": models.RoomRoleAdmin,
		roomA.String() + "|member@example.com":   models.RoomRoleUser,
	}}
	resolver := NewResolver(store)

	booking := &BookingRef{OwnerID: ownerID, OwnerEmail: "owner@example.com"}

	tests := []struct {
		name      string
		principal Principal
		req       Request
		want      bool
	}{
		{"global admin deletes any booking", globalAdmin, Request{Action: ActionDeleteBooking, RoomID: roomB, Booking: booking}, true},
		{"global admin manages any room", globalAdmin, Request{Action: ActionManageRoom, RoomID: roomB}, true},
		{"owner deletes own booking", owner, Request{Action: ActionDeleteBooking, RoomID: roomB, Booking: booking}, true},
		{"owner edits own booking", owner, Request{Action: ActionEditBooking, RoomID: roomB, Booking: booking}, true},
		{"stranger cannot delete foreign booking", stranger, Request{Action: ActionDeleteBooking, RoomID: roomB, Booking: booking}, false},
		{"room admin deletes booking in own room", delegated, Request{Action: ActionDeleteBooking, RoomID: roomA, Booking: booking}, true},
		{"room admin cannot touch unrelated room", delegated, Request{Action: ActionDeleteBooking, RoomID: roomB, Booking: booking}, false},
		{"room admin manages permissions", delegated, Request{Action: ActionManagePermissions, RoomID: roomA}, true},
		{"room admin manages room", delegated, Request{Action: ActionManageRoom, RoomID: roomA}, true},
		{"room user cannot manage permissions", roomUser, Request{Action: ActionManagePermissions, RoomID: roomA}, false},
		{"no entry cannot manage permissions", stranger, Request{Action: ActionManagePermissions, RoomID: roomA}, false},
		{"anyone may book", stranger, Request{Action: ActionBook, RoomID: roomA}, true},
		{"room user cannot manage room", roomUser, Request{Action: ActionManageRoom, RoomID: roomA}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.CanAct(context.Background(), tt.principal, tt.req)
			if err != nil {
				t.Fatalf("CanAct returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanActOwnershipByEmail(t *testing.T) {
	// A booking provisioned before the caller registered carries a different
	// user id but the same email; ownership must still match.
	resolver := NewResolver(&stubStore{roles: map[string]models.RoomRole{}})
	principal := Principal{UserID: uuid.New(), Email: "Casey@Example.com", Role: models.RoleUser}
	booking := &BookingRef{OwnerID: uuid.New(), OwnerEmail: "casey@example.com"}

	ok, err := resolver.CanAct(context.Background(), principal, Request{
		Action:  ActionEditBooking,
		RoomID:  uuid.New(),
		Booking: booking,
	})
	if err != nil {
		t.Fatalf("CanAct returned error: %v", err)
	}
	if !ok {
		t.Error("expected email-matched ownership to permit edit")
	}
}

func TestCanActBookSkipsStore(t *testing.T) {
	// Booking creation is not gated on room permissions, so a failing store
	// must not block it.
	resolver := NewResolver(&stubStore{err: errors.New("store down")})
	principal := Principal{UserID: uuid.New(), Email: "user@example.com", Role: models.RoleUser}

	ok, err := resolver.CanAct(context.Background(), principal, Request{Action: ActionBook, RoomID: uuid.New()})
	if err != nil {
		t.Fatalf("CanAct returned error: %v", err)
	}
	if !ok {
		t.Error("expected book to be permitted")
	}
}

func TestCanActStoreError(t *testing.T) {
	storeErr := errors.New("store down")
	resolver := NewResolver(&stubStore{err: storeErr})
	principal := Principal{UserID: uuid.New(), Email: "user@example.com", Role: models.RoleUser}

	ok, err := resolver.CanAct(context.Background(), principal, Request{Action: ActionManagePermissions, RoomID: uuid.New()})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if ok {
		t.Error("expected deny on store error")
	}
}
