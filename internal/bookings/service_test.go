package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/roomline/backend/internal/authz"
	"github.com/roomline/backend/internal/models"
)

// memStore is an in-memory Store that enforces the no-overlap invariant
// atomically under a mutex, the way the database exclusion constraint does.
type memStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]models.Booking
	users    map[string]uuid.UUID

	failRemaining int   // inject transient failures for the next N mutations
	failErr       error //
	createCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[uuid.UUID]models.Booking),
		users:    make(map[string]uuid.UUID),
	}
}

func (m *memStore) List(context.Context) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Booking
	for _, b := range m.bookings {
		list = append(list, b)
	}
	return list, nil
}

func (m *memStore) ListByRoom(_ context.Context, roomID uuid.UUID) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Booking
	for _, b := range m.bookings {
		if b.RoomID == roomID {
			list = append(list, b)
		}
	}
	return list, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *memStore) Create(_ context.Context, params CreateParams) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failRemaining > 0 {
		m.failRemaining--
		return nil, m.failErr
	}
	for _, b := range m.bookings {
		if b.RoomID == params.RoomID && params.Start.Before(b.EndTime) && params.End.After(b.StartTime) {
			return nil, ErrTimeConflict
		}
	}
	userID, ok := m.users[params.OwnerEmail]
	if !ok {
		userID = uuid.New()
		m.users[params.OwnerEmail] = userID
	}
	b := models.Booking{
		ID:        uuid.New(),
		RoomID:    params.RoomID,
		UserID:    userID,
		UserEmail: params.OwnerEmail,
		Title:     params.Title,
		StartTime: params.Start,
		EndTime:   params.End,
	}
	m.bookings[b.ID] = b
	return &b, nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, title string, start, end time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemaining > 0 {
		m.failRemaining--
		return nil, m.failErr
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, other := range m.bookings {
		if other.ID == id || other.RoomID != b.RoomID {
			continue
		}
		if start.Before(other.EndTime) && end.After(other.StartTime) {
			return nil, ErrTimeConflict
		}
	}
	b.Title, b.StartTime, b.EndTime = title, start, end
	m.bookings[id] = b
	return &b, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

type permStub struct {
	roles map[string]models.RoomRole
}

func (s *permStub) RoleFor(_ context.Context, roomID uuid.UUID, email string) (models.RoomRole, bool, error) {
	role, ok := s.roles[roomID.String()+"|"+email]
	return role, ok, nil
}

func newTestService(t *testing.T, store Store, roles map[string]models.RoomRole) *Service {
	t.Helper()
	if roles == nil {
		roles = map[string]models.RoomRole{}
	}
	return NewService(store, authz.NewResolver(&permStub{roles: roles}), zaptest.NewLogger(t))
}

func userPrincipal(email string) authz.Principal {
	return authz.Principal{UserID: uuid.New(), Email: email, Role: models.RoleUser}
}

func adminPrincipal(email string) authz.Principal {
	return authz.Principal{UserID: uuid.New(), Email: email, Role: models.RoleAdmin}
}

func TestCreateBooking(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	roomID := uuid.New()

	booking, err := svc.Create(context.Background(), userPrincipal("alice@example.com"), CreateInput{
		RoomID: roomID,
		Title:  "standup",
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if booking.RoomID != roomID {
		t.Errorf("roomID = %s, want %s", booking.RoomID, roomID)
	}
	if booking.UserEmail != "alice@example.com" {
		t.Errorf("userEmail = %q", booking.UserEmail)
	}
	if _, ok := store.users["alice@example.com"]; !ok {
		t.Error("owner was not provisioned")
	}
}

func TestCreateInvalidTimeRange(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	principal := userPrincipal("alice@example.com")

	for _, tt := range []struct {
		name       string
		start, end string
	}{
		{"start equals end", "2026-03-02T10:00:00Z", "2026-03-02T10:00:00Z"},
		{"start after end", "2026-03-02T11:00:00Z", "2026-03-02T10:00:00Z"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), principal, CreateInput{
				RoomID: uuid.New(),
				Start:  mustTime(t, tt.start),
				End:    mustTime(t, tt.end),
			})
			if !errors.Is(err, ErrInvalidTimeRange) {
				t.Errorf("err = %v, want ErrInvalidTimeRange", err)
			}
		})
	}
}

func TestCreateConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	roomID := uuid.New()
	principal := userPrincipal("alice@example.com")

	if _, err := svc.Create(context.Background(), principal, CreateInput{
		RoomID: roomID,
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	_, err := svc.Create(context.Background(), userPrincipal("bob@example.com"), CreateInput{
		RoomID: roomID,
		Start:  mustTime(t, "2026-03-02T10:59:00Z"),
		End:    mustTime(t, "2026-03-02T11:30:00Z"),
	})
	if !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("err = %v, want ErrTimeConflict", err)
	}

	// Back-to-back is not a conflict.
	if _, err := svc.Create(context.Background(), userPrincipal("bob@example.com"), CreateInput{
		RoomID: roomID,
		Start:  mustTime(t, "2026-03-02T11:00:00Z"),
		End:    mustTime(t, "2026-03-02T12:00:00Z"),
	}); err != nil {
		t.Fatalf("back-to-back booking rejected: %v", err)
	}
}

func TestCreateOnBehalfEmailOverride(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)

	booking, err := svc.Create(context.Background(), adminPrincipal("root@example.com"), CreateInput{
		RoomID:    uuid.New(),
		UserEmail: "guest@example.com",
		Start:     mustTime(t, "2026-03-02T10:00:00Z"),
		End:       mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if booking.UserEmail != "guest@example.com" {
		t.Errorf("admin override ignored: userEmail = %q", booking.UserEmail)
	}

	// Non-admin override attempts fall back to the caller's own email.
	booking, err = svc.Create(context.Background(), userPrincipal("carol@example.com"), CreateInput{
		RoomID:    uuid.New(),
		UserEmail: "other@example.com",
		Start:     mustTime(t, "2026-03-02T10:00:00Z"),
		End:       mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if booking.UserEmail != "carol@example.com" {
		t.Errorf("non-admin override honored: userEmail = %q", booking.UserEmail)
	}
}

func TestAutoProvisionIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	principal := adminPrincipal("root@example.com")

	for i, slot := range []struct{ start, end string }{
		{"2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z"},
		{"2026-03-02T12:00:00Z", "2026-03-02T13:00:00Z"},
	} {
		_, err := svc.Create(context.Background(), principal, CreateInput{
			RoomID:    uuid.New(),
			UserEmail: "new@example.com",
			Start:     mustTime(t, slot.start),
			End:       mustTime(t, slot.end),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if len(store.users) != 1 {
		t.Errorf("user rows = %d, want 1", len(store.users))
	}
}

func TestConcurrentCreateOneWinner(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	roomID := uuid.New()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), userPrincipal(email), CreateInput{
				RoomID: roomID,
				Start:  mustTime(t, "2026-03-02T10:00:00Z"),
				End:    mustTime(t, "2026-03-02T11:00:00Z"),
			})
			results <- err
		}(email)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTimeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Errorf("successes = %d, conflicts = %d; want exactly one of each", successes, conflicts)
	}
	if len(store.bookings) != 1 {
		t.Errorf("persisted bookings = %d, want 1", len(store.bookings))
	}
}

func TestCreateRetriesTransientOnce(t *testing.T) {
	store := newMemStore()
	store.failRemaining = 1
	store.failErr = errors.New("connection reset")
	svc := newTestService(t, store, nil)

	_, err := svc.Create(context.Background(), userPrincipal("alice@example.com"), CreateInput{
		RoomID: uuid.New(),
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.createCalls != 2 {
		t.Errorf("create calls = %d, want 2", store.createCalls)
	}
}

func TestCreateGivesUpAfterOneRetry(t *testing.T) {
	store := newMemStore()
	store.failRemaining = 2
	store.failErr = errors.New("connection reset")
	svc := newTestService(t, store, nil)

	_, err := svc.Create(context.Background(), userPrincipal("alice@example.com"), CreateInput{
		RoomID: uuid.New(),
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err == nil {
		t.Fatal("expected failure after second transient error")
	}
	if store.createCalls != 2 {
		t.Errorf("create calls = %d, want 2", store.createCalls)
	}
}

// conflictingStore reports a clean snapshot but rejects every insert with a
// conflict, the shape a lost race against a concurrent writer takes.
type conflictingStore struct {
	*memStore
	calls int
}

func (s *conflictingStore) Create(context.Context, CreateParams) (*models.Booking, error) {
	s.calls++
	return nil, ErrTimeConflict
}

func TestStoreConflictIsNotRetried(t *testing.T) {
	store := &conflictingStore{memStore: newMemStore()}
	svc := newTestService(t, store, nil)

	_, err := svc.Create(context.Background(), userPrincipal("alice@example.com"), CreateInput{
		RoomID: uuid.New(),
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("err = %v, want ErrTimeConflict", err)
	}
	if store.calls != 1 {
		t.Errorf("create calls = %d, want 1 (no retry on conflict)", store.calls)
	}
}

func TestUpdateToOwnIntervalSucceeds(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	roomID := uuid.New()
	principal := userPrincipal("alice@example.com")

	booking, err := svc.Create(context.Background(), principal, CreateInput{
		RoomID: roomID,
		Title:  "standup",
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(context.Background(), principal, booking.ID, UpdateInput{
		Title: "renamed standup",
		Start: booking.StartTime,
		End:   booking.EndTime,
	})
	if err != nil {
		t.Fatalf("Update to own interval: %v", err)
	}
	if updated.Title != "renamed standup" {
		t.Errorf("title = %q", updated.Title)
	}
}

func TestUpdateConflictAndOwnership(t *testing.T) {
	store := newMemStore()
	roomID := uuid.New()
	roles := map[string]models.RoomRole{
		roomID.String() + "|delegate@example.com": models.RoomRoleAdmin,
	}
	svc := newTestService(t, store, roles)
	owner := userPrincipal("alice@example.com")

	first, err := svc.Create(context.Background(), owner, CreateInput{
		RoomID: roomID,
		Start:  mustTime(t, "2026-03-02T10:00:00Z"),
		End:    mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if err != nil {
		t.Fatalf("seed first: %v", err)
	}
	second, err := svc.Create(context.Background(), owner, CreateInput{
		RoomID: roomID,
		Start:  mustTime(t, "2026-03-02T11:00:00Z"),
		End:    mustTime(t, "2026-03-02T12:00:00Z"),
	})
	if err != nil {
		t.Fatalf("seed second: %v", err)
	}

	// Rescheduling into the neighbor conflicts.
	if _, err := svc.Update(context.Background(), owner, second.ID, UpdateInput{
		Start: mustTime(t, "2026-03-02T10:30:00Z"),
		End:   mustTime(t, "2026-03-02T11:30:00Z"),
	}); !errors.Is(err, ErrTimeConflict) {
		t.Errorf("err = %v, want ErrTimeConflict", err)
	}

	// A stranger may not edit; a delegated room admin may.
	if _, err := svc.Update(context.Background(), userPrincipal("mallory@example.com"), first.ID, UpdateInput{
		Start: mustTime(t, "2026-03-02T09:00:00Z"),
		End:   mustTime(t, "2026-03-02T10:00:00Z"),
	}); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Update(context.Background(), userPrincipal("delegate@example.com"), first.ID, UpdateInput{
		Start: mustTime(t, "2026-03-02T09:00:00Z"),
		End:   mustTime(t, "2026-03-02T10:00:00Z"),
	}); err != nil {
		t.Errorf("delegated admin edit failed: %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	_, err := svc.Update(context.Background(), userPrincipal("alice@example.com"), uuid.New(), UpdateInput{
		Start: mustTime(t, "2026-03-02T10:00:00Z"),
		End:   mustTime(t, "2026-03-02T11:00:00Z"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAuthorization(t *testing.T) {
	store := newMemStore()
	roomID := uuid.New()
	otherRoom := uuid.New()
	roles := map[string]models.RoomRole{
		roomID.String() + "|delegate@example.com": models.RoomRoleAdmin,
	}
	svc := newTestService(t, store, roles)
	owner := userPrincipal("alice@example.com")

	seed := func(room uuid.UUID, start, end string) uuid.UUID {
		t.Helper()
		b, err := svc.Create(context.Background(), owner, CreateInput{
			RoomID: room,
			Start:  mustTime(t, start),
			End:    mustTime(t, end),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		return b.ID
	}

	inRoom := seed(roomID, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")
	elsewhere := seed(otherRoom, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")

	// A stranger cannot delete someone else's booking.
	if err := svc.Delete(context.Background(), userPrincipal("mallory@example.com"), inRoom); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger err = %v, want ErrForbidden", err)
	}
	// A delegated room admin can delete within their room only.
	if err := svc.Delete(context.Background(), userPrincipal("delegate@example.com"), elsewhere); !errors.Is(err, ErrForbidden) {
		t.Errorf("delegate outside room err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), userPrincipal("delegate@example.com"), inRoom); err != nil {
		t.Errorf("delegate in room: %v", err)
	}
	// A global admin can delete anywhere.
	if err := svc.Delete(context.Background(), adminPrincipal("root@example.com"), elsewhere); err != nil {
		t.Errorf("global admin: %v", err)
	}

	// The owner deletes their own (matched by email even under a new id).
	own := seed(roomID, "2026-03-02T12:00:00Z", "2026-03-02T13:00:00Z")
	sameEmailNewID := userPrincipal("alice@example.com")
	if err := svc.Delete(context.Background(), sameEmailNewID, own); err != nil {
		t.Errorf("owner by email: %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	if err := svc.Delete(context.Background(), userPrincipal("alice@example.com"), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
