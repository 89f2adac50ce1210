package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomline/backend/internal/authz"
	"github.com/roomline/backend/internal/models"
)

// Store persists bookings. Create and Update must be atomic with respect to
// the no-overlap invariant: an insert or reschedule that overlaps a committed
// booking for the same room must fail with ErrTimeConflict even when a
// concurrent request passed the application pre-check.
type Store interface {
	List(ctx context.Context) ([]models.Booking, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Create(ctx context.Context, params CreateParams) (*models.Booking, error)
	Update(ctx context.Context, id uuid.UUID, title string, start, end time.Time) (*models.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateParams carries a validated booking proposal. OwnerName is used only
// when the owner has to be provisioned.
type CreateParams struct {
	RoomID     uuid.UUID
	OwnerEmail string
	OwnerName  string
	Title      string
	Start      time.Time
	End        time.Time
}

// Authorizer answers whether a principal may perform an action.
type Authorizer interface {
	CanAct(ctx context.Context, p authz.Principal, req authz.Request) (bool, error)
}

// Service orchestrates the booking lifecycle: validation, conflict detection,
// authorization, and persistence.
type Service struct {
	store  Store
	authz  Authorizer
	logger *zap.Logger
}

// NewService creates a booking service.
func NewService(store Store, resolver Authorizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, authz: resolver, logger: logger}
}

// CreateInput is a proposed booking.
type CreateInput struct {
	RoomID    uuid.UUID
	UserEmail string // honored only for global admins (booking on behalf)
	Title     string
	Start     time.Time
	End       time.Time
}

// List returns all bookings ordered by start time.
func (s *Service) List(ctx context.Context) ([]models.Booking, error) {
	return s.store.List(ctx)
}

// Create admits a proposed booking. The owning user is provisioned by email
// if absent; provisioning and the insert commit in one transaction, with the
// storage exclusion constraint backstopping the conflict pre-check.
func (s *Service) Create(ctx context.Context, principal authz.Principal, in CreateInput) (*models.Booking, error) {
	start, end := in.Start.UTC(), in.End.UTC()
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}

	// Only global admins may book on behalf of another email.
	ownerEmail := principal.Email
	if principal.Role == models.RoleAdmin && in.UserEmail != "" {
		ownerEmail = in.UserEmail
	}

	existing, err := s.store.ListByRoom(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if HasConflict(existing, in.RoomID, start, end, uuid.Nil) {
		return nil, ErrTimeConflict
	}

	ok, err := s.authz.CanAct(ctx, principal, authz.Request{Action: authz.ActionBook, RoomID: in.RoomID})
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	booking, err := s.persist(ctx, func() (*models.Booking, error) {
		return s.store.Create(ctx, CreateParams{
			RoomID:     in.RoomID,
			OwnerEmail: ownerEmail,
			OwnerName:  nameFromEmail(ownerEmail),
			Title:      in.Title,
			Start:      start,
			End:        end,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("room_id", booking.RoomID.String()),
		zap.String("user_email", booking.UserEmail),
	)
	return booking, nil
}

// UpdateInput is a proposed change to an existing booking.
type UpdateInput struct {
	Title string
	Start time.Time
	End   time.Time
}

// Update reschedules or retitles a booking. The conflict check excludes the
// booking's own interval; authorization is evaluated against the existing
// booking's ownership.
func (s *Service) Update(ctx context.Context, principal authz.Principal, id uuid.UUID, in UpdateInput) (*models.Booking, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	start, end := in.Start.UTC(), in.End.UTC()
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}

	snapshot, err := s.store.ListByRoom(ctx, existing.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if HasConflict(snapshot, existing.RoomID, start, end, id) {
		return nil, ErrTimeConflict
	}

	ok, err := s.authz.CanAct(ctx, principal, authz.Request{
		Action:  authz.ActionEditBooking,
		RoomID:  existing.RoomID,
		Booking: &authz.BookingRef{OwnerID: existing.UserID, OwnerEmail: existing.UserEmail},
	})
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	booking, err := s.persist(ctx, func() (*models.Booking, error) {
		return s.store.Update(ctx, id, in.Title, start, end)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking updated", zap.String("booking_id", id.String()))
	return booking, nil
}

// Delete removes a booking once the principal is authorized. No conflict
// check applies; removal is immediate.
func (s *Service) Delete(ctx context.Context, principal authz.Principal, id uuid.UUID) error {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.authz.CanAct(ctx, principal, authz.Request{
		Action:  authz.ActionDeleteBooking,
		RoomID:  existing.RoomID,
		Booking: &authz.BookingRef{OwnerID: existing.UserID, OwnerEmail: existing.UserEmail},
	})
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("booking deleted", zap.String("booking_id", id.String()))
	return nil
}

// persist runs the mutation, retrying once on transient storage failures.
// Conflicts and not-found are final: conflicts require the caller to pick a
// new interval, and no automatic retry is performed for them.
func (s *Service) persist(ctx context.Context, fn func() (*models.Booking, error)) (*models.Booking, error) {
	booking, err := fn()
	if err == nil {
		return booking, nil
	}
	if errors.Is(err, ErrTimeConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTimeRange) || ctx.Err() != nil {
		return nil, err
	}
	s.logger.Warn("booking mutation failed, retrying once", zap.Error(err))
	booking, retryErr := fn()
	if retryErr != nil {
		return nil, retryErr
	}
	return booking, nil
}

// nameFromEmail derives a display name for a provisioned user from the local
// part of the address.
func nameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
