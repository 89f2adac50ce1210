package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/roomline/backend/internal/models"
)

// HasConflict reports whether the candidate interval [start, end) overlaps an
// existing booking for roomID. Intervals are half-open: a booking ending
// exactly when another starts does not conflict, so back-to-back meetings are
// allowed. excludeID, when non-nil, skips one booking (the one being edited).
//
// The detector is a pure function over the given snapshot; callers that need
// the result to hold through a subsequent insert must read the snapshot and
// write inside the same transaction, or rely on the storage-level exclusion
// constraint to reject the race.
func HasConflict(existing []models.Booking, roomID uuid.UUID, start, end time.Time, excludeID uuid.UUID) bool {
	for _, b := range existing {
		if b.RoomID != roomID {
			continue
		}
		if excludeID != uuid.Nil && b.ID == excludeID {
			continue
		}
		if start.Before(b.EndTime) && end.After(b.StartTime) {
			return true
		}
	}
	return false
}
