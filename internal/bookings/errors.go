package bookings

import "errors"

var (
	// ErrInvalidTimeRange indicates start >= end.
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrTimeConflict indicates the interval overlaps an existing booking.
	// Raised identically by the application pre-check and by the storage
	// exclusion constraint, so callers cannot tell which layer detected it.
	ErrTimeConflict = errors.New("time conflict")
	// ErrNotFound indicates the booking or room id did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the principal is not authorized for the action.
	ErrForbidden = errors.New("forbidden")
)
