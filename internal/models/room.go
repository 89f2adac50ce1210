package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a bookable meeting room. Bookings and room permissions are owned by
// the room and removed with it.
type Room struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Capacity    *int      `json:"capacity,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
