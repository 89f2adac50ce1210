package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a reservation of one room for the half-open interval
// [StartTime, EndTime). For any room the set of bookings is pairwise
// non-overlapping; a booking ending exactly when another starts is allowed.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"roomId"`
	UserID    uuid.UUID `json:"userId"`
	UserEmail string    `json:"userEmail"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	RoomName  string    `json:"roomName,omitempty"`
	UserName  string    `json:"userName,omitempty"`
}
