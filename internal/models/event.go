package models

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusOpen   EventStatus = "open"
	EventStatusClosed EventStatus = "closed"
)

// Event is an organizer-owned photo pool. Closing an event freezes
// ingestion; read queries keep working.
type Event struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	OrganizerEmail string      `json:"organizer_email" db:"organizer_email"`
	Status         EventStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
