package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee is one registered participant of an event, keyed by account
// email. There is exactly one attendee record per (event, email) pair.
type Attendee struct {
	ID           uuid.UUID `json:"id" db:"id"`
	EventID      uuid.UUID `json:"event_id" db:"event_id"`
	Email        string    `json:"email" db:"email"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// AttendeeDescriptor is a reference descriptor extracted from an
// attendee's selfie, used as the query side of photo matching.
type AttendeeDescriptor struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AttendeeID uuid.UUID `json:"attendee_id" db:"attendee_id"`
	Descriptor []float32 `json:"-" db:"descriptor"`
	Confidence float32   `json:"confidence" db:"confidence"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
