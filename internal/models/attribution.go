package models

import (
	"time"

	"github.com/google/uuid"
)

// Attribution links an attendee to a photo that depicts them. At most one
// attribution exists per (attendee, photo) pair; re-matching updates the
// record only when the new score is higher.
type Attribution struct {
	AttendeeID uuid.UUID `json:"attendee_id" db:"attendee_id"`
	PhotoID    uuid.UUID `json:"photo_id" db:"photo_id"`
	Score      float32   `json:"score" db:"score"`
	DecidedAt  time.Time `json:"decided_at" db:"decided_at"`
}

// AttributedPhoto is one entry of an attendee's photo feed.
type AttributedPhoto struct {
	PhotoID    uuid.UUID `json:"photo_id" db:"photo_id"`
	EventID    uuid.UUID `json:"event_id" db:"event_id"`
	ObjectKey  string    `json:"object_key" db:"object_key"`
	Score      float32   `json:"score" db:"score"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
	DecidedAt  time.Time `json:"decided_at" db:"decided_at"`
}
