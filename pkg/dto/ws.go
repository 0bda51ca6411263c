package dto

import "github.com/google/uuid"

// WSEvent is a WebSocket message for real-time attribution delivery.
type WSEvent struct {
	Type          string    `json:"type"` // photo_indexed, photo_matched, selfie_attributed
	EventID       uuid.UUID `json:"event_id"`
	PhotoID       uuid.UUID `json:"photo_id,omitempty"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	Score         float32   `json:"score,omitempty"`
	Timestamp     string    `json:"timestamp"`
}
