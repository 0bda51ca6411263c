package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoTask is the message published to NATS for photo ingestion.
type PhotoTask struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	EventID    uuid.UUID `json:"event_id"`
	ObjectKey  string    `json:"object_key"` // blob store key of the raw image
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// SelfieTask is the message published to NATS for selfie ingestion.
type SelfieTask struct {
	SelfieID      uuid.UUID `json:"selfie_id"`
	EventID       uuid.UUID `json:"event_id"`
	AttendeeEmail string    `json:"attendee_email"`
	ObjectKey     string    `json:"object_key"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// MatchEvent is published after ingestion milestones so the API can push
// live updates to connected clients.
type MatchEvent struct {
	Type          string    `json:"type"` // photo_indexed, photo_matched, selfie_attributed
	EventID       uuid.UUID `json:"event_id"`
	PhotoID       uuid.UUID `json:"photo_id,omitempty"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	Score         float32   `json:"score,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	MatchEventPhotoIndexed     = "photo_indexed"
	MatchEventPhotoMatched     = "photo_matched"
	MatchEventSelfieAttributed = "selfie_attributed"
)
