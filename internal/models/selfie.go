package models

import (
	"time"

	"github.com/google/uuid"
)

type SelfieState string

const (
	SelfieStateSubmitted  SelfieState = "submitted"
	SelfieStateExtracting SelfieState = "extracting"
	SelfieStateMatching   SelfieState = "matching"
	SelfieStateAttributed SelfieState = "attributed"
	SelfieStateFailed     SelfieState = "failed"
)

var selfieTransitions = map[SelfieState][]SelfieState{
	SelfieStateSubmitted:  {SelfieStateExtracting, SelfieStateFailed},
	SelfieStateExtracting: {SelfieStateMatching, SelfieStateFailed},
	SelfieStateMatching:   {SelfieStateAttributed, SelfieStateFailed},
	SelfieStateFailed:     {SelfieStateSubmitted},
}

// ValidSelfieTransition reports whether a selfie submission may move
// from one state to another.
func ValidSelfieTransition(from, to SelfieState) bool {
	for _, next := range selfieTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Selfie is one attendee-submitted selfie going through registration:
// extraction, matching against the event's photo pool, attribution.
type Selfie struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	EventID       uuid.UUID   `json:"event_id" db:"event_id"`
	AttendeeEmail string      `json:"attendee_email" db:"attendee_email"`
	ObjectKey     string      `json:"object_key" db:"object_key"`
	State         SelfieState `json:"state" db:"state"`
	ErrorMessage  string      `json:"error_message,omitempty" db:"error_message"`
	SubmittedAt   time.Time   `json:"submitted_at" db:"submitted_at"`
}
