package dto

import "github.com/google/uuid"

type SelfieResponse struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"event_id"`
	AttendeeEmail string    `json:"attendee_email"`
	State         string    `json:"state"`
	Error         string    `json:"error,omitempty"`
	SubmittedAt   string    `json:"submitted_at"`
}
