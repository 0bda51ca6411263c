package dto

import "github.com/google/uuid"

type PhotoResponse struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	State       string    `json:"state"`
	ContentType string    `json:"content_type,omitempty"`
	Error       string    `json:"error,omitempty"`
	UploadedAt  string    `json:"uploaded_at"`
}

type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos"`
	Total  int             `json:"total"`
}

// AttributedPhotoResponse is one entry in an attendee's photo feed.
type AttributedPhotoResponse struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	EventID    uuid.UUID `json:"event_id"`
	Score      float32   `json:"score"`
	ImageURL   string    `json:"image_url"`
	UploadedAt string    `json:"uploaded_at"`
	DecidedAt  string    `json:"decided_at"`
}

type FeedResponse struct {
	Photos []AttributedPhotoResponse `json:"photos"`
	Total  int                       `json:"total"`
}

// PhotoAttendeeResponse is one matched attendee in the moderation view.
type PhotoAttendeeResponse struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
	Email      string    `json:"email"`
	Score      float32   `json:"score"`
	DecidedAt  string    `json:"decided_at"`
}

// StatusResponse reports the processing state of a photo or a selfie.
type StatusResponse struct {
	ID    uuid.UUID `json:"id"`
	Kind  string    `json:"kind"`
	State string    `json:"state"`
	Error string    `json:"error,omitempty"`
}
