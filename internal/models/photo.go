package models

import (
	"time"

	"github.com/google/uuid"
)

type PhotoState string

const (
	PhotoStateUploaded   PhotoState = "uploaded"
	PhotoStateExtracting PhotoState = "extracting"
	PhotoStateIndexed    PhotoState = "indexed"
	PhotoStateMatched    PhotoState = "matched"
	PhotoStateFailed     PhotoState = "failed"
)

// photoTransitions holds the legal forward edges of the photo state machine.
// Failure is reachable from any non-terminal state; retry resets a failed
// photo back to uploaded.
var photoTransitions = map[PhotoState][]PhotoState{
	PhotoStateUploaded:   {PhotoStateExtracting, PhotoStateFailed},
	PhotoStateExtracting: {PhotoStateIndexed, PhotoStateFailed},
	PhotoStateIndexed:    {PhotoStateMatched, PhotoStateFailed},
	PhotoStateFailed:     {PhotoStateUploaded},
}

// ValidPhotoTransition reports whether a photo may move from one state
// to another.
func ValidPhotoTransition(from, to PhotoState) bool {
	for _, next := range photoTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Photo is one uploaded event photo. Immutable once indexed except for
// state transitions.
type Photo struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	EventID      uuid.UUID  `json:"event_id" db:"event_id"`
	ObjectKey    string     `json:"object_key" db:"object_key"`
	ContentType  string     `json:"content_type" db:"content_type"`
	State        PhotoState `json:"state" db:"state"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
}

// FaceDescriptor is one extracted face of a photo: a fixed-length
// L2-normalized vector plus bounding box and detection confidence.
// Descriptors are never mutated; re-indexing a photo replaces its set.
type FaceDescriptor struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PhotoID    uuid.UUID  `json:"photo_id" db:"photo_id"`
	Descriptor []float32  `json:"-" db:"descriptor"`
	BBox       [4]float32 `json:"bbox" db:"bbox"` // x1, y1, x2, y2
	Confidence float32    `json:"confidence" db:"confidence"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
