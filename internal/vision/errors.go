package vision

import (
	"errors"
	"fmt"
)

// ErrNoFace is returned when an image that must contain a detectable face
// (a selfie) yields no detection above the confidence floor.
var ErrNoFace = errors.New("no face detected in image")

// ExtractionError reports unreadable or corrupt image data. It is terminal
// per attempt: the uploader decides whether to retry.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err is a terminal extraction failure.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
