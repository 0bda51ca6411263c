package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/storage"
)

// RetryStore is the subset of storage the retrier reads and rewinds.
type RetryStore interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	TransitionPhoto(ctx context.Context, id uuid.UUID, from, to models.PhotoState, errMsg string) error
	GetSelfie(ctx context.Context, id uuid.UUID) (*models.Selfie, error)
	TransitionSelfie(ctx context.Context, id uuid.UUID, from, to models.SelfieState, errMsg string) error
}

// RetryPublisher re-enqueues work for the ingestion consumers.
type RetryPublisher interface {
	PublishPhotoTask(ctx context.Context, task models.PhotoTask) error
	PublishSelfieTask(ctx context.Context, task models.SelfieTask) error
}

// ErrNotRetriable reports that the entity exists but is not in the failed
// state, so there is nothing to rewind.
var ErrNotRetriable = fmt.Errorf("entity is not in a failed state")

// Retrier rewinds failed photos and selfies to their initial state and
// re-enqueues them. The rewind is a compare-and-swap, so concurrent retry
// requests enqueue the task at most once.
type Retrier struct {
	store     RetryStore
	publisher RetryPublisher
}

func NewRetrier(store RetryStore, publisher RetryPublisher) *Retrier {
	return &Retrier{store: store, publisher: publisher}
}

// Retry accepts either a photo or a selfie id. Returns
// storage.ErrNotFound when neither exists and ErrNotRetriable when the
// entity has not failed.
func (r *Retrier) Retry(ctx context.Context, id uuid.UUID) error {
	photo, err := r.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}
	if photo != nil {
		return r.retryPhoto(ctx, photo)
	}

	selfie, err := r.store.GetSelfie(ctx, id)
	if err != nil {
		return err
	}
	if selfie != nil {
		return r.retrySelfie(ctx, selfie)
	}
	return storage.ErrNotFound
}

func (r *Retrier) retryPhoto(ctx context.Context, photo *models.Photo) error {
	if photo.State != models.PhotoStateFailed {
		return ErrNotRetriable
	}
	if err := r.store.TransitionPhoto(ctx, photo.ID, models.PhotoStateFailed, models.PhotoStateUploaded, ""); err != nil {
		return fmt.Errorf("rewind photo: %w", err)
	}
	return r.publisher.PublishPhotoTask(ctx, models.PhotoTask{
		PhotoID:   photo.ID,
		EventID:   photo.EventID,
		ObjectKey: photo.ObjectKey,
	})
}

func (r *Retrier) retrySelfie(ctx context.Context, selfie *models.Selfie) error {
	if selfie.State != models.SelfieStateFailed {
		return ErrNotRetriable
	}
	if err := r.store.TransitionSelfie(ctx, selfie.ID, models.SelfieStateFailed, models.SelfieStateSubmitted, ""); err != nil {
		return fmt.Errorf("rewind selfie: %w", err)
	}
	return r.publisher.PublishSelfieTask(ctx, models.SelfieTask{
		SelfieID:      selfie.ID,
		EventID:       selfie.EventID,
		AttendeeEmail: selfie.AttendeeEmail,
		ObjectKey:     selfie.ObjectKey,
	})
}
