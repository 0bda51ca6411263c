package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/models"
)

// SweepStore lists entities stuck in a non-terminal state, typically
// because the enqueue was lost or a worker died before acking.
type SweepStore interface {
	StalePhotos(ctx context.Context, state models.PhotoState, olderThan time.Time) ([]models.Photo, error)
	StaleSelfies(ctx context.Context, state models.SelfieState, olderThan time.Time) ([]models.Selfie, error)
}

// Every state a task can die in: the initial states cover lost enqueues,
// the in-flight states cover work whose redeliveries ran out.
var (
	sweepPhotoStates = []models.PhotoState{
		models.PhotoStateUploaded,
		models.PhotoStateExtracting,
		models.PhotoStateIndexed,
	}
	sweepSelfieStates = []models.SelfieState{
		models.SelfieStateSubmitted,
		models.SelfieStateExtracting,
		models.SelfieStateMatching,
	}
)

// Sweeper periodically re-enqueues photos and selfies that never left
// their initial state. Redelivery of an already-enqueued task is harmless
// because the pipeline transitions are compare-and-swap.
type Sweeper struct {
	store     SweepStore
	publisher RetryPublisher
	interval  time.Duration
	staleAge  time.Duration
}

func NewSweeper(store SweepStore, publisher RetryPublisher, interval, staleAge time.Duration) *Sweeper {
	if interval == 0 {
		interval = time.Minute
	}
	if staleAge == 0 {
		staleAge = 5 * time.Minute
	}
	return &Sweeper{store: store, publisher: publisher, interval: interval, staleAge: staleAge}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				slog.Error("sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("requeued stale entities", "count", n)
			}
		}
	}
}

// Sweep requeues everything stale in one pass and returns how many tasks
// it published.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAge)
	requeued := 0

	for _, state := range sweepPhotoStates {
		photos, err := s.store.StalePhotos(ctx, state, cutoff)
		if err != nil {
			return requeued, err
		}
		for _, photo := range photos {
			task := models.PhotoTask{PhotoID: photo.ID, EventID: photo.EventID, ObjectKey: photo.ObjectKey}
			if err := s.publisher.PublishPhotoTask(ctx, task); err != nil {
				slog.Warn("requeue photo", "photo_id", photo.ID, "error", err)
				continue
			}
			s.logRequeue("photo", photo.ID, photo.UploadedAt)
			requeued++
		}
	}

	for _, state := range sweepSelfieStates {
		selfies, err := s.store.StaleSelfies(ctx, state, cutoff)
		if err != nil {
			return requeued, err
		}
		for _, selfie := range selfies {
			task := models.SelfieTask{
				SelfieID:      selfie.ID,
				EventID:       selfie.EventID,
				AttendeeEmail: selfie.AttendeeEmail,
				ObjectKey:     selfie.ObjectKey,
			}
			if err := s.publisher.PublishSelfieTask(ctx, task); err != nil {
				slog.Warn("requeue selfie", "selfie_id", selfie.ID, "error", err)
				continue
			}
			s.logRequeue("selfie", selfie.ID, selfie.SubmittedAt)
			requeued++
		}
	}
	return requeued, nil
}

func (s *Sweeper) logRequeue(kind string, id uuid.UUID, since time.Time) {
	slog.Info("requeued stale "+kind, "id", id, "stale_for", time.Since(since).Round(time.Second))
}
