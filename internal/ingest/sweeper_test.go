package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/models"
)

func TestSweepRequeuesStaleEntities(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	sweeper := NewSweeper(store, pub, time.Minute, 5*time.Minute)

	eventID := uuid.New()
	old := time.Now().Add(-time.Hour)

	stalePhoto := &models.Photo{ID: uuid.New(), EventID: eventID, State: models.PhotoStateUploaded, UploadedAt: old}
	freshPhoto := &models.Photo{ID: uuid.New(), EventID: eventID, State: models.PhotoStateUploaded, UploadedAt: time.Now()}
	store.photos[stalePhoto.ID] = stalePhoto
	store.photos[freshPhoto.ID] = freshPhoto

	staleSelfie := &models.Selfie{
		ID: uuid.New(), EventID: eventID, AttendeeEmail: "gil@example.com",
		State: models.SelfieStateSubmitted, SubmittedAt: old,
	}
	store.selfies[staleSelfie.ID] = staleSelfie

	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Sweep() requeued %d; want 2", n)
	}

	if len(pub.photoTasks) != 1 || pub.photoTasks[0].PhotoID != stalePhoto.ID {
		t.Errorf("photo tasks = %v; want only the stale uploaded photo", pub.photoTasks)
	}
	if len(pub.selfieTasks) != 1 || pub.selfieTasks[0].SelfieID != staleSelfie.ID {
		t.Errorf("selfie tasks = %v; want only the stale submitted selfie", pub.selfieTasks)
	}
}

func TestSweepRequeuesStalledInFlightWork(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	sweeper := NewSweeper(store, pub, time.Minute, 5*time.Minute)

	eventID := uuid.New()
	old := time.Now().Add(-time.Hour)

	// Work whose queue redeliveries were exhausted mid-pipeline must
	// still come back; terminal states and fresh in-flight work must not.
	photoStates := map[models.PhotoState]bool{
		models.PhotoStateExtracting: true,
		models.PhotoStateIndexed:    true,
		models.PhotoStateMatched:    false,
		models.PhotoStateFailed:     false,
	}
	wantPhotos := make(map[uuid.UUID]bool)
	for state, want := range photoStates {
		p := &models.Photo{ID: uuid.New(), EventID: eventID, State: state, UploadedAt: old}
		store.photos[p.ID] = p
		if want {
			wantPhotos[p.ID] = true
		}
	}
	freshExtracting := &models.Photo{ID: uuid.New(), EventID: eventID, State: models.PhotoStateExtracting, UploadedAt: time.Now()}
	store.photos[freshExtracting.ID] = freshExtracting

	staleMatching := &models.Selfie{
		ID: uuid.New(), EventID: eventID, AttendeeEmail: "hal@example.com",
		State: models.SelfieStateMatching, SubmittedAt: old,
	}
	attributed := &models.Selfie{
		ID: uuid.New(), EventID: eventID, AttendeeEmail: "hal@example.com",
		State: models.SelfieStateAttributed, SubmittedAt: old,
	}
	store.selfies[staleMatching.ID] = staleMatching
	store.selfies[attributed.ID] = attributed

	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Sweep() requeued %d; want 3", n)
	}

	if len(pub.photoTasks) != len(wantPhotos) {
		t.Fatalf("photo tasks = %d; want %d", len(pub.photoTasks), len(wantPhotos))
	}
	for _, task := range pub.photoTasks {
		if !wantPhotos[task.PhotoID] {
			t.Errorf("requeued photo %s in a non-sweepable state", task.PhotoID)
		}
	}
	if len(pub.selfieTasks) != 1 || pub.selfieTasks[0].SelfieID != staleMatching.ID {
		t.Errorf("selfie tasks = %v; want only the stalled matching selfie", pub.selfieTasks)
	}
}

func TestSweepNothingStale(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	sweeper := NewSweeper(store, pub, time.Minute, 5*time.Minute)

	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 0 || len(pub.photoTasks) != 0 || len(pub.selfieTasks) != 0 {
		t.Errorf("empty store requeued %d tasks", n)
	}
}
