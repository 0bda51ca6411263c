// Package ingest orchestrates photo and selfie processing: extraction,
// indexing, matching and ledger writes, with the state machines that make
// retries and crash recovery safe.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/match"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vision"
)

// Store is the persistence surface the pipeline depends on, implemented
// by storage.PostgresStore.
type Store interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	TransitionPhoto(ctx context.Context, id uuid.UUID, from, to models.PhotoState, errMsg string) error
	ReplacePhotoDescriptors(ctx context.Context, photoID uuid.UUID, descs []models.FaceDescriptor) error
	PhotoDescriptors(ctx context.Context, photoID uuid.UUID) ([]models.FaceDescriptor, error)
	EventAttendeeRefs(ctx context.Context, eventID uuid.UUID) ([]storage.AttendeeRef, error)

	GetSelfie(ctx context.Context, id uuid.UUID) (*models.Selfie, error)
	TransitionSelfie(ctx context.Context, id uuid.UUID, from, to models.SelfieState, errMsg string) error
	GetAttendee(ctx context.Context, eventID uuid.UUID, email string) (*models.Attendee, error)
	CreateAttendee(ctx context.Context, eventID uuid.UUID, email string) (*models.Attendee, error)
	AddAttendeeDescriptor(ctx context.Context, attendeeID uuid.UUID, descriptor []float32, confidence float32) (*models.AttendeeDescriptor, error)

	RecordMatch(ctx context.Context, attendeeID, photoID uuid.UUID, score float32) error
}

// Blobs fetches raw image bytes, implemented by storage.MinIOStore.
type Blobs interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Publisher emits attribution milestones, implemented by queue.Producer.
type Publisher interface {
	PublishMatchEvent(ctx context.Context, ev models.MatchEvent) error
}

// Config holds the pipeline tunables.
type Config struct {
	ExtractTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// Pipeline processes one ingestion task at a time per worker goroutine.
// Transient storage failures are retried with bounded backoff without
// consuming a state transition; extraction failures are terminal per
// attempt and flag the entity failed.
type Pipeline struct {
	store     Store
	blobs     Blobs
	extractor vision.Extractor
	resolver  *match.Resolver
	index     match.Index
	publisher Publisher
	cfg       Config
}

func NewPipeline(store Store, blobs Blobs, extractor vision.Extractor, resolver *match.Resolver, index match.Index, publisher Publisher, cfg Config) *Pipeline {
	if cfg.ExtractTimeout == 0 {
		cfg.ExtractTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Pipeline{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		resolver:  resolver,
		index:     index,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ProcessPhoto runs one photo through extraction, indexing and the rescan
// of registered attendees. Safe to re-run after a crash: a photo left in
// extracting restarts extraction from scratch.
func (p *Pipeline) ProcessPhoto(ctx context.Context, task models.PhotoTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("photo task panic: %v", r)
		}
	}()

	photo, err := p.getPhoto(ctx, task.PhotoID)
	if err != nil {
		return err
	}
	if photo == nil {
		slog.Warn("photo task for missing photo", "photo_id", task.PhotoID)
		return nil
	}

	switch photo.State {
	case models.PhotoStateUploaded:
		if err := p.store.TransitionPhoto(ctx, photo.ID, models.PhotoStateUploaded, models.PhotoStateExtracting, ""); err != nil {
			return fmt.Errorf("start extracting: %w", err)
		}
	case models.PhotoStateExtracting:
		// Crash recovery: extraction is pure, restart it.
	case models.PhotoStateIndexed:
		// Crashed after indexing; resume the attendee rescan with the
		// persisted descriptors.
		return p.finishPhoto(ctx, photo)
	default:
		slog.Debug("photo already processed", "photo_id", photo.ID, "state", photo.State)
		return nil
	}

	data, err := p.blobs.GetObject(ctx, photo.ObjectKey)
	if err != nil {
		return fmt.Errorf("load photo bytes: %w", err)
	}

	start := time.Now()
	faces, err := p.extractFaces(ctx, data)
	observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		p.failPhoto(ctx, photo.ID, models.PhotoStateExtracting, err)
		return nil
	}
	observability.FacesExtracted.Add(float64(len(faces)))

	descs := make([]models.FaceDescriptor, 0, len(faces))
	vectors := make([][]float32, 0, len(faces))
	for _, f := range faces {
		descs = append(descs, models.FaceDescriptor{
			PhotoID:    photo.ID,
			Descriptor: f.Descriptor,
			BBox:       f.BBox,
			Confidence: f.Confidence,
		})
		vectors = append(vectors, f.Descriptor)
	}

	err = p.withRetry(ctx, "index photo", func() error {
		return p.store.ReplacePhotoDescriptors(ctx, photo.ID, descs)
	})
	if err != nil {
		return err
	}
	if err := p.index.Insert(ctx, photo.EventID, photo.ID, photo.UploadedAt, vectors); err != nil {
		return fmt.Errorf("insert into index: %w", err)
	}

	if err := p.store.TransitionPhoto(ctx, photo.ID, models.PhotoStateExtracting, models.PhotoStateIndexed, ""); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	p.publish(ctx, models.MatchEvent{
		Type:      models.MatchEventPhotoIndexed,
		EventID:   photo.EventID,
		PhotoID:   photo.ID,
		Timestamp: time.Now(),
	})

	// Rescan: every already-registered attendee is checked against the
	// fresh descriptors, so registrations that predate this photo still
	// get attributed.
	if err := p.rescanAttendees(ctx, photo, vectors); err != nil {
		return err
	}

	if err := p.store.TransitionPhoto(ctx, photo.ID, models.PhotoStateIndexed, models.PhotoStateMatched, ""); err != nil {
		return fmt.Errorf("mark matched: %w", err)
	}
	observability.PhotosIngested.WithLabelValues(string(models.PhotoStateMatched)).Inc()

	slog.Info("photo ingested", "photo_id", photo.ID, "event_id", photo.EventID, "faces", len(faces))
	return nil
}

// finishPhoto re-runs the attendee rescan from persisted descriptors and
// closes out the photo state machine.
func (p *Pipeline) finishPhoto(ctx context.Context, photo *models.Photo) error {
	descs, err := p.store.PhotoDescriptors(ctx, photo.ID)
	if err != nil {
		return fmt.Errorf("load photo descriptors: %w", err)
	}
	vectors := make([][]float32, 0, len(descs))
	for _, d := range descs {
		vectors = append(vectors, d.Descriptor)
	}

	if err := p.rescanAttendees(ctx, photo, vectors); err != nil {
		return err
	}
	if err := p.store.TransitionPhoto(ctx, photo.ID, models.PhotoStateIndexed, models.PhotoStateMatched, ""); err != nil {
		return fmt.Errorf("mark matched: %w", err)
	}
	observability.PhotosIngested.WithLabelValues(string(models.PhotoStateMatched)).Inc()
	return nil
}

func (p *Pipeline) rescanAttendees(ctx context.Context, photo *models.Photo, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	var refs []storage.AttendeeRef
	err := p.withRetry(ctx, "load attendee refs", func() error {
		var err error
		refs, err = p.store.EventAttendeeRefs(ctx, photo.EventID)
		return err
	})
	if err != nil {
		return err
	}

	start := time.Now()
	for _, ref := range refs {
		score, ok := p.resolver.Matches(ref.Descriptor, vectors)
		if !ok {
			continue
		}
		if err := p.recordMatch(ctx, ref.AttendeeID, photo.ID, float32(score)); err != nil {
			return err
		}
		p.publish(ctx, models.MatchEvent{
			Type:          models.MatchEventPhotoMatched,
			EventID:       photo.EventID,
			PhotoID:       photo.ID,
			AttendeeEmail: ref.Email,
			Score:         float32(score),
			Timestamp:     time.Now(),
		})
	}
	observability.StageDuration.WithLabelValues("rescan").Observe(time.Since(start).Seconds())
	return nil
}

// ProcessSelfie runs one selfie submission: extract the reference
// descriptor, register the attendee, match against the event's photo
// pool, write attributions.
func (p *Pipeline) ProcessSelfie(ctx context.Context, task models.SelfieTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selfie task panic: %v", r)
		}
	}()

	selfie, err := p.getSelfie(ctx, task.SelfieID)
	if err != nil {
		return err
	}
	if selfie == nil {
		slog.Warn("selfie task for missing selfie", "selfie_id", task.SelfieID)
		return nil
	}

	resumedMatching := false
	switch selfie.State {
	case models.SelfieStateSubmitted:
		if err := p.store.TransitionSelfie(ctx, selfie.ID, models.SelfieStateSubmitted, models.SelfieStateExtracting, ""); err != nil {
			return fmt.Errorf("start extracting: %w", err)
		}
	case models.SelfieStateExtracting:
		// Crash recovery: extraction is pure, restart it.
	case models.SelfieStateMatching:
		// Crashed between extraction and attribution. Extraction is pure,
		// so redo it and pick matching back up from the current state.
		resumedMatching = true
	default:
		slog.Debug("selfie already processed", "selfie_id", selfie.ID, "state", selfie.State)
		return nil
	}

	data, err := p.blobs.GetObject(ctx, selfie.ObjectKey)
	if err != nil {
		return fmt.Errorf("load selfie bytes: %w", err)
	}

	start := time.Now()
	face, total, err := p.extractBest(ctx, data)
	observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		// Zero detectable faces and unreadable bytes are both terminal
		// for this attempt; the attendee re-uploads.
		from := models.SelfieStateExtracting
		if resumedMatching {
			from = models.SelfieStateMatching
		}
		p.failSelfie(ctx, selfie.ID, from, err)
		return nil
	}
	if total > 1 {
		slog.Warn("multiple faces in selfie, proceeding with best",
			"selfie_id", selfie.ID, "faces", total, "confidence", face.Confidence)
	}

	if !resumedMatching {
		if err := p.store.TransitionSelfie(ctx, selfie.ID, models.SelfieStateExtracting, models.SelfieStateMatching, ""); err != nil {
			return fmt.Errorf("start matching: %w", err)
		}
	}

	attendee, err := p.registerAttendee(ctx, selfie, face)
	if err != nil {
		return err
	}

	start = time.Now()
	var matches []match.PhotoMatch
	err = p.withRetry(ctx, "rank photos", func() error {
		var err error
		matches, err = p.resolver.Rank(ctx, selfie.EventID, face.Descriptor)
		return err
	})
	observability.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	for _, m := range matches {
		if err := p.recordMatch(ctx, attendee.ID, m.PhotoID, m.Score); err != nil {
			return err
		}
	}

	if err := p.store.TransitionSelfie(ctx, selfie.ID, models.SelfieStateMatching, models.SelfieStateAttributed, ""); err != nil {
		return fmt.Errorf("mark attributed: %w", err)
	}
	observability.SelfiesIngested.WithLabelValues(string(models.SelfieStateAttributed)).Inc()

	p.publish(ctx, models.MatchEvent{
		Type:          models.MatchEventSelfieAttributed,
		EventID:       selfie.EventID,
		AttendeeEmail: selfie.AttendeeEmail,
		Timestamp:     time.Now(),
	})

	slog.Info("selfie processed", "selfie_id", selfie.ID, "event_id", selfie.EventID,
		"attendee", selfie.AttendeeEmail, "matches", len(matches))
	return nil
}

func (p *Pipeline) registerAttendee(ctx context.Context, selfie *models.Selfie, face vision.Face) (*models.Attendee, error) {
	attendee, err := p.store.GetAttendee(ctx, selfie.EventID, selfie.AttendeeEmail)
	if err != nil {
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	if attendee == nil {
		attendee, err = p.store.CreateAttendee(ctx, selfie.EventID, selfie.AttendeeEmail)
		if errors.Is(err, storage.ErrDuplicateAttendee) {
			// Lost a registration race; the existing record wins.
			attendee, err = p.store.GetAttendee(ctx, selfie.EventID, selfie.AttendeeEmail)
		}
		if err != nil {
			return nil, fmt.Errorf("register attendee: %w", err)
		}
	}

	if _, err := p.store.AddAttendeeDescriptor(ctx, attendee.ID, face.Descriptor, face.Confidence); err != nil {
		return nil, fmt.Errorf("store reference descriptor: %w", err)
	}
	return attendee, nil
}

func (p *Pipeline) recordMatch(ctx context.Context, attendeeID, photoID uuid.UUID, score float32) error {
	err := p.withRetry(ctx, "record match", func() error {
		return p.store.RecordMatch(ctx, attendeeID, photoID, score)
	})
	if err != nil {
		return err
	}
	observability.MatchesRecorded.Inc()
	return nil
}

// extractFaces runs extraction under the configured timeout. The
// extractor call is left to finish in the background on timeout; there is
// no cancellation requirement for in-flight extraction.
func (p *Pipeline) extractFaces(ctx context.Context, data []byte) ([]vision.Face, error) {
	type result struct {
		faces []vision.Face
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		faces, err := p.extractor.ExtractFaces(data)
		ch <- result{faces, err}
	}()

	select {
	case r := <-ch:
		return r.faces, r.err
	case <-time.After(p.cfg.ExtractTimeout):
		return nil, &vision.ExtractionError{Reason: "extraction timed out"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) extractBest(ctx context.Context, data []byte) (vision.Face, int, error) {
	type result struct {
		face  vision.Face
		total int
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		face, total, err := p.extractor.ExtractBest(data)
		ch <- result{face, total, err}
	}()

	select {
	case r := <-ch:
		return r.face, r.total, r.err
	case <-time.After(p.cfg.ExtractTimeout):
		return vision.Face{}, 0, &vision.ExtractionError{Reason: "extraction timed out"}
	case <-ctx.Done():
		return vision.Face{}, 0, ctx.Err()
	}
}

func (p *Pipeline) failPhoto(ctx context.Context, id uuid.UUID, from models.PhotoState, cause error) {
	slog.Warn("photo ingestion failed", "photo_id", id, "error", cause)
	if err := p.store.TransitionPhoto(ctx, id, from, models.PhotoStateFailed, cause.Error()); err != nil {
		slog.Error("mark photo failed", "photo_id", id, "error", err)
	}
	observability.PhotosIngested.WithLabelValues(string(models.PhotoStateFailed)).Inc()
}

func (p *Pipeline) failSelfie(ctx context.Context, id uuid.UUID, from models.SelfieState, cause error) {
	slog.Warn("selfie ingestion failed", "selfie_id", id, "error", cause)
	if err := p.store.TransitionSelfie(ctx, id, from, models.SelfieStateFailed, cause.Error()); err != nil {
		slog.Error("mark selfie failed", "selfie_id", id, "error", err)
	}
	observability.SelfiesIngested.WithLabelValues(string(models.SelfieStateFailed)).Inc()
}

func (p *Pipeline) getPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	var photo *models.Photo
	err := p.withRetry(ctx, "get photo", func() error {
		var err error
		photo, err = p.store.GetPhoto(ctx, id)
		return err
	})
	return photo, err
}

func (p *Pipeline) getSelfie(ctx context.Context, id uuid.UUID) (*models.Selfie, error) {
	var selfie *models.Selfie
	err := p.withRetry(ctx, "get selfie", func() error {
		var err error
		selfie, err = p.store.GetSelfie(ctx, id)
		return err
	})
	return selfie, err
}

// withRetry retries transient storage failures with exponential backoff.
// Permanent errors fail the first attempt; exhausting the attempts
// returns the last error. Either way the returned error NAKs the task
// for redelivery without losing pipeline state.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := p.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !storage.Transient(err) || attempt == p.cfg.RetryAttempts {
			break
		}
		slog.Warn("storage operation failed, retrying", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Pipeline) publish(ctx context.Context, ev models.MatchEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishMatchEvent(ctx, ev); err != nil {
		slog.Warn("publish match event", "type", ev.Type, "error", err)
	}
}
