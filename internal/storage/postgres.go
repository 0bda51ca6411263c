package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, name, organizerEmail string) (*models.Event, error) {
	ev := &models.Event{
		ID:             uuid.New(),
		Name:           name,
		OrganizerEmail: organizerEmail,
		Status:         models.EventStatusOpen,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, name, organizer_email, status) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		ev.ID, ev.Name, ev.OrganizerEmail, ev.Status,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, organizer_email, status, created_at FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Name, &ev.OrganizerEmail, &ev.Status, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, organizer_email, status, created_at FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.OrganizerEmail, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) SetEventStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE events SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event; photos, descriptors, attendees and
// attributions go with it via foreign-key cascades.
func (s *PostgresStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.State = models.PhotoStateUploaded
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, event_id, object_key, content_type, state)
		 VALUES ($1, $2, $3, $4, $5) RETURNING uploaded_at`,
		p.ID, p.EventID, p.ObjectKey, p.ContentType, p.State,
	).Scan(&p.UploadedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p := &models.Photo{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, object_key, content_type, state, error_message, uploaded_at
		 FROM photos WHERE id = $1`, id,
	).Scan(&p.ID, &p.EventID, &p.ObjectKey, &p.ContentType, &p.State, &p.ErrorMessage, &p.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListEventPhotos(ctx context.Context, eventID uuid.UUID) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, content_type, state, error_message, uploaded_at
		 FROM photos WHERE event_id = $1 ORDER BY uploaded_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.ObjectKey, &p.ContentType, &p.State, &p.ErrorMessage, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// TransitionPhoto moves a photo between states with a compare-and-swap on
// the current state, so concurrent workers cannot double-apply an edge.
func (s *PostgresStore) TransitionPhoto(ctx context.Context, id uuid.UUID, from, to models.PhotoState, errMsg string) error {
	if !models.ValidPhotoTransition(from, to) {
		return fmt.Errorf("illegal photo transition %s -> %s", from, to)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE photos SET state = $1, error_message = $2 WHERE id = $3 AND state = $4`,
		to, errMsg, id, from)
	if err != nil {
		return fmt.Errorf("transition photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("photo %s not in state %s: %w", id, from, ErrNotFound)
	}
	return nil
}

// StalePhotos returns photos that have sat in the given state longer than
// the threshold. Used by the sweeper to re-enqueue work lost to a crash.
func (s *PostgresStore) StalePhotos(ctx context.Context, state models.PhotoState, olderThan time.Time) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, content_type, state, error_message, uploaded_at
		 FROM photos WHERE state = $1 AND uploaded_at < $2`, state, olderThan)
	if err != nil {
		return nil, fmt.Errorf("stale photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.ObjectKey, &p.ContentType, &p.State, &p.ErrorMessage, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan stale photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Face descriptors (photo index) ---

// ReplacePhotoDescriptors swaps the photo's descriptor set in one
// transaction. Re-running with the same photo id replaces rather than
// duplicates, which makes re-indexing idempotent.
func (s *PostgresStore) ReplacePhotoDescriptors(ctx context.Context, photoID uuid.UUID, descs []models.FaceDescriptor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace descriptors: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM face_descriptors WHERE photo_id = $1`, photoID); err != nil {
		return fmt.Errorf("clear descriptors: %w", err)
	}

	for i := range descs {
		d := &descs[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.PhotoID = photoID
		vec := pgvector.NewVector(d.Descriptor)
		err := tx.QueryRow(ctx,
			`INSERT INTO face_descriptors (id, photo_id, descriptor, bbox, confidence)
			 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
			d.ID, d.PhotoID, vec, d.BBox[:], d.Confidence,
		).Scan(&d.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert descriptor: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace descriptors: %w", err)
	}
	return nil
}

func (s *PostgresStore) PhotoDescriptors(ctx context.Context, photoID uuid.UUID) ([]models.FaceDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, descriptor, bbox, confidence, created_at
		 FROM face_descriptors WHERE photo_id = $1 ORDER BY created_at ASC, id ASC`, photoID)
	if err != nil {
		return nil, fmt.Errorf("photo descriptors: %w", err)
	}
	defer rows.Close()
	return scanDescriptors(rows)
}

// EventDescriptor couples a descriptor with its photo reference; one row
// per extracted face of an indexed photo of the event.
type EventDescriptor struct {
	PhotoID    uuid.UUID
	UploadedAt time.Time
	Descriptor []float32
}

// EventDescriptors returns every descriptor of the event's indexed photos.
// Used to warm the in-memory index and for full re-index runs.
func (s *PostgresStore) EventDescriptors(ctx context.Context, eventID uuid.UUID) ([]EventDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.photo_id, p.uploaded_at, d.descriptor
		 FROM face_descriptors d
		 JOIN photos p ON p.id = d.photo_id
		 WHERE p.event_id = $1 AND p.state IN ('indexed', 'matched')
		 ORDER BY p.uploaded_at ASC, d.id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("event descriptors: %w", err)
	}
	defer rows.Close()

	var out []EventDescriptor
	for rows.Next() {
		var ed EventDescriptor
		var vec pgvector.Vector
		if err := rows.Scan(&ed.PhotoID, &ed.UploadedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan event descriptor: %w", err)
		}
		ed.Descriptor = vec.Slice()
		out = append(out, ed)
	}
	return out, rows.Err()
}

// PhotoHit is one photo candidate from a descriptor search.
type PhotoHit struct {
	PhotoID    uuid.UUID
	Score      float32
	UploadedAt time.Time
}

// SearchEventPhotos finds the event's photos with at least one descriptor
// at or above the cosine similarity threshold. A photo's score is the max
// over its descriptors; results come back score-descending, ties broken by
// earliest upload. Only this event's photos are ever searched.
func (s *PostgresStore) SearchEventPhotos(ctx context.Context, eventID uuid.UUID, query []float32, threshold float64) ([]PhotoHit, error) {
	vec := pgvector.NewVector(query)
	rows, err := s.pool.Query(ctx,
		`SELECT d.photo_id, MAX(1 - (d.descriptor <=> $1))::float4 AS score, p.uploaded_at
		 FROM face_descriptors d
		 JOIN photos p ON p.id = d.photo_id
		 WHERE p.event_id = $2
		   AND p.state IN ('indexed', 'matched')
		   AND 1 - (d.descriptor <=> $1) >= $3
		 GROUP BY d.photo_id, p.uploaded_at
		 ORDER BY score DESC, p.uploaded_at ASC`,
		vec, eventID, threshold)
	if err != nil {
		return nil, fmt.Errorf("search event photos: %w", err)
	}
	defer rows.Close()

	var hits []PhotoHit
	for rows.Next() {
		var h PhotoHit
		if err := rows.Scan(&h.PhotoID, &h.Score, &h.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// --- Attendees ---

func (s *PostgresStore) CreateAttendee(ctx context.Context, eventID uuid.UUID, email string) (*models.Attendee, error) {
	a := &models.Attendee{
		ID:      uuid.New(),
		EventID: eventID,
		Email:   email,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendees (id, event_id, email) VALUES ($1, $2, $3) RETURNING registered_at`,
		a.ID, a.EventID, a.Email,
	).Scan(&a.RegisteredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAttendee
		}
		return nil, fmt.Errorf("create attendee: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetAttendee(ctx context.Context, eventID uuid.UUID, email string) (*models.Attendee, error) {
	a := &models.Attendee{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, email, registered_at FROM attendees WHERE event_id = $1 AND email = $2`,
		eventID, email,
	).Scan(&a.ID, &a.EventID, &a.Email, &a.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) AddAttendeeDescriptor(ctx context.Context, attendeeID uuid.UUID, descriptor []float32, confidence float32) (*models.AttendeeDescriptor, error) {
	ad := &models.AttendeeDescriptor{
		ID:         uuid.New(),
		AttendeeID: attendeeID,
		Descriptor: descriptor,
		Confidence: confidence,
	}
	vec := pgvector.NewVector(descriptor)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendee_descriptors (id, attendee_id, descriptor, confidence)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		ad.ID, ad.AttendeeID, vec, ad.Confidence,
	).Scan(&ad.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add attendee descriptor: %w", err)
	}
	return ad, nil
}

// AttendeeRef is one registered attendee's reference descriptor, used for
// the photo-side rescan after indexing.
type AttendeeRef struct {
	AttendeeID uuid.UUID
	Email      string
	Descriptor []float32
}

func (s *PostgresStore) EventAttendeeRefs(ctx context.Context, eventID uuid.UUID) ([]AttendeeRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.email, d.descriptor
		 FROM attendees a
		 JOIN attendee_descriptors d ON d.attendee_id = a.id
		 WHERE a.event_id = $1
		 ORDER BY a.registered_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("event attendee refs: %w", err)
	}
	defer rows.Close()

	var refs []AttendeeRef
	for rows.Next() {
		var r AttendeeRef
		var vec pgvector.Vector
		if err := rows.Scan(&r.AttendeeID, &r.Email, &vec); err != nil {
			return nil, fmt.Errorf("scan attendee ref: %w", err)
		}
		r.Descriptor = vec.Slice()
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// --- Selfies ---

func (s *PostgresStore) CreateSelfie(ctx context.Context, sf *models.Selfie) error {
	if sf.ID == uuid.Nil {
		sf.ID = uuid.New()
	}
	sf.State = models.SelfieStateSubmitted
	err := s.pool.QueryRow(ctx,
		`INSERT INTO selfies (id, event_id, attendee_email, object_key, state)
		 VALUES ($1, $2, $3, $4, $5) RETURNING submitted_at`,
		sf.ID, sf.EventID, sf.AttendeeEmail, sf.ObjectKey, sf.State,
	).Scan(&sf.SubmittedAt)
	if err != nil {
		return fmt.Errorf("create selfie: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSelfie(ctx context.Context, id uuid.UUID) (*models.Selfie, error) {
	sf := &models.Selfie{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, attendee_email, object_key, state, error_message, submitted_at
		 FROM selfies WHERE id = $1`, id,
	).Scan(&sf.ID, &sf.EventID, &sf.AttendeeEmail, &sf.ObjectKey, &sf.State, &sf.ErrorMessage, &sf.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get selfie: %w", err)
	}
	return sf, nil
}

func (s *PostgresStore) TransitionSelfie(ctx context.Context, id uuid.UUID, from, to models.SelfieState, errMsg string) error {
	if !models.ValidSelfieTransition(from, to) {
		return fmt.Errorf("illegal selfie transition %s -> %s", from, to)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE selfies SET state = $1, error_message = $2 WHERE id = $3 AND state = $4`,
		to, errMsg, id, from)
	if err != nil {
		return fmt.Errorf("transition selfie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("selfie %s not in state %s: %w", id, from, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) StaleSelfies(ctx context.Context, state models.SelfieState, olderThan time.Time) ([]models.Selfie, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, attendee_email, object_key, state, error_message, submitted_at
		 FROM selfies WHERE state = $1 AND submitted_at < $2`, state, olderThan)
	if err != nil {
		return nil, fmt.Errorf("stale selfies: %w", err)
	}
	defer rows.Close()

	var selfies []models.Selfie
	for rows.Next() {
		var sf models.Selfie
		if err := rows.Scan(&sf.ID, &sf.EventID, &sf.AttendeeEmail, &sf.ObjectKey, &sf.State, &sf.ErrorMessage, &sf.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan stale selfie: %w", err)
		}
		selfies = append(selfies, sf)
	}
	return selfies, rows.Err()
}

// --- Attribution ledger ---

// RecordMatch upserts the (attendee, photo) attribution. The stored score
// never regresses: a lower-confidence re-run leaves the row untouched.
// Per-pair atomicity comes from the single upsert statement.
func (s *PostgresStore) RecordMatch(ctx context.Context, attendeeID, photoID uuid.UUID, score float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attributions (attendee_id, photo_id, score, decided_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (attendee_id, photo_id) DO UPDATE
		 SET score = EXCLUDED.score, decided_at = EXCLUDED.decided_at
		 WHERE attributions.score < EXCLUDED.score`,
		attendeeID, photoID, score)
	if err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

// PhotosForAttendee returns every photo attributed to the account across
// all events it registered for, newest decision first.
func (s *PostgresStore) PhotosForAttendee(ctx context.Context, email string) ([]models.AttributedPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.event_id, p.object_key, at.score, p.uploaded_at, at.decided_at
		 FROM attributions at
		 JOIN attendees a ON a.id = at.attendee_id
		 JOIN photos p ON p.id = at.photo_id
		 WHERE a.email = $1
		 ORDER BY at.decided_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("photos for attendee: %w", err)
	}
	defer rows.Close()

	var photos []models.AttributedPhoto
	for rows.Next() {
		var ap models.AttributedPhoto
		if err := rows.Scan(&ap.PhotoID, &ap.EventID, &ap.ObjectKey, &ap.Score, &ap.UploadedAt, &ap.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan attributed photo: %w", err)
		}
		photos = append(photos, ap)
	}
	return photos, rows.Err()
}

// PhotoAttendee is one attendee attributed to a photo (moderation view).
type PhotoAttendee struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
	Email      string    `json:"email"`
	Score      float32   `json:"score"`
	DecidedAt  time.Time `json:"decided_at"`
}

func (s *PostgresStore) AttendeesForPhoto(ctx context.Context, photoID uuid.UUID) ([]PhotoAttendee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.email, at.score, at.decided_at
		 FROM attributions at
		 JOIN attendees a ON a.id = at.attendee_id
		 WHERE at.photo_id = $1
		 ORDER BY at.score DESC`, photoID)
	if err != nil {
		return nil, fmt.Errorf("attendees for photo: %w", err)
	}
	defer rows.Close()

	var out []PhotoAttendee
	for rows.Next() {
		var pa PhotoAttendee
		if err := rows.Scan(&pa.AttendeeID, &pa.Email, &pa.Score, &pa.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan photo attendee: %w", err)
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func scanDescriptors(rows pgx.Rows) ([]models.FaceDescriptor, error) {
	var descs []models.FaceDescriptor
	for rows.Next() {
		var d models.FaceDescriptor
		var vec pgvector.Vector
		var bbox []float32
		if err := rows.Scan(&d.ID, &d.PhotoID, &vec, &bbox, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		d.Descriptor = vec.Slice()
		copy(d.BBox[:], bbox)
		descs = append(descs, d)
	}
	return descs, rows.Err()
}
