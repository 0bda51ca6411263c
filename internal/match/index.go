package match

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/storage"
)

// PhotoMatch is one matched photo with its similarity score.
type PhotoMatch struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	Score      float32   `json:"score"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Index searches one event's descriptor pool. Implementations are
// partitioned per event: a query never sees another event's photos.
// The linear/ANN tradeoff lives entirely behind this interface.
type Index interface {
	// Insert registers a photo's descriptors for search. Re-inserting
	// the same photo id replaces the previous set.
	Insert(ctx context.Context, eventID, photoID uuid.UUID, uploadedAt time.Time, descriptors [][]float32) error
	// Remove drops a photo from the index.
	Remove(ctx context.Context, eventID, photoID uuid.UUID) error
	// Search returns photos with at least one descriptor at or above
	// the similarity threshold, unordered.
	Search(ctx context.Context, eventID uuid.UUID, query []float32, threshold float64) ([]PhotoMatch, error)
}

// StoreIndex searches descriptors where they are persisted, using the
// pgvector cosine operator. The durable descriptor rows written during
// indexing are the index, so Insert and Remove have nothing extra to do.
type StoreIndex struct {
	db *storage.PostgresStore
}

func NewStoreIndex(db *storage.PostgresStore) *StoreIndex {
	return &StoreIndex{db: db}
}

func (s *StoreIndex) Insert(ctx context.Context, eventID, photoID uuid.UUID, uploadedAt time.Time, descriptors [][]float32) error {
	return nil
}

func (s *StoreIndex) Remove(ctx context.Context, eventID, photoID uuid.UUID) error {
	return nil
}

func (s *StoreIndex) Search(ctx context.Context, eventID uuid.UUID, query []float32, threshold float64) ([]PhotoMatch, error) {
	hits, err := s.db.SearchEventPhotos(ctx, eventID, query, threshold)
	if err != nil {
		return nil, err
	}

	matches := make([]PhotoMatch, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, PhotoMatch{
			PhotoID:    h.PhotoID,
			Score:      h.Score,
			UploadedAt: h.UploadedAt,
		})
	}
	return matches, nil
}

// WarmFromStore loads every event's persisted descriptors into idx.
// Needed after a restart when the index does not live in the database.
func WarmFromStore(ctx context.Context, db *storage.PostgresStore, idx Index) error {
	events, err := db.ListEvents(ctx)
	if err != nil {
		return err
	}

	for _, ev := range events {
		descs, err := db.EventDescriptors(ctx, ev.ID)
		if err != nil {
			return err
		}

		type photoSet struct {
			uploadedAt time.Time
			vectors    [][]float32
		}
		photos := make(map[uuid.UUID]*photoSet)
		for _, d := range descs {
			ps, ok := photos[d.PhotoID]
			if !ok {
				ps = &photoSet{uploadedAt: d.UploadedAt}
				photos[d.PhotoID] = ps
			}
			ps.vectors = append(ps.vectors, d.Descriptor)
		}

		for photoID, ps := range photos {
			if err := idx.Insert(ctx, ev.ID, photoID, ps.uploadedAt, ps.vectors); err != nil {
				return err
			}
		}
	}
	return nil
}
