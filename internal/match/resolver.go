// Package match decides which photos depict an attendee. It ranks one
// event's photo pool against a query descriptor and scores the reverse
// direction when a freshly indexed photo is checked against registered
// attendees.
package match

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrNoDescriptor is returned when a query carries no descriptor vector.
var ErrNoDescriptor = errors.New("query has no descriptor")

// Resolver ranks an event's photos for a query descriptor.
type Resolver struct {
	index     Index
	threshold float64
}

func NewResolver(index Index, threshold float64) *Resolver {
	return &Resolver{index: index, threshold: threshold}
}

// Threshold returns the similarity floor in effect.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Rank returns the event's matching photos sorted by descending score;
// score ties are broken by upload timestamp ascending (earliest first),
// then photo id for a stable order.
func (r *Resolver) Rank(ctx context.Context, eventID uuid.UUID, query []float32) ([]PhotoMatch, error) {
	if len(query) == 0 {
		return nil, ErrNoDescriptor
	}

	matches, err := r.index.Search(ctx, eventID, query, r.threshold)
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].UploadedAt.Equal(matches[j].UploadedAt) {
			return matches[i].UploadedAt.Before(matches[j].UploadedAt)
		}
		return matches[i].PhotoID.String() < matches[j].PhotoID.String()
	})
	return matches, nil
}

// Matches reports whether a photo with the given descriptors depicts the
// reference descriptor's owner, and at what score.
func (r *Resolver) Matches(ref []float32, photoDescriptors [][]float32) (float64, bool) {
	score := BestScore(ref, photoDescriptors)
	return score, score >= r.threshold
}
