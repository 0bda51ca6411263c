package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type staticIndex struct {
	matches []PhotoMatch
	err     error
}

func (s *staticIndex) Insert(ctx context.Context, eventID, photoID uuid.UUID, uploadedAt time.Time, descriptors [][]float32) error {
	return nil
}

func (s *staticIndex) Remove(ctx context.Context, eventID, photoID uuid.UUID) error {
	return nil
}

func (s *staticIndex) Search(ctx context.Context, eventID uuid.UUID, query []float32, threshold float64) ([]PhotoMatch, error) {
	return s.matches, s.err
}

func TestRankOrdering(t *testing.T) {
	early := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	c := uuid.MustParse("cccccccc-0000-0000-0000-000000000000")
	d := uuid.MustParse("dddddddd-0000-0000-0000-000000000000")

	idx := &staticIndex{matches: []PhotoMatch{
		{PhotoID: c, Score: 0.7, UploadedAt: late},
		{PhotoID: d, Score: 0.7, UploadedAt: early}, // same score, earlier upload
		{PhotoID: a, Score: 0.9, UploadedAt: late},
		{PhotoID: b, Score: 0.7, UploadedAt: early}, // tie with d, smaller id wins
	}}

	r := NewResolver(idx, 0.6)
	got, err := r.Rank(context.Background(), uuid.New(), []float32{1, 0})
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}

	want := []uuid.UUID{a, b, d, c}
	if len(got) != len(want) {
		t.Fatalf("Rank() returned %d matches; want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].PhotoID != id {
			t.Errorf("Rank()[%d] = %s; want %s", i, got[i].PhotoID, id)
		}
	}
}

func TestRankNoDescriptor(t *testing.T) {
	r := NewResolver(&staticIndex{}, 0.6)
	if _, err := r.Rank(context.Background(), uuid.New(), nil); !errors.Is(err, ErrNoDescriptor) {
		t.Errorf("Rank() with empty query error = %v; want ErrNoDescriptor", err)
	}
}

func TestRankPropagatesIndexError(t *testing.T) {
	boom := errors.New("index unavailable")
	r := NewResolver(&staticIndex{err: boom}, 0.6)
	if _, err := r.Rank(context.Background(), uuid.New(), []float32{1}); !errors.Is(err, boom) {
		t.Errorf("Rank() error = %v; want %v", err, boom)
	}
}

func TestMatchesThreshold(t *testing.T) {
	r := NewResolver(&staticIndex{}, 0.6)

	tests := []struct {
		name     string
		ref      []float32
		descs    [][]float32
		expected bool
	}{
		{"clears threshold", []float32{1, 0}, [][]float32{{1, 0}}, true},
		{"one of several faces clears it", []float32{1, 0}, [][]float32{{0, 1}, {1, 0.1}}, true},
		{"below threshold", []float32{1, 0}, [][]float32{{0.5, 1}}, false},
		{"no faces", []float32{1, 0}, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, ok := r.Matches(tc.ref, tc.descs)
			if ok != tc.expected {
				t.Errorf("Matches() = (%v, %v); want ok=%v", score, ok, tc.expected)
			}
			if ok && score < r.Threshold() {
				t.Errorf("Matches() ok with score %v below threshold %v", score, r.Threshold())
			}
		})
	}
}
