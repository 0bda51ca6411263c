package match

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical unit vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"scale invariant", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, -1},
		{"empty vectors", nil, nil, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, -0.5, 0.8, 0.1}
	b := []float32{-0.2, 0.4, 0.6, -0.7}

	if ab, ba := CosineSimilarity(a, b), CosineSimilarity(b, a); math.Abs(ab-ba) > 1e-12 {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestBestScore(t *testing.T) {
	ref := []float32{1, 0, 0}
	candidates := [][]float32{
		{0, 1, 0},          // 0
		{1, 1, 0},          // ~0.707
		{0.9, 0.1, 0},      // high
		{-1, 0, 0},         // -1
	}

	got := BestScore(ref, candidates)
	want := CosineSimilarity(ref, candidates[2])
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("BestScore() = %v; want %v", got, want)
	}
}

func TestBestScoreEmpty(t *testing.T) {
	if got := BestScore([]float32{1, 0}, nil); got != -1 {
		t.Errorf("BestScore() with no candidates = %v; want -1", got)
	}
}
