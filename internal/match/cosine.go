package match

import "math"

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1]. Invalid input (mismatched lengths, zero vectors)
// scores -1, the worst possible match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// BestScore returns the maximum cosine similarity between the reference
// descriptor and any of the candidate descriptors. A photo matches an
// attendee when any of its faces clears the threshold, so the photo's
// score is this maximum.
func BestScore(ref []float32, candidates [][]float32) float64 {
	best := -1.0
	for _, c := range candidates {
		if s := CosineSimilarity(ref, c); s > best {
			best = s
		}
	}
	return best
}
