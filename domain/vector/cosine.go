// Package vector provides the embedding similarity side of a snapshot:
// per-provider in-memory indexes over stored vectors, served by exact scan
// or an HNSW graph above a size threshold.
package vector

import "math"

// Norm returns the Euclidean norm of a vector. Stored alongside each
// embedding so searches never recompute it.
func Norm(v []float32) float64 {
	var sum float64
	for _, c := range v {
		sum += float64(c) * float64(c)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of two vectors. A zero vector (or
// an empty one) has no direction, so any comparison against it is exactly
// 0.0; mismatched dimensions compare over the shared prefix. Cosine is
// total: it never returns an error or NaN.
func Cosine(a, b []float32) float64 {
	return cosineNormed(a, Norm(a), b, Norm(b))
}

func cosineNormed(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
