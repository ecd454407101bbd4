package vector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exactOptions() Options {
	return Options{HNSWEnabled: false, EfSearch: 64}
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "exact", []float32{1, 0, 0}, 0)
	b.Add("hash-256", "close", []float32{1, 0.2, 0}, 0)
	b.Add("hash-256", "far", []float32{0, 1, 0}, 0)
	idx := b.Build()

	results := idx.Search("hash-256", []float32{1, 0, 0}, 10, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].NodeID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "close", results[1].NodeID)
	assert.Equal(t, "far", results[2].NodeID)
}

func TestSearch_MinSimilarityFilters(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "aligned", []float32{1, 0}, 0)
	b.Add("hash-256", "sideways", []float32{0, 1}, 0)
	b.Add("hash-256", "opposed", []float32{-1, 0}, 0)
	idx := b.Build()

	results := idx.Search("hash-256", []float32{1, 0}, 10, 0.5)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].NodeID)

	// The default floor of 0 still drops vectors pointing away.
	results = idx.Search("hash-256", []float32{1, 0}, 10, 0)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"aligned", "sideways"}, []string{results[0].NodeID, results[1].NodeID})
}

func TestSearch_ProviderNamespacesAreIsolated(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "n1", []float32{1, 0}, 0)
	b.Add("gemini-embedding-001", "n1", []float32{0, 1}, 0)
	idx := b.Build()

	hash := idx.Search("hash-256", []float32{1, 0}, 10, 0)
	require.Len(t, hash, 1)
	assert.InDelta(t, 1.0, hash[0].Similarity, 1e-9)

	gemini := idx.Search("gemini-embedding-001", []float32{1, 0}, 10, 0)
	require.Len(t, gemini, 1)
	assert.InDelta(t, 0.0, gemini[0].Similarity, 1e-9)

	assert.Empty(t, idx.Search("unknown-provider", []float32{1, 0}, 10, 0))
}

func TestSearch_TieBreaksByNodeID(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "zeta", []float32{2, 0}, 0)
	b.Add("hash-256", "alpha", []float32{5, 0}, 0)
	idx := b.Build()

	results := idx.Search("hash-256", []float32{1, 0}, 10, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].NodeID)
	assert.Equal(t, "zeta", results[1].NodeID)
}

func TestSearch_TopKTrims(t *testing.T) {
	b := NewBuilder(exactOptions())
	for i := 0; i < 6; i++ {
		b.Add("hash-256", fmt.Sprintf("n%d", i), []float32{1, float32(i) / 10}, 0)
	}
	idx := b.Build()

	assert.Len(t, idx.Search("hash-256", []float32{1, 0}, 4, 0), 4)
	assert.Empty(t, idx.Search("hash-256", []float32{1, 0}, 0, 0))
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "n1", []float32{1, 2}, 0)
	idx := b.Build()

	results := idx.Search("hash-256", []float32{0, 0}, 10, 0)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestBuilder_RecomputesMissingNorm(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "n1", []float32{3, 4}, 0)
	idx := b.Build()

	results := idx.Search("hash-256", []float32{3, 4}, 1, 0)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestIndex_CountsAndProviders(t *testing.T) {
	b := NewBuilder(exactOptions())
	b.Add("hash-256", "n1", []float32{1}, 0)
	b.Add("hash-256", "n2", []float32{1}, 0)
	b.Add("gemini-embedding-001", "n1", []float32{1}, 0)
	idx := b.Build()

	assert.Equal(t, 2, idx.Count("hash-256"))
	assert.Equal(t, 1, idx.Count("gemini-embedding-001"))
	assert.Equal(t, 0, idx.Count("missing"))
	assert.Equal(t, 3, idx.Size())
	assert.Equal(t, []string{"gemini-embedding-001", "hash-256"}, idx.Providers())
	assert.False(t, idx.Accelerated("hash-256"))
}

func TestSearch_HNSWAgreesWithExactOnSmallCollections(t *testing.T) {
	// Kept under the level-0 degree cap so the graph retains every link
	// and approximate search degenerates to an exhaustive walk.
	const (
		count = 30
		dim   = 8
	)

	rng := rand.New(rand.NewSource(42))
	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		vectors[i] = v
	}

	exact := NewBuilder(exactOptions())
	accel := NewBuilder(Options{HNSWEnabled: true, HNSWMinNodes: 1, EfSearch: 64})
	for i, v := range vectors {
		id := fmt.Sprintf("node-%02d", i)
		exact.Add("hash-256", id, v, 0)
		accel.Add("hash-256", id, v, 0)
	}

	exactIdx := exact.Build()
	accelIdx := accel.Build()
	require.False(t, exactIdx.Accelerated("hash-256"))
	require.True(t, accelIdx.Accelerated("hash-256"))

	for qi := 0; qi < 5; qi++ {
		query := vectors[qi*7]
		for _, topK := range []int{1, 5, count} {
			want := exactIdx.Search("hash-256", query, topK, -1)
			got := accelIdx.Search("hash-256", query, topK, -1)
			assert.Equal(t, want, got, "query %d topK %d", qi, topK)
		}
	}
}
