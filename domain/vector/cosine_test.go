package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNorm(t *testing.T) {
	assert.InDelta(t, 5.0, Norm([]float32{3, 4}), 1e-9)
	assert.Zero(t, Norm(nil))
	assert.Zero(t, Norm([]float32{0, 0, 0}))
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{0.5, 1.25, -2},
			b:    []float32{0.5, 1.25, -2},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 2},
			b:    []float32{-1, -2},
			want: -1,
		},
		{
			name: "scaled copy keeps similarity",
			a:    []float32{1, 2, 3},
			b:    []float32{10, 20, 30},
			want: 1,
		},
		{
			name: "mismatched dimensions compare the shared prefix",
			a:    []float32{3, 4},
			b:    []float32{3},
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosine_ZeroVectorIsExactlyZero(t *testing.T) {
	v := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}

	assert.Equal(t, 0.0, Cosine(v, zero))
	assert.Equal(t, 0.0, Cosine(zero, v))
	assert.Equal(t, 0.0, Cosine(zero, zero))
	assert.Equal(t, 0.0, Cosine(v, nil))
}
