package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	// External ABI contract: these values must never change.
	assert.Equal(t, uint32(0x00), Euclidean.Code())
	assert.Equal(t, uint32(0x01), Cosine.Code())
	assert.Equal(t, uint32(0x02), Dot.Code())
}

func TestParseBijection(t *testing.T) {
	for _, name := range []string{"Cosine", "Euclidean", "Dot"} {
		t.Run(name, func(t *testing.T) {
			m, err := Parse(name)
			require.NoError(t, err)

			back, err := FromCode(m.Code())
			require.NoError(t, err)
			assert.Equal(t, name, back.String())
		})
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("Manhattan")
	var ue *UnsupportedDistanceError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Manhattan", ue.Name)
	assert.Contains(t, err.Error(), "Cosine")
}

func TestFromCodeUnknown(t *testing.T) {
	_, err := FromCode(3)
	var ue *UnsupportedDistanceError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.HasCode)
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DotProduct(tt.a, tt.b), 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-5)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-5)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-5)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-5)
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{Euclidean, Cosine, Dot} {
		fn, err := Provider(m)
		require.NoError(t, err)
		require.NotNil(t, fn)
	}

	_, err := Provider(Metric(99))
	var ue *UnsupportedDistanceError
	assert.ErrorAs(t, err, &ue)
}
