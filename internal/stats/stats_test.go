package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	m, err := Mean([]float64{95, 92, 88})
	require.NoError(t, err)
	assert.InDelta(t, 91.6667, m, 0.001)
}

func TestMean_Empty(t *testing.T) {
	_, err := Mean(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestPopulationStdDev(t *testing.T) {
	// popVar([95,92,88]) = ((3.333)^2 + (0.333)^2 + (-3.667)^2) / 3 ≈ 8.222
	sd, err := PopulationStdDev([]float64{95, 92, 88})
	require.NoError(t, err)
	assert.InDelta(t, 2.8674, sd, 0.001)

	v, err := PopulationVariance([]float64{95, 92, 88})
	require.NoError(t, err)
	assert.InDelta(t, 8.2222, v, 0.001)
}

func TestPopulationStdDev_SingleValue(t *testing.T) {
	sd, err := PopulationStdDev([]float64{70})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)
}

func TestPopulationStdDev_Empty(t *testing.T) {
	_, err := PopulationStdDev([]float64{})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestComputeTrend_ShortHistoryIsStable(t *testing.T) {
	tr := ComputeTrend([]float64{10, 90, 10, 90, 10, 90, 10, 90, 10})
	assert.Equal(t, TrendStable, tr.Direction)
	assert.Equal(t, 0.0, tr.Delta)
}

func TestComputeTrend_Classification(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		want    TrendDirection
		delta   float64
	}{
		{
			name:    "strongly improving",
			history: []float64{50, 50, 50, 50, 50, 60, 60, 60, 60, 60},
			want:    TrendStronglyImproving,
			delta:   10,
		},
		{
			name:    "improving",
			history: []float64{50, 50, 50, 50, 50, 54, 54, 54, 54, 54},
			want:    TrendImproving,
			delta:   4,
		},
		{
			name:    "stable",
			history: []float64{50, 50, 50, 50, 50, 51, 51, 51, 51, 51},
			want:    TrendStable,
			delta:   1,
		},
		{
			name:    "declining",
			history: []float64{50, 50, 50, 50, 50, 46, 46, 46, 46, 46},
			want:    TrendDeclining,
			delta:   -4,
		},
		{
			name:    "strongly declining",
			history: []float64{50, 50, 50, 50, 50, 40, 40, 40, 40, 40},
			want:    TrendStronglyDeclining,
			delta:   -10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := ComputeTrend(tt.history)
			assert.Equal(t, tt.want, tr.Direction)
			assert.InDelta(t, tt.delta, tr.Delta, 0.001)
		})
	}
}

func TestComputeTrend_OddLengthEarlierHalfGetsExtra(t *testing.T) {
	// 11 samples: first half is 6 elements, second half 5.
	history := []float64{40, 40, 40, 40, 40, 40, 50, 50, 50, 50, 50}
	tr := ComputeTrend(history)
	assert.InDelta(t, 10, tr.Delta, 0.001)
	assert.Equal(t, TrendStronglyImproving, tr.Direction)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 8.22, Round2(8.2222))
	assert.Equal(t, 91.67, Round2(91.6667))
	assert.Equal(t, 0.0, Round2(0))
}
