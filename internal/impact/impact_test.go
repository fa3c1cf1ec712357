package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCasesPrevented_ReferenceScenario(t *testing.T) {
	// population 2100, avg 72: round(315 * 0.432) = 136.
	got, err := CasesPrevented(2100, 72)
	require.NoError(t, err)
	assert.Equal(t, 136, got)
}

func TestCasesPrevented_Bounds(t *testing.T) {
	got, err := CasesPrevented(1000, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = CasesPrevented(1000, 100)
	require.NoError(t, err)
	assert.Equal(t, 90, got) // 150 * 0.6
}

func TestCasesPrevented_MonotonicInScore(t *testing.T) {
	prev := -1
	for score := 0.0; score <= 100; score += 2.5 {
		got, err := CasesPrevented(2100, score)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "decreased at score %.1f", score)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}
}

func TestCasesPrevented_InvalidInput(t *testing.T) {
	_, err := CasesPrevented(0, 50)
	require.Error(t, err)

	_, err = CasesPrevented(-5, 50)
	require.Error(t, err)

	_, err = CasesPrevented(1000, 101)
	require.Error(t, err)

	_, err = CasesPrevented(1000, -1)
	require.Error(t, err)
}

func TestCasesPrevented_Idempotent(t *testing.T) {
	a, err := CasesPrevented(5000, 63)
	require.NoError(t, err)
	b, err := CasesPrevented(5000, 63)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFallbackNarrative(t *testing.T) {
	n := FallbackNarrative("Rampur", 2100, 136)
	assert.Contains(t, n, "Rampur")
	assert.Contains(t, n, "136")
	assert.Contains(t, n, "2100")
	assert.NotEmpty(t, n)
}
