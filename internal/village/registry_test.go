package village

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansure/trust-cli/internal/model"
)

const seedYAML = `villages:
  - id: rampur
    name: Rampur
    district: Sitapur
    population: 2100
    lat: 27.5671
    lng: 80.6824
    scoreHistory: [68, 71, 74, 72]
    girlsAttendance: 81.5
    odfStatus: true
  - id: bhitari
    name: Bhitari
    district: Sitapur
    population: 950
    lat: 27.6012
    lng: 80.7103
    scoreHistory: [42, 40, 45]
    girlsAttendance: 64.0
    odfStatus: true
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "villages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	r, err := LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)

	v, err := r.Get("rampur")
	require.NoError(t, err)
	assert.Equal(t, "Rampur", v.Name)
	assert.Equal(t, 2100, v.Population)
	assert.Equal(t, []float64{68, 71, 74, 72}, v.HygieneScoreHistory)
	assert.Equal(t, 72.0, v.LastScore)
	assert.InDelta(t, 27.5671, v.Location.Lat, 1e-9)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "bhitari", list[0].ID)
	assert.Equal(t, "rampur", list[1].ID)
}

func TestLoadSeed_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty seed", func(t *testing.T) {
		_, err := LoadSeed(writeSeed(t, "villages: []\n"))
		assert.Error(t, err)
	})

	t.Run("score out of range", func(t *testing.T) {
		_, err := LoadSeed(writeSeed(t, `villages:
  - id: bad
    name: Bad
    population: 100
    scoreHistory: [150]
`))
		assert.Error(t, err)
	})

	t.Run("missing population", func(t *testing.T) {
		_, err := LoadSeed(writeSeed(t, `villages:
  - id: bad
    name: Bad
    scoreHistory: [50]
`))
		assert.Error(t, err)
	})
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nowhere")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestRegistry_RecordScore(t *testing.T) {
	r, err := LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)

	updated, err := r.RecordScore("rampur", 78)
	require.NoError(t, err)
	assert.Equal(t, 78.0, updated.LastScore)
	assert.Len(t, updated.HygieneScoreHistory, 5)

	// Registry state changed, not just the returned copy.
	stored, err := r.Get("rampur")
	require.NoError(t, err)
	assert.Equal(t, 78.0, stored.LastScore)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r, err := LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)

	v, err := r.Get("rampur")
	require.NoError(t, err)
	v.HygieneScoreHistory[0] = 0

	again, err := r.Get("rampur")
	require.NoError(t, err)
	assert.Equal(t, 68.0, again.HygieneScoreHistory[0])
}

func TestRegistry_ODFDiscrepancies(t *testing.T) {
	r, err := LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)

	// Bhitari is ODF-certified but its last score is 45.
	flagged := r.ODFDiscrepancies()
	require.Len(t, flagged, 1)
	assert.Equal(t, "bhitari", flagged[0].ID)
}

func TestCheckIndependence(t *testing.T) {
	loc := func(lat, lng float64) *model.Coordinates {
		return &model.Coordinates{Lat: lat, Lng: lng}
	}
	sub := func(c *model.Coordinates) model.Submission {
		return model.Submission{Location: c}
	}

	t.Run("well separated", func(t *testing.T) {
		got := CheckIndependence([]model.Submission{
			sub(loc(27.5671, 80.6824)),
			sub(loc(27.5680, 80.6824)), // ~100m north
			sub(loc(27.5671, 80.6835)), // ~110m east
		})
		assert.True(t, got.Checked)
		assert.True(t, got.Confirmed)
		assert.Greater(t, got.MinDistanceM, MinSeparationMeters)
	})

	t.Run("same courtyard", func(t *testing.T) {
		got := CheckIndependence([]model.Submission{
			sub(loc(27.5671, 80.6824)),
			sub(loc(27.56711, 80.68241)),
			sub(loc(27.5680, 80.6824)),
		})
		assert.True(t, got.Checked)
		assert.False(t, got.Confirmed)
		assert.Less(t, got.MinDistanceM, MinSeparationMeters)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		got := CheckIndependence([]model.Submission{
			sub(loc(27.5671, 80.6824)),
			sub(nil),
			sub(loc(27.5680, 80.6824)),
		})
		assert.False(t, got.Checked)
		assert.False(t, got.Confirmed)
	})
}
