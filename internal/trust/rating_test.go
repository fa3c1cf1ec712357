package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/stats"
)

func TestRate_Bands(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		adjusted float64
		want     model.TrustRating
	}{
		{95, model.RatingAAA},
		{85, model.RatingAAA},
		{84.9, model.RatingAA},
		{75, model.RatingAA},
		{65, model.RatingA},
		{55, model.RatingBBB},
		{45, model.RatingBB},
		{35, model.RatingB},
		{20, model.RatingCCC},
		{19.9, model.RatingD},
		{0, model.RatingD},
		{-12, model.RatingD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Rate(tt.adjusted), "adjusted %.1f", tt.adjusted)
	}
}

func TestRate_Monotonic(t *testing.T) {
	e := NewEngine(nil)
	order := map[model.TrustRating]int{
		model.RatingD: 0, model.RatingCCC: 1, model.RatingB: 2, model.RatingBB: 3,
		model.RatingBBB: 4, model.RatingA: 5, model.RatingAA: 6, model.RatingAAA: 7,
	}
	prev := e.Rate(-50)
	for s := -50.0; s <= 110; s += 0.5 {
		r := e.Rate(s)
		assert.GreaterOrEqual(t, order[r], order[prev], "rating regressed at %.1f", s)
		prev = r
	}
}

func TestPrice_Table(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, 1850, e.Price(model.RatingAAA))
	assert.Equal(t, 1650, e.Price(model.RatingAA))
	assert.Equal(t, 1400, e.Price(model.RatingA))
	assert.Equal(t, 1150, e.Price(model.RatingBBB))
	assert.Equal(t, 900, e.Price(model.RatingBB))
	assert.Equal(t, 650, e.Price(model.RatingB))
	assert.Equal(t, 400, e.Price(model.RatingCCC))
	assert.Equal(t, 200, e.Price(model.RatingD))
	assert.Equal(t, 500, e.Price(model.TrustRating("ZZ")), "unknown rating falls back")
}

func TestAdjustedScore_PenaltyCap(t *testing.T) {
	e := NewEngine(nil)

	// Reference scenario: lastScore 42, volatility 25 -> penalty capped at
	// 30 -> adjusted 12 -> D -> 200 INR.
	adjusted := e.AdjustedScore(42, 25)
	assert.Equal(t, 12.0, adjusted)
	rating := e.Rate(adjusted)
	assert.Equal(t, model.RatingD, rating)
	assert.Equal(t, 200, e.Price(rating))

	// Below the cap the penalty is linear.
	assert.Equal(t, 70.0, e.AdjustedScore(80, 5))
}

func TestVolatilityIndex(t *testing.T) {
	e := NewEngine(nil)

	assert.Equal(t, 0.0, e.VolatilityIndex(nil))
	assert.Equal(t, 0.0, e.VolatilityIndex([]float64{70}))

	// Trailing 30 only: 40 old wild entries followed by 30 identical ones.
	history := make([]float64, 0, 70)
	for i := 0; i < 40; i++ {
		history = append(history, float64((i*37)%100))
	}
	for i := 0; i < 30; i++ {
		history = append(history, 80)
	}
	assert.Equal(t, 0.0, e.VolatilityIndex(history))
}

func TestMintableCredits(t *testing.T) {
	e := NewEngine(nil)

	// base = 2, quality = 0.8, stability = 0.5 -> 0.8
	got := e.MintableCredits(2000, 80, 15)
	assert.Equal(t, 0.8, got)

	// Zero stability at or beyond volatility 30.
	assert.Equal(t, 0.0, e.MintableCredits(2000, 80, 30))
	assert.Equal(t, 0.0, e.MintableCredits(2000, 80, 45))
}

func TestMintableCredits_Monotonicity(t *testing.T) {
	e := NewEngine(nil)

	assert.GreaterOrEqual(t, e.MintableCredits(3000, 70, 10), e.MintableCredits(2000, 70, 10))
	assert.GreaterOrEqual(t, e.MintableCredits(2000, 90, 10), e.MintableCredits(2000, 70, 10))
	// Antitonic in volatility.
	assert.GreaterOrEqual(t, e.MintableCredits(2000, 70, 5), e.MintableCredits(2000, 70, 25))
}

func TestSignal(t *testing.T) {
	e := NewEngine(nil)
	v := &model.Village{ID: "v1", Population: 2100, LastScore: 88}
	for i := 0; i < 30; i++ {
		require.NoError(t, v.AppendScore(88))
	}

	sig := e.Signal(v)
	assert.Equal(t, model.RatingAAA, sig.TrustRating)
	assert.Equal(t, 1850, sig.CreditPriceInr)
	assert.Equal(t, 0.0, sig.VolatilityIndex)
	assert.Equal(t, 88.0, sig.AdjustedScore)
	assert.Greater(t, sig.ImpactCredits, 0.0)
}

func TestInvestorSignal_Deterministic(t *testing.T) {
	e := NewEngine(nil)
	v := &model.Village{ID: "v1", Population: 1500}
	scores := []float64{60, 61, 62, 63, 64, 75, 76, 77, 78, 79}
	for _, s := range scores {
		require.NoError(t, v.AppendScore(s))
	}

	first := e.InvestorSignal(v)
	second := e.InvestorSignal(v)
	assert.Equal(t, first, second)

	require.NoError(t, first.Validate())
	assert.Equal(t, stats.TrendStronglyImproving, first.Trend)
	assert.Equal(t, model.ForecastImproving, first.ThirtyDayForecast)
}

func TestInvestorSignal_DecliningNotDisbursable(t *testing.T) {
	e := NewEngine(nil)
	v := &model.Village{ID: "v1", Population: 1500}
	scores := []float64{90, 90, 90, 90, 90, 80, 80, 80, 80, 80}
	for _, s := range scores {
		require.NoError(t, v.AppendScore(s))
	}

	sig := e.InvestorSignal(v)
	assert.Equal(t, stats.TrendStronglyDeclining, sig.Trend)
	assert.Equal(t, model.ForecastAtRisk, sig.ThirtyDayForecast)
	assert.False(t, sig.DisbursementReady)
}

func TestLoadPolicy_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trust:\n  fallback_price_inr: 300\n"), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 300, p.FallbackPriceInr)
	// Untouched sections keep defaults.
	assert.Equal(t, 1850, p.PricesInr[model.RatingAAA])
	assert.Len(t, p.Bands, 7)
}

func TestLoadPolicy_RejectsNonDescendingBands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	bad := "trust:\n  bands:\n    - {floor: 50, rating: BBB}\n    - {floor: 80, rating: AAA}\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadPolicy(path)
	require.Error(t, err)
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/policy.yaml")
	require.Error(t, err)
}
