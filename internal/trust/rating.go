// Package trust derives trust ratings, credit prices and mintable impact
// credits from a village's rolling hygiene score history.
package trust

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/stats"
)

const (
	// volatilityWindow is the trailing window volatility is measured over.
	volatilityWindow = 30

	// penaltyPerVolatilityPoint scales volatility into a score penalty,
	// capped at maxVolatilityPenalty.
	penaltyPerVolatilityPoint = 2
	maxVolatilityPenalty      = 30

	// creditsPerPersonDay: one impact credit per 1000 person-days.
	creditsPerPersonDay = 0.001
)

// Engine computes trust signals against a pricing policy.
type Engine struct {
	policy *Policy
}

// NewEngine creates an Engine. A nil policy uses the defaults.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{policy: policy}
}

// VolatilityIndex is the population standard deviation of the trailing
// 30-day score window (or the full window if shorter). Empty histories
// report zero volatility.
func (e *Engine) VolatilityIndex(history []float64) float64 {
	if len(history) == 0 {
		return 0
	}
	window := history
	if len(window) > volatilityWindow {
		window = window[len(window)-volatilityWindow:]
	}
	sd, err := stats.PopulationStdDev(window)
	if err != nil {
		return 0
	}
	return sd
}

// AdjustedScore subtracts the capped volatility penalty from the last
// score. May go negative; the rating bands cover the full range.
func (e *Engine) AdjustedScore(lastScore, volatilityIndex float64) float64 {
	penalty := math.Min(volatilityIndex*penaltyPerVolatilityPoint, maxVolatilityPenalty)
	return lastScore - penalty
}

// Rate maps an adjusted score onto the policy's rating bands. Scores below
// every band floor rate D.
func (e *Engine) Rate(adjustedScore float64) model.TrustRating {
	for _, band := range e.policy.Bands {
		if adjustedScore >= band.Floor {
			return band.Rating
		}
	}
	return model.RatingD
}

// Price returns the dashboard credit price in INR for a rating.
func (e *Engine) Price(rating model.TrustRating) int {
	if p, ok := e.policy.PricesInr[rating]; ok {
		return p
	}
	return e.policy.FallbackPriceInr
}

// signalPrice returns the investor-signal price, which lives on the
// provider-compatible [80,500] scale.
func (e *Engine) signalPrice(rating model.TrustRating) int {
	if p, ok := e.policy.SignalPricesInr[rating]; ok {
		return p
	}
	return e.policy.FallbackPriceInr
}

// MintableCredits converts sustained performance into impact credits:
// population-days scaled by score quality and penalized by volatility.
// Monotonic in population and avgScore, antitonic in volatility.
func (e *Engine) MintableCredits(population int, avgScore, volatilityIndex float64) float64 {
	base := float64(population) * creditsPerPersonDay
	quality := avgScore / 100
	stability := math.Max(0, 1-volatilityIndex/maxVolatilityPenalty)
	return stats.Round2(base * quality * stability)
}

// Signal recomputes the full derived trust view for a village.
func (e *Engine) Signal(village *model.Village) model.TrustSignal {
	vol := e.VolatilityIndex(village.HygieneScoreHistory)
	adjusted := e.AdjustedScore(village.LastScore, vol)
	rating := e.Rate(adjusted)

	signal := model.TrustSignal{
		TrustRating:     rating,
		CreditPriceInr:  e.Price(rating),
		ImpactCredits:   e.MintableCredits(village.Population, village.AverageScore(), vol),
		VolatilityIndex: stats.Round2(vol),
		AdjustedScore:   stats.Round2(adjusted),
	}

	zap.L().Debug("trust: signal computed",
		zap.String("village_id", village.ID),
		zap.String("rating", string(rating)),
		zap.Float64("volatility_index", signal.VolatilityIndex),
		zap.Float64("adjusted_score", signal.AdjustedScore),
	)

	return signal
}

// InvestorSignal produces the provider-compatible wire signal, including
// trend classification and disbursement outlook, deterministically from
// the village history.
func (e *Engine) InvestorSignal(village *model.Village) model.InvestorSignal {
	vol := e.VolatilityIndex(village.HygieneScoreHistory)
	adjusted := e.AdjustedScore(village.LastScore, vol)
	rating := e.Rate(adjusted)
	trend := stats.ComputeTrend(village.HygieneScoreHistory)

	return model.InvestorSignal{
		CreditPriceInr:    e.signalPrice(rating),
		VolatilityIndex:   stats.Round2(math.Min(vol, 100)),
		RiskRating:        rating,
		Trend:             trend.Direction,
		InvestmentSignal:  investmentSignalText(rating, trend.Direction),
		DisbursementReady: disbursementReady(rating, trend.Direction),
		ThirtyDayForecast: forecastFor(trend.Direction),
	}
}

// disbursementReady requires an investment-grade rating and no declining
// trend.
func disbursementReady(rating model.TrustRating, trend stats.TrendDirection) bool {
	switch rating {
	case model.RatingAAA, model.RatingAA, model.RatingA, model.RatingBBB:
	default:
		return false
	}
	return trend != stats.TrendDeclining && trend != stats.TrendStronglyDeclining
}

func forecastFor(trend stats.TrendDirection) model.Forecast {
	switch trend {
	case stats.TrendStronglyImproving, stats.TrendImproving:
		return model.ForecastImproving
	case stats.TrendDeclining, stats.TrendStronglyDeclining:
		return model.ForecastAtRisk
	default:
		return model.ForecastStable
	}
}

func investmentSignalText(rating model.TrustRating, trend stats.TrendDirection) string {
	return fmt.Sprintf("%s rated facility cluster, trend %s", rating, trend)
}
