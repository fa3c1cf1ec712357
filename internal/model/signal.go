package model

import (
	"github.com/rotisserie/eris"

	"github.com/sansure/trust-cli/internal/stats"
)

// TrustRating is the letter grade derived from the volatility-adjusted score.
type TrustRating string

const (
	RatingAAA TrustRating = "AAA"
	RatingAA  TrustRating = "AA"
	RatingA   TrustRating = "A"
	RatingBBB TrustRating = "BBB"
	RatingBB  TrustRating = "BB"
	RatingB   TrustRating = "B"
	RatingCCC TrustRating = "CCC"
	RatingD   TrustRating = "D"
)

// Valid reports whether r is one of the declared ratings.
func (r TrustRating) Valid() bool {
	switch r {
	case RatingAAA, RatingAA, RatingA, RatingBBB, RatingBB, RatingB, RatingCCC, RatingD:
		return true
	}
	return false
}

// Forecast is the 30-day outlook attached to an investor signal.
type Forecast string

const (
	ForecastImproving Forecast = "improving"
	ForecastStable    Forecast = "stable"
	ForecastAtRisk    Forecast = "at_risk"
)

// Valid reports whether f is one of the declared forecasts.
func (f Forecast) Valid() bool {
	switch f {
	case ForecastImproving, ForecastStable, ForecastAtRisk:
		return true
	}
	return false
}

// TrustSignal is the derived, recomputed-on-demand view of a village's
// creditworthiness. Never stored.
type TrustSignal struct {
	TrustRating     TrustRating `json:"trustRating"`
	CreditPriceInr  int         `json:"creditPriceInr"`
	ImpactCredits   float64     `json:"impactCredits"`
	VolatilityIndex float64     `json:"volatilityIndex"`
	AdjustedScore   float64     `json:"adjustedScore"`
}

// InvestorSignal is the provider-compatible wire form of a trust signal,
// including trend and disbursement outlook.
type InvestorSignal struct {
	CreditPriceInr    int                  `json:"credit_price_inr"`
	VolatilityIndex   float64              `json:"volatility_index"`
	RiskRating        TrustRating          `json:"risk_rating"`
	Trend             stats.TrendDirection `json:"trend"`
	InvestmentSignal  string               `json:"investment_signal"`
	DisbursementReady bool                 `json:"disbursement_ready"`
	ThirtyDayForecast Forecast             `json:"30_day_forecast"`
}

// Validate checks the bounds the external contract fixes for
// provider-generated signals: credit price in [80,500] and volatility in
// [0,100].
func (s *InvestorSignal) Validate() error {
	if s.CreditPriceInr < 80 || s.CreditPriceInr > 500 {
		return eris.Errorf("model: credit_price_inr %d out of range [80,500]", s.CreditPriceInr)
	}
	if s.VolatilityIndex < 0 || s.VolatilityIndex > 100 {
		return eris.Errorf("model: volatility_index %.2f out of range [0,100]", s.VolatilityIndex)
	}
	if !s.RiskRating.Valid() {
		return eris.Errorf("model: invalid risk_rating %q", s.RiskRating)
	}
	switch s.Trend {
	case stats.TrendStronglyImproving, stats.TrendImproving, stats.TrendStable,
		stats.TrendDeclining, stats.TrendStronglyDeclining:
	default:
		return eris.Errorf("model: invalid trend %q", s.Trend)
	}
	if !s.ThirtyDayForecast.Valid() {
		return eris.Errorf("model: invalid 30_day_forecast %q", s.ThirtyDayForecast)
	}
	return nil
}
