// Package stats provides the numeric primitives shared by every scoring
// component: mean, population spread, and score-history trend analysis.
package stats

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrEmptyInput is returned when a statistic is requested over an empty sequence.
var ErrEmptyInput = eris.New("stats: empty input")

// minTrendSamples is the shortest history that carries a usable trend signal.
// Anything shorter reports stable with a zero delta rather than an error.
const minTrendSamples = 10

// TrendDirection classifies the slope of a score history.
type TrendDirection string

const (
	TrendStronglyImproving TrendDirection = "strongly_improving"
	TrendImproving         TrendDirection = "improving"
	TrendStable            TrendDirection = "stable"
	TrendDeclining         TrendDirection = "declining"
	TrendStronglyDeclining TrendDirection = "strongly_declining"
)

// Trend holds the classified direction and the raw half-over-half delta.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Delta     float64        `json:"delta"`
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// PopulationStdDev returns the population standard deviation of values
// (divide by N, not N-1).
func PopulationStdDev(values []float64) (float64, error) {
	v, err := PopulationVariance(values)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// PopulationVariance returns the mean squared deviation from the mean.
func PopulationVariance(values []float64) (float64, error) {
	m, err := Mean(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)), nil
}

// ComputeTrend splits history at its midpoint (the earlier half keeps the
// extra element when the length is odd) and compares half means. Delta is
// secondHalfMean - firstHalfMean. Histories shorter than ten samples always
// report stable with delta 0.
func ComputeTrend(history []float64) Trend {
	if len(history) < minTrendSamples {
		return Trend{Direction: TrendStable, Delta: 0}
	}

	mid := (len(history) + 1) / 2
	first, _ := Mean(history[:mid])
	second, _ := Mean(history[mid:])
	delta := second - first

	return Trend{Direction: classifyDelta(delta), Delta: delta}
}

func classifyDelta(delta float64) TrendDirection {
	switch {
	case delta >= 8:
		return TrendStronglyImproving
	case delta >= 3:
		return TrendImproving
	case delta <= -8:
		return TrendStronglyDeclining
	case delta <= -3:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Round2 rounds to two decimal places. Shared by variance and credit math.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
