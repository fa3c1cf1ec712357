// Package adjudicate implements the deterministic collusion adjudicator for
// three-party verification cycles.
package adjudicate

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/stats"
)

// ErrInvalidCycle rejects cycles without exactly one submission per role.
var ErrInvalidCycle = eris.New("adjudicate: cycle requires exactly one HOUSEHOLD, PEER and AUDITOR submission")

// Risk classification thresholds. A spread this tight across three parties
// who never saw each other's reports is the strongest coordination signal
// we have without semantic analysis.
const (
	identicalSpreadCeiling = 2
	lowSpreadCeiling       = 6
	varianceCeiling        = 120
)

// MintScoreFloor is the minimum consensus score that can mint a credit.
// Exported so the orchestrator can re-apply the gate to provider output.
const MintScoreFloor = 70

// fallbackIndicator keeps the indicator list non-empty when no rule fires.
const fallbackIndicator = "no collusion indicators detected"

// Adjudicate computes the consensus outcome for exactly three independent
// submissions. The caller is responsible for the independence precondition
// (distinct households/wards); this engine only consumes the triple.
func Adjudicate(submissions []model.Submission) (*model.CollusionResult, error) {
	if err := validateCycle(submissions); err != nil {
		return nil, err
	}

	scores := make([]float64, len(submissions))
	for i, s := range submissions {
		scores[i] = float64(s.Score)
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return nil, eris.Wrap(err, "adjudicate: consensus")
	}
	variance, err := stats.PopulationVariance(scores)
	if err != nil {
		return nil, eris.Wrap(err, "adjudicate: variance")
	}
	variance = stats.Round2(variance)

	spread := scoreSpread(scores)
	identical := checklistsIdentical(submissions)

	risk := classifyRisk(spread, identical, variance)
	indicators := collectIndicators(submissions, spread, identical)
	consensus := int(math.Round(mean))

	result := &model.CollusionResult{
		ConsensusScore:        consensus,
		ScoreVariance:         variance,
		CollusionRisk:         risk,
		CollusionIndicators:   indicators,
		IndependenceConfirmed: risk == model.RiskLow,
		Reasoning:             reasoningFor(risk, spread, variance, identical),
		Recommendation:        recommend(risk, consensus),
		Confidence:            model.ConfidenceLow,
	}

	zap.L().Debug("adjudicate: cycle evaluated",
		zap.String("facility_id", submissions[0].FacilityID),
		zap.Int("consensus_score", consensus),
		zap.Float64("score_variance", variance),
		zap.Float64("spread", spread),
		zap.String("collusion_risk", string(risk)),
		zap.String("recommendation", string(result.Recommendation)),
	)

	return result, nil
}

func validateCycle(submissions []model.Submission) error {
	if len(submissions) != len(model.SubmitterTypes) {
		return eris.Wrapf(ErrInvalidCycle, "got %d submissions", len(submissions))
	}

	seen := make(map[model.SubmitterType]bool, len(submissions))
	facility := submissions[0].FacilityID
	for _, s := range submissions {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.FacilityID != facility {
			return eris.Errorf("adjudicate: mixed facilities %q and %q in one cycle", facility, s.FacilityID)
		}
		if seen[s.SubmitterType] {
			return eris.Wrapf(ErrInvalidCycle, "duplicate role %s", s.SubmitterType)
		}
		seen[s.SubmitterType] = true
	}
	return nil
}

func scoreSpread(scores []float64) float64 {
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	return maxScore - minScore
}

func checklistsIdentical(submissions []model.Submission) bool {
	for _, s := range submissions[1:] {
		if !s.Checklist.Equal(submissions[0].Checklist) {
			return false
		}
	}
	return true
}

// classifyRisk applies the risk ladder in priority order: first match wins.
func classifyRisk(spread float64, identical bool, variance float64) model.RiskLevel {
	if spread <= identicalSpreadCeiling && identical {
		return model.RiskHigh
	}
	if spread <= lowSpreadCeiling || variance > varianceCeiling {
		return model.RiskMedium
	}
	return model.RiskLow
}

func collectIndicators(submissions []model.Submission, spread float64, identical bool) []string {
	var indicators []string
	if spread <= identicalSpreadCeiling {
		indicators = append(indicators, "very low spread across independent submissions")
	}
	if identical {
		indicators = append(indicators, "checklist responses identical across submitters")
	}
	for _, s := range submissions {
		if len(s.Discrepancies) > 0 {
			indicators = append(indicators, "at least one submitter reported discrepancies")
			break
		}
	}
	if len(indicators) == 0 {
		indicators = []string{fallbackIndicator}
	}
	return indicators
}

// recommend gates minting. High collusion risk must never coincide with a
// minted token; that is a hard business rule, not a suggestion.
func recommend(risk model.RiskLevel, consensus int) model.CycleRecommendation {
	if risk == model.RiskHigh {
		return model.RecommendHold
	}
	if consensus >= MintScoreFloor {
		return model.RecommendMint
	}
	return model.RecommendReject
}

func reasoningFor(risk model.RiskLevel, spread, variance float64, identical bool) string {
	switch risk {
	case model.RiskHigh:
		return fmt.Sprintf("score spread %.0f with identical checklists across all three roles; no independent variation", spread)
	case model.RiskMedium:
		if variance > varianceCeiling {
			return fmt.Sprintf("score variance %.2f exceeds the plausible disagreement band", variance)
		}
		return fmt.Sprintf("score spread %.0f is tighter than independent assessments typically produce", spread)
	default:
		return fmt.Sprintf("score spread %.0f and variance %.2f are consistent with independent assessment", spread, variance)
	}
}
