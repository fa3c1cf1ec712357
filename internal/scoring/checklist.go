// Package scoring converts facility checklists into hygiene scores. The
// checklist scorer is the deterministic path the system falls back to when
// vision scoring is unavailable, so it must stay pure and side-effect free.
package scoring

import (
	"github.com/sansure/trust-cli/internal/model"
)

// pointsPerDimension is the contribution of each confirmed checklist flag.
// Four independent flags, no interaction terms.
const pointsPerDimension = 25

// checklistOnlyAdvisory is the fixed discrepancy every checklist-only
// result carries, so downstream consumers see the reduced evidence base.
const checklistOnlyAdvisory = "verification based on checklist self-report only; no photographic evidence reviewed"

// spoofingUnassessed explains the fixed low spoofing risk.
const spoofingUnassessed = "no visual signal available to assess spoofing"

// ScoreChecklist produces a VerificationResult from the four boolean flags
// alone. Confidence is always low: rule-based scoring carries no
// independent visual evidence, so it can confirm claims but never
// contradict them.
func ScoreChecklist(checklist model.Checklist) model.VerificationResult {
	flags := checklist.Flags()

	score := 0
	verification := make(map[string]model.VisualStatus, len(model.ChecklistDimensions))
	var features []string

	for _, dim := range model.ChecklistDimensions {
		if flags[dim] {
			score += pointsPerDimension
			verification[dim] = model.VisualConfirmed
			features = append(features, dim+" reported present")
		} else {
			verification[dim] = model.VisualUnclear
		}
	}

	return model.VerificationResult{
		HygieneScore:       score,
		Confidence:         model.ConfidenceLow,
		VisualVerification: verification,
		DetectedFeatures:   features,
		Discrepancies:      []string{checklistOnlyAdvisory},
		Recommendation:     recommendationFor(score),
		SpoofingRisk:       model.RiskLow,
		SpoofingReasoning:  spoofingUnassessed,
	}
}

func recommendationFor(score int) string {
	switch {
	case score == 100:
		return "all checklist dimensions reported; maintain current upkeep"
	case score >= 50:
		return "partial checklist coverage; address missing dimensions"
	default:
		return "most checklist dimensions missing; facility needs attention"
	}
}
