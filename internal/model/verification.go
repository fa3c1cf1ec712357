package model

import "github.com/rotisserie/eris"

// Confidence grades how certain a scoring path is about its output.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the declared confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// RiskLevel is the shared low/medium/high scale used for spoofing and
// collusion risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the declared risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// VisualStatus records whether visual evidence confirmed a checklist claim.
type VisualStatus string

const (
	VisualConfirmed    VisualStatus = "confirmed"
	VisualContradicted VisualStatus = "contradicted"
	VisualUnclear      VisualStatus = "unclear"
)

// Valid reports whether s is one of the declared statuses.
func (s VisualStatus) Valid() bool {
	switch s {
	case VisualConfirmed, VisualContradicted, VisualUnclear:
		return true
	}
	return false
}

// ScoringMethod records which path produced a result, so callers can
// observe degraded-confidence operation.
type ScoringMethod string

const (
	MethodProvider      ScoringMethod = "provider"
	MethodDeterministic ScoringMethod = "deterministic"
)

// VerificationResult is the per-submission hygiene assessment. One per
// submission, created at submission time, never mutated.
type VerificationResult struct {
	HygieneScore       int                     `json:"hygiene_score"`
	Confidence         Confidence              `json:"confidence"`
	VisualVerification map[string]VisualStatus `json:"visual_verification"`
	DetectedFeatures   []string                `json:"detected_features"`
	Discrepancies      []string                `json:"discrepancies"`
	Recommendation     string                  `json:"recommendation"`
	SpoofingRisk       RiskLevel               `json:"spoofing_risk"`
	SpoofingReasoning  string                  `json:"spoofing_reasoning"`
}

// Validate checks the structural well-formedness required at the provider
// boundary: score bounds, enum membership, and exactly the four checklist
// dimensions in visual_verification.
func (v *VerificationResult) Validate() error {
	if v.HygieneScore < 0 || v.HygieneScore > 100 {
		return eris.Errorf("model: hygiene_score %d out of range [0,100]", v.HygieneScore)
	}
	if !v.Confidence.Valid() {
		return eris.Errorf("model: invalid confidence %q", v.Confidence)
	}
	if !v.SpoofingRisk.Valid() {
		return eris.Errorf("model: invalid spoofing_risk %q", v.SpoofingRisk)
	}
	if len(v.VisualVerification) != len(ChecklistDimensions) {
		return eris.Errorf("model: visual_verification has %d dimensions, want %d",
			len(v.VisualVerification), len(ChecklistDimensions))
	}
	for _, dim := range ChecklistDimensions {
		status, ok := v.VisualVerification[dim]
		if !ok {
			return eris.Errorf("model: visual_verification missing dimension %q", dim)
		}
		if !status.Valid() {
			return eris.Errorf("model: invalid visual status %q for dimension %q", status, dim)
		}
	}
	return nil
}
