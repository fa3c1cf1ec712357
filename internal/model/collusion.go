package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// CycleRecommendation gates whether a verification cycle mints a credit.
type CycleRecommendation string

const (
	RecommendMint   CycleRecommendation = "mint_token"
	RecommendHold   CycleRecommendation = "hold_pending_review"
	RecommendReject CycleRecommendation = "reject_flag_escalate"
)

// Valid reports whether r is one of the declared recommendations.
func (r CycleRecommendation) Valid() bool {
	switch r {
	case RecommendMint, RecommendHold, RecommendReject:
		return true
	}
	return false
}

// CollusionResult is the adjudication outcome for one three-party cycle.
type CollusionResult struct {
	ConsensusScore        int                 `json:"consensus_score"`
	ScoreVariance         float64             `json:"score_variance"`
	CollusionRisk         RiskLevel           `json:"collusion_risk"`
	CollusionIndicators   []string            `json:"collusion_indicators"`
	IndependenceConfirmed bool                `json:"independence_confirmed"`
	Reasoning             string              `json:"reasoning"`
	Recommendation        CycleRecommendation `json:"recommendation"`
	Confidence            Confidence          `json:"confidence"`
}

// Validate checks the structural well-formedness required at the provider
// boundary. The indicator list must never be empty.
func (c *CollusionResult) Validate() error {
	if c.ConsensusScore < 0 || c.ConsensusScore > 100 {
		return eris.Errorf("model: consensus_score %d out of range [0,100]", c.ConsensusScore)
	}
	if c.ScoreVariance < 0 {
		return eris.Errorf("model: score_variance %.2f must be non-negative", c.ScoreVariance)
	}
	if !c.CollusionRisk.Valid() {
		return eris.Errorf("model: invalid collusion_risk %q", c.CollusionRisk)
	}
	if len(c.CollusionIndicators) == 0 {
		return eris.New("model: collusion_indicators must not be empty")
	}
	if !c.Recommendation.Valid() {
		return eris.Errorf("model: invalid recommendation %q", c.Recommendation)
	}
	if !c.Confidence.Valid() {
		return eris.Errorf("model: invalid confidence %q", c.Confidence)
	}
	return nil
}

// VerificationCycle binds exactly three submissions (one per role) for one
// facility to one adjudication outcome. Immutable after creation.
type VerificationCycle struct {
	ID            string          `json:"id"`
	FacilityID    string          `json:"facility_id"`
	Submissions   []Submission    `json:"submissions"`
	Result        CollusionResult `json:"result"`
	ScoringMethod ScoringMethod   `json:"scoring_method"`
	Minted        bool            `json:"minted"`
	CreatedAt     time.Time       `json:"created_at"`
}
