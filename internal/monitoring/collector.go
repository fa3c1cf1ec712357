// Package monitoring derives operational health from the audit ledger: how
// often scoring degrades to the deterministic path, whether the hash chain
// still verifies, and how many audit records are waiting for replay.
package monitoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sansure/trust-cli/internal/ledger"
	"github.com/sansure/trust-cli/internal/model"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Event counts within the lookback window.
	SubmissionsScored int `json:"submissions_scored"`
	CyclesAdjudicated int `json:"cycles_adjudicated"`
	CreditsMinted     int `json:"credits_minted"`
	SignalsGenerated  int `json:"signals_generated"`
	ImpactEstimates   int `json:"impact_estimates"`
	NarrativesCreated int `json:"narratives_created"`

	// Scoring provenance.
	ProviderScored      int     `json:"provider_scored"`
	DeterministicScored int     `json:"deterministic_scored"`
	FallbackRate        float64 `json:"fallback_rate"`

	// Cycle outcomes.
	MintRecommended   int `json:"mint_recommended"`
	HoldRecommended   int `json:"hold_recommended"`
	RejectRecommended int `json:"reject_recommended"`

	// Ledger integrity.
	ChainVerified bool   `json:"chain_verified"`
	ChainError    string `json:"chain_error,omitempty"`

	// Engine state.
	BreakerState    string `json:"breaker_state"`
	UnrecordedDepth int    `json:"unrecorded_depth"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// EngineStatus is the live-state surface the collector reads off the
// orchestrator.
type EngineStatus interface {
	BreakerState() string
	UnrecordedCount() int
}

// Collector gathers metrics from the ledger and the engine.
type Collector struct {
	ledger ledger.Ledger
	engine EngineStatus
}

// NewCollector creates a metrics collector. engine may be nil when only
// ledger-derived metrics are wanted.
func NewCollector(led ledger.Ledger, engine EngineStatus) *Collector {
	return &Collector{ledger: led, engine: engine}
}

// cycleDetails is the slice of the cycle payload the collector reads.
type cycleDetails struct {
	Result struct {
		Recommendation model.CycleRecommendation `json:"recommendation"`
	} `json:"result"`
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	records, err := c.ledger.Query(ctx, ledger.Filter{Since: cutoff, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: query ledger")
	}

	for _, rec := range records {
		switch rec.Action {
		case ledger.ActionSubmissionScored:
			snap.SubmissionsScored++
		case ledger.ActionCycleAdjudicated:
			snap.CyclesAdjudicated++
			c.tallyCycle(snap, rec)
		case ledger.ActionCreditMinted:
			snap.CreditsMinted++
		case ledger.ActionSignalGenerated:
			snap.SignalsGenerated++
		case ledger.ActionImpactEstimated:
			snap.ImpactEstimates++
		case ledger.ActionNarrativeCreated:
			snap.NarrativesCreated++
		}

		// Credit mints are derived bookkeeping, not scoring decisions.
		if rec.Action == ledger.ActionCreditMinted {
			continue
		}
		switch model.ScoringMethod(rec.Method) {
		case model.MethodProvider:
			snap.ProviderScored++
		case model.MethodDeterministic:
			snap.DeterministicScored++
		}
	}

	if total := snap.ProviderScored + snap.DeterministicScored; total > 0 {
		snap.FallbackRate = float64(snap.DeterministicScored) / float64(total)
	}

	snap.ChainVerified = true
	if err := c.ledger.VerifyChain(ctx); err != nil {
		snap.ChainVerified = false
		snap.ChainError = err.Error()
	}

	if c.engine != nil {
		snap.BreakerState = c.engine.BreakerState()
		snap.UnrecordedDepth = c.engine.UnrecordedCount()
	}

	return snap, nil
}

func (c *Collector) tallyCycle(snap *MetricsSnapshot, rec ledger.Record) {
	var details cycleDetails
	if err := json.Unmarshal([]byte(rec.Details), &details); err != nil {
		return
	}
	switch details.Result.Recommendation {
	case model.RecommendMint:
		snap.MintRecommended++
	case model.RecommendHold:
		snap.HoldRecommended++
	case model.RecommendReject:
		snap.RejectRecommended++
	}
}
