// Package engine orchestrates the scoring paths: it routes each operation
// through the external provider when one is configured and healthy, falls
// back to the deterministic engines otherwise, and writes every outcome to
// the audit ledger with its scoring provenance.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/adjudicate"
	"github.com/sansure/trust-cli/internal/impact"
	"github.com/sansure/trust-cli/internal/ledger"
	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/provider"
	"github.com/sansure/trust-cli/internal/resilience"
	"github.com/sansure/trust-cli/internal/scoring"
	"github.com/sansure/trust-cli/internal/trust"
	"github.com/sansure/trust-cli/internal/village"
)

// Engine binds the scoring components together. The ledger and registry
// are required; the provider is optional and its absence simply pins every
// operation to the deterministic path.
type Engine struct {
	ledger   ledger.Ledger
	registry *village.Registry
	trust    *trust.Engine
	provider provider.Provider
	breaker  *resilience.Breaker
	dlq      *resilience.DLQ

	breakerCfg resilience.BreakerConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider attaches an external scoring provider behind a circuit
// breaker.
func WithProvider(p provider.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithBreakerConfig overrides the provider circuit thresholds.
func WithBreakerConfig(cfg resilience.BreakerConfig) Option {
	return func(e *Engine) { e.breakerCfg = cfg }
}

// New creates an Engine.
func New(led ledger.Ledger, reg *village.Registry, trustEng *trust.Engine, opts ...Option) *Engine {
	e := &Engine{
		ledger:     led,
		registry:   reg,
		trust:      trustEng,
		dlq:        resilience.NewDLQ(),
		breakerCfg: resilience.DefaultBreakerConfig(),
	}
	for _, o := range opts {
		o(e)
	}

	if e.provider != nil {
		// Only availability failures count toward tripping; the provider
		// boundary folds every failed call into ErrUnavailable, so a run
		// of them means the dependency is down and the deterministic path
		// should take over without the call tax.
		cfg := e.breakerCfg
		cfg.ShouldTrip = func(err error) bool {
			return eris.Is(err, provider.ErrUnavailable)
		}
		cfg.OnStateChange = func(from, to resilience.BreakerState) {
			zap.L().Warn("provider circuit state change",
				zap.String("provider", e.provider.Name()),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
		e.breaker = resilience.NewBreaker(cfg)
	}
	return e
}

// BreakerState reports the provider circuit state, or "closed" when no
// provider is configured.
func (e *Engine) BreakerState() string {
	if e.breaker == nil {
		return resilience.StateClosed.String()
	}
	return e.breaker.State().String()
}

// UnrecordedCount reports audit records parked after failed ledger writes.
func (e *Engine) UnrecordedCount() int {
	return e.dlq.Len()
}

// VerificationOutcome pairs a hygiene assessment with its provenance.
type VerificationOutcome struct {
	Result   model.VerificationResult `json:"result"`
	Method   model.ScoringMethod      `json:"scoring_method"`
	Recorded bool                     `json:"recorded"`
}

// CycleOutcome is the adjudicated verification cycle plus audit status.
type CycleOutcome struct {
	Cycle    model.VerificationCycle `json:"cycle"`
	Recorded bool                    `json:"recorded"`
}

// SignalOutcome is an investor signal plus its provenance.
type SignalOutcome struct {
	Signal   model.InvestorSignal `json:"signal"`
	Method   model.ScoringMethod  `json:"scoring_method"`
	Recorded bool                 `json:"recorded"`
}

// ImpactOutcome is a health impact estimate plus audit status.
type ImpactOutcome struct {
	VillageID      string `json:"villageId"`
	CasesPrevented int    `json:"casesPrevented"`
	Recorded       bool   `json:"recorded"`
}

// NarrativeOutcome is a village-facing impact story plus provenance.
type NarrativeOutcome struct {
	VillageID      string              `json:"villageId"`
	CasesPrevented int                 `json:"casesPrevented"`
	Narrative      string              `json:"narrative"`
	Method         model.ScoringMethod `json:"scoring_method"`
	Recorded       bool                `json:"recorded"`
}

// ScoreSubmission assesses a single submission. With a provider and an
// image it attempts visual verification; every failure degrades to the
// deterministic checklist score, never to an error.
func (e *Engine) ScoreSubmission(ctx context.Context, req provider.VisionRequest) (*VerificationOutcome, error) {
	outcome := &VerificationOutcome{Method: model.MethodDeterministic}

	if e.provider != nil && req.Base64Image != "" {
		var result *model.VerificationResult
		err := e.viaBreaker(ctx, func(ctx context.Context) error {
			var callErr error
			result, callErr = e.provider.ScoreVision(ctx, req)
			return callErr
		})
		if err == nil {
			outcome.Result = *result
			outcome.Method = model.MethodProvider
		} else {
			zap.L().Warn("vision scoring degraded to checklist",
				zap.String("facility_id", req.FacilityID),
				zap.Error(err))
		}
	}

	if outcome.Method == model.MethodDeterministic {
		outcome.Result = scoring.ScoreChecklist(req.Checklist)
	}

	recErr := e.record(ctx, ledger.Record{
		Action:     ledger.ActionSubmissionScored,
		EntityType: "facility",
		EntityID:   req.FacilityID,
		Method:     string(outcome.Method),
	}, outcome.Result)
	outcome.Recorded = recErr == nil
	return outcome, recErr
}

// AdjudicateCycle reviews one complete three-party cycle. A mint outcome
// appends the consensus score to the village history and mints impact
// credits. villageID may be empty when no registry entry exists yet.
func (e *Engine) AdjudicateCycle(ctx context.Context, villageID string, subs []model.Submission) (*CycleOutcome, error) {
	// The deterministic adjudicator owns cycle validation for both paths.
	deterministic, err := adjudicate.Adjudicate(subs)
	if err != nil {
		return nil, err
	}

	result := deterministic
	method := model.MethodDeterministic

	if e.provider != nil {
		var provided *model.CollusionResult
		err := e.viaBreaker(ctx, func(ctx context.Context) error {
			var callErr error
			provided, callErr = e.provider.AdjudicateCollusion(ctx, subs)
			return callErr
		})
		if err == nil {
			result = provided
			method = model.MethodProvider
		} else {
			zap.L().Warn("collusion adjudication degraded to deterministic",
				zap.String("facility_id", subs[0].FacilityID),
				zap.Error(err))
		}
	}

	enforceCycleRules(result)
	applyIndependenceCheck(result, subs)

	cycle := model.VerificationCycle{
		ID:            uuid.New().String(),
		FacilityID:    subs[0].FacilityID,
		Submissions:   subs,
		Result:        *result,
		ScoringMethod: method,
		Minted:        result.Recommendation == model.RecommendMint,
		CreatedAt:     time.Now().UTC(),
	}

	outcome := &CycleOutcome{Cycle: cycle}
	recErr := e.record(ctx, ledger.Record{
		Action:     ledger.ActionCycleAdjudicated,
		EntityType: "facility",
		EntityID:   cycle.FacilityID,
		Method:     string(method),
	}, cycle)
	outcome.Recorded = recErr == nil

	if cycle.Minted && villageID != "" {
		switch mintErr := e.mint(ctx, villageID, result.ConsensusScore); {
		case mintErr == nil:
		case IsLedgerWrite(mintErr):
			if recErr == nil {
				recErr = mintErr
			}
		default:
			zap.L().Error("mint bookkeeping failed",
				zap.String("village_id", villageID),
				zap.Error(mintErr))
		}
	}

	return outcome, recErr
}

// mint applies the consensus score to the village history and records the
// minted credits at the post-update trust state.
func (e *Engine) mint(ctx context.Context, villageID string, consensus int) error {
	v, err := e.registry.RecordScore(villageID, float64(consensus))
	if err != nil {
		return err
	}

	signal := e.trust.Signal(&v)
	return e.record(ctx, ledger.Record{
		Action:     ledger.ActionCreditMinted,
		EntityType: "village",
		EntityID:   villageID,
		Method:     string(model.MethodDeterministic),
	}, signal)
}

// TrustSignal recomputes the derived trust view for a village. Derived
// views are never stored and never ledgered.
func (e *Engine) TrustSignal(villageID string) (*model.TrustSignal, error) {
	v, err := e.registry.Get(villageID)
	if err != nil {
		return nil, err
	}
	signal := e.trust.Signal(&v)
	return &signal, nil
}

// InvestorSignal produces the provider-compatible wire signal for a
// village, falling back to the deterministic trust engine.
func (e *Engine) InvestorSignal(ctx context.Context, villageID string) (*SignalOutcome, error) {
	v, err := e.registry.Get(villageID)
	if err != nil {
		return nil, err
	}

	outcome := &SignalOutcome{Method: model.MethodDeterministic}

	if e.provider != nil && len(v.HygieneScoreHistory) > 0 {
		var signal *model.InvestorSignal
		err := e.viaBreaker(ctx, func(ctx context.Context) error {
			var callErr error
			signal, callErr = e.provider.InvestorSignal(ctx, v)
			return callErr
		})
		if err == nil {
			outcome.Signal = *signal
			outcome.Method = model.MethodProvider
		} else {
			zap.L().Warn("investor signal degraded to deterministic",
				zap.String("village_id", villageID),
				zap.Error(err))
		}
	}

	if outcome.Method == model.MethodDeterministic {
		outcome.Signal = e.trust.InvestorSignal(&v)
	}

	recErr := e.record(ctx, ledger.Record{
		Action:     ledger.ActionSignalGenerated,
		EntityType: "village",
		EntityID:   villageID,
		Method:     string(outcome.Method),
	}, outcome.Signal)
	outcome.Recorded = recErr == nil
	return outcome, recErr
}

// EstimateImpact computes cases prevented for a village and stores the
// estimate on the registry entry.
func (e *Engine) EstimateImpact(ctx context.Context, villageID string) (*ImpactOutcome, error) {
	v, err := e.registry.Get(villageID)
	if err != nil {
		return nil, err
	}

	cases, err := impact.CasesPrevented(v.Population, v.AverageScore())
	if err != nil {
		return nil, err
	}
	if err := e.registry.SetCasesPrevented(villageID, cases); err != nil {
		return nil, err
	}

	outcome := &ImpactOutcome{VillageID: villageID, CasesPrevented: cases}
	recErr := e.record(ctx, ledger.Record{
		Action:     ledger.ActionImpactEstimated,
		EntityType: "village",
		EntityID:   villageID,
		Method:     string(model.MethodDeterministic),
	}, outcome)
	outcome.Recorded = recErr == nil
	return outcome, recErr
}

// Narrative produces the village-facing impact story. The deterministic
// fallback paragraph guarantees the operation never returns empty.
func (e *Engine) Narrative(ctx context.Context, villageID string) (*NarrativeOutcome, error) {
	// A parked impact record does not block the narrative; the write
	// failure resurfaces in the returned error.
	est, impactErr := e.EstimateImpact(ctx, villageID)
	if impactErr != nil && !IsLedgerWrite(impactErr) {
		return nil, impactErr
	}
	v, err := e.registry.Get(villageID)
	if err != nil {
		return nil, err
	}

	outcome := &NarrativeOutcome{
		VillageID:      villageID,
		CasesPrevented: est.CasesPrevented,
		Method:         model.MethodDeterministic,
	}

	if e.provider != nil {
		var story string
		err := e.viaBreaker(ctx, func(ctx context.Context) error {
			var callErr error
			story, callErr = e.provider.HealthNarrative(ctx, provider.NarrativeRequest{
				VillageName:    v.Name,
				Population:     v.Population,
				CasesPrevented: est.CasesPrevented,
			})
			return callErr
		})
		if err == nil {
			outcome.Narrative = story
			outcome.Method = model.MethodProvider
		} else {
			zap.L().Warn("narrative degraded to fallback",
				zap.String("village_id", villageID),
				zap.Error(err))
		}
	}

	if outcome.Method == model.MethodDeterministic {
		outcome.Narrative = impact.FallbackNarrative(v.Name, v.Population, est.CasesPrevented)
	}

	recErr := e.record(ctx, ledger.Record{
		Action:     ledger.ActionNarrativeCreated,
		EntityType: "village",
		EntityID:   villageID,
		Method:     string(outcome.Method),
	}, outcome)
	outcome.Recorded = recErr == nil
	if recErr != nil {
		return outcome, recErr
	}
	return outcome, impactErr
}

// ReplayUnrecorded retries parked audit records against the ledger.
func (e *Engine) ReplayUnrecorded(ctx context.Context) (replayed, failed int) {
	return e.dlq.Replay(ctx, func(ctx context.Context, entry resilience.DLQEntry) error {
		var rec ledger.Record
		if err := json.Unmarshal(entry.Payload, &rec); err != nil {
			return err
		}
		// Append re-stamps ID, timestamp and chain hashes.
		_, err := e.ledger.Append(ctx, rec)
		return err
	})
}

// enforceCycleRules re-applies the minting gates to provider output. High
// collusion risk never mints, and neither does a consensus below the mint
// floor, no matter what the provider recommended.
func enforceCycleRules(result *model.CollusionResult) {
	if result.Recommendation != model.RecommendMint {
		return
	}
	if result.CollusionRisk == model.RiskHigh {
		result.Recommendation = model.RecommendHold
		result.Reasoning = "held: high collusion risk cannot mint; " + result.Reasoning
		return
	}
	if result.ConsensusScore < adjudicate.MintScoreFloor {
		result.Recommendation = model.RecommendHold
		result.Reasoning = "held: consensus below mint floor; " + result.Reasoning
	}
}

// applyIndependenceCheck folds the geographic separation check into the
// result. A confirmed violation is treated like high collusion risk.
func applyIndependenceCheck(result *model.CollusionResult, subs []model.Submission) {
	ind := village.CheckIndependence(subs)
	if !ind.Checked || ind.Confirmed {
		return
	}

	result.IndependenceConfirmed = false
	result.CollusionRisk = model.RiskHigh
	result.CollusionIndicators = append(result.CollusionIndicators,
		"submitter locations within minimum ward separation")
	if result.Recommendation == model.RecommendMint {
		result.Recommendation = model.RecommendHold
	}
}

// record appends one audit record. On failure the payload is parked for
// replay and a LedgerWriteError comes back so the caller can tell an
// unrecorded outcome apart from a recorded one.
func (e *Engine) record(ctx context.Context, rec ledger.Record, details any) error {
	payload, err := ledger.MarshalDetails(details)
	if err != nil {
		zap.L().Error("audit payload marshal failed", zap.Error(err))
		return &LedgerWriteError{Action: rec.Action, EntityID: rec.EntityID, Err: err}
	}
	rec.Details = payload

	_, err = e.ledger.Append(ctx, rec)
	if err == nil {
		return nil
	}

	if parked, mErr := json.Marshal(rec); mErr != nil {
		zap.L().Error("audit record park failed", zap.Error(mErr))
	} else {
		e.dlq.Add(rec.Action, rec.EntityID, parked, err, 0)
	}
	zap.L().Error("audit write failed, record parked",
		zap.String("action", rec.Action),
		zap.String("entity_id", rec.EntityID),
		zap.Error(err))
	return &LedgerWriteError{Action: rec.Action, EntityID: rec.EntityID, Err: err}
}

// viaBreaker routes a provider call through the circuit breaker when one
// is configured.
func (e *Engine) viaBreaker(ctx context.Context, fn func(context.Context) error) error {
	if e.breaker == nil {
		return fn(ctx)
	}
	return e.breaker.Execute(ctx, fn)
}
