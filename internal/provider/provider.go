// Package provider defines the external scoring provider boundary. A
// provider gets exactly one bounded attempt per operation; anything that
// fails — transport, timeout, malformed output, out-of-range values — is
// reported as ErrUnavailable so the engine can fall back deterministically.
package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sansure/trust-cli/internal/model"
)

// ErrUnavailable means the provider produced no usable result. It wraps
// the underlying cause; callers only branch on the sentinel.
var ErrUnavailable = eris.New("provider: unavailable")

var (
	errNoChoices     = eris.New("provider: completion returned no choices")
	errEmptyResponse = eris.New("provider: empty completion")
)

// VisionRequest carries a facility photo and the household's checklist for
// visual verification.
type VisionRequest struct {
	FacilityID  string          `json:"facilityId"`
	Base64Image string          `json:"base64_image"`
	Checklist   model.Checklist `json:"checklist"`
}

// NarrativeRequest carries the inputs for a plain-language impact story.
type NarrativeRequest struct {
	VillageName    string `json:"village_name"`
	Population     int    `json:"population"`
	CasesPrevented int    `json:"cases_prevented"`
}

// Provider is an external scoring backend. Implementations must validate
// their own output against the model invariants before returning it.
type Provider interface {
	// Name identifies the backend in logs and ledger records.
	Name() string

	// ScoreVision assesses a facility photo against the checklist.
	ScoreVision(ctx context.Context, req VisionRequest) (*model.VerificationResult, error)

	// AdjudicateCollusion reviews one complete three-party cycle.
	AdjudicateCollusion(ctx context.Context, subs []model.Submission) (*model.CollusionResult, error)

	// InvestorSignal derives credit pricing from a village score history.
	InvestorSignal(ctx context.Context, v model.Village) (*model.InvestorSignal, error)

	// HealthNarrative writes the village-facing impact paragraph.
	HealthNarrative(ctx context.Context, req NarrativeRequest) (string, error)
}

// unavailable folds a cause into the ErrUnavailable sentinel so
// eris.Is(err, ErrUnavailable) holds for every failure leaving this package.
func unavailable(err error, msg string) error {
	return eris.Wrapf(ErrUnavailable, "%s: %v", msg, err)
}
