package provider

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/stats"
	"github.com/sansure/trust-cli/pkg/groq"
)

const (
	defaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultTextModel   = "meta-llama/llama-4-scout-17b-16e-instruct"

	// One bounded attempt; there is always a deterministic path behind us.
	defaultAttemptTimeout = 20 * time.Second

	scoringTemperature   = 0.1
	narrativeTemperature = 0.7
)

// GroqProvider scores through the Groq chat completions API.
type GroqProvider struct {
	client      groq.Client
	visionModel string
	textModel   string
	timeout     time.Duration
}

// GroqOption configures a GroqProvider.
type GroqOption func(*GroqProvider)

// WithVisionModel overrides the vision-capable model.
func WithVisionModel(m string) GroqOption {
	return func(p *GroqProvider) { p.visionModel = m }
}

// WithTextModel overrides the text model.
func WithTextModel(m string) GroqOption {
	return func(p *GroqProvider) { p.textModel = m }
}

// WithAttemptTimeout bounds each provider call.
func WithAttemptTimeout(d time.Duration) GroqOption {
	return func(p *GroqProvider) { p.timeout = d }
}

// NewGroq wraps a groq.Client as a scoring Provider.
func NewGroq(client groq.Client, opts ...GroqOption) *GroqProvider {
	p := &GroqProvider{
		client:      client,
		visionModel: defaultVisionModel,
		textModel:   defaultTextModel,
		timeout:     defaultAttemptTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) ScoreVision(ctx context.Context, req VisionRequest) (*model.VerificationResult, error) {
	content, err := p.complete(ctx, p.visionModel, scoringTemperature, groq.VisionMessage(req.Base64Image, visionPrompt(req)))
	if err != nil {
		return nil, unavailable(err, "vision analysis")
	}

	var result model.VerificationResult
	if err := json.Unmarshal([]byte(cleanJSON(content)), &result); err != nil {
		return nil, unavailable(err, "parse vision response")
	}
	if err := result.Validate(); err != nil {
		return nil, unavailable(err, "invalid vision response")
	}

	zap.L().Debug("vision analysis complete",
		zap.String("facility_id", req.FacilityID),
		zap.Int("hygiene_score", result.HygieneScore),
		zap.String("spoofing_risk", string(result.SpoofingRisk)))
	return &result, nil
}

func (p *GroqProvider) AdjudicateCollusion(ctx context.Context, subs []model.Submission) (*model.CollusionResult, error) {
	content, err := p.complete(ctx, p.textModel, scoringTemperature, groq.TextMessage("user", collusionPrompt(subs)))
	if err != nil {
		return nil, unavailable(err, "collusion check")
	}

	var result model.CollusionResult
	if err := json.Unmarshal([]byte(cleanJSON(content)), &result); err != nil {
		return nil, unavailable(err, "parse collusion response")
	}
	if err := result.Validate(); err != nil {
		return nil, unavailable(err, "invalid collusion response")
	}
	return &result, nil
}

func (p *GroqProvider) InvestorSignal(ctx context.Context, v model.Village) (*model.InvestorSignal, error) {
	avg := v.AverageScore()
	stdDev, err := stats.PopulationStdDev(v.HygieneScoreHistory)
	if err != nil {
		return nil, unavailable(err, "signal inputs")
	}

	content, err := p.complete(ctx, p.textModel, scoringTemperature, groq.TextMessage("user", signalPrompt(v, avg, stdDev)))
	if err != nil {
		return nil, unavailable(err, "investor signal")
	}

	var result model.InvestorSignal
	if err := json.Unmarshal([]byte(cleanJSON(content)), &result); err != nil {
		return nil, unavailable(err, "parse signal response")
	}
	if err := result.Validate(); err != nil {
		return nil, unavailable(err, "invalid signal response")
	}
	return &result, nil
}

func (p *GroqProvider) HealthNarrative(ctx context.Context, req NarrativeRequest) (string, error) {
	content, err := p.complete(ctx, p.textModel, narrativeTemperature, groq.TextMessage("user", narrativePrompt(req)))
	if err != nil {
		return "", unavailable(err, "health narrative")
	}
	if content == "" {
		return "", unavailable(errEmptyResponse, "health narrative")
	}
	return content, nil
}

func (p *GroqProvider) complete(ctx context.Context, mdl string, temperature float64, msg groq.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:       mdl,
		Temperature: &temperature,
		Messages: []groq.Message{
			groq.TextMessage("system", systemInstruction),
			msg,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
