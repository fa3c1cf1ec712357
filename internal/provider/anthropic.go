package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/stats"
	"github.com/sansure/trust-cli/pkg/anthropic"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	anthropicMaxTokens    = 1024
)

// AnthropicProvider scores text modes through the Anthropic API. It has no
// vision path; ScoreVision always reports unavailable so the engine falls
// back to checklist scoring.
type AnthropicProvider struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel overrides the default model.
func WithAnthropicModel(m string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = m }
}

// WithAnthropicTimeout bounds each provider call.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(p *AnthropicProvider) { p.timeout = d }
}

// NewAnthropic wraps an anthropic.Client as a scoring Provider.
func NewAnthropic(client anthropic.Client, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		client:  client,
		model:   defaultAnthropicModel,
		timeout: defaultAttemptTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) ScoreVision(_ context.Context, _ VisionRequest) (*model.VerificationResult, error) {
	return nil, unavailable(eris.New("no vision support"), "vision analysis")
}

func (p *AnthropicProvider) AdjudicateCollusion(ctx context.Context, subs []model.Submission) (*model.CollusionResult, error) {
	content, err := p.complete(ctx, scoringTemperature, collusionPrompt(subs))
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

func (p *AnthropicProvider) InvestorSignal(ctx context.Context, v model.Village) (*model.InvestorSignal, error) {
	avg := v.AverageScore()
	stdDev, err := stats.PopulationStdDev(v.HygieneScoreHistory)
	if err != nil {
		return nil, unavailable(err, "signal inputs")
	}

	content, err := p.complete(ctx, scoringTemperature, signalPrompt(v, avg, stdDev))
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

func (p *AnthropicProvider) HealthNarrative(ctx context.Context, req NarrativeRequest) (string, error) {
	content, err := p.complete(ctx, narrativeTemperature, narrativePrompt(req))
	if err != nil {
		return "", unavailable(err, "health narrative")
	}
	if content == "" {
		return "", unavailable(errEmptyResponse, "health narrative")
	}
	return content, nil
}

func (p *AnthropicProvider) complete(ctx context.Context, temperature float64, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   anthropicMaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemInstruction),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogCost(p.model, "scoring")

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", errEmptyResponse
}
