package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFallbackRate   AlertType = "scoring_fallback_rate"
	AlertChainIntegrity AlertType = "ledger_chain_integrity"
	AlertUnrecorded     AlertType = "unrecorded_audit_depth"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// A broken hash chain is the one alert that can never wait.
	if !snap.ChainVerified {
		alerts = append(alerts, Alert{
			Type:     AlertChainIntegrity,
			Severity: "critical",
			Message:  fmt.Sprintf("Audit ledger chain verification failed: %s", snap.ChainError),
			Details: map[string]any{
				"chain_error": snap.ChainError,
			},
			Timestamp: now,
		})
	}

	// Sustained fallback means the provider has been down or malformed for
	// most of the window.
	scored := snap.ProviderScored + snap.DeterministicScored
	if scored >= 5 && snap.FallbackRate > a.cfg.FallbackRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFallbackRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Deterministic fallback rate %.1f%% exceeds threshold %.1f%% (%d of %d operations in last %dh)",
				snap.FallbackRate*100, a.cfg.FallbackRateThreshold*100,
				snap.DeterministicScored, scored, snap.LookbackHours,
			),
			Details: map[string]any{
				"fallback_rate": snap.FallbackRate,
				"threshold":     a.cfg.FallbackRateThreshold,
				"deterministic": snap.DeterministicScored,
				"scored":        scored,
				"breaker_state": snap.BreakerState,
			},
			Timestamp: now,
		})
	}

	if a.cfg.UnrecordedThreshold > 0 && snap.UnrecordedDepth >= a.cfg.UnrecordedThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnrecorded,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d audit records waiting for ledger replay (threshold %d)",
				snap.UnrecordedDepth, a.cfg.UnrecordedThreshold,
			),
			Details: map[string]any{
				"unrecorded_depth": snap.UnrecordedDepth,
				"threshold":        a.cfg.UnrecordedThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
