package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansure/trust-cli/internal/config"
)

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		ProviderScored:      8,
		DeterministicScored: 2,
		FallbackRate:        0.2,
		ChainVerified:       true,
		BreakerState:        "closed",
		LookbackHours:       24,
		CollectedAt:         time.Now().UTC(),
	}
}

func TestEvaluate_Healthy(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FallbackRateThreshold: 0.5,
		UnrecordedThreshold:   1,
	})
	assert.Empty(t, a.Evaluate(healthySnapshot()))
}

func TestEvaluate_ChainIntegrity(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.5})
	snap := healthySnapshot()
	snap.ChainVerified = false
	snap.ChainError = "ledger: hash mismatch at entry 2"

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertChainIntegrity, alerts[0].Type)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "hash mismatch at entry 2")
}

func TestEvaluate_FallbackRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.5})
	snap := healthySnapshot()
	snap.ProviderScored = 2
	snap.DeterministicScored = 8
	snap.FallbackRate = 0.8
	snap.BreakerState = "open"

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFallbackRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "open", alerts[0].Details["breaker_state"])
}

func TestEvaluate_FallbackRateNeedsVolume(t *testing.T) {
	// Two deterministic operations out of two is a 100% rate, but too few
	// samples to alert on.
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.5})
	snap := healthySnapshot()
	snap.ProviderScored = 0
	snap.DeterministicScored = 2
	snap.FallbackRate = 1.0

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_UnrecordedDepth(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FallbackRateThreshold: 0.5,
		UnrecordedThreshold:   3,
	})
	snap := healthySnapshot()
	snap.UnrecordedDepth = 3

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnrecorded, alerts[0].Type)

	snap.UnrecordedDepth = 2
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_UnrecordedDisabledWhenThresholdZero(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.5})
	snap := healthySnapshot()
	snap.UnrecordedDepth = 10

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FallbackRateThreshold: 0.5,
		UnrecordedThreshold:   1,
	})
	snap := healthySnapshot()
	snap.ChainVerified = false
	snap.ChainError = "chain broken at entry 3"
	snap.ProviderScored = 0
	snap.DeterministicScored = 10
	snap.FallbackRate = 1.0
	snap.UnrecordedDepth = 4

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 3)
	assert.Equal(t, AlertChainIntegrity, alerts[0].Type)
	assert.Equal(t, AlertFallbackRate, alerts[1].Type)
	assert.Equal(t, AlertUnrecorded, alerts[2].Type)
}

func TestSendAlerts(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received = append(received, alert)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	alerts := []Alert{
		{Type: AlertChainIntegrity, Severity: "critical", Message: "chain broken", Timestamp: time.Now().UTC()},
		{Type: AlertFallbackRate, Severity: "high", Message: "fallback high", Timestamp: time.Now().UTC()},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertChainIntegrity, received[0].Type)
}

func TestSendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertUnrecorded, Severity: "high"}})
	assert.Zero(t, sent)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertUnrecorded}})
	assert.Zero(t, sent)
}
