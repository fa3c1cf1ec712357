package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/config"
)

// Checker sweeps the ledger-derived metrics on a cadence and pushes any
// triggered alerts through the alerter. One sweep runs immediately at
// startup so an operator restarting into a broken chain hears about it
// before the first tick.
type Checker struct {
	collector *Collector
	alerter   *Alerter

	interval    time.Duration
	lookback    int
	collectsErr int // consecutive sweep failures
}

// NewChecker wires a sweep loop from the monitoring config. A non-positive
// check interval falls back to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run blocks until ctx is cancelled, sweeping once up front and then once
// per interval.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring"))
	log.Info("trust health sweeps started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback))

	c.sweep(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("trust health sweeps stopped")
			return
		case <-ticker.C:
			c.sweep(ctx, log)
		}
	}
}

// sweep collects one snapshot, evaluates it, and dispatches alerts. A
// single failed collection is a warning; a run of three escalates, since
// that usually means the ledger itself is unreadable.
func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		c.collectsErr++
		if c.collectsErr >= 3 {
			log.Error("metrics collection failing repeatedly",
				zap.Int("consecutive_failures", c.collectsErr),
				zap.Error(err))
		} else {
			log.Warn("metrics collection failed", zap.Error(err))
		}
		return
	}
	c.collectsErr = 0

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("sweep clean",
			zap.Int("submissions_scored", snap.SubmissionsScored),
			zap.Float64("fallback_rate", snap.FallbackRate))
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("sweep raised alerts",
		zap.Int("triggered", len(alerts)),
		zap.Int("delivered", sent))
}
