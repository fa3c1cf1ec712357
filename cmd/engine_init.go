package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/engine"
	"github.com/sansure/trust-cli/internal/ledger"
	"github.com/sansure/trust-cli/internal/provider"
	"github.com/sansure/trust-cli/internal/resilience"
	"github.com/sansure/trust-cli/internal/trust"
	"github.com/sansure/trust-cli/internal/village"
	anthropicpkg "github.com/sansure/trust-cli/pkg/anthropic"
	groqpkg "github.com/sansure/trust-cli/pkg/groq"
)

// engineEnv bundles the initialized components a command needs.
type engineEnv struct {
	Ledger       ledger.Ledger
	Registry     *village.Registry
	Engine       *engine.Engine
	ProviderName string
}

func (e *engineEnv) Close() {
	if err := e.Ledger.Close(); err != nil {
		zap.L().Warn("close ledger", zap.Error(err))
	}
}

// initEngine builds the ledger, registry, trust engine and provider from
// config and assembles the verification engine.
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	led, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := initRegistry()
	if err != nil {
		_ = led.Close()
		return nil, err
	}

	policy := trust.DefaultPolicy()
	if cfg.Trust.PolicyPath != "" {
		policy, err = trust.LoadPolicy(cfg.Trust.PolicyPath)
		if err != nil {
			_ = led.Close()
			return nil, err
		}
	}

	var opts []engine.Option
	providerName := "none"
	if p := initProvider(); p != nil {
		opts = append(opts,
			engine.WithProvider(p),
			engine.WithBreakerConfig(resilience.FromBreakerConfig(
				cfg.Retry.CircuitFailures, cfg.Retry.CircuitResetSecs)),
		)
		providerName = p.Name()
	}

	return &engineEnv{
		Ledger:       led,
		Registry:     reg,
		Engine:       engine.New(led, reg, trust.NewEngine(policy), opts...),
		ProviderName: providerName,
	}, nil
}

func initLedger(ctx context.Context) (ledger.Ledger, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return ledger.NewSQLite(ctx, cfg.Store.SQLitePath)
	case "postgres":
		// Connect with backoff: the database may still be coming up.
		retryCfg := resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier,
			cfg.Retry.JitterFraction,
		)
		retryCfg.OnRetry = resilience.RetryLogger("ledger", "connect")
		return resilience.Do(ctx, retryCfg, func(ctx context.Context) (*ledger.PostgresLedger, error) {
			return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL)
		})
	case "memory":
		zap.L().Warn("memory ledger configured, audit trail will not survive restart")
		return ledger.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func initRegistry() (*village.Registry, error) {
	if _, err := os.Stat(cfg.Villages.SeedPath); err != nil {
		zap.L().Debug("village seed file not found, starting with empty registry",
			zap.String("path", cfg.Villages.SeedPath))
		return village.NewRegistry(), nil
	}
	return village.LoadSeed(cfg.Villages.SeedPath)
}

// initProvider returns nil when no provider is usable; the engine then
// runs every operation deterministically.
func initProvider() provider.Provider {
	timeout := time.Duration(cfg.Provider.AttemptTimeoutSecs) * time.Second

	switch cfg.Provider.Name {
	case "groq":
		if cfg.Groq.Key == "" {
			zap.L().Warn("SANSURE_GROQ_KEY not set, running deterministic only")
			return nil
		}
		client := groqpkg.NewClient(cfg.Groq.Key,
			groqpkg.WithBaseURL(cfg.Groq.BaseURL),
			groqpkg.WithRateLimit(cfg.Groq.RequestsPerS),
		)
		return provider.NewGroq(client,
			provider.WithVisionModel(cfg.Groq.VisionModel),
			provider.WithTextModel(cfg.Groq.TextModel),
			provider.WithAttemptTimeout(timeout),
		)
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("SANSURE_ANTHROPIC_KEY not set, running deterministic only")
			return nil
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		return provider.NewAnthropic(client,
			provider.WithAnthropicModel(cfg.Anthropic.Model),
			provider.WithAnthropicTimeout(timeout),
		)
	default:
		return nil
	}
}
