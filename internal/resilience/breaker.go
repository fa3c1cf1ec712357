// Package resilience covers the operational hazards around the trust
// engine: a circuit breaker that sheds calls to a failing scoring provider,
// bounded retry with backoff for ledger connections, and a dead letter
// queue that parks audit records the ledger refused.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the breaker's position in its closed/open/half-open walk.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrBreakerOpen is returned without invoking the wrapped call while the
// breaker is shedding. The engine treats it like any provider failure and
// scores deterministically.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive tripping failures that
	// opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before letting a probe
	// call through.
	Cooldown time.Duration
	// HalfOpenProbes is the run of probe successes that closes it again.
	HalfOpenProbes int
	// ShouldTrip classifies which errors count toward the threshold. Nil
	// counts every non-nil error.
	ShouldTrip func(error) bool
	// OnStateChange observes transitions.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig opens after 5 straight failures, sheds for 30s, and
// closes after a single good probe.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker stops hammering a dependency that keeps failing. One breaker
// guards one dependency; the engine holds one for its scoring provider.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probeWins int

	now func() time.Time // test hook
}

// NewBreaker builds a closed breaker, filling zero config fields from the
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the breaker is open, and feeds the result back
// into the state machine.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.observe(err)
	return err
}

// State reports the current state, folding in cooldown expiry so an open
// breaker whose cooldown has lapsed reads as half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.shift(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.shift(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := err != nil
	if trips && b.cfg.ShouldTrip != nil {
		trips = b.cfg.ShouldTrip(err)
	}

	if trips {
		b.failures++
		// A half-open probe failure reopens immediately; the dependency
		// has not recovered.
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.shift(StateOpen)
		}
		return
	}

	if b.state == StateHalfOpen {
		b.probeWins++
		if b.probeWins >= b.cfg.HalfOpenProbes {
			b.shift(StateClosed)
		}
		return
	}
	b.failures = 0
}

// shift moves to a new state and fires the observer. Callers hold b.mu.
func (b *Breaker) shift(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.probeWins = 0
	case StateHalfOpen:
		b.probeWins = 0
	case StateClosed:
		b.failures = 0
		b.probeWins = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
