package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/pkg/logger"
	"github.com/okian/eventmatch/pkg/metrics"
)

// Default guard settings.
const (
	DefaultBreakerName      = "notify"
	DefaultFailureThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second
	DefaultRatePerSecond    = 10.0
	DefaultBurst            = 5
)

// Guard wraps a Sink with a rate limiter and a circuit breaker. Invalid
// recipients are rejected before reaching either.
type Guard struct {
	next    Sink
	name    string
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[any]
	log     logger.Logger

	failureThreshold uint32
	timeout          time.Duration
	ratePerSecond    float64
	burst            int
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithBreakerName sets the breaker name used in logs and metrics.
func WithBreakerName(name string) GuardOption {
	return func(g *Guard) {
		if name != "" {
			g.name = name
		}
	}
}

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.failureThreshold = uint32(n)
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open before probing.
func WithBreakerTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit sets the sustained rate and burst. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) GuardOption {
	return func(g *Guard) {
		g.ratePerSecond = perSecond
		if burst > 0 {
			g.burst = burst
		}
	}
}

// NewGuard wraps next.
func NewGuard(next Sink, opts ...GuardOption) *Guard {
	g := &Guard{
		next:             next,
		name:             DefaultBreakerName,
		failureThreshold: DefaultFailureThreshold,
		timeout:          DefaultBreakerTimeout,
		ratePerSecond:    DefaultRatePerSecond,
		burst:            DefaultBurst,
		log:              logger.Named("notify"),
	}
	for _, opt := range opts {
		opt(g)
	}

	limit := rate.Inf
	if g.ratePerSecond > 0 {
		limit = rate.Limit(g.ratePerSecond)
	}
	g.limiter = rate.NewLimiter(limit, g.burst)

	metrics.UpdateBreakerState(g.name, stateToFloat(gobreaker.StateClosed))
	threshold := g.failureThreshold
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        g.name,
		MaxRequests: 1,
		Timeout:     g.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, stateToFloat(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
	return g
}

// Deliver forwards n to the wrapped sink when the limiter and breaker allow.
func (g *Guard) Deliver(ctx context.Context, n model.Notification) error {
	if err := ValidateEmail(n.Recipient); err != nil {
		return err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.next.Deliver(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordErrorByComponent("notify", "circuit_open")
		return fmt.Errorf("deliver to %s: %w", n.Recipient, ErrCircuitOpen)
	}
	return err
}

// State reports the breaker state.
func (g *Guard) State() string { return g.cb.State().String() }

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
