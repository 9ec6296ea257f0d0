// pkg/telemetry/breaker.go
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// Breaker wraps exporter writes with circuit breaker functionality so that an
// unreachable backend costs one failed write per timeout window instead of one
// per tick.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// Operation is a single export attempt.
type Operation func() error

// NewBreaker creates a Breaker from the telemetry breaker settings.
func NewBreaker(name string, cfg config.BreakerConfig, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.NewLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxConsecutiveFails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs op through the circuit breaker. While the circuit is open it
// fails immediately with gobreaker.ErrOpenState.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	if err != nil {
		b.logger.LogWithContext(ctx, slog.LevelDebug, "circuit breaker execution failed",
			"error", err,
			"state", b.breaker.State().String(),
		)
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the current failure/success counts of the circuit breaker.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}
