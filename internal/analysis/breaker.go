package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/teemow/inboxsense/internal/logging"
)

// BreakerSettings tunes the circuit breaker in front of a Model.
type BreakerSettings struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval resets the failure counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings returns the settings used by WithBreaker.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// breakerModel fails fast while the provider keeps failing.
type breakerModel struct {
	Model
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps m in a circuit breaker. Provider rejections of the
// request itself (4xx) and caller cancellations do not count as failures.
func WithBreaker(m Model, s BreakerSettings, logger *slog.Logger) Model {
	if m == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-" + m.Provider(),
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > s.ConsecutiveFailures ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.Service(name),
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &breakerModel{Model: m, cb: cb}
}

func (b *breakerModel) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.Model.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// breakerOpen reports whether err was produced by an open or saturated breaker.
func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
