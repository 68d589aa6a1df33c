package tmdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"MovieCurator/internal/metrics"
)

const breakerName = "tmdb-api"

// BreakerClient wraps an UpcomingLister with a circuit breaker.
// It opens after a 60% failure rate over at least 10 requests and probes again after Timeout.
type BreakerClient struct {
	next   UpcomingLister
	cb     *gobreaker.CircuitBreaker[*UpcomingPage]
	logger *slog.Logger
}

var _ UpcomingLister = (*BreakerClient)(nil)

// BreakerSettings tunes the breaker windows; zero values fall back to defaults.
type BreakerSettings struct {
	Interval time.Duration
	Timeout  time.Duration
}

// NewBreakerClient builds a BreakerClient around next.
func NewBreakerClient(next UpcomingLister, settings BreakerSettings, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 2 * time.Minute
	}
	logger = logger.With("component", "tmdb_breaker")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	bc := &BreakerClient{next: next, logger: logger}
	bc.cb = gobreaker.NewCircuitBreaker[*UpcomingPage](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logger.Warn("opening circuit", "failures", counts.TotalFailures, "failure_rate", ratio*100)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit state transition", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return bc
}

// Upcoming forwards to the wrapped client unless the circuit is open.
func (b *BreakerClient) Upcoming(ctx context.Context, req UpcomingRequest) (*UpcomingPage, error) {
	page, err := b.cb.Execute(func() (*UpcomingPage, error) {
		return b.next.Upcoming(ctx, req)
	})
	switch {
	case err == nil:
		metrics.ProviderRequests.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ProviderRequests.WithLabelValues("rejected").Inc()
	default:
		metrics.ProviderRequests.WithLabelValues("failure").Inc()
	}
	return page, err
}

// State reports the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
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
