// Package circuitbreaker builds gobreaker circuit breakers with shared
// defaults and state-change logging.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Options struct {
	// consecutive failures that open the breaker
	FailureThreshold uint32
	// how long the breaker stays open before letting a probe through
	OpenTimeout time.Duration
	// requests allowed while half-open
	HalfOpenRequests uint32
}

func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

func New[T any](name string, opts Options, log *slog.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.HalfOpenRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
