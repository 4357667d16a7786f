// Package resilience wraps upstream HTTP calls with retries and a circuit
// breaker, and tracks per-provider health for the ops endpoints.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// TripPolicy decides when a closed circuit opens. Either condition trips it.
type TripPolicy struct {
	// ConsecutiveFailures opens the circuit after this many failures in a
	// row. Zero disables the check.
	ConsecutiveFailures uint32

	// MinRequests is the sample size required before FailureRatio applies.
	MinRequests uint32

	// FailureRatio opens the circuit once this share of sampled requests
	// failed. Zero disables the check.
	FailureRatio float64
}

// DefaultTripPolicy opens after 5 straight failures, or when half of at
// least 10 requests failed.
func DefaultTripPolicy() TripPolicy {
	return TripPolicy{
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.5,
	}
}

// ReadyToTrip implements gobreaker's trip callback.
func (p TripPolicy) ReadyToTrip(counts gobreaker.Counts) bool {
	if p.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= p.ConsecutiveFailures {
		return true
	}
	if p.FailureRatio <= 0 || counts.Requests == 0 || counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the counts periodically while closed. Zero keeps them
	// until the state changes.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	Policy TripPolicy

	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the configuration used for every
// upstream provider.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     30 * time.Second,
		Policy:      DefaultTripPolicy(),
	}
}

// NewCircuitBreaker creates a circuit breaker. Calls abandoned by their
// caller are not counted against the provider.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.Policy.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  countsAsSuccess,
	})
}

func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
