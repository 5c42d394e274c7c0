// Package resilience provides protection patterns for broker calls: a
// circuit breaker that stops hammering a failing venue while the gateway
// keeps evaluating and auditing actions.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // normal operation
	CircuitOpen     CircuitState = "OPEN"      // failing, rejecting calls
	CircuitHalfOpen CircuitState = "HALF_OPEN" // probing for recovery
)

// ErrCircuitOpen is returned when calls are being rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker tuning.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the successes in half-open needed to close.
	SuccessThreshold int
	// CoolOff is how long an open circuit rejects before probing.
	CoolOff time.Duration
}

// DefaultCircuitBreakerConfig returns defaults suited to a flaky broker
// endpoint.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolOff:          30 * time.Second,
	}
}

// CircuitBreaker tracks failures of a named dependency and short-circuits
// calls while it is unhealthy. A rejected call never reaches the broker,
// so the caller records it as a failed forward, not a silent drop.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time

	totalCalls    int64
	totalFailures int64
	totalRejected int64
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  CircuitClosed,
	}
}

// Do runs fn under breaker protection, honoring ctx cancellation while
// waiting for fn to finish.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		cb.record(r.err == nil)
		if r.err != nil {
			return zero, r.err
		}
		return r.value, nil
	case <-ctx.Done():
		cb.record(false)
		return zero, ctx.Err()
	}
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++
	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.config.CoolOff {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		cb.totalRejected++
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		switch cb.state {
		case CircuitHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.transition(CircuitClosed)
			}
		case CircuitClosed:
			cb.failures = 0
		}
		return
	}

	cb.totalFailures++
	cb.lastFailure = time.Now()
	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(state CircuitState) {
	cb.state = state
	cb.failures = 0
	cb.successes = 0
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the protected dependency's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Stats returns a snapshot of breaker counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:          cb.name,
		State:         cb.state,
		TotalCalls:    cb.totalCalls,
		TotalFailures: cb.totalFailures,
		TotalRejected: cb.totalRejected,
		LastFailure:   cb.lastFailure,
	}
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(CircuitClosed)
}

// CircuitBreakerStats holds breaker counters for status output.
type CircuitBreakerStats struct {
	Name          string
	State         CircuitState
	TotalCalls    int64
	TotalFailures int64
	TotalRejected int64
	LastFailure   time.Time
}
