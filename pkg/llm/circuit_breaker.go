package llm

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting provider calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets every call through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until ResetAfter has elapsed.
	CircuitOpen
	// CircuitHalfOpen lets a single trial call through.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before a trial call is allowed.
	ResetAfter time.Duration
	// OnStateChange, if set, is called after every transition with the lock released.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and retries after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker stops calling a provider that keeps failing so a broken model
// endpoint fails a question fast instead of burning the whole retry budget.
type CircuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
	onStateChange    func(from, to CircuitState)
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 1
	}
	return &CircuitBreaker{
		threshold:     config.Threshold,
		resetAfter:    config.ResetAfter,
		state:         CircuitClosed,
		onStateChange: config.OnStateChange,
		now:           time.Now,
	}
}

// Allow reports whether a call may proceed. An open circuit becomes half-open
// once ResetAfter has passed and admits exactly one trial call.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	from := cb.state
	allowed, err := cb.allowLocked()
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return allowed, err
}

func (cb *CircuitBreaker) allowLocked() (bool, error) {
	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		since := cb.now().Sub(cb.lastFailure)
		if since > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("%w: LLM provider failed %d times, last failure %v ago",
			ErrCircuitOpen, cb.consecutiveFails, since.Round(time.Second))
	case CircuitHalfOpen:
		return false, fmt.Errorf("%w: trial request in flight", ErrCircuitOpen)
	default:
		return false, fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state
	cb.consecutiveFails = 0
	cb.state = CircuitClosed
	cb.mu.Unlock()

	cb.notify(from, CircuitClosed)
}

// RecordFailure counts a failure. A failed trial call reopens the circuit at once.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.state
	cb.consecutiveFails++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.consecutiveFails = 0
	cb.state = CircuitClosed
	cb.mu.Unlock()

	cb.notify(from, CircuitClosed)
}
