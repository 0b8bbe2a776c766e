package fetcher

import (
	"sync"
	"time"
)

// breakerState mirrors the classic closed/open/half-open circuit breaker
// states described in spec.md's glossary.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards one source: after Threshold consecutive
// failures it opens for Cooldown; a single success in half-open state
// closes it again.
type CircuitBreaker struct {
	mu          sync.Mutex
	Threshold   int
	Cooldown    time.Duration
	state       breakerState
	failures    int
	openedAt    time.Time
	probing     bool // true while a half-open probe is outstanding
}

// NewCircuitBreaker builds a breaker with the spec's defaults (K=3,
// cooldown=10min) unless overridden by the caller.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &CircuitBreaker{Threshold: threshold, Cooldown: cooldown}
}

// Allow reports whether a call should be attempted. Calls during the
// open window are skipped without counting a failure; once the cooldown
// elapses the breaker moves to half-open and allows exactly one probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.Cooldown {
			b.state = stateHalfOpen
			b.probing = true
			return true
		}
		return false
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker (from any state) and resets the
// failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}

// RecordFailure increments the failure counter and opens the breaker
// once Threshold consecutive failures are observed.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		b.probing = false
		return
	}
	b.failures++
	if b.failures >= b.Threshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// Open reports whether the breaker is currently open (for diagnostics).
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.openedAt) < b.Cooldown
}
