// Copyright 2025 James Ross

// Package breaker guards a single downstream dependency — in this engine,
// the item database a job's staged transaction is applied against — behind
// a sliding-window failure-rate circuit breaker, so a run of failing
// ApplyTransaction calls stops admitting new ones instead of piling up
// timeouts against an already-struggling store.
package breaker

import (
	"sync"
	"time"

	"github.com/coppersystems/pipelined/internal/obs"
)

// State is one of Closed (allowing everything), Open (rejecting
// everything until cooldown), or HalfOpen (allowing a single probe).
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

type result struct {
	t  time.Time
	ok bool
}

// CircuitBreaker tracks Record outcomes over a trailing window and flips
// Closed/Open/HalfOpen once at least minSamples results have landed in it.
// name labels the pipeline_circuit_breaker_* metrics so a process guarding
// more than one dependency can tell them apart.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            State
	window           time.Duration
	cooldown         time.Duration
	failureThresh    float64
	minSamples       int
	lastTransition   time.Time
	results          []result
	halfOpenInFlight bool
}

// New returns a CircuitBreaker in the Closed state for the named
// dependency. window bounds how far back Record results are considered;
// cooldown is how long Open is held before a single HalfOpen probe is
// allowed; failureThresh is the failure rate (0..1) that trips Open once at
// least minSamples results have landed in the window.
func New(name string, window, cooldown time.Duration, failureThresh float64, minSamples int) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:           name,
		state:          Closed,
		window:         window,
		cooldown:       cooldown,
		failureThresh:  failureThresh,
		minSamples:     minSamples,
		lastTransition: time.Now(),
	}
	obs.CircuitBreakerState.WithLabelValues(name).Set(0)
	return cb
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a caller may invoke the guarded dependency right
// now: always in Closed, never in Open until cooldown has elapsed (at which
// point it transitions to HalfOpen and lets exactly one caller through as a
// probe), and at most one caller at a time in HalfOpen.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case Open:
		if time.Since(cb.lastTransition) >= cb.cooldown {
			cb.setState(HalfOpen)
			cb.halfOpenInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	default:
		return true
	}
}

// Record reports the outcome of a guarded call so the breaker can update
// its sliding-window failure rate and, when warranted, transition state.
func (cb *CircuitBreaker) Record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()

	cutoff := now.Add(-cb.window)
	filtered := cb.results[:0]
	for _, r := range cb.results {
		if r.t.After(cutoff) {
			filtered = append(filtered, r)
		}
	}
	cb.results = append(filtered, result{t: now, ok: ok})

	total := len(cb.results)
	if total < cb.minSamples {
		if cb.state == HalfOpen {
			if ok {
				cb.setState(Closed)
			} else {
				cb.setState(Open)
			}
		}
		return
	}

	fails := 0
	for _, r := range cb.results {
		if !r.ok {
			fails++
		}
	}
	rate := float64(fails) / float64(total)

	switch cb.state {
	case Closed:
		if rate >= cb.failureThresh {
			cb.setState(Open)
		}
	case HalfOpen:
		if ok {
			cb.setState(Closed)
		} else {
			cb.setState(Open)
		}
		cb.halfOpenInFlight = false
	case Open:
		// handled in Allow
	}
}

// setState transitions state, stamping lastTransition and updating the
// gauge/trip-counter metrics. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.lastTransition = time.Now()
	obs.CircuitBreakerState.WithLabelValues(cb.name).Set(float64(s))
	if s == Open {
		obs.CircuitBreakerTrips.WithLabelValues(cb.name).Inc()
	}
}
