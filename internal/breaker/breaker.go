// Package breaker tracks per-agent reliability with a circuit breaker.
// An agent that fails repeatedly is taken out of rotation until a
// cooldown elapses, then probed with a single trial task before being
// fully restored.
package breaker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// EventLog persists circuit transitions. Satisfied by *state.DB.
type EventLog interface {
	AppendCircuitEvent(e *models.CircuitEvent) error
	ListAllCircuitEvents() ([]*models.CircuitEvent, error)
}

// circuit holds the live state for one agent.
type circuit struct {
	mu       sync.Mutex
	state    models.CircuitState
	failures int
	openedAt time.Time
	// probing is true once a half-open trial has been handed out,
	// so only one trial runs at a time.
	probing bool
}

// Breaker manages a circuit per agent. All transitions are appended to
// the event log, so the full state is reconstructible from the log
// alone.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	log       EventLog
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a breaker that opens after threshold consecutive
// failures and probes again after cooldown.
func New(log EventLog, threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		circuits:  make(map[string]*circuit),
		log:       log,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Restore rebuilds in-memory circuit state from the persisted event
// log. Call once at startup before any Allow/Record calls.
func (b *Breaker) Restore() error {
	events, err := b.log.ListAllCircuitEvents()
	if err != nil {
		return fmt.Errorf("load circuit events: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		c := b.circuitLocked(e.AgentID)
		c.state = e.ToState
		c.failures = e.FailureCount
		if e.ToState == models.CircuitOpen {
			c.openedAt = e.OccurredAt
		}
		c.probing = false
	}
	return nil
}

// circuitLocked returns the circuit for an agent, creating a closed
// one if needed. Caller holds b.mu.
func (b *Breaker) circuitLocked(agentID string) *circuit {
	c, ok := b.circuits[agentID]
	if !ok {
		c = &circuit{state: models.CircuitClosed}
		b.circuits[agentID] = c
	}
	return c
}

func (b *Breaker) circuit(agentID string) *circuit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuitLocked(agentID)
}

// Eligible reports whether the agent could receive work right now,
// without claiming anything: a closed circuit, an open circuit past
// its cooldown, or a half-open circuit with no trial in flight. Use
// it to filter candidates; only the agent actually selected should
// call Allow.
func (b *Breaker) Eligible(agentID string) bool {
	c := b.circuit(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case models.CircuitClosed:
		return true
	case models.CircuitOpen:
		return b.now().Sub(c.openedAt) >= b.cooldown
	case models.CircuitHalfOpen:
		return !c.probing
	}
	return false
}

// Allow claims the right to execute for the agent. When an open
// circuit's cooldown has elapsed it transitions to half-open and hands
// out exactly one trial slot; the slot is released by the next
// RecordSuccess or RecordFailure. Call only for the agent that will
// actually run the task.
func (b *Breaker) Allow(agentID string) bool {
	c := b.circuit(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case models.CircuitClosed:
		return true
	case models.CircuitOpen:
		if b.now().Sub(c.openedAt) < b.cooldown {
			return false
		}
		b.transitionLocked(agentID, c, models.CircuitHalfOpen, "cooldown elapsed")
		c.probing = true
		return true
	case models.CircuitHalfOpen:
		if c.probing {
			return false
		}
		c.probing = true
		return true
	}
	return false
}

// State returns the agent's current circuit state.
func (b *Breaker) State(agentID string) models.CircuitState {
	c := b.circuit(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	// An open circuit past its cooldown is reported half-open even
	// before Allow observes it, so status output matches behavior.
	if c.state == models.CircuitOpen && b.now().Sub(c.openedAt) >= b.cooldown {
		return models.CircuitHalfOpen
	}
	return c.state
}

// RecordSuccess notes a completed task for the agent. In half-open it
// closes the circuit; in closed it resets the failure counter.
func (b *Breaker) RecordSuccess(agentID string) {
	c := b.circuit(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case models.CircuitHalfOpen:
		c.failures = 0
		b.transitionLocked(agentID, c, models.CircuitClosed, "trial succeeded")
	case models.CircuitClosed:
		c.failures = 0
	}
	c.probing = false
}

// RecordFailure notes a failed task for the agent. In half-open the
// circuit re-opens immediately; in closed it opens once consecutive
// failures reach the threshold.
func (b *Breaker) RecordFailure(agentID string, reason string) {
	c := b.circuit(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case models.CircuitHalfOpen:
		b.transitionLocked(agentID, c, models.CircuitOpen, "trial failed: "+reason)
		c.openedAt = b.now()
	case models.CircuitClosed:
		c.failures++
		if c.failures >= b.threshold {
			b.transitionLocked(agentID, c, models.CircuitOpen, reason)
			c.openedAt = b.now()
		}
	case models.CircuitOpen:
		// Already open. Cooldown keeps running from the original trip.
	}
	c.probing = false
}

// transitionLocked records a state change and appends it to the log.
// Caller holds c.mu.
func (b *Breaker) transitionLocked(agentID string, c *circuit, to models.CircuitState, reason string) {
	from := c.state
	c.state = to
	e := &models.CircuitEvent{
		AgentID:      agentID,
		FromState:    from,
		ToState:      to,
		FailureCount: c.failures,
		Reason:       reason,
		OccurredAt:   b.now(),
	}
	if err := b.log.AppendCircuitEvent(e); err != nil {
		// The in-memory transition stands; a write failure must not
		// stall task execution.
		log.Printf("[breaker] failed to persist circuit event for %s: %v", agentID, err)
	}
}
