package models

import "time"

// CircuitState represents the breaker state for one agent.
type CircuitState string

const (
	// CircuitClosed indicates normal operation.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen indicates the agent is out of rotation until cooldown elapses.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen indicates the next outcome decides recovery or re-trip.
	CircuitHalfOpen CircuitState = "half_open"
)

// Valid returns true if the state is a known value.
func (s CircuitState) Valid() bool {
	switch s {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
		return true
	default:
		return false
	}
}

// CircuitEvent is one immutable breaker transition, appended to the
// reliability event log. Breaker state is reconstructible from the log alone.
type CircuitEvent struct {
	// ID is the monotonically increasing log sequence number.
	ID int64 `json:"id"`
	// AgentID is the agent whose breaker transitioned.
	AgentID string `json:"agent_id"`
	// FromState is the state before the transition.
	FromState CircuitState `json:"from_state"`
	// ToState is the state after the transition.
	ToState CircuitState `json:"to_state"`
	// FailureCount is the consecutive-failure counter at transition time.
	FailureCount int `json:"failure_count"`
	// Reason describes what caused the transition.
	Reason string `json:"reason,omitempty"`
	// OccurredAt is when the transition happened.
	OccurredAt time.Time `json:"occurred_at"`
}
