// Package models defines the shared data model for the nexus engine.
package models

import "time"

// DirectiveStatus represents the current state of a directive.
type DirectiveStatus string

const (
	// DirectiveStatusPlanning indicates the directive is being decomposed.
	DirectiveStatusPlanning DirectiveStatus = "planning"
	// DirectiveStatusExecuting indicates tasks are being dispatched.
	DirectiveStatusExecuting DirectiveStatus = "executing"
	// DirectiveStatusComplete indicates all work finished successfully.
	DirectiveStatusComplete DirectiveStatus = "complete"
	// DirectiveStatusFailed indicates the directive cannot proceed.
	DirectiveStatusFailed DirectiveStatus = "failed"
	// DirectiveStatusEscalated indicates the directive is paused pending
	// human attention (merge conflict, budget exhaustion, no eligible agent).
	DirectiveStatusEscalated DirectiveStatus = "escalated"
)

// Valid returns true if the status is a known value.
func (s DirectiveStatus) Valid() bool {
	switch s {
	case DirectiveStatusPlanning, DirectiveStatusExecuting, DirectiveStatusComplete,
		DirectiveStatusFailed, DirectiveStatusEscalated:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s DirectiveStatus) Terminal() bool {
	return s == DirectiveStatusComplete || s == DirectiveStatusFailed
}

// Directive is one unit of human-issued intent.
type Directive struct {
	// ID is the unique identifier for this directive.
	ID string `json:"id"`
	// Text is the free-text description of what to build.
	Text string `json:"text"`
	// CostCeiling is the maximum spend in dollars for this directive.
	CostCeiling float64 `json:"cost_ceiling"`
	// CostIncurred is the running cost accumulated so far.
	CostIncurred float64 `json:"cost_incurred"`
	// Source tags where the directive came from (cli, api, chat).
	Source string `json:"source,omitempty"`
	// Status is the current state of the directive.
	Status DirectiveStatus `json:"status"`
	// EscalationReason explains an escalated status, if any.
	EscalationReason string `json:"escalation_reason,omitempty"`
	// CreatedAt is when the directive was received.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the directive reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
