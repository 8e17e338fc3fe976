package models

import "time"

// Outcome is the immutable record of one completed task execution.
// Outcomes are append-only: they feed the router's training set and
// the knowledge store, and are never mutated after being written.
type Outcome struct {
	// ID is the unique identifier for this outcome record.
	ID string `json:"id"`
	// DirectiveID is the directive the task belonged to.
	DirectiveID string `json:"directive_id"`
	// TaskID is the task that was executed.
	TaskID string `json:"task_id"`
	// AgentID is the agent that executed the task.
	AgentID string `json:"agent_id"`
	// TaskDescription is the text the agent was asked to accomplish.
	TaskDescription string `json:"task_description"`
	// Success indicates whether the execution succeeded.
	Success bool `json:"success"`
	// Cost is the dollars spent on this execution.
	Cost float64 `json:"cost"`
	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
	// DefectCount is the number of defects attributed to the result.
	DefectCount int `json:"defect_count"`
	// CreatedAt is when the outcome was recorded.
	CreatedAt time.Time `json:"created_at"`
}
