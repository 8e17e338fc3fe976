package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has unmet dependencies or is deferred.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates every dependency is done and the task awaits dispatch.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates the task is executing on an agent.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed or was cancelled.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// Task is one decomposed, dependency-tracked unit of work.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// DirectiveID is the ID of the owning directive.
	DirectiveID string `json:"directive_id"`
	// Title is a short human-readable label from decomposition.
	Title string `json:"title,omitempty"`
	// Description is what the task should accomplish.
	Description string `json:"description"`
	// DependsOn lists task IDs that must reach done before this task runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// AssignedAgent is the ID of the agent routed for this task, empty until routed.
	AssignedAgent string `json:"assigned_agent,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Essential marks tasks that must run even in efficiency mode.
	// Non-essential tasks are deferred when the cost ceiling is near.
	Essential bool `json:"essential"`
	// Resources lists resources (file paths) the task expects to touch.
	// Used for cross-fork conflict detection at merge time.
	Resources []string `json:"resources,omitempty"`
	// Result holds the execution payload once the task completes.
	Result string `json:"result,omitempty"`
	// Error contains the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// Cost is the dollars spent executing this task.
	Cost float64 `json:"cost"`
	// Attempts is the number of execution attempts made.
	Attempts int `json:"attempts,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
