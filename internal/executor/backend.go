package executor

import (
	"context"
	"errors"
	"fmt"
)

// Request is one unit of work handed to an execution backend. The
// prompt is fully assembled; the backend only runs it.
type Request struct {
	// AgentID identifies the agent the work was routed to.
	AgentID string
	// Model optionally overrides the backend's default model.
	Model string
	// System is the role/identity preamble.
	System string
	// Prompt is the assembled task prompt.
	Prompt string
}

// Result is what a backend returns on a completed call.
type Result struct {
	// Output is the result payload.
	Output string
	// Cost is the dollar cost of the call.
	Cost float64
}

// Backend executes a request against an external execution service.
// The engine treats it as opaque: success or failure, a payload, and a
// cost. Failures wrapped in TransientError may be retried with the
// same agent; anything else is a task-level failure.
type Backend interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// TransientError marks a failure worth retrying with the same agent:
// timeouts, rate limits, upstream hiccups.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient backend failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the error is retryable with the same
// agent.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
