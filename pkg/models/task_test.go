package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, true},
		{TaskStatusReady, true},
		{TaskStatusRunning, true},
		{TaskStatusDone, true},
		{TaskStatusFailed, true},
		{TaskStatus("blocked"), false},
		{TaskStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusReady, false},
		{TaskStatusRunning, false},
		{TaskStatusDone, true},
		{TaskStatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDirectiveStatusValid(t *testing.T) {
	valid := []DirectiveStatus{
		DirectiveStatusPlanning, DirectiveStatusExecuting,
		DirectiveStatusComplete, DirectiveStatusFailed, DirectiveStatusEscalated,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Valid(%s) = false, want true", s)
		}
	}
	if DirectiveStatus("paused").Valid() {
		t.Error("Valid(paused) = true, want false")
	}
}

func TestDirectiveStatusTerminal(t *testing.T) {
	if !DirectiveStatusComplete.Terminal() {
		t.Error("Terminal(complete) = false, want true")
	}
	if !DirectiveStatusFailed.Terminal() {
		t.Error("Terminal(failed) = false, want true")
	}
	if DirectiveStatusEscalated.Terminal() {
		t.Error("Terminal(escalated) = true, want false")
	}
}
