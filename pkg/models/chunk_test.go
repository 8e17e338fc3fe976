package models

import (
	"testing"
	"time"
)

func TestChunkTypeWeight(t *testing.T) {
	tests := []struct {
		chunkType ChunkType
		want      float64
	}{
		{ChunkErrorResolution, 1.3},
		{ChunkTaskOutcome, 1.1},
		{ChunkConversation, 1.0},
		{ChunkCodeChange, 0.9},
		{ChunkDirectiveSummary, 0.8},
		{ChunkType("unknown"), 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.chunkType), func(t *testing.T) {
			if got := tt.chunkType.Weight(); got != tt.want {
				t.Errorf("Weight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkTypeRetention(t *testing.T) {
	if got := ChunkErrorResolution.Retention(); got != 0 {
		t.Errorf("Retention(error_resolution) = %v, want 0 (permanent)", got)
	}
	if got := ChunkTaskOutcome.Retention(); got != 90*24*time.Hour {
		t.Errorf("Retention(task_outcome) = %v, want 90 days", got)
	}
	if got := ChunkDirectiveSummary.Retention(); got != 90*24*time.Hour {
		t.Errorf("Retention(directive_summary) = %v, want 90 days", got)
	}
	if got := ChunkConversation.Retention(); got != 30*24*time.Hour {
		t.Errorf("Retention(conversation) = %v, want 30 days", got)
	}
	if got := ChunkCodeChange.Retention(); got != 30*24*time.Hour {
		t.Errorf("Retention(code_change) = %v, want 30 days", got)
	}
}

func TestTierRank(t *testing.T) {
	if TierCheap.Rank() >= TierStandard.Rank() {
		t.Error("cheap should rank before standard")
	}
	if TierStandard.Rank() >= TierDeep.Rank() {
		t.Error("standard should rank before deep")
	}
	if Tier("mystery").Rank() <= TierDeep.Rank() {
		t.Error("unknown tiers should rank after known tiers")
	}
}

func TestAgentHasTag(t *testing.T) {
	a := &Agent{ID: "a1", Tier: TierStandard, DomainTags: []string{"backend", "api"}}
	if !a.HasTag("backend") {
		t.Error("HasTag(backend) = false, want true")
	}
	if a.HasTag("frontend") {
		t.Error("HasTag(frontend) = true, want false")
	}
}
