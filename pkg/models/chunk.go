package models

import "time"

// ChunkType classifies a knowledge chunk for retrieval weighting and retention.
type ChunkType string

const (
	// ChunkErrorResolution records a problem and how it was fixed. Never pruned.
	ChunkErrorResolution ChunkType = "error_resolution"
	// ChunkTaskOutcome records what an agent built and whether it worked.
	ChunkTaskOutcome ChunkType = "task_outcome"
	// ChunkConversation records a prior question/answer exchange.
	ChunkConversation ChunkType = "conversation"
	// ChunkCodeChange summarizes what code was modified and why.
	ChunkCodeChange ChunkType = "code_change"
	// ChunkDirectiveSummary records a high-level directive outcome.
	ChunkDirectiveSummary ChunkType = "directive_summary"
)

// Valid returns true if the chunk type is a known value.
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkErrorResolution, ChunkTaskOutcome, ChunkConversation,
		ChunkCodeChange, ChunkDirectiveSummary:
		return true
	default:
		return false
	}
}

// Weight returns the retrieval importance multiplier for the chunk type.
// Error resolutions rank highest so past mistakes are not repeated.
func (t ChunkType) Weight() float64 {
	switch t {
	case ChunkErrorResolution:
		return 1.3
	case ChunkTaskOutcome:
		return 1.1
	case ChunkConversation:
		return 1.0
	case ChunkCodeChange:
		return 0.9
	case ChunkDirectiveSummary:
		return 0.8
	default:
		return 1.0
	}
}

// Retention returns how long chunks of this type are kept before the
// prune sweep removes them. Zero means permanent.
func (t ChunkType) Retention() time.Duration {
	switch t {
	case ChunkErrorResolution:
		return 0
	case ChunkTaskOutcome, ChunkDirectiveSummary:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// KnowledgeChunk is a retrievable unit of stored historical knowledge.
type KnowledgeChunk struct {
	// SourceID uniquely identifies the chunk's origin; ingestion upserts on it.
	SourceID string `json:"source_id"`
	// Type classifies the chunk for weighting and retention.
	Type ChunkType `json:"chunk_type"`
	// Content is the retrievable text.
	Content string `json:"content"`
	// DomainTag is a coarse domain label used as a retrieval pre-filter.
	DomainTag string `json:"domain_tag"`
	// Embedding is the dense vector for similarity scoring.
	Embedding []float32 `json:"-"`
	// CreatedAt is when the chunk was last ingested.
	CreatedAt time.Time `json:"created_at"`
}
