package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
breaker:
  failure_threshold: 5
  cooldown: 2m
scheduler:
  max_concurrency: 8
retrieval:
  similarity_threshold: 0.4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v, want nil", err)
	}

	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.Cooldown != 2*time.Minute {
		t.Errorf("Cooldown = %v, want 2m", cfg.Breaker.Cooldown)
	}
	if cfg.Scheduler.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.Scheduler.MaxConcurrency)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.4 {
		t.Errorf("SimilarityThreshold = %v, want 0.4", cfg.Retrieval.SimilarityThreshold)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v, want nil", err)
	}

	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("default FailureThreshold = %d, want 3", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.Cooldown != 60*time.Second {
		t.Errorf("default Cooldown = %v, want 60s", cfg.Breaker.Cooldown)
	}
	if cfg.Router.MinTrainingSamples != 20 {
		t.Errorf("default MinTrainingSamples = %d, want 20", cfg.Router.MinTrainingSamples)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.35 {
		t.Errorf("default SimilarityThreshold = %v, want 0.35", cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Retrieval.ColdThreshold != 0.25 {
		t.Errorf("default ColdThreshold = %v, want 0.25", cfg.Retrieval.ColdThreshold)
	}
	if cfg.Retrieval.ColdChunkCount != 50 {
		t.Errorf("default ColdChunkCount = %d, want 50", cfg.Retrieval.ColdChunkCount)
	}
	if cfg.Feedback.RetrainThreshold != 10 {
		t.Errorf("default RetrainThreshold = %d, want 10", cfg.Feedback.RetrainThreshold)
	}
	if cfg.Feedback.RetrainInterval != time.Hour {
		t.Errorf("default RetrainInterval = %v, want 1h", cfg.Feedback.RetrainInterval)
	}
	if cfg.Executor.TransientRetries != 2 {
		t.Errorf("default TransientRetries = %d, want 2", cfg.Executor.TransientRetries)
	}
	if cfg.Store.MaxConns != 5 {
		t.Errorf("default MaxConns = %d, want 5", cfg.Store.MaxConns)
	}
}
