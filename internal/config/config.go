// Package config handles configuration loading for nexus.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the nexus engine.
type Config struct {
	Anthropic Anthropic `mapstructure:"anthropic"`
	Store     Store     `mapstructure:"store"`
	Breaker   Breaker   `mapstructure:"breaker"`
	Router    Router    `mapstructure:"router"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Executor  Executor  `mapstructure:"executor"`
	Feedback  Feedback  `mapstructure:"feedback"`
	Registry  Registry  `mapstructure:"registry"`
}

// Anthropic holds Anthropic API settings for the execution backend.
type Anthropic struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// Store holds persistence settings.
type Store struct {
	// StateDBPath is the path to the state database (directives, tasks,
	// outcomes, circuit events).
	StateDBPath string `mapstructure:"state_db_path"`
	// KnowledgeDBPath is the path to the knowledge chunk database.
	KnowledgeDBPath string `mapstructure:"knowledge_db_path"`
	// MaxConns bounds the connection pool to the store's safe
	// concurrent-writer limit.
	MaxConns int `mapstructure:"max_conns"`
}

// Breaker holds circuit breaker settings.
type Breaker struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// Cooldown is how long an open circuit waits before allowing a probe.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// Router holds agent routing settings.
type Router struct {
	// MinTrainingSamples is the outcome count below which routing stays
	// on the keyword cold-start path.
	MinTrainingSamples int `mapstructure:"min_training_samples"`
}

// Retrieval holds knowledge retrieval settings.
type Retrieval struct {
	// SimilarityThreshold discards results scoring below it.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// ColdThreshold applies instead while the store holds fewer than
	// ColdChunkCount chunks.
	ColdThreshold  float64 `mapstructure:"cold_threshold"`
	ColdChunkCount int     `mapstructure:"cold_chunk_count"`
	// TopK is the default number of results to return.
	TopK int `mapstructure:"top_k"`
	// MaxContextChars bounds the total briefing size handed to the executor.
	MaxContextChars int `mapstructure:"max_context_chars"`
	// PruneInterval is how often the retention sweep runs.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// Scheduler holds graph scheduler settings.
type Scheduler struct {
	// MaxConcurrency bounds the number of tasks in flight at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// EfficiencyThreshold is the fraction of the cost ceiling at which
	// non-essential tasks are deferred.
	EfficiencyThreshold float64 `mapstructure:"efficiency_threshold"`
}

// Executor holds task execution settings.
type Executor struct {
	// TransientRetries is how many times a transient backend failure is
	// retried with the same agent before reassignment.
	TransientRetries int `mapstructure:"transient_retries"`
	// TaskTimeout bounds a single backend call.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// Feedback holds retrain loop settings.
type Feedback struct {
	// RetrainThreshold is the number of new outcomes that triggers a retrain.
	RetrainThreshold int `mapstructure:"retrain_threshold"`
	// RetrainInterval is the minimum time between retrains.
	RetrainInterval time.Duration `mapstructure:"retrain_interval"`
}

// Registry holds agent roster settings.
type Registry struct {
	// Path is the YAML roster file, externally mutated on hire/fire.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY, NEXUS_*)
//  2. Project config (.nexus.yaml in the current directory or a parent)
//  3. User config (~/.config/nexus/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		pv := viper.New()
		pv.SetConfigFile(projectConfig)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("NEXUS")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	dataDir := userDataDir()
	v.SetDefault("store.state_db_path", filepath.Join(dataDir, "state.db"))
	v.SetDefault("store.knowledge_db_path", filepath.Join(dataDir, "knowledge.db"))
	v.SetDefault("store.max_conns", 5)

	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.cooldown", "60s")

	v.SetDefault("router.min_training_samples", 20)

	v.SetDefault("retrieval.similarity_threshold", 0.35)
	v.SetDefault("retrieval.cold_threshold", 0.25)
	v.SetDefault("retrieval.cold_chunk_count", 50)
	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("retrieval.max_context_chars", 8000)
	v.SetDefault("retrieval.prune_interval", "1h")

	v.SetDefault("scheduler.max_concurrency", 4)
	v.SetDefault("scheduler.efficiency_threshold", 0.95)

	v.SetDefault("executor.transient_retries", 2)
	v.SetDefault("executor.task_timeout", "30m")

	v.SetDefault("feedback.retrain_threshold", 10)
	v.SetDefault("feedback.retrain_interval", "1h")

	v.SetDefault("registry.path", filepath.Join(userConfigDir(), "agents.yaml"))
}

// userConfigDir returns the XDG config directory for nexus.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nexus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "nexus")
	}
	return filepath.Join(home, ".config", "nexus")
}

// userDataDir returns the XDG data directory for nexus.
func userDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "nexus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "nexus")
	}
	return filepath.Join(home, ".local", "share", "nexus")
}

// findProjectConfig searches for .nexus.yaml in the current directory and parents.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".nexus.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
