package main

import (
	"fmt"

	"github.com/Garrett-s-Apps/nexus/internal/breaker"
	"github.com/Garrett-s-Apps/nexus/internal/config"
	"github.com/Garrett-s-Apps/nexus/internal/executor"
	"github.com/Garrett-s-Apps/nexus/internal/feedback"
	"github.com/Garrett-s-Apps/nexus/internal/knowledge"
	"github.com/Garrett-s-Apps/nexus/internal/registry"
	"github.com/Garrett-s-Apps/nexus/internal/router"
	"github.com/Garrett-s-Apps/nexus/internal/scheduler"
	"github.com/Garrett-s-Apps/nexus/internal/state"
)

// runtime bundles the wired engine components for one CLI invocation.
type runtime struct {
	cfg       *config.Config
	db        *state.DB
	store     *knowledge.Store
	service   *knowledge.Service
	breaker   *breaker.Breaker
	registry  *registry.Registry
	router    *router.Router
	trainer   *feedback.Trainer
	executor  *executor.Executor
	scheduler *scheduler.Engine
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// openStores wires only the persistence layer, for read-only commands
// that never talk to the backend.
func openStores() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := state.Open(cfg.Store.StateDBPath, cfg.Store.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}

	store, err := knowledge.OpenStore(cfg.Store.KnowledgeDBPath, cfg.Store.MaxConns)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}

	service := knowledge.NewService(store,
		cfg.Retrieval.SimilarityThreshold,
		cfg.Retrieval.ColdThreshold,
		cfg.Retrieval.ColdChunkCount)

	return &runtime{cfg: cfg, db: db, store: store, service: service}, nil
}

// openEngine wires the full engine: stores, breaker, registry, router,
// backend, executor, feedback loop, and scheduler.
func openEngine() (*runtime, error) {
	rt, err := openStores()
	if err != nil {
		return nil, err
	}

	br := breaker.New(rt.db, rt.cfg.Breaker.FailureThreshold, rt.cfg.Breaker.Cooldown)
	if err := br.Restore(); err != nil {
		rt.Close()
		return nil, fmt.Errorf("restore breaker state: %w", err)
	}

	reg, err := registry.Load(rt.cfg.Registry.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load agent roster: %w", err)
	}

	r := router.New(br, rt.cfg.Router.MinTrainingSamples)
	trainer := feedback.New(rt.db, r,
		feedback.WithThresholds(rt.cfg.Feedback.RetrainThreshold, rt.cfg.Feedback.RetrainInterval))
	if err := trainer.Bootstrap(); err != nil {
		reg.Close()
		rt.Close()
		return nil, fmt.Errorf("bootstrap routing model: %w", err)
	}

	backend, err := executor.NewAnthropicBackend(executor.AnthropicConfig{
		Model:         rt.cfg.Anthropic.Model,
		APIKey:        rt.cfg.Anthropic.APIKey,
		UseAWSBedrock: rt.cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     rt.cfg.Anthropic.AWSRegion,
		AWSProfile:    rt.cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		reg.Close()
		rt.Close()
		return nil, fmt.Errorf("create backend: %w", err)
	}

	exec := executor.New(executor.Config{
		Backend:          backend,
		Breaker:          br,
		Router:           r,
		Knowledge:        rt.service,
		DB:               rt.db,
		TransientRetries: rt.cfg.Executor.TransientRetries,
		TaskTimeout:      rt.cfg.Executor.TaskTimeout,
		MaxContextChars:  rt.cfg.Retrieval.MaxContextChars,
		Notifier:         trainer,
	})

	rt.breaker = br
	rt.registry = reg
	rt.router = r
	rt.trainer = trainer
	rt.executor = exec
	rt.scheduler = scheduler.NewEngine(scheduler.EngineConfig{
		Planner:             scheduler.NewBackendPlanner(backend),
		Executor:            exec,
		Registry:            reg,
		Knowledge:           rt.service,
		DB:                  rt.db,
		MaxConcurrency:      rt.cfg.Scheduler.MaxConcurrency,
		EfficiencyThreshold: rt.cfg.Scheduler.EfficiencyThreshold,
	})
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.registry != nil {
		rt.registry.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}
