// Package executor runs individual tasks against an execution backend:
// it assembles the prompt context, applies the retry and reassignment
// policy, and feeds every result back into the outcome log, the
// circuit breaker, and the knowledge store.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Garrett-s-Apps/nexus/internal/breaker"
	"github.com/Garrett-s-Apps/nexus/internal/knowledge"
	"github.com/Garrett-s-Apps/nexus/internal/router"
	"github.com/Garrett-s-Apps/nexus/internal/state"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// ErrEscalated is returned when a task has exhausted its retry and
// reassignment budget and is parked for a human.
var ErrEscalated = errors.New("task escalated for human review")

// Executor runs tasks. It is safe for concurrent use; the scheduler
// calls Run from many goroutines.
type Executor struct {
	backend   Backend
	breaker   *breaker.Breaker
	router    *router.Router
	knowledge *knowledge.Service
	db        *state.DB

	// transientRetries is how many extra same-agent attempts a
	// transient failure earns before it counts as a task failure.
	transientRetries int
	taskTimeout      time.Duration
	maxContextChars  int
	notifier         OutcomeNotifier
}

// OutcomeNotifier is told whenever an outcome lands, so the feedback
// loop can decide to retrain.
type OutcomeNotifier interface {
	NotifyOutcome()
}

// Config wires an Executor.
type Config struct {
	Backend          Backend
	Breaker          *breaker.Breaker
	Router           *router.Router
	Knowledge        *knowledge.Service
	DB               *state.DB
	TransientRetries int
	TaskTimeout      time.Duration
	MaxContextChars  int
	Notifier         OutcomeNotifier
}

// New creates an executor.
func New(cfg Config) *Executor {
	return &Executor{
		backend:          cfg.Backend,
		breaker:          cfg.Breaker,
		router:           cfg.Router,
		knowledge:        cfg.Knowledge,
		db:               cfg.DB,
		transientRetries: cfg.TransientRetries,
		taskTimeout:      cfg.TaskTimeout,
		maxContextChars:  cfg.MaxContextChars,
		notifier:         cfg.Notifier,
	}
}

// Run routes and executes one task. Transient failures retry with the
// same agent; a task-level failure hands the task to a different agent
// once; a second task-level failure escalates. The returned Outcome is
// the final agent's result. Cost accumulates on the task across all
// agents.
func (e *Executor) Run(ctx context.Context, task *models.Task, candidates []*models.Agent, history []string) (*models.Outcome, error) {
	agent, err := e.pick(task, candidates, "")
	if err != nil {
		e.escalate(task, "no eligible agent", err)
		return nil, err
	}

	outcome, execErr := e.runWithAgent(ctx, task, agent, history)
	if execErr == nil {
		return outcome, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// One reassignment to a different agent before giving up.
	second, err := e.pick(task, candidates, agent.ID)
	if err != nil {
		e.escalate(task, fmt.Sprintf("failed with agent %s, no other eligible agent", agent.ID), execErr)
		return outcome, ErrEscalated
	}
	log.Printf("[executor] task %s reassigned %s -> %s", task.ID, agent.ID, second.ID)

	outcome, execErr = e.runWithAgent(ctx, task, second, history)
	if execErr == nil {
		return outcome, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	e.escalate(task, fmt.Sprintf("failed with agents %s and %s", agent.ID, second.ID), execErr)
	return outcome, ErrEscalated
}

// pick routes the task, excluding one agent if set.
func (e *Executor) pick(task *models.Task, candidates []*models.Agent, exclude string) (*models.Agent, error) {
	pool := candidates
	if exclude != "" {
		pool = make([]*models.Agent, 0, len(candidates))
		for _, a := range candidates {
			if a.ID != exclude {
				pool = append(pool, a)
			}
		}
	}
	decision, err := e.router.Route(task.Description, pool)
	if err != nil {
		return nil, err
	}
	for _, a := range pool {
		if a.ID == decision.AgentID {
			return a, nil
		}
	}
	return nil, router.ErrNoEligibleAgent
}

// runWithAgent makes up to 1+transientRetries attempts with one agent,
// then records the outcome, updates the breaker, and ingests the
// result into the knowledge store.
func (e *Executor) runWithAgent(ctx context.Context, task *models.Task, agent *models.Agent, history []string) (*models.Outcome, error) {
	system, prompt := e.buildContext(task, agent, history)
	req := &Request{AgentID: agent.ID, Model: agent.Model, System: system, Prompt: prompt}

	task.AssignedAgent = agent.ID
	start := time.Now()

	var result *Result
	var err error
	for attempt := 0; attempt <= e.transientRetries; attempt++ {
		task.Attempts++
		result, err = e.execute(ctx, req)
		if err == nil || !IsTransient(err) || ctx.Err() != nil {
			break
		}
		log.Printf("[executor] task %s transient failure with %s (attempt %d): %v",
			task.ID, agent.ID, attempt+1, err)
	}
	duration := time.Since(start)

	outcome := &models.Outcome{
		ID:              models.NewID("out"),
		DirectiveID:     task.DirectiveID,
		TaskID:          task.ID,
		AgentID:         agent.ID,
		TaskDescription: task.Description,
		Success:         err == nil,
		Duration:        duration,
		CreatedAt:       time.Now().UTC(),
	}
	if err == nil {
		outcome.Cost = result.Cost
		task.Cost += result.Cost
		task.Result = result.Output
		task.Error = ""
		e.breaker.RecordSuccess(agent.ID)
	} else {
		task.Error = err.Error()
		e.breaker.RecordFailure(agent.ID, err.Error())
	}

	if dbErr := e.db.AppendOutcome(outcome); dbErr != nil {
		log.Printf("[executor] failed to record outcome for task %s: %v", task.ID, dbErr)
	}
	if ingErr := e.knowledge.IngestTaskOutcome(task.DirectiveID, task.ID, agent.ID,
		task.Description, err == nil, outcome.DefectCount, outcome.Cost); ingErr != nil {
		log.Printf("[executor] failed to ingest outcome for task %s: %v", task.ID, ingErr)
	}
	if e.notifier != nil {
		e.notifier.NotifyOutcome()
	}
	return outcome, err
}

// execute makes one backend call under the task timeout.
func (e *Executor) execute(ctx context.Context, req *Request) (*Result, error) {
	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}
	return e.backend.Execute(ctx, req)
}

// buildContext assembles the prompt in fixed order: identity preamble,
// retrieval briefing, live thread history, task description.
func (e *Executor) buildContext(task *models.Task, agent *models.Agent, history []string) (system, prompt string) {
	system = fmt.Sprintf(
		"You are %s, a %s-tier engineering agent with expertise in %s. "+
			"Complete the assigned task and report concretely what you did.",
		agent.ID, agent.Tier, strings.Join(agent.DomainTags, ", "))

	var parts []string

	briefing, err := e.knowledge.BuildBriefing(task.Description, e.maxContextChars, knowledge.Filters{
		Types: []models.ChunkType{models.ChunkTaskOutcome, models.ChunkErrorResolution},
		TopK:  8,
		ExcludeSourceIDs: map[string]bool{
			fmt.Sprintf("task:%s/%s", task.DirectiveID, task.ID): true,
		},
	})
	if err != nil {
		log.Printf("[executor] briefing retrieval failed for task %s: %v", task.ID, err)
	} else if briefing != "" {
		parts = append(parts, briefing)
	}

	if len(history) > 0 {
		parts = append(parts, "Conversation so far:\n"+strings.Join(history, "\n"))
	}
	parts = append(parts, "Task:\n"+task.Description)

	return system, strings.Join(parts, "\n\n")
}

// escalate parks the task for a human with a dead-letter record.
func (e *Executor) escalate(task *models.Task, reason string, lastErr error) {
	lastError := ""
	if lastErr != nil {
		lastError = lastErr.Error()
	}
	esc := &state.Escalation{
		DirectiveID: task.DirectiveID,
		TaskID:      task.ID,
		Reason:      reason,
		Attempts:    task.Attempts,
		LastError:   lastError,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.db.AppendEscalation(esc); err != nil {
		log.Printf("[executor] failed to record escalation for task %s: %v", task.ID, err)
	}
	log.Printf("[executor] task %s escalated: %s", task.ID, reason)
}
