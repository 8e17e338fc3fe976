// Package scheduler turns directives into dependency-ordered task
// executions: it plans the task graph, derives independent forks,
// dispatches ready tasks concurrently under budget control, and merges
// fork results with conflict detection.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Garrett-s-Apps/nexus/internal/executor"
	"github.com/Garrett-s-Apps/nexus/internal/knowledge"
	"github.com/Garrett-s-Apps/nexus/internal/registry"
	"github.com/Garrett-s-Apps/nexus/internal/state"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// Conflict describes two forks that touched overlapping resources.
type Conflict struct {
	ForkA, ForkB string
	Resources    []string
}

// ConflictResolver attempts to reconcile a merge conflict. Returning
// an error leaves the conflict unresolved and escalates the directive.
type ConflictResolver interface {
	Resolve(ctx context.Context, directive *models.Directive, c *Conflict) error
}

// Engine schedules directives. One Engine serves the whole process;
// in-flight task executions across all directives share a bounded
// semaphore.
type Engine struct {
	planner   Planner
	executor  *executor.Executor
	registry  *registry.Registry
	knowledge *knowledge.Service
	db        *state.DB
	resolver  ConflictResolver

	sem                 *semaphore.Weighted
	efficiencyThreshold float64

	mu     sync.Mutex
	active map[string]*Handle
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Planner             Planner
	Executor            *executor.Executor
	Registry            *registry.Registry
	Knowledge           *knowledge.Service
	DB                  *state.DB
	Resolver            ConflictResolver
	MaxConcurrency      int
	EfficiencyThreshold float64
}

// NewEngine creates a scheduler engine.
func NewEngine(cfg EngineConfig) *Engine {
	maxConc := cfg.MaxConcurrency
	if maxConc < 1 {
		maxConc = 1
	}
	return &Engine{
		planner:             cfg.Planner,
		executor:            cfg.Executor,
		registry:            cfg.Registry,
		knowledge:           cfg.Knowledge,
		db:                  cfg.DB,
		resolver:            cfg.Resolver,
		sem:                 semaphore.NewWeighted(int64(maxConc)),
		efficiencyThreshold: cfg.EfficiencyThreshold,
		active:              make(map[string]*Handle),
	}
}

// Fork is one independent workstream: a connected component of the
// task dependency graph with its own budget carve-out.
type Fork struct {
	ID      string
	TaskIDs []string
	Budget  *Budget

	cancel context.CancelFunc
	ctx    context.Context
}

// Handle tracks one submitted directive through execution.
type Handle struct {
	engine    *Engine
	directive *models.Directive

	// Similar reports past directives resembling this one, retrieved
	// at submission time.
	Similar []*knowledge.Result

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	budget  *Budget
	graph   *DependencyGraph
	trigger chan struct{}

	mu       sync.Mutex
	forks    []*Fork
	err      error
	deferred map[string]bool
}

// Submit plans and launches a directive. The returned handle reports
// progress; Wait blocks until the directive reaches a terminal status.
func (e *Engine) Submit(ctx context.Context, text string, costCeiling float64, source string) (*Handle, error) {
	directive := &models.Directive{
		ID:          models.NewID("dir"),
		Text:        text,
		CostCeiling: costCeiling,
		Source:      source,
		Status:      models.DirectiveStatusPlanning,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.db.CreateDirective(directive); err != nil {
		return nil, fmt.Errorf("persist directive: %w", err)
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		engine:    e,
		directive: directive,
		ctx:       hctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		budget:    NewBudget(costCeiling, e.efficiencyThreshold),
		graph:     NewGraph(),
		trigger:   make(chan struct{}, 1),
		deferred:  make(map[string]bool),
	}

	// Surface "we did something similar before" from past directive
	// summaries. Retrieval failure never blocks submission.
	similar, err := e.knowledge.Retrieve(text, knowledge.Filters{
		Types: []models.ChunkType{models.ChunkDirectiveSummary},
		TopK:  3,
	})
	if err != nil {
		log.Printf("[scheduler] similarity lookup failed for %s: %v", directive.ID, err)
	} else {
		h.Similar = similar
	}

	e.mu.Lock()
	e.active[directive.ID] = h
	e.mu.Unlock()

	go h.run()
	return h, nil
}

// Handle returns the live handle for a directive, or nil.
func (e *Engine) Handle(directiveID string) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[directiveID]
}

// ID returns the directive ID.
func (h *Handle) ID() string { return h.directive.ID }

// Done is closed when the directive reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the directive finishes and returns its terminal
// status.
func (h *Handle) Wait() (models.DirectiveStatus, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.directive.Status, h.err
}

// Status returns the directive's current status.
func (h *Handle) Status() models.DirectiveStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.directive.Status
}

// Cancel aborts the whole directive. In-flight tasks are interrupted
// best-effort; unstarted tasks never dispatch.
func (h *Handle) Cancel() {
	h.cancel()
}

// CancelFork aborts one fork, leaving the others running. Unstarted
// tasks in the fork are marked failed.
func (h *Handle) CancelFork(forkID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.forks {
		if f.ID == forkID {
			f.cancel()
			for _, taskID := range f.TaskIDs {
				task := h.graph.Task(taskID)
				if task != nil && !task.Status.Terminal() && task.Status != models.TaskStatusRunning {
					h.finishTaskLocked(task, models.TaskStatusFailed, "fork canceled")
				}
			}
		}
	}
	h.kick()
}

// RaiseCeiling lifts the directive's cost ceiling and resumes any
// deferred work.
func (h *Handle) RaiseCeiling(newCeiling float64) {
	old := h.budget.Ceiling()
	h.budget.RaiseCeiling(newCeiling)
	h.mu.Lock()
	h.directive.CostCeiling = h.budget.Ceiling()
	if old > 0 && newCeiling > old {
		// Scale each fork's carve-out by the same factor.
		factor := newCeiling / old
		for _, f := range h.forks {
			f.Budget.RaiseCeiling(f.Budget.Ceiling() * factor)
		}
	}
	h.mu.Unlock()
	h.kick()
}

// Forks returns a snapshot of the directive's forks.
func (h *Handle) Forks() []*Fork {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Fork, len(h.forks))
	copy(out, h.forks)
	return out
}

// Deferred returns the IDs of tasks currently parked by budget
// pressure.
func (h *Handle) Deferred() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for id := range h.deferred {
		ids = append(ids, id)
	}
	return ids
}

// run drives the directive from planning to a terminal status.
func (h *Handle) run() {
	defer close(h.done)
	defer h.engine.release(h.directive.ID)

	tasks, err := h.plan()
	if err != nil {
		h.finishDirective(models.DirectiveStatusFailed, fmt.Sprintf("decomposition failed: %v", err), err)
		return
	}

	if err := h.launch(tasks); err != nil {
		h.finishDirective(models.DirectiveStatusFailed, err.Error(), err)
		return
	}

	h.loop()
}

// plan asks the planner for the task set and persists it.
func (h *Handle) plan() ([]*models.Task, error) {
	tasks, err := h.engine.planner.Plan(h.ctx, h.directive)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if err := h.engine.db.CreateTask(t); err != nil {
			return nil, fmt.Errorf("persist task: %w", err)
		}
	}
	return tasks, nil
}

// launch builds the graph, derives forks, and carves the budget.
func (h *Handle) launch(tasks []*models.Task) error {
	if err := h.graph.Build(tasks); err != nil {
		return fmt.Errorf("invalid task graph: %w", err)
	}

	components := h.graph.Components()
	total := h.graph.Size()

	h.mu.Lock()
	for i, component := range components {
		// Each fork's carve-out is proportional to its share of tasks.
		share := h.directive.CostCeiling * float64(len(component)) / float64(total)
		fctx, fcancel := context.WithCancel(h.ctx)
		h.forks = append(h.forks, &Fork{
			ID:      fmt.Sprintf("%s/fork-%d", h.directive.ID, i),
			TaskIDs: component,
			Budget:  NewBudget(share, h.engine.efficiencyThreshold),
			ctx:     fctx,
			cancel:  fcancel,
		})
	}
	h.directive.Status = models.DirectiveStatusExecuting
	h.mu.Unlock()

	h.persistDirective()
	log.Printf("[scheduler] %s: %d tasks in %d forks", h.directive.ID, total, len(h.forks))
	return nil
}

// loop dispatches ready tasks until every task is terminal or deferred,
// then merges.
func (h *Handle) loop() {
	for {
		if h.ctx.Err() != nil {
			h.abort("directive canceled")
			return
		}
		h.dispatchReady()

		if finished, status, reason := h.settled(); finished {
			if status == models.DirectiveStatusComplete {
				h.merge()
			} else {
				h.finishDirective(status, reason, nil)
			}
			return
		}

		select {
		case <-h.ctx.Done():
			h.abort("directive canceled")
			return
		case <-h.trigger:
		}
	}
}

// failBlocked fails pending tasks whose dependencies can no longer
// complete, cascading transitively.
func (h *Handle) failBlocked() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for changed := true; changed; {
		changed = false
		for _, task := range h.graph.Tasks() {
			if task.Status.Terminal() || task.Status == models.TaskStatusRunning {
				continue
			}
			for _, dep := range task.DependsOn {
				if d := h.graph.Task(dep); d != nil && d.Status == models.TaskStatusFailed {
					h.finishTaskLocked(task, models.TaskStatusFailed,
						fmt.Sprintf("dependency %s failed", dep))
					delete(h.deferred, task.ID)
					changed = true
					break
				}
			}
		}
	}
}

// dispatchReady starts every ready task the budget allows.
func (h *Handle) dispatchReady() {
	h.failBlocked()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, taskID := range h.graph.Ready() {
		task := h.graph.Task(taskID)
		fork := h.forkOfLocked(taskID)
		if fork == nil || fork.ctx.Err() != nil {
			continue
		}

		if !h.budget.CanStart(task.Essential) || !fork.Budget.CanStart(task.Essential) {
			if !h.deferred[taskID] {
				h.deferred[taskID] = true
				log.Printf("[scheduler] %s deferred under budget pressure (spent $%.2f of $%.2f)",
					taskID, h.budget.Spent(), h.budget.Ceiling())
			}
			continue
		}

		delete(h.deferred, taskID)
		task.Status = models.TaskStatusReady
		h.persistTask(task)

		go h.runTask(fork, task)
	}
}

// runTask executes one task under the engine-wide concurrency bound.
func (h *Handle) runTask(fork *Fork, task *models.Task) {
	if err := h.engine.sem.Acquire(fork.ctx, 1); err != nil {
		h.mu.Lock()
		if !task.Status.Terminal() {
			h.finishTaskLocked(task, models.TaskStatusFailed, "canceled before start")
		}
		h.mu.Unlock()
		h.kick()
		return
	}
	defer h.engine.sem.Release(1)

	h.mu.Lock()
	if task.Status.Terminal() {
		h.mu.Unlock()
		return
	}
	task.Status = models.TaskStatusRunning
	// The executor works on a private copy. An abort can mark the
	// graph's task failed while the attempt is still in flight, and
	// the two writers must never share the struct.
	run := *task
	h.mu.Unlock()
	h.persistTask(&run)

	outcome, err := h.engine.executor.Run(fork.ctx, &run, h.engine.registry.Agents(), nil)
	h.onTaskDone(fork, task, &run, outcome, err)
}

// onTaskDone applies one task result. Safe against duplicate delivery:
// a task already terminal is left untouched, so a result arriving
// after an abort is dropped rather than resurrecting the task.
func (h *Handle) onTaskDone(fork *Fork, task, run *models.Task, outcome *models.Outcome, err error) {
	h.mu.Lock()
	if task.Status.Terminal() {
		h.mu.Unlock()
		return
	}
	task.AssignedAgent = run.AssignedAgent
	task.Attempts = run.Attempts
	task.Cost = run.Cost
	task.Result = run.Result
	task.Error = run.Error

	if outcome != nil {
		h.budget.Add(outcome.Cost)
		fork.Budget.Add(outcome.Cost)
		h.directive.CostIncurred = h.budget.Spent()
	}

	if err == nil {
		h.finishTaskLocked(task, models.TaskStatusDone, "")
		h.graph.MarkComplete(task.ID)
	} else {
		h.finishTaskLocked(task, models.TaskStatusFailed, task.Error)
	}
	h.mu.Unlock()

	h.persistDirective()
	h.kick()
}

// finishTaskLocked moves a task to a terminal status and persists it.
// Caller holds h.mu.
func (h *Handle) finishTaskLocked(task *models.Task, status models.TaskStatus, reason string) {
	task.Status = status
	if reason != "" && task.Error == "" {
		task.Error = reason
	}
	now := time.Now().UTC()
	task.CompletedAt = &now
	h.persistTask(task)
}

// settled decides whether the directive has reached its end state.
// Returns the terminal status to apply once nothing more can run.
func (h *Handle) settled() (bool, models.DirectiveStatus, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	running := 0
	failedEssential := 0
	pending := 0
	for _, task := range h.graph.Tasks() {
		switch {
		case task.Status == models.TaskStatusRunning || task.Status == models.TaskStatusReady:
			running++
		case task.Status == models.TaskStatusFailed && task.Essential:
			failedEssential++
		case !task.Status.Terminal():
			pending++
		}
	}

	if running > 0 {
		return false, "", ""
	}
	if failedEssential > 0 {
		return true, models.DirectiveStatusEscalated,
			fmt.Sprintf("%d essential task(s) failed", failedEssential)
	}
	if pending == 0 {
		return true, models.DirectiveStatusComplete, ""
	}

	// Pending work remains. If every pending task is deferred by
	// budget pressure, the directive completes with the deferrals on
	// record; otherwise keep looping.
	allDeferred := true
	for _, task := range h.graph.Tasks() {
		if task.Status.Terminal() || task.Status == models.TaskStatusRunning {
			continue
		}
		if !h.deferred[task.ID] {
			allDeferred = false
			break
		}
	}
	if !allDeferred {
		return false, "", ""
	}

	// An essential task parked by an exhausted budget needs a human.
	for id := range h.deferred {
		if t := h.graph.Task(id); t != nil && t.Essential {
			return true, models.DirectiveStatusEscalated, "cost ceiling reached with essential work remaining"
		}
	}
	return true, models.DirectiveStatusComplete, ""
}

// merge closes out a directive whose tasks are all settled: detect
// cross-fork resource conflicts, resolve or escalate, then record the
// summary.
func (h *Handle) merge() {
	conflicts := h.detectConflicts()
	for i := range conflicts {
		c := &conflicts[i]
		if h.engine.resolver == nil {
			h.escalateConflict(c, errors.New("no conflict resolver configured"))
			return
		}
		if err := h.engine.resolver.Resolve(h.ctx, h.directive, c); err != nil {
			h.escalateConflict(c, err)
			return
		}
		log.Printf("[scheduler] %s: resolved conflict between %s and %s", h.directive.ID, c.ForkA, c.ForkB)
	}

	h.summarize()
	h.finishDirective(models.DirectiveStatusComplete, "", nil)
}

// detectConflicts finds fork pairs whose completed tasks touched the
// same resources.
func (h *Handle) detectConflicts() []Conflict {
	h.mu.Lock()
	defer h.mu.Unlock()

	touched := make([]map[string]bool, len(h.forks))
	for i, f := range h.forks {
		touched[i] = make(map[string]bool)
		for _, taskID := range f.TaskIDs {
			task := h.graph.Task(taskID)
			if task == nil || task.Status != models.TaskStatusDone {
				continue
			}
			for _, r := range task.Resources {
				touched[i][r] = true
			}
		}
	}

	var conflicts []Conflict
	for i := 0; i < len(h.forks); i++ {
		for j := i + 1; j < len(h.forks); j++ {
			var overlap []string
			for r := range touched[i] {
				if touched[j][r] {
					overlap = append(overlap, r)
				}
			}
			if len(overlap) > 0 {
				conflicts = append(conflicts, Conflict{
					ForkA:     h.forks[i].ID,
					ForkB:     h.forks[j].ID,
					Resources: overlap,
				})
			}
		}
	}
	return conflicts
}

func (h *Handle) escalateConflict(c *Conflict, err error) {
	reason := fmt.Sprintf("unresolved merge conflict between %s and %s on %v", c.ForkA, c.ForkB, c.Resources)
	esc := &state.Escalation{
		DirectiveID: h.directive.ID,
		Reason:      reason,
		LastError:   err.Error(),
		CreatedAt:   time.Now().UTC(),
	}
	if dbErr := h.engine.db.AppendEscalation(esc); dbErr != nil {
		log.Printf("[scheduler] failed to record escalation: %v", dbErr)
	}
	h.finishDirective(models.DirectiveStatusEscalated, reason, err)
}

// summarize records the finished directive in the knowledge store.
func (h *Handle) summarize() {
	h.mu.Lock()
	taskCount := h.graph.Size()
	cost := h.budget.Spent()
	text := h.directive.Text
	id := h.directive.ID
	h.mu.Unlock()

	if err := h.engine.knowledge.IngestDirectiveSummary(id, text, "complete", taskCount, cost); err != nil {
		log.Printf("[scheduler] failed to ingest directive summary for %s: %v", id, err)
	}
}

// abort fails the directive after cancellation, marking unstarted
// tasks failed.
func (h *Handle) abort(reason string) {
	h.mu.Lock()
	for _, task := range h.graph.Tasks() {
		if !task.Status.Terminal() {
			h.finishTaskLocked(task, models.TaskStatusFailed, reason)
		}
	}
	h.mu.Unlock()
	h.finishDirective(models.DirectiveStatusFailed, reason, context.Canceled)
}

// finishDirective applies the terminal status and persists it.
func (h *Handle) finishDirective(status models.DirectiveStatus, reason string, err error) {
	h.mu.Lock()
	h.directive.Status = status
	h.directive.EscalationReason = reason
	h.directive.CostIncurred = h.budget.Spent()
	now := time.Now().UTC()
	h.directive.CompletedAt = &now
	h.err = err
	h.mu.Unlock()

	h.persistDirective()
	log.Printf("[scheduler] %s finished: %s", h.directive.ID, status)
}

// forkOfLocked returns the fork containing a task. Caller holds h.mu.
func (h *Handle) forkOfLocked(taskID string) *Fork {
	for _, f := range h.forks {
		for _, id := range f.TaskIDs {
			if id == taskID {
				return f
			}
		}
	}
	return nil
}

// kick nudges the dispatch loop without blocking.
func (h *Handle) kick() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

func (h *Handle) persistTask(task *models.Task) {
	if err := h.engine.db.UpdateTask(task); err != nil {
		log.Printf("[scheduler] failed to persist task %s: %v", task.ID, err)
	}
}

func (h *Handle) persistDirective() {
	h.mu.Lock()
	d := *h.directive
	h.mu.Unlock()
	if err := h.engine.db.UpdateDirective(&d); err != nil {
		log.Printf("[scheduler] failed to persist directive %s: %v", d.ID, err)
	}
}

func (e *Engine) release(directiveID string) {
	e.mu.Lock()
	delete(e.active, directiveID)
	e.mu.Unlock()
}
