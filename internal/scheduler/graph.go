package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of task dependencies.
// Edges point from a task to the tasks it is blocked by.
type DependencyGraph struct {
	mu        sync.RWMutex
	nodes     map[string]*models.Task
	edges     map[string][]string
	completed map[string]bool
	debugLog  func(format string, args ...any)
}

// NewGraph creates an empty dependency graph.
func NewGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.Task),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...any) {},
	}
}

// SetDebugLog sets the debug logging hook.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from a task set. It rejects dependencies
// on unknown tasks and cycles.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range tasks {
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	g.debugLog("[graph] built with %d tasks", len(g.nodes))
	return nil
}

// hasCycleLocked detects back edges by DFS coloring. Caller holds the
// lock.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Ready returns the IDs of tasks whose dependencies have all completed
// and that have not themselves started, sorted for determinism.
func (g *DependencyGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, task := range g.nodes {
		if g.completed[id] || task.Status.Terminal() ||
			task.Status == models.TaskStatusReady || task.Status == models.TaskStatusRunning {
			continue
		}
		blocked := false
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// MarkComplete marks a task's dependencies as satisfied for its
// dependents. Idempotent.
func (g *DependencyGraph) MarkComplete(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[taskID] = true
}

// Task returns the task for an ID, or nil.
func (g *DependencyGraph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Tasks returns all tasks in the graph.
func (g *DependencyGraph) Tasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tasks := make([]*models.Task, 0, len(g.nodes))
	for _, t := range g.nodes {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Size returns the number of tasks.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Components partitions the tasks into forks: connected components of
// the dependency graph, treating edges as undirected. Tasks in
// different components share no ordering constraints and may run
// concurrently. Each component is sorted by task ID and the component
// list is sorted by its first member, so fork derivation is stable.
func (g *DependencyGraph) Components() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Undirected adjacency.
	adj := make(map[string][]string, len(g.nodes))
	for id, deps := range g.edges {
		for _, depID := range deps {
			adj[id] = append(adj[id], depID)
			adj[depID] = append(adj[depID], id)
		}
	}

	seen := make(map[string]bool, len(g.nodes))
	var components [][]string
	for id := range g.nodes {
		if seen[id] {
			continue
		}
		var component []string
		stack := []string{id}
		seen[id] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, cur)
			for _, next := range adj[cur] {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}
