package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Garrett-s-Apps/nexus/internal/executor"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// Planner decomposes a directive into a task set with dependency
// edges. The engine treats decomposition as an external collaborator;
// it only checks the structure of what comes back.
type Planner interface {
	Plan(ctx context.Context, directive *models.Directive) ([]*models.Task, error)
}

const planPrompt = `Break this directive into subtasks sized for a single agent each.

Directive:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "Detailed task description",
    "depends_on": ["title of dependency"],
    "essential": true,
    "resources": ["path/one.go", "path/two/"]
  }
]

Rules:
- depends_on lists titles of tasks that must finish first; leave empty for independent tasks
- essential is false only for nice-to-have work that can be skipped under budget pressure
- resources MUST list every file or directory the task will touch; overlapping resources across independent tasks cause merge conflicts
- Tasks with no dependency relationship run in parallel`

// BackendPlanner asks the execution backend to decompose directives.
type BackendPlanner struct {
	backend executor.Backend
}

// NewBackendPlanner creates a planner over the given backend.
func NewBackendPlanner(backend executor.Backend) *BackendPlanner {
	return &BackendPlanner{backend: backend}
}

type plannedTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
	Essential   *bool    `json:"essential"`
	Resources   []string `json:"resources"`
}

// Plan decomposes the directive. A decomposition the engine cannot
// parse or that references unknown dependencies is an error; the
// caller fails the directive rather than guessing.
func (p *BackendPlanner) Plan(ctx context.Context, directive *models.Directive) ([]*models.Task, error) {
	result, err := p.backend.Execute(ctx, &executor.Request{
		System: "You are a planning agent that decomposes engineering directives into parallelizable task graphs.",
		Prompt: fmt.Sprintf(planPrompt, directive.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition call: %w", err)
	}
	return ParsePlan(result.Output, directive.ID)
}

// ParsePlan extracts the JSON task array from a planner response and
// converts it into persisted-form tasks with generated IDs.
func ParsePlan(response, directiveID string) ([]*models.Task, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON task array in planner response")
	}

	var planned []plannedTask
	if err := json.Unmarshal([]byte(response[start:end+1]), &planned); err != nil {
		return nil, fmt.Errorf("parse planner response: %w", err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("planner returned no tasks")
	}

	titleToID := make(map[string]string, len(planned))
	for _, pt := range planned {
		if pt.Title == "" {
			return nil, fmt.Errorf("planner task missing title")
		}
		if _, dup := titleToID[pt.Title]; dup {
			return nil, fmt.Errorf("duplicate planner task title %q", pt.Title)
		}
		titleToID[pt.Title] = models.NewID("task")
	}

	now := time.Now().UTC()
	tasks := make([]*models.Task, 0, len(planned))
	for _, pt := range planned {
		essential := true
		if pt.Essential != nil {
			essential = *pt.Essential
		}
		var deps []string
		for _, depTitle := range pt.DependsOn {
			depID, ok := titleToID[depTitle]
			if !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", pt.Title, depTitle)
			}
			deps = append(deps, depID)
		}
		description := pt.Description
		if description == "" {
			description = pt.Title
		}
		tasks = append(tasks, &models.Task{
			ID:          titleToID[pt.Title],
			DirectiveID: directiveID,
			Title:       pt.Title,
			Description: description,
			DependsOn:   deps,
			Status:      models.TaskStatusPending,
			Essential:   essential,
			Resources:   pt.Resources,
			CreatedAt:   now,
		})
	}
	return tasks, nil
}
