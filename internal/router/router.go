// Package router assigns tasks to agents. It starts with deterministic
// keyword matching against declared domain tags and switches to a model
// learned from past outcomes once enough history exists, degrading back
// to keywords per agent for agents it has never observed.
package router

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// ErrNoEligibleAgent is returned when every candidate is excluded,
// typically because all their circuits are open. The scheduler
// escalates rather than stalling.
var ErrNoEligibleAgent = errors.New("no eligible agent for task")

// Gate controls which agents may receive work. Satisfied by
// *breaker.Breaker. Eligible is a side-effect-free filter; Allow
// claims execution for the selected agent and may hand out a
// half-open circuit's single trial slot, so it is called only for
// the winner of a routing decision.
type Gate interface {
	Eligible(agentID string) bool
	Allow(agentID string) bool
}

// Strategy scores one agent for a task. The boolean reports whether
// the strategy has an opinion; a learned strategy declines for agents
// it has never observed.
type Strategy interface {
	Name() string
	Score(taskText string, agent *models.Agent) (float64, bool)
}

// Decision is a routing result.
type Decision struct {
	// AgentID is the selected agent.
	AgentID string
	// Confidence is the selection confidence in [0,1].
	Confidence float64
	// Strategy names the path that produced the score.
	Strategy string
}

// Router selects agents for tasks. The learned model is swapped
// atomically by the feedback loop; routing never blocks on training.
type Router struct {
	gate       Gate
	keyword    *KeywordStrategy
	minSamples int

	model atomic.Pointer[Model]
}

// New creates a router. minSamples is the outcome count below which
// routing stays on the keyword path.
func New(gate Gate, minSamples int) *Router {
	return &Router{
		gate:       gate,
		keyword:    NewKeywordStrategy(),
		minSamples: minSamples,
	}
}

// SwapModel installs a newly trained model. A nil model returns the
// router to pure keyword routing.
func (r *Router) SwapModel(m *Model) {
	r.model.Store(m)
}

// Model returns the currently installed model, or nil.
func (r *Router) Model() *Model {
	return r.model.Load()
}

// Route picks the best agent for the task among the candidates.
// Agents whose circuit is open are never selected. Ties break to the
// cheaper tier, then lexicographic agent id, so routing is
// deterministic.
func (r *Router) Route(taskText string, candidates []*models.Agent) (*Decision, error) {
	eligible := make([]*models.Agent, 0, len(candidates))
	for _, a := range candidates {
		if r.gate == nil || r.gate.Eligible(a.ID) {
			eligible = append(eligible, a)
		}
	}

	model := r.model.Load()
	learned := model != nil && model.Samples() >= r.minSamples

	// The gate claim is made only for the winner, so a losing
	// half-open agent keeps its trial slot for a later decision. A
	// lost claim (another goroutine took the slot first) falls back to
	// the next best candidate.
	for len(eligible) > 0 {
		idx, score, strategy := r.selectBest(taskText, eligible, model, learned)
		best := eligible[idx]
		if r.gate != nil && !r.gate.Allow(best.ID) {
			eligible = append(eligible[:idx], eligible[idx+1:]...)
			continue
		}
		log.Printf("[router] %s -> %s (%.2f, %s)", truncate(taskText, 60), best.ID, score, strategy)
		return &Decision{AgentID: best.ID, Confidence: score, Strategy: strategy}, nil
	}
	return nil, ErrNoEligibleAgent
}

// selectBest returns the index of the highest-scoring candidate.
// Candidates must be non-empty.
func (r *Router) selectBest(taskText string, candidates []*models.Agent, model *Model, learned bool) (int, float64, string) {
	bestIdx := -1
	var bestScore float64
	var bestStrategy string
	for i, a := range candidates {
		score, strategy := r.score(taskText, a, model, learned)
		if bestIdx == -1 || score > bestScore ||
			(score == bestScore && tieBreak(a, candidates[bestIdx])) {
			bestIdx, bestScore, bestStrategy = i, score, strategy
		}
	}
	return bestIdx, bestScore, bestStrategy
}

// score applies the learned model when it is trained and has seen this
// agent, otherwise the keyword path.
func (r *Router) score(taskText string, a *models.Agent, model *Model, learned bool) (float64, string) {
	if learned {
		if s, ok := model.Score(taskText, a); ok {
			return s, model.Name()
		}
	}
	s, _ := r.keyword.Score(taskText, a)
	return s, r.keyword.Name()
}

// tieBreak returns true when a should replace current at equal score:
// cheaper tier first, then lexicographic id.
func tieBreak(a, current *models.Agent) bool {
	if a.Tier.Rank() != current.Tier.Rank() {
		return a.Tier.Rank() < current.Tier.Rank()
	}
	return a.ID < current.ID
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
