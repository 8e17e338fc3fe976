package router

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Garrett-s-Apps/nexus/internal/breaker"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// blockGate excludes the listed agents, standing in for open circuits.
type blockGate map[string]bool

func (g blockGate) Eligible(agentID string) bool { return !g[agentID] }
func (g blockGate) Allow(agentID string) bool { return !g[agentID] }

func agent(id string, tier models.Tier, tags ...string) *models.Agent {
	return &models.Agent{ID: id, Tier: tier, DomainTags: tags, Active: true}
}

func TestKeywordRouting(t *testing.T) {
	r := New(blockGate{}, 20)
	candidates := []*models.Agent{
		agent("front-1", models.TierCheap, "frontend"),
		agent("back-1", models.TierCheap, "backend"),
		agent("ops-1", models.TierCheap, "devops"),
	}

	d, err := r.Route("add an endpoint to the api server", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "back-1" {
		t.Errorf("AgentID = %q, want back-1", d.AgentID)
	}
	if d.Strategy != "keyword" {
		t.Errorf("Strategy = %q, want keyword", d.Strategy)
	}
	if d.Confidence <= 0 || d.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0,1]", d.Confidence)
	}
}

func TestKeywordClassifiedDomainCountsOnce(t *testing.T) {
	s := NewKeywordStrategy()
	// "docker" and "deploy" classify the text as devops without the
	// literal tag appearing, so the declared tag matches exactly once.
	a := agent("ops-1", models.TierCheap, "devops")
	score, ok := s.Score("update the docker deploy pipeline", a)
	if !ok {
		t.Fatal("Score() ok = false, want true")
	}
	if score != 1.0 {
		t.Errorf("Score() = %v, want 1.0 (classified domain counted)", score)
	}

	// A tag matched both literally and by classification still counts
	// once.
	score, _ = s.Score("fix the devops deploy pipeline", a)
	if score != 1.0 {
		t.Errorf("Score() = %v, want 1.0 (no double count)", score)
	}
}

func TestKeywordTieBreakCheapestTier(t *testing.T) {
	r := New(blockGate{}, 20)
	candidates := []*models.Agent{
		agent("deep-back", models.TierDeep, "backend"),
		agent("cheap-back", models.TierCheap, "backend"),
		agent("std-back", models.TierStandard, "backend"),
	}

	d, err := r.Route("fix the backend", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "cheap-back" {
		t.Errorf("AgentID = %q, want cheap-back (cheapest tier wins ties)", d.AgentID)
	}
}

func TestKeywordTieBreakLexicographic(t *testing.T) {
	r := New(blockGate{}, 20)
	candidates := []*models.Agent{
		agent("zeta", models.TierCheap, "backend"),
		agent("alpha", models.TierCheap, "backend"),
	}

	d, err := r.Route("fix the backend", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "alpha" {
		t.Errorf("AgentID = %q, want alpha (lexicographic tie-break)", d.AgentID)
	}
}

func TestOpenCircuitExcluded(t *testing.T) {
	// The best keyword match is blocked; routing picks another
	// eligible agent instead of stalling.
	r := New(blockGate{"back-1": true}, 20)
	candidates := []*models.Agent{
		agent("back-1", models.TierCheap, "backend"),
		agent("back-2", models.TierStandard, "backend"),
	}

	d, err := r.Route("fix the backend", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "back-2" {
		t.Errorf("AgentID = %q, want back-2 (back-1 circuit open)", d.AgentID)
	}
}

func TestNoEligibleAgent(t *testing.T) {
	r := New(blockGate{"a1": true, "a2": true}, 20)
	candidates := []*models.Agent{
		agent("a1", models.TierCheap, "backend"),
		agent("a2", models.TierCheap, "backend"),
	}

	_, err := r.Route("fix the backend", candidates)
	if !errors.Is(err, ErrNoEligibleAgent) {
		t.Errorf("Route() error = %v, want ErrNoEligibleAgent", err)
	}
}

// circuitLog is an in-memory breaker.EventLog.
type circuitLog struct {
	events []*models.CircuitEvent
}

func (l *circuitLog) AppendCircuitEvent(e *models.CircuitEvent) error {
	e.ID = int64(len(l.events) + 1)
	l.events = append(l.events, e)
	return nil
}

func (l *circuitLog) ListAllCircuitEvents() ([]*models.CircuitEvent, error) {
	return l.events, nil
}

func TestLosingAgentKeepsTrialSlot(t *testing.T) {
	// An agent past its cooldown is considered for every decision but
	// must only spend its single trial slot when it actually wins one.
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	br := breaker.New(&circuitLog{}, 3, time.Minute,
		breaker.WithClock(func() time.Time { return clock }))
	r := New(br, 20)

	for i := 0; i < 3; i++ {
		br.RecordFailure("back-1", "timeout")
	}
	clock = clock.Add(2 * time.Minute)

	candidates := []*models.Agent{
		agent("back-1", models.TierCheap, "backend"),
		agent("front-1", models.TierCheap, "frontend"),
	}

	d, err := r.Route("polish the frontend ui styles", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "front-1" {
		t.Fatalf("AgentID = %q, want front-1", d.AgentID)
	}

	// back-1 lost that round, so its trial is still available.
	d, err = r.Route("fix the backend api handler", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "back-1" {
		t.Errorf("AgentID = %q, want back-1 (trial slot unspent)", d.AgentID)
	}

	// Now the trial is in flight and the slot is gone.
	d, err = r.Route("fix the backend api handler", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "front-1" {
		t.Errorf("AgentID = %q, want front-1 while the trial runs", d.AgentID)
	}
}

// trainingOutcomes builds a history where dbAgent succeeds on database
// work and uiAgent fails at it.
func trainingOutcomes(n int) []*models.Outcome {
	var outcomes []*models.Outcome
	for i := 0; i < n; i++ {
		outcomes = append(outcomes,
			&models.Outcome{
				ID: fmt.Sprintf("o-db-%d", i), AgentID: "db-agent",
				TaskDescription: "migrate the database schema", Success: true,
			},
			&models.Outcome{
				ID: fmt.Sprintf("o-ui-%d", i), AgentID: "ui-agent",
				TaskDescription: "migrate the database schema", Success: false,
			},
		)
	}
	return outcomes
}

func TestLearnedRouting(t *testing.T) {
	r := New(blockGate{}, 20)
	r.SwapModel(Train(trainingOutcomes(15))) // 30 samples, above the guard

	candidates := []*models.Agent{
		agent("db-agent", models.TierStandard, "backend"),
		agent("ui-agent", models.TierCheap, "frontend"),
	}

	d, err := r.Route("migrate the database schema again", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "db-agent" {
		t.Errorf("AgentID = %q, want db-agent (learned from outcomes)", d.AgentID)
	}
	if d.Strategy != "learned" {
		t.Errorf("Strategy = %q, want learned", d.Strategy)
	}
	if d.Confidence <= 0.5 {
		t.Errorf("Confidence = %v, want > 0.5 for a consistently successful agent", d.Confidence)
	}
}

func TestLearnedGuardBelowMinSamples(t *testing.T) {
	r := New(blockGate{}, 20)
	r.SwapModel(Train(trainingOutcomes(5))) // 10 samples, below the guard

	candidates := []*models.Agent{
		agent("db-agent", models.TierStandard, "backend"),
		agent("ui-agent", models.TierCheap, "frontend"),
	}

	d, err := r.Route("update the database index", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.Strategy != "keyword" {
		t.Errorf("Strategy = %q, want keyword below the sample guard", d.Strategy)
	}
}

func TestLearnedDegradesPerUnseenAgent(t *testing.T) {
	r := New(blockGate{}, 20)
	// db-agent has history; new-hire does not and must score via
	// keywords rather than being frozen out.
	r.SwapModel(Train(trainingOutcomes(15)))

	candidates := []*models.Agent{
		agent("ui-agent", models.TierCheap, "frontend"),
		agent("new-hire", models.TierCheap, "security"),
	}

	d, err := r.Route("rotate the auth token for the security audit", candidates)
	if err != nil {
		t.Fatalf("Route() error = %v, want nil", err)
	}
	if d.AgentID != "new-hire" {
		t.Errorf("AgentID = %q, want new-hire (keyword fallback for unseen agent)", d.AgentID)
	}
	if d.Strategy != "keyword" {
		t.Errorf("Strategy = %q, want keyword", d.Strategy)
	}
}

func TestModelScoreBounds(t *testing.T) {
	m := Train(trainingOutcomes(15))

	score, ok := m.Score("migrate the database schema", agent("db-agent", models.TierStandard, "backend"))
	if !ok {
		t.Fatal("Score() ok = false for trained agent, want true")
	}
	if score < 0 || score > 1 {
		t.Errorf("Score() = %v, want in [0,1]", score)
	}

	if _, ok := m.Score("anything", agent("stranger", models.TierCheap)); ok {
		t.Error("Score() ok = true for unseen agent, want false")
	}
}
