package router

import (
	"strings"
	"time"
	"unicode"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// Model predicts per-agent success probability from past outcomes.
// Each agent carries Laplace-smoothed success counts per task token,
// so the prediction is a blend of the agent's overall success rate and
// its track record on the words in this task. Immutable once trained;
// the feedback loop swaps whole models.
type Model struct {
	agents    map[string]*agentModel
	samples   int
	trainedAt time.Time
}

type agentModel struct {
	successes int
	failures  int
	// tokenSuccess / tokenTotal count outcomes per task-text token.
	tokenSuccess map[string]int
	tokenTotal   map[string]int
}

// Train builds a model from the outcome log. Agents absent from the
// log are unknown to the model and score via the keyword path instead.
func Train(outcomes []*models.Outcome) *Model {
	m := &Model{
		agents:    make(map[string]*agentModel),
		samples:   len(outcomes),
		trainedAt: time.Now(),
	}
	for _, o := range outcomes {
		am, ok := m.agents[o.AgentID]
		if !ok {
			am = &agentModel{
				tokenSuccess: make(map[string]int),
				tokenTotal:   make(map[string]int),
			}
			m.agents[o.AgentID] = am
		}
		if o.Success {
			am.successes++
		} else {
			am.failures++
		}
		for _, tok := range tokenizeTask(o.TaskDescription) {
			am.tokenTotal[tok]++
			if o.Success {
				am.tokenSuccess[tok]++
			}
		}
	}
	return m
}

func (m *Model) Name() string { return "learned" }

// Samples returns the number of outcomes the model was trained on.
func (m *Model) Samples() int { return m.samples }

// TrainedAt returns when the model was built.
func (m *Model) TrainedAt() time.Time { return m.trainedAt }

// Agents returns how many distinct agents the model has observed.
func (m *Model) Agents() int { return len(m.agents) }

// Score predicts the agent's success probability on the task. Returns
// false for agents with no observed outcomes.
func (m *Model) Score(taskText string, agent *models.Agent) (float64, bool) {
	am, ok := m.agents[agent.ID]
	if !ok {
		return 0, false
	}

	// Smoothed overall success rate.
	prior := float64(am.successes+1) / float64(am.successes+am.failures+2)

	sum := prior
	n := 1
	for _, tok := range tokenizeTask(taskText) {
		total, seen := am.tokenTotal[tok]
		if !seen {
			continue
		}
		sum += float64(am.tokenSuccess[tok]+1) / float64(total+2)
		n++
	}
	return sum / float64(n), true
}

// tokenizeTask lowercases and splits on non-alphanumeric runs.
func tokenizeTask(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
