package router

import (
	"strings"

	"github.com/Garrett-s-Apps/nexus/internal/knowledge"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// KeywordStrategy is the cold-start path: an agent scores by how many
// of its declared domain tags appear in the task text, with the text's
// classified domain counting as a match too. Fully deterministic.
type KeywordStrategy struct{}

// NewKeywordStrategy returns the cold-start routing strategy.
func NewKeywordStrategy() *KeywordStrategy {
	return &KeywordStrategy{}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

// Score returns the fraction of the agent's domain tags matched by the
// task text. An agent with no tags scores zero.
func (s *KeywordStrategy) Score(taskText string, agent *models.Agent) (float64, bool) {
	if len(agent.DomainTags) == 0 {
		return 0, true
	}
	lower := strings.ToLower(taskText)
	domain := knowledge.ClassifyDomain(taskText)

	matches := 0
	domainSeen := false
	for _, tag := range agent.DomainTags {
		if strings.Contains(lower, strings.ToLower(tag)) {
			matches++
			if tag == domain {
				domainSeen = true
			}
		}
	}
	// The classified domain counts once even when the tag's literal
	// text never appears in the task.
	if !domainSeen && agent.HasTag(domain) {
		matches++
	}
	return float64(matches) / float64(len(agent.DomainTags)), true
}
