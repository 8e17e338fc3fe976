package models

// Agent describes one worker in the registry: a capability tier, the
// domains it declares competence in, and whether it is currently active.
// The registry is externally owned; the engine only reads it.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `yaml:"id" json:"id"`
	// Tier is the capability tier this agent operates at.
	Tier Tier `yaml:"tier" json:"tier"`
	// DomainTags lists the domains this agent declares competence in.
	DomainTags []string `yaml:"domain_tags" json:"domain_tags"`
	// Model is the backend model identifier this agent executes with.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
	// Active indicates whether the agent is in rotation. Fired agents
	// stay in the roster with Active false.
	Active bool `yaml:"active" json:"active"`
}

// HasTag returns true if the agent declares the given domain tag.
func (a *Agent) HasTag(tag string) bool {
	for _, t := range a.DomainTags {
		if t == tag {
			return true
		}
	}
	return false
}
