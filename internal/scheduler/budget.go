package scheduler

import "sync"

// BudgetStatus classifies spend against a directive's cost ceiling.
type BudgetStatus int

const (
	// BudgetOK means spend is below the warning threshold.
	BudgetOK BudgetStatus = iota
	// BudgetWarning means spend has crossed the warning threshold.
	BudgetWarning
	// BudgetEfficiency means spend is close enough to the ceiling that
	// non-essential work is deferred.
	BudgetEfficiency
	// BudgetExhausted means the ceiling is fully consumed.
	BudgetExhausted
)

func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "ok"
	case BudgetWarning:
		return "warning"
	case BudgetEfficiency:
		return "efficiency"
	case BudgetExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DefaultWarningThreshold is the spend fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// Budget tracks dollar spend for one directive against its ceiling.
// A ceiling of zero means unlimited.
type Budget struct {
	mu                  sync.RWMutex
	ceiling             float64
	spent               float64
	warningThreshold    float64
	efficiencyThreshold float64
}

// NewBudget creates a budget with the given ceiling and efficiency
// threshold (fraction of ceiling, e.g. 0.95).
func NewBudget(ceiling, efficiencyThreshold float64) *Budget {
	return &Budget{
		ceiling:             ceiling,
		warningThreshold:    DefaultWarningThreshold,
		efficiencyThreshold: efficiencyThreshold,
	}
}

// Add records spend.
func (b *Budget) Add(cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spent += cost
}

// Spent returns the accumulated spend.
func (b *Budget) Spent() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.spent
}

// Ceiling returns the current ceiling.
func (b *Budget) Ceiling() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ceiling
}

// RaiseCeiling lifts the ceiling, typically after a human approves
// more spend on an escalated directive.
func (b *Budget) RaiseCeiling(newCeiling float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if newCeiling > b.ceiling {
		b.ceiling = newCeiling
	}
}

// Status classifies the current spend.
func (b *Budget) Status() BudgetStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ceiling <= 0 {
		return BudgetOK
	}
	frac := b.spent / b.ceiling
	switch {
	case frac >= 1.0:
		return BudgetExhausted
	case frac >= b.efficiencyThreshold:
		return BudgetEfficiency
	case frac >= b.warningThreshold:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// CanStart reports whether a task may be dispatched right now.
// Essential tasks run until the ceiling is exhausted; non-essential
// tasks stop at the efficiency threshold.
func (b *Budget) CanStart(essential bool) bool {
	switch b.Status() {
	case BudgetOK, BudgetWarning:
		return true
	case BudgetEfficiency:
		return essential
	default:
		return false
	}
}
