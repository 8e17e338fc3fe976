package scheduler

import "testing"

func TestBudgetStatus(t *testing.T) {
	tests := []struct {
		name    string
		ceiling float64
		spent   float64
		want    BudgetStatus
	}{
		{"fresh", 10.0, 0, BudgetOK},
		{"below warning", 10.0, 7.99, BudgetOK},
		{"warning at 80 percent", 10.0, 8.0, BudgetWarning},
		{"efficiency at 95 percent", 10.0, 9.5, BudgetEfficiency},
		{"exhausted", 10.0, 10.0, BudgetExhausted},
		{"over ceiling", 10.0, 12.0, BudgetExhausted},
		{"unlimited", 0, 100.0, BudgetOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBudget(tt.ceiling, 0.95)
			b.Add(tt.spent)
			if got := b.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetCanStart(t *testing.T) {
	b := NewBudget(10.0, 0.95)
	b.Add(9.5)

	if b.CanStart(false) {
		t.Error("non-essential task allowed in efficiency mode")
	}
	if !b.CanStart(true) {
		t.Error("essential task blocked in efficiency mode")
	}

	b.Add(0.5)
	if b.CanStart(true) {
		t.Error("essential task allowed with exhausted budget")
	}
}

func TestBudgetRaiseCeilingOnlyRaises(t *testing.T) {
	b := NewBudget(10.0, 0.95)
	b.RaiseCeiling(5.0)
	if got := b.Ceiling(); got != 10.0 {
		t.Errorf("Ceiling() after lowering attempt = %v, want 10.0", got)
	}
	b.RaiseCeiling(20.0)
	if got := b.Ceiling(); got != 20.0 {
		t.Errorf("Ceiling() after raise = %v, want 20.0", got)
	}
}

func TestBudgetRaiseCeilingResumesWork(t *testing.T) {
	b := NewBudget(10.0, 0.95)
	b.Add(9.6)
	if b.CanStart(false) {
		t.Fatal("non-essential task allowed in efficiency mode")
	}
	b.RaiseCeiling(20.0)
	if !b.CanStart(false) {
		t.Error("non-essential task still blocked after ceiling raise")
	}
}
