package feedback

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Garrett-s-Apps/nexus/internal/router"
	"github.com/Garrett-s-Apps/nexus/internal/state"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

type allowGate struct{}

func (allowGate) Eligible(string) bool { return true }
func (allowGate) Allow(string) bool { return true }

func newTestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"), 2)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func appendOutcomes(t *testing.T, db *state.DB, n int, agentID string, success bool) {
	t.Helper()
	for i := 0; i < n; i++ {
		o := &models.Outcome{
			ID:              models.NewID("out"),
			DirectiveID:     "dir-1",
			TaskID:          fmt.Sprintf("task-%d", i),
			AgentID:         agentID,
			TaskDescription: "migrate the database schema",
			Success:         success,
			Cost:            0.02,
			CreatedAt:       time.Now().UTC(),
		}
		if err := db.AppendOutcome(o); err != nil {
			t.Fatalf("failed to append outcome: %v", err)
		}
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBootstrapTrainsFromHistory(t *testing.T) {
	db := newTestDB(t)
	appendOutcomes(t, db, 25, "backend-1", true)

	r := router.New(allowGate{}, 20)
	trainer := New(db, r)
	if err := trainer.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	model := r.Model()
	if model == nil {
		t.Fatal("router has no model after bootstrap")
	}
	if model.Samples() != 25 {
		t.Errorf("Samples() = %d, want 25", model.Samples())
	}
}

func TestBootstrapEmptyHistory(t *testing.T) {
	db := newTestDB(t)
	r := router.New(allowGate{}, 20)
	trainer := New(db, r)
	if err := trainer.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if got := r.Model().Samples(); got != 0 {
		t.Errorf("Samples() = %d, want 0", got)
	}
}

func TestNotifyOutcomeBelowThresholdDoesNotRetrain(t *testing.T) {
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := router.New(allowGate{}, 20)
	trainer := New(db, r, WithClock(clock.now))

	appendOutcomes(t, db, 5, "backend-1", true)
	trainer.NotifyOutcome()

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-deadline:
			if r.Model() != nil {
				t.Fatal("model trained below the new-outcome threshold")
			}
			return
		default:
			if r.Model() != nil {
				t.Fatal("model trained below the new-outcome threshold")
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestNotifyOutcomeRetrainsWhenDue(t *testing.T) {
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := router.New(allowGate{}, 20)
	trainer := New(db, r, WithClock(clock.now))

	appendOutcomes(t, db, 12, "backend-1", true)
	clock.advance(2 * time.Hour)
	trainer.NotifyOutcome()

	deadline := time.After(5 * time.Second)
	for r.Model() == nil || r.Model().Samples() != 12 {
		select {
		case <-deadline:
			t.Fatal("model was not retrained")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestNotifyOutcomeRespectsInterval(t *testing.T) {
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := router.New(allowGate{}, 20)
	trainer := New(db, r, WithClock(clock.now))

	appendOutcomes(t, db, 12, "backend-1", true)
	if _, err := trainer.Retrain(); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	first := r.Model()

	// Plenty of new outcomes but the hourly interval has not elapsed.
	appendOutcomes(t, db, 12, "backend-2", true)
	clock.advance(30 * time.Minute)
	trainer.NotifyOutcome()

	time.Sleep(200 * time.Millisecond)
	if r.Model() != first {
		t.Fatal("model retrained inside the minimum interval")
	}

	clock.advance(31 * time.Minute)
	trainer.NotifyOutcome()
	deadline := time.After(5 * time.Second)
	for r.Model() == first {
		select {
		case <-deadline:
			t.Fatal("model was not retrained after the interval elapsed")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if got := r.Model().Samples(); got != 24 {
		t.Errorf("Samples() = %d, want 24", got)
	}
}

func TestRetrainUpdatesLastTrained(t *testing.T) {
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := router.New(allowGate{}, 20)
	trainer := New(db, r, WithClock(clock.now))

	if !trainer.LastTrained().IsZero() {
		t.Fatal("LastTrained() non-zero before any training")
	}
	if _, err := trainer.Retrain(); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	if got := trainer.LastTrained(); !got.Equal(clock.t) {
		t.Errorf("LastTrained() = %v, want %v", got, clock.t)
	}
}
