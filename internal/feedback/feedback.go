// Package feedback closes the loop between recorded task outcomes and
// the routing model: it retrains the model as outcomes accumulate and
// swaps it into the router without interrupting in-flight routing.
package feedback

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Garrett-s-Apps/nexus/internal/router"
	"github.com/Garrett-s-Apps/nexus/internal/state"
)

const (
	// DefaultMinNewOutcomes is how many outcomes must accumulate since
	// the last training run before another is considered.
	DefaultMinNewOutcomes = 10
	// DefaultRetrainInterval is the minimum gap between training runs.
	DefaultRetrainInterval = time.Hour
	// trainingWindow caps how many recent outcomes feed one training
	// run.
	trainingWindow = 5000
)

// Trainer retrains the routing model from accumulated outcomes.
type Trainer struct {
	db     *state.DB
	router *router.Router

	minNewOutcomes int
	interval       time.Duration
	now            func() time.Time

	mu           sync.Mutex
	lastTrained  time.Time
	trainedCount int
	running      bool
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithThresholds overrides the retrain trigger thresholds.
func WithThresholds(minNewOutcomes int, interval time.Duration) Option {
	return func(t *Trainer) {
		t.minNewOutcomes = minNewOutcomes
		t.interval = interval
	}
}

// WithClock overrides the time source for testing.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) { t.now = now }
}

// New creates a trainer.
func New(db *state.DB, r *router.Router, opts ...Option) *Trainer {
	t := &Trainer{
		db:             db,
		router:         r,
		minNewOutcomes: DefaultMinNewOutcomes,
		interval:       DefaultRetrainInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bootstrap trains from whatever history exists, typically at process
// start. An empty history is not an error; the router simply keeps
// keyword routing.
func (t *Trainer) Bootstrap() error {
	_, err := t.Retrain()
	return err
}

// NotifyOutcome signals that a new outcome was recorded. When enough
// outcomes have accumulated and the retrain interval has elapsed,
// retraining runs in the background; this call never blocks on it.
func (t *Trainer) NotifyOutcome() {
	count, err := t.db.CountOutcomes()
	if err != nil {
		log.Printf("[feedback] outcome count failed: %v", err)
		return
	}

	t.mu.Lock()
	due := !t.running &&
		count-t.trainedCount >= t.minNewOutcomes &&
		t.now().Sub(t.lastTrained) >= t.interval
	if due {
		t.running = true
	}
	t.mu.Unlock()

	if !due {
		return
	}

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
		}()
		if _, err := t.Retrain(); err != nil {
			log.Printf("[feedback] retrain failed: %v", err)
		}
	}()
}

// Retrain trains a fresh model from recent outcomes and swaps it into
// the router. It returns the trained model.
func (t *Trainer) Retrain() (*router.Model, error) {
	outcomes, err := t.db.ListOutcomes(trainingWindow)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}

	model := router.Train(outcomes)
	t.router.SwapModel(model)

	t.mu.Lock()
	t.lastTrained = t.now()
	t.trainedCount = len(outcomes)
	t.mu.Unlock()

	log.Printf("[feedback] routing model trained on %d outcomes across %d agents",
		model.Samples(), model.Agents())
	return model, nil
}

// LastTrained reports when the model was last trained.
func (t *Trainer) LastTrained() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTrained
}
