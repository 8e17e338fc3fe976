// Package registry loads the agent roster from a YAML file and keeps
// it fresh. The file is the single source of truth for which agents
// exist, their tiers, and their domain tags; edits take effect without
// a restart.
package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// rosterFile mirrors the YAML layout on disk. Active is a pointer so
// an omitted field means in-rotation rather than fired.
type rosterFile struct {
	Agents []rosterEntry `yaml:"agents"`
}

type rosterEntry struct {
	ID         string      `yaml:"id"`
	Tier       models.Tier `yaml:"tier"`
	DomainTags []string    `yaml:"domain_tags"`
	Model      string      `yaml:"model"`
	Active     *bool       `yaml:"active"`
}

func (e rosterEntry) agent() *models.Agent {
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return &models.Agent{
		ID:         e.ID,
		Tier:       e.Tier,
		DomainTags: e.DomainTags,
		Model:      e.Model,
		Active:     active,
	}
}

// Registry serves the current agent roster. Reads return a snapshot,
// so callers never see a roster mid-reload.
type Registry struct {
	path string

	mu       sync.RWMutex
	agents   []*models.Agent
	loadedAt time.Time
	modTime  time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Load reads the roster file and returns a registry serving it.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path: path,
		done: make(chan struct{}),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}

	// Watch the file so edits apply immediately. If the watcher cannot
	// be created the mtime check in Agents() still picks up changes.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return r, nil
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return r, nil
	}
	r.watcher = watcher
	go r.watch()

	return r, nil
}

// reload parses the roster file and swaps the snapshot.
func (r *Registry) reload() error {
	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("stat roster: %w", err)
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse roster: %w", err)
	}

	agents := make([]*models.Agent, 0, len(file.Agents))
	seen := make(map[string]bool, len(file.Agents))
	for _, e := range file.Agents {
		if e.ID == "" {
			return fmt.Errorf("roster entry missing id")
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate agent id %q in roster", e.ID)
		}
		seen[e.ID] = true
		if !e.Tier.Valid() {
			return fmt.Errorf("agent %q has unknown tier %q", e.ID, e.Tier)
		}
		agents = append(agents, e.agent())
	}
	// An empty roster is treated like a parse failure: a truncated or
	// half-written file must not wipe out a working roster.
	if len(agents) == 0 {
		return fmt.Errorf("roster %s has no agents", r.path)
	}

	r.mu.Lock()
	r.agents = agents
	r.loadedAt = time.Now()
	r.modTime = info.ModTime()
	r.mu.Unlock()
	return nil
}

// watch reloads the roster whenever the file changes. Editors often
// replace the file rather than writing in place, so the path is
// re-added after a remove or rename.
func (r *Registry) watch() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.reloadQuietly()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Re-add once the replacement file lands.
				time.Sleep(50 * time.Millisecond)
				r.watcher.Add(r.path)
				r.reloadQuietly()
			}
		case <-r.watcher.Errors:
			// Keep watching; the mtime fallback still covers us.
		}
	}
}

// reloadQuietly reloads but keeps the previous roster on error, so a
// half-written file never empties the registry.
func (r *Registry) reloadQuietly() {
	if err := r.reload(); err != nil {
		return
	}
}

// Agents returns the active agents in the roster. A stale snapshot is
// refreshed from disk first when the file's mtime has moved, covering
// environments where the watcher is unavailable.
func (r *Registry) Agents() []*models.Agent {
	r.mu.RLock()
	modTime := r.modTime
	r.mu.RUnlock()

	if info, err := os.Stat(r.path); err == nil && info.ModTime().After(modTime) {
		r.reloadQuietly()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	active := make([]*models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Active {
			active = append(active, a)
		}
	}
	return active
}

// Get returns the agent with the given ID, or nil if absent or
// inactive.
func (r *Registry) Get(id string) *models.Agent {
	for _, a := range r.Agents() {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Close stops the file watcher.
func (r *Registry) Close() {
	close(r.done)
	if r.watcher != nil {
		r.watcher.Close()
	}
}
