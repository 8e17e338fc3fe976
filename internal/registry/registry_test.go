package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

const testRoster = `agents:
  - id: backend-1
    tier: standard
    domain_tags: [backend, devops]
  - id: frontend-1
    tier: cheap
    domain_tags: [frontend]
    model: claude-haiku
  - id: retired-1
    tier: deep
    domain_tags: [backend]
    active: false
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write roster: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeRoster(t, testRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	defer r.Close()

	agents := r.Agents()
	if len(agents) != 2 {
		t.Fatalf("len(Agents()) = %d, want 2 (retired agent excluded)", len(agents))
	}
	if agents[0].ID != "backend-1" {
		t.Errorf("agents[0].ID = %q, want backend-1", agents[0].ID)
	}
	if agents[0].Tier != models.TierStandard {
		t.Errorf("agents[0].Tier = %s, want standard", agents[0].Tier)
	}
	if !agents[0].HasTag("devops") {
		t.Error("agents[0].HasTag(devops) = false, want true")
	}
	if agents[1].Model != "claude-haiku" {
		t.Errorf("agents[1].Model = %q, want claude-haiku", agents[1].Model)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeRoster(t, `agents:
  - id: a1
    tier: cheap
  - id: a1
    tier: deep
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want duplicate id error")
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := writeRoster(t, `agents:
  - id: a1
    tier: colossal
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want unknown tier error")
	}
}

func TestGet(t *testing.T) {
	path := writeRoster(t, testRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	defer r.Close()

	if got := r.Get("backend-1"); got == nil {
		t.Error("Get(backend-1) = nil, want agent")
	}
	if got := r.Get("retired-1"); got != nil {
		t.Errorf("Get(retired-1) = %v, want nil for inactive agent", got)
	}
	if got := r.Get("nope"); got != nil {
		t.Errorf("Get(nope) = %v, want nil", got)
	}
}

func TestReloadOnEdit(t *testing.T) {
	path := writeRoster(t, testRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	defer r.Close()

	updated := testRoster + `  - id: security-1
    tier: deep
    domain_tags: [security]
`
	// Backdate then rewrite so the mtime check fires even on coarse
	// filesystem clocks.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
	r.reloadQuietly()
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to rewrite roster: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.Agents()) == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := r.Get("security-1"); got == nil {
		t.Error("Get(security-1) = nil after edit, want agent")
	}
}

func TestBadEditKeepsPreviousRoster(t *testing.T) {
	path := writeRoster(t, testRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	defer r.Close()

	if err := os.WriteFile(path, []byte(":: not yaml ["), 0644); err != nil {
		t.Fatalf("failed to rewrite roster: %v", err)
	}
	// Give the watcher a moment to observe the bad write.
	time.Sleep(100 * time.Millisecond)

	if len(r.Agents()) != 2 {
		t.Errorf("len(Agents()) = %d after bad edit, want 2 (previous roster kept)", len(r.Agents()))
	}
}

func TestEmptyEditKeepsPreviousRoster(t *testing.T) {
	// Valid YAML with no agents is as dangerous as a parse error: a
	// truncated file must not empty the rotation.
	path := writeRoster(t, testRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	defer r.Close()

	if err := os.WriteFile(path, []byte("agents: []\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite roster: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if len(r.Agents()) != 2 {
		t.Errorf("len(Agents()) = %d after empty edit, want 2 (previous roster kept)", len(r.Agents()))
	}
}

func TestLoadRejectsEmptyRoster(t *testing.T) {
	path := writeRoster(t, "agents: []\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil for empty roster, want error")
	}
}
