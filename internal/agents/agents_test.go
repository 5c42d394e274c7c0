package agents

import (
	"strings"
	"testing"
	"time"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

func TestCreate_AssignsIDAndDefaults(t *testing.T) {
	dir := t.TempDir()

	meta, err := Create("research-bot", dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(meta.AgentID, "agt_") {
		t.Errorf("agent ID = %q, want agt_ prefix", meta.AgentID)
	}
	if meta.Name != "research-bot" {
		t.Errorf("name = %q", meta.Name)
	}
	if meta.Mandate != "default" {
		t.Errorf("mandate = %q, want default", meta.Mandate)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()

	created, err := Create("alpha", dir)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(created.AgentID, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AgentID != created.AgentID || loaded.Name != "alpha" || loaded.Mandate != "default" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("created_at lost in round trip")
	}
	if d := loaded.CreatedAt.Sub(created.CreatedAt); d > time.Second || d < -time.Second {
		t.Errorf("created_at drifted: %v vs %v", loaded.CreatedAt, created.CreatedAt)
	}
}

func TestLoad_UnknownAgent(t *testing.T) {
	_, err := Load("agt_missing", t.TempDir())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, errors.ErrAgentNotFound) {
		t.Errorf("error = %v, want ErrAgentNotFound", err)
	}
}

func TestList_SortedByID(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gamma", "alpha", "beta"} {
		if _, err := Create(name, dir); err != nil {
			t.Fatal(err)
		}
	}

	agents, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("len = %d, want 3", len(agents))
	}
	for i := 1; i < len(agents); i++ {
		if agents[i-1].AgentID >= agents[i].AgentID {
			t.Errorf("not sorted: %q before %q", agents[i-1].AgentID, agents[i].AgentID)
		}
	}
}

func TestList_EmptyDirIsNotAnError(t *testing.T) {
	agents, err := List(t.TempDir() + "/nonexistent")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 0 {
		t.Errorf("agents = %+v", agents)
	}
}

func TestGetOrCreateDefault(t *testing.T) {
	dir := t.TempDir()

	first, err := GetOrCreateDefault(dir)
	if err != nil {
		t.Fatalf("GetOrCreateDefault: %v", err)
	}
	if first.Name != "default" {
		t.Errorf("name = %q", first.Name)
	}

	// A second call returns the existing agent, not a new one.
	second, err := GetOrCreateDefault(dir)
	if err != nil {
		t.Fatal(err)
	}
	if second.AgentID != first.AgentID {
		t.Errorf("created a duplicate: %q vs %q", second.AgentID, first.AgentID)
	}
}
