package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gurisko/sentryctl/internal/bridge/bridgetest"
	"github.com/gurisko/sentryctl/internal/config"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/registry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SENTRYCTL_STATE_DIR", t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Backend.Args = nil
	cfg.Toggle.SettleDelay = time.Millisecond
	cfg.Toggle.SettleAttempts = 1
	return cfg
}

func TestApp_ToggleLoadsCacheOnDemand(t *testing.T) {
	r := bridgetest.New().On(registry.CmdListProjects,
		bridgetest.JSON(`[{"uuid":"a1","name":"Proj","status":"running","path":"/p"}]`),
		bridgetest.JSON(`[{"uuid":"a1","name":"Proj","status":"stopped","path":"/p"}]`))
	a, err := New(testConfig(t), nil, WithRunner(r), WithoutJournal())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p, err := a.ToggleProject(context.Background(), "Proj")
	if err != nil {
		t.Fatalf("ToggleProject: %v", err)
	}
	if p.Status != registry.StatusStopped {
		t.Errorf("Expected stopped, got %q", p.Status)
	}
	if r.Count(registry.CmdStopSentry) != 1 {
		t.Errorf("Expected one stop_sentry call")
	}
}

func TestApp_ResolveProjectNotFound(t *testing.T) {
	r := bridgetest.New().On(registry.CmdListProjects, bridgetest.JSON(`[]`))
	a, _ := New(testConfig(t), nil, WithRunner(r), WithoutJournal())

	if _, err := a.ResolveProject(context.Background(), "ghost"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestApp_DropStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	y := filepath.Join(t.TempDir(), "y")
	if err := os.Mkdir(y, 0o755); err != nil {
		t.Fatal(err)
	}
	notes := filepath.Join(y, "notes.md")
	if err := os.WriteFile(notes, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := bridgetest.New().On(registry.CmdListProjects, bridgetest.JSON(`[]`))
	first, _ := New(cfg, nil, WithRunner(r), WithoutJournal(), WithPendingStore())
	out, err := first.ResolveDrop(context.Background(), []string{y})
	if err != nil || out.Kind != drop.StagedAwaitingTarget {
		t.Fatalf("Expected staged, got %+v %v", out, err)
	}

	second, _ := New(cfg, nil, WithRunner(r), WithoutJournal(), WithPendingStore())
	out, err = second.ResolveDrop(context.Background(), []string{notes})
	if err != nil {
		t.Fatalf("ResolveDrop: %v", err)
	}
	if out.Kind != drop.RegistrationPrompted || out.Registration.Directory != y {
		t.Errorf("Expected registration for %s, got %+v", y, out)
	}
}

func TestApp_JournalRecordsInvocations(t *testing.T) {
	r := bridgetest.New().On(registry.CmdListProjects, bridgetest.JSON(`[]`))
	a, err := New(testConfig(t), nil, WithRunner(r))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()
	if a.Journal == nil {
		t.Fatal("Expected journal to be open")
	}

	if _, err := a.RefreshProjects(context.Background()); err != nil {
		t.Fatalf("RefreshProjects: %v", err)
	}
	entries, err := a.Journal.Recent(context.Background(), 10, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Command != registry.CmdListProjects {
		t.Errorf("Expected one list_projects entry, got %+v", entries)
	}
}
