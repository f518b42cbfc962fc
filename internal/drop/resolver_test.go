package drop

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/bridge/bridgetest"
	"github.com/gurisko/sentryctl/internal/registry"
)

type backendProject struct {
	UUID       string   `json:"uuid"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Path       string   `json:"path"`
	OutputFile []string `json:"output_file,omitempty"`
}

func listJSON(t *testing.T, projects ...backendProject) bridgetest.Response {
	t.Helper()
	if projects == nil {
		projects = []backendProject{}
	}
	data, err := json.Marshal(projects)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bridgetest.JSON(string(data))
}

// setup returns a resolver over a refreshed directory.
func setup(t *testing.T, r *bridgetest.Runner, opts ...Option) *Resolver {
	t.Helper()
	dir := registry.New(bridge.New(bridge.Config{Interpreter: "python"}, r),
		registry.WithSettle(time.Millisecond, 1),
		registry.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if _, err := dir.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return New(dir, DefaultOptions(), opts...)
}

func mkdir(t *testing.T, parent, name string) string {
	t.Helper()
	p := filepath.Join(parent, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return p
}

func touch(t *testing.T, parent, name string) string {
	t.Helper()
	p := filepath.Join(parent, name)
	if err := os.WriteFile(p, []byte("# notes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDrop_FolderWithDefaultFilePromptsRegistration(t *testing.T) {
	x := mkdir(t, t.TempDir(), "x")
	touch(t, x, "README.md")
	res := setup(t, bridgetest.New().On(registry.CmdListProjects, listJSON(t)))

	out, err := res.Drop(context.Background(), []string{x})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != RegistrationPrompted {
		t.Fatalf("Expected %q, got %q", RegistrationPrompted, out.Kind)
	}
	if out.Registration.OutputFile != filepath.Join(x, "README.md") {
		t.Errorf("Expected output file %s, got %s", filepath.Join(x, "README.md"), out.Registration.OutputFile)
	}
	if out.Registration.DefaultName != "x" {
		t.Errorf("Expected default name %q, got %q", "x", out.Registration.DefaultName)
	}
	if res.State() != StateIdle {
		t.Errorf("Expected state idle, got %v", res.State())
	}
	if out.Consumed != 1 {
		t.Errorf("Expected 1 consumed, got %d", out.Consumed)
	}
}

func TestDrop_DefaultFileOrder(t *testing.T) {
	x := mkdir(t, t.TempDir(), "x")
	touch(t, x, "index.md")
	touch(t, x, "readme.md")
	mkdir(t, x, "INDEX.md") // directories never count
	res := setup(t, bridgetest.New())

	out, err := res.Drop(context.Background(), []string{x})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if got := filepath.Base(out.Registration.OutputFile); got != "readme.md" {
		t.Errorf("Expected readme.md to win, got %s", got)
	}
}

func TestDrop_StageThenFileRegisters(t *testing.T) {
	y := mkdir(t, t.TempDir(), "y")
	notes := touch(t, y, "notes.md")
	r := bridgetest.New().On(registry.CmdListProjects, listJSON(t))
	res := setup(t, r)

	out, err := res.Drop(context.Background(), []string{y})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != StagedAwaitingTarget {
		t.Fatalf("Expected staged, got %q", out.Kind)
	}
	if res.State() != StateAwaitingTarget || res.Staged() != y {
		t.Fatalf("Expected AwaitingTarget(%s), got %v(%s)", y, res.State(), res.Staged())
	}

	out, err = res.Drop(context.Background(), []string{notes})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != RegistrationPrompted {
		t.Fatalf("Expected registration prompt, got %q", out.Kind)
	}
	if res.State() != StateIdle {
		t.Errorf("Expected idle after file drop, got %v", res.State())
	}

	if _, err := res.Confirm(context.Background(), out.Registration.ID, "Notes"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	calls := r.CallsTo(registry.CmdAddProject)
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 add_project, got %d", len(calls))
	}
	if !reflect.DeepEqual(calls[0].Args, []string{"Notes", y, notes}) {
		t.Errorf("Unexpected add_project args %v", calls[0].Args)
	}
	if _, ok := res.Pending(); ok {
		t.Error("Expected registration to be closed")
	}
}

func TestDrop_SecondFolderReplacesStaged(t *testing.T) {
	root := t.TempDir()
	a := mkdir(t, root, "a")
	b := mkdir(t, root, "b")
	res := setup(t, bridgetest.New())

	if _, err := res.Drop(context.Background(), []string{a}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	out, err := res.Drop(context.Background(), []string{b})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != StagedAwaitingTarget || res.Staged() != b {
		t.Errorf("Expected %s to replace staged folder, got %q staged=%s", b, out.Kind, res.Staged())
	}
}

func TestDrop_KnownFolderActions(t *testing.T) {
	root := t.TempDir()
	live := mkdir(t, root, "live")
	idle := mkdir(t, root, "idle")

	r := bridgetest.New().On(registry.CmdListProjects,
		listJSON(t,
			backendProject{UUID: "a1", Name: "Live", Status: "running", Path: live},
			backendProject{UUID: "b2", Name: "Idle", Status: "stopped", Path: idle},
		))
	res := setup(t, r)

	out, err := res.Drop(context.Background(), []string{live + "/"})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != ActionTaken || out.Description != "manual update Live" {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if n := r.Count(registry.CmdManualUpdate); n != 1 {
		t.Errorf("Expected 1 manual_update, got %d", n)
	}

	out, err = res.Drop(context.Background(), []string{idle})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != ActionTaken || out.Description != "start Idle" {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if got := r.CallsTo(registry.CmdStartSentry); len(got) != 1 || got[0].Args[0] != "b2" {
		t.Errorf("Expected start_sentry b2, got %+v", got)
	}
	if res.State() != StateIdle {
		t.Errorf("Expected idle, got %v", res.State())
	}
}

func TestDrop_ActionFailureIsLabeled(t *testing.T) {
	live := mkdir(t, t.TempDir(), "live")
	r := bridgetest.New().
		On(registry.CmdListProjects, listJSON(t, backendProject{UUID: "a1", Name: "Live", Status: "running", Path: live})).
		On(registry.CmdManualUpdate, bridgetest.Fail("watcher crashed"))
	res := setup(t, r)

	_, err := res.Drop(context.Background(), []string{live})
	var ae *ActionError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected ActionError, got %v", err)
	}
	if ae.Action != "manual update Live" {
		t.Errorf("Expected label %q, got %q", "manual update Live", ae.Action)
	}
	if be, ok := bridge.AsBackendError(err); !ok || be.Message != "watcher crashed" {
		t.Errorf("Expected backend message preserved, got %v", err)
	}
	if res.State() != StateIdle {
		t.Errorf("Expected failure not to stage, got %v", res.State())
	}
}

func TestDrop_FileWhileIdleIsNoOp(t *testing.T) {
	f := touch(t, t.TempDir(), "stray.md")
	r := bridgetest.New()
	res := setup(t, r)
	r.Reset()

	out, err := res.Drop(context.Background(), []string{f})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != NoOp {
		t.Errorf("Expected noop, got %q", out.Kind)
	}
	if out.Consumed != 0 {
		t.Errorf("Expected nothing consumed, got %d", out.Consumed)
	}
	if n := len(r.Calls()); n != 0 {
		t.Errorf("Expected no backend calls, got %d", n)
	}
}

func TestDrop_MissingPathIsNoOp(t *testing.T) {
	res := setup(t, bridgetest.New())
	out, err := res.Drop(context.Background(), []string{filepath.Join(t.TempDir(), "gone")})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != NoOp {
		t.Errorf("Expected noop, got %q", out.Kind)
	}
	if out.Consumed != 0 {
		t.Errorf("Expected nothing consumed, got %d", out.Consumed)
	}
}

func TestBatch_DuplicateSuppression(t *testing.T) {
	root := t.TempDir()
	proj := mkdir(t, root, "proj")
	f := touch(t, root, "out.md")
	res := setup(t, bridgetest.New())

	out, err := res.Drop(context.Background(), []string{proj, proj + "/", f, f})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Consumed != 2 {
		t.Errorf("Expected 2 consumed paths, got %d", out.Consumed)
	}
	if out.Kind != RegistrationPrompted {
		t.Fatalf("Expected registration prompt, got %q", out.Kind)
	}
	if out.Registration.OutputFile != f || len(out.Registration.ExtraTargets) != 0 {
		t.Errorf("Expected single target %s, got %+v", f, out.Registration)
	}
}

func TestBatch_TargetSlotsAndExtensions(t *testing.T) {
	root := t.TempDir()
	proj := mkdir(t, root, "proj")
	other := mkdir(t, root, "other")
	a := touch(t, root, "a.md")
	b := touch(t, root, "b.TXT")
	img := touch(t, root, "c.png")
	c := touch(t, root, "c.log")
	d := touch(t, root, "d.markdown")
	res := setup(t, bridgetest.New())

	out, err := res.Drop(context.Background(), []string{a, proj, b, img, other, c, d})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Consumed != 4 {
		t.Errorf("Expected folder + 3 targets consumed, got %d", out.Consumed)
	}
	reg := out.Registration
	if reg == nil || reg.Directory != proj {
		t.Fatalf("Expected registration for %s, got %+v", proj, reg)
	}
	if reg.OutputFile != a || !reflect.DeepEqual(reg.ExtraTargets, []string{b, c}) {
		t.Errorf("Unexpected slots: output=%s extras=%v", reg.OutputFile, reg.ExtraTargets)
	}
	if len(out.Warnings) != 3 {
		t.Errorf("Expected 3 skip warnings, got %v", out.Warnings)
	}
}

func TestBatch_TargetsCompleteStagedFolder(t *testing.T) {
	root := t.TempDir()
	y := mkdir(t, root, "y")
	a := touch(t, y, "a.md")
	b := touch(t, y, "b.md")
	res := setup(t, bridgetest.New())

	if _, err := res.Drop(context.Background(), []string{y}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	out, err := res.Drop(context.Background(), []string{y, a, b})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != RegistrationPrompted || out.Registration.Directory != y {
		t.Fatalf("Expected registration for staged %s, got %+v", y, out)
	}
	if out.Consumed != 2 {
		t.Errorf("Expected staged folder to be skipped, got %d consumed", out.Consumed)
	}
	if res.State() != StateIdle {
		t.Errorf("Expected idle, got %v", res.State())
	}
}

func TestBatch_TargetsOnlyWhileIdleIsNoOp(t *testing.T) {
	root := t.TempDir()
	res := setup(t, bridgetest.New())
	out, err := res.Drop(context.Background(), []string{touch(t, root, "a.md"), touch(t, root, "b.md")})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != NoOp {
		t.Errorf("Expected noop, got %q", out.Kind)
	}
	if out.Consumed != 0 {
		t.Errorf("Expected nothing consumed, got %d", out.Consumed)
	}
}

func TestBatch_KnownFolderAddsTargets(t *testing.T) {
	root := t.TempDir()
	live := mkdir(t, root, "live")
	a := touch(t, root, "a.md")
	b := touch(t, root, "b.md")
	r := bridgetest.New().On(registry.CmdListProjects,
		listJSON(t, backendProject{UUID: "a1", Name: "Live", Status: "running", Path: live}))
	res := setup(t, r)

	out, err := res.Drop(context.Background(), []string{live, a, b})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if out.Kind != ActionTaken {
		t.Errorf("Expected action taken, got %q", out.Kind)
	}
	calls := r.CallsTo(registry.CmdAddTarget)
	if len(calls) != 2 || calls[0].Args[1] != a || calls[1].Args[1] != b {
		t.Errorf("Unexpected add_target calls %+v", calls)
	}
}

func TestConfirm_NameConflictKeepsRegistrationOpen(t *testing.T) {
	x := mkdir(t, t.TempDir(), "x")
	touch(t, x, "README.md")
	r := bridgetest.New().
		On(registry.CmdListProjects, listJSON(t)).
		On(registry.CmdAddProject, bridgetest.Fail("錯誤：專案名稱 'X' 已被佔用"), bridgetest.JSON("ok"))
	res := setup(t, r)

	out, err := res.Drop(context.Background(), []string{x})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	id := out.Registration.ID

	_, err = res.Confirm(context.Background(), id, "X")
	var conflict *NameConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected NameConflictError, got %v", err)
	}
	if conflict.Suggested != "X_new" {
		t.Errorf("Expected suggestion X_new, got %q", conflict.Suggested)
	}
	if _, ok := res.Pending(); !ok {
		t.Fatal("Expected registration to stay open")
	}

	if _, err := res.Confirm(context.Background(), id, conflict.Suggested); err != nil {
		t.Fatalf("Confirm retry failed: %v", err)
	}
	if _, ok := res.Pending(); ok {
		t.Error("Expected registration closed after success")
	}
}

func TestConfirm_OtherFailureClosesRegistration(t *testing.T) {
	x := mkdir(t, t.TempDir(), "x")
	touch(t, x, "README.md")
	r := bridgetest.New().On(registry.CmdAddProject, bridgetest.Fail("disk full"))
	res := setup(t, r)

	out, _ := res.Drop(context.Background(), []string{x})
	_, err := res.Confirm(context.Background(), out.Registration.ID, "X")
	var ae *ActionError
	if !errors.As(err, &ae) || ae.Action != "register X" {
		t.Fatalf("Expected labeled register failure, got %v", err)
	}
	if _, ok := res.Pending(); ok {
		t.Error("Expected registration closed")
	}
	if _, err := res.Confirm(context.Background(), out.Registration.ID, "X"); !errors.Is(err, ErrNoRegistration) {
		t.Errorf("Expected ErrNoRegistration, got %v", err)
	}
}

func TestConfirm_AddsExtraTargets(t *testing.T) {
	root := t.TempDir()
	proj := mkdir(t, root, "proj")
	a := touch(t, root, "a.md")
	b := touch(t, root, "b.md")
	r := bridgetest.New().On(registry.CmdListProjects,
		listJSON(t),
		listJSON(t, backendProject{UUID: "n1", Name: "Proj", Status: "running", Path: proj}))
	res := setup(t, r)

	out, err := res.Drop(context.Background(), []string{proj, a, b})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	done, err := res.Confirm(context.Background(), out.Registration.ID, "Proj")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	calls := r.CallsTo(registry.CmdAddTarget)
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].Args, []string{"n1", b}) {
		t.Errorf("Expected add_target n1 %s, got %+v", b, calls)
	}
	if done.Project == nil || done.Project.UUID != "n1" {
		t.Errorf("Expected registered project in outcome, got %+v", done.Project)
	}
}

func TestCancel(t *testing.T) {
	x := mkdir(t, t.TempDir(), "x")
	touch(t, x, "index.md")
	res := setup(t, bridgetest.New())

	out, _ := res.Drop(context.Background(), []string{x})
	if err := res.Cancel("other-id"); !errors.Is(err, ErrNoRegistration) {
		t.Errorf("Expected ErrNoRegistration for wrong id, got %v", err)
	}
	if err := res.Cancel(out.Registration.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, ok := res.Pending(); ok {
		t.Error("Expected no pending registration")
	}
}

func TestStore_SharesStateAcrossResolvers(t *testing.T) {
	root := t.TempDir()
	y := mkdir(t, root, "y")
	store := NewPendingStore(filepath.Join(root, "state", "pending.yaml"))

	first := setup(t, bridgetest.New(), WithStore(store))
	if _, err := first.Drop(context.Background(), []string{y}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	second := setup(t, bridgetest.New(), WithStore(store))
	if err := second.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if second.State() != StateAwaitingTarget || second.Staged() != y {
		t.Errorf("Expected restored AwaitingTarget(%s), got %v(%s)", y, second.State(), second.Staged())
	}

	second.Reset()
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Staged != "" || st.Registration != nil {
		t.Errorf("Expected empty state after reset, got %+v", st)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	st, err := NewPendingStore(filepath.Join(t.TempDir(), "none.yaml")).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Staged != "" || st.Registration != nil {
		t.Errorf("Expected empty state, got %+v", st)
	}
}
