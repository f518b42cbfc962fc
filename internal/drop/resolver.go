// Package drop interprets dropped filesystem paths as project actions.
//
// A Resolver is a two-state machine. In Idle, dropping a project folder
// updates or starts that project, and dropping an unknown folder either opens
// a registration (when the folder has a default output file) or stages the
// folder. In AwaitingTarget, the next dropped file completes the staged
// registration. Registrations are explicit handles that the caller confirms
// with a name or cancels.
package drop

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/logging"
	"github.com/gurisko/sentryctl/internal/registry"
)

// Directory is the subset of the project directory the resolver drives.
type Directory interface {
	Refresh(ctx context.Context) ([]registry.Project, error)
	MatchByPath(dir string) (registry.Project, bool)
	FindByName(name string) (registry.Project, bool)
	Toggle(ctx context.Context, key string) (registry.Project, error)
	TriggerManualUpdate(ctx context.Context, uuid string) error
	AddProject(ctx context.Context, name, projectPath, outputFile string) error
	AddTarget(ctx context.Context, uuid, file string) error
}

type State int

const (
	StateIdle State = iota
	StateAwaitingTarget
)

func (s State) String() string {
	if s == StateAwaitingTarget {
		return "awaiting_target"
	}
	return "idle"
}

type OutcomeKind string

const (
	ActionTaken          OutcomeKind = "action_taken"
	StagedAwaitingTarget OutcomeKind = "staged"
	RegistrationPrompted OutcomeKind = "registration_prompted"
	NoOp                 OutcomeKind = "noop"
)

// Outcome reports what a drop did.
type Outcome struct {
	Kind         OutcomeKind       `json:"kind"`
	Description  string            `json:"description"`
	Directory    string            `json:"directory,omitempty"`
	Project      *registry.Project `json:"project,omitempty"`
	Registration *Registration     `json:"registration,omitempty"`
	Consumed     int               `json:"consumed"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Registration is an open request to register a folder as a project.
type Registration struct {
	ID           string   `yaml:"id" json:"id"`
	Directory    string   `yaml:"directory" json:"directory"`
	OutputFile   string   `yaml:"output_file" json:"output_file"`
	ExtraTargets []string `yaml:"extra_targets,omitempty" json:"extra_targets,omitempty"`
	DefaultName  string   `yaml:"default_name" json:"default_name"`
}

// Resolver owns the staged folder and the open registration. It is not safe
// for concurrent use.
type Resolver struct {
	dir     Directory
	opts    Options
	store   *PendingStore
	log     *logging.Logger
	stat    func(string) (fs.FileInfo, error)
	staged  string
	pending *Registration
}

type Option func(*Resolver)

// WithStore persists the pending state after every change.
func WithStore(s *PendingStore) Option {
	return func(r *Resolver) { r.store = s }
}

func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func New(dir Directory, opts Options, options ...Option) *Resolver {
	r := &Resolver{
		dir:  dir,
		opts: opts.withDefaults(),
		stat: os.Stat,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Restore loads the pending state from the store, if one is configured.
func (r *Resolver) Restore() error {
	if r.store == nil {
		return nil
	}
	st, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load pending state: %w", err)
	}
	r.staged = st.Staged
	r.pending = st.Registration
	return nil
}

func (r *Resolver) State() State {
	if r.staged != "" {
		return StateAwaitingTarget
	}
	return StateIdle
}

// Staged returns the staged folder, or "" when Idle.
func (r *Resolver) Staged() string { return r.staged }

// Pending returns the open registration, if any.
func (r *Resolver) Pending() (Registration, bool) {
	if r.pending == nil {
		return Registration{}, false
	}
	return *r.pending, true
}

// Snapshot returns the current pending state.
func (r *Resolver) Snapshot() PendingState {
	st := PendingState{Staged: r.staged}
	if reg, ok := r.Pending(); ok {
		st.Registration = &reg
	}
	return st
}

// Reset clears the staged folder and any open registration.
func (r *Resolver) Reset() {
	r.staged = ""
	r.pending = nil
	r.persist()
}

// Drop resolves one or more dropped paths. A single path goes straight to the
// state machine; several paths are routed into slots first.
func (r *Resolver) Drop(ctx context.Context, paths []string) (Outcome, error) {
	var clean []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	switch len(clean) {
	case 0:
		return Outcome{Kind: NoOp, Description: "nothing was dropped"}, nil
	case 1:
		out, err := r.resolve(ctx, clean[0])
		if err == nil && out.Kind != NoOp {
			out.Consumed = 1
		}
		return out, err
	default:
		return r.batch(ctx, clean)
	}
}

func (r *Resolver) resolve(ctx context.Context, p string) (Outcome, error) {
	info, err := r.stat(p)
	if err != nil {
		return Outcome{Kind: NoOp, Description: fmt.Sprintf("cannot read %s: %v", p, err)}, nil
	}
	if info.IsDir() {
		return r.resolveDir(ctx, p)
	}
	return r.resolveFile(p), nil
}

func (r *Resolver) resolveDir(ctx context.Context, dir string) (Outcome, error) {
	if r.staged != "" {
		prev := r.staged
		r.stage(dir)
		return Outcome{
			Kind:        StagedAwaitingTarget,
			Description: fmt.Sprintf("replaced staged folder %s with %s; drop an output file next", prev, dir),
			Directory:   dir,
		}, nil
	}

	if p, ok := r.dir.MatchByPath(dir); ok {
		return r.actOn(ctx, p)
	}

	if file, ok := r.defaultOutputFile(dir); ok {
		reg := r.open(dir, file, nil)
		return Outcome{
			Kind:         RegistrationPrompted,
			Description:  fmt.Sprintf("register %s with %s", dir, filepath.Base(file)),
			Directory:    dir,
			Registration: &reg,
		}, nil
	}

	r.stage(dir)
	return Outcome{
		Kind:        StagedAwaitingTarget,
		Description: fmt.Sprintf("staged %s; drop an output file next", dir),
		Directory:   dir,
	}, nil
}

// actOn updates a monitoring project or starts a stopped one.
func (r *Resolver) actOn(ctx context.Context, p registry.Project) (Outcome, error) {
	if p.Status == registry.StatusMonitoring {
		if err := r.dir.TriggerManualUpdate(ctx, p.UUID); err != nil {
			return Outcome{}, &ActionError{Action: "manual update " + p.Name, Err: err}
		}
		return Outcome{
			Kind:        ActionTaken,
			Description: "manual update " + p.Name,
			Directory:   p.Path,
			Project:     &p,
		}, nil
	}

	updated, err := r.dir.Toggle(ctx, p.UUID)
	if err != nil {
		return Outcome{}, &ActionError{Action: "start " + p.Name, Err: err}
	}
	return Outcome{
		Kind:        ActionTaken,
		Description: "start " + p.Name,
		Directory:   p.Path,
		Project:     &updated,
	}, nil
}

func (r *Resolver) resolveFile(file string) Outcome {
	if r.staged != "" {
		dir := r.staged
		r.staged = ""
		reg := r.open(dir, file, nil)
		return Outcome{
			Kind:         RegistrationPrompted,
			Description:  fmt.Sprintf("register %s with %s", dir, filepath.Base(file)),
			Directory:    dir,
			Registration: &reg,
		}
	}

	desc := "no folder is staged; drop a project folder first"
	if p, ok := r.dir.MatchByPath(filepath.Dir(file)); ok {
		desc = fmt.Sprintf("%s belongs to project %s; drop the folder to update it", filepath.Base(file), p.Name)
	}
	return Outcome{Kind: NoOp, Description: desc}
}

func (r *Resolver) defaultOutputFile(dir string) (string, bool) {
	for _, name := range r.opts.OutputFiles {
		candidate := filepath.Join(dir, name)
		if info, err := r.stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) stage(dir string) {
	r.staged = dir
	r.persist()
}

// open replaces any outstanding registration with a new one.
func (r *Resolver) open(dir, outputFile string, extras []string) Registration {
	reg := Registration{
		ID:           uuid.NewString(),
		Directory:    dir,
		OutputFile:   outputFile,
		ExtraTargets: extras,
		DefaultName:  filepath.Base(filepath.Clean(dir)),
	}
	if r.pending != nil {
		r.log.Infof("drop: replacing open registration for %s", r.pending.Directory)
	}
	r.pending = &reg
	r.persist()
	return reg
}

// NameConflict reports whether err is the backend rejecting name as taken,
// and returns it as a *NameConflictError suggesting name + "_new".
func (r *Resolver) NameConflict(name string, err error) (*NameConflictError, bool) {
	be, ok := bridge.AsBackendError(err)
	if !ok || !r.opts.isConflict(be.Message) {
		return nil, false
	}
	return &NameConflictError{Name: name, Suggested: name + "_new", Err: err}, true
}

// Confirm registers the pending folder under name. On a name conflict the
// registration stays open and a *NameConflictError is returned; on a
// validation error it also stays open. Any other failure closes it.
func (r *Resolver) Confirm(ctx context.Context, id, name string) (Outcome, error) {
	reg, err := r.lookup(id)
	if err != nil {
		return Outcome{}, err
	}

	name = strings.TrimSpace(name)
	err = r.dir.AddProject(ctx, name, reg.Directory, reg.OutputFile)
	if err != nil {
		if bridge.IsValidation(err) {
			return Outcome{}, err
		}
		if conflict, ok := r.NameConflict(name, err); ok {
			return Outcome{}, conflict
		}
		r.close()
		return Outcome{}, &ActionError{Action: "register " + name, Err: err}
	}
	r.close()

	out := Outcome{
		Kind:        ActionTaken,
		Description: "register " + name,
		Directory:   reg.Directory,
	}
	if _, err := r.dir.Refresh(ctx); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("refresh after register: %v", err))
		return out, nil
	}
	p, ok := r.dir.FindByName(name)
	if !ok {
		if len(reg.ExtraTargets) > 0 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("project %s not listed after register; extra targets skipped", name))
		}
		return out, nil
	}
	for _, target := range reg.ExtraTargets {
		if err := r.dir.AddTarget(ctx, p.UUID, target); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("add target %s: %v", target, err))
		}
	}
	if len(reg.ExtraTargets) > 0 {
		if _, err := r.dir.Refresh(ctx); err == nil {
			p, _ = r.dir.FindByName(name)
		}
	}
	out.Project = &p
	return out, nil
}

// Cancel discards the registration.
func (r *Resolver) Cancel(id string) error {
	if _, err := r.lookup(id); err != nil {
		return err
	}
	r.close()
	return nil
}

func (r *Resolver) lookup(id string) (Registration, error) {
	if r.pending == nil || (id != "" && r.pending.ID != id) {
		return Registration{}, fmt.Errorf("%w: %s", ErrNoRegistration, id)
	}
	return *r.pending, nil
}

func (r *Resolver) close() {
	r.pending = nil
	r.persist()
}

func (r *Resolver) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.Snapshot()); err != nil {
		r.log.Warnf("drop: failed to persist pending state: %v", err)
	}
}

func slotKey(p string) string {
	return path.Clean(bridge.SanitizeArg(p))
}
