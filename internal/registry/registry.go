// Package registry keeps an in-memory directory of backend projects and
// delegates every mutation to the backend through the command bridge.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/logging"
)

var (
	// ErrNotFound indicates no cached project matches the key
	ErrNotFound = errors.New("project not found")
	// ErrUnknownField indicates EditProject was asked to change an unsupported field
	ErrUnknownField = errors.New("unknown project field")
)

const (
	DefaultSettleDelay    = 1500 * time.Millisecond
	DefaultSettleAttempts = 3
)

// Executor runs one backend command. *bridge.Bridge implements it.
type Executor interface {
	Execute(ctx context.Context, command string, args ...string) (bridge.Result, error)
}

// Directory caches the backend project list. It is not safe for concurrent
// use; hosts serialize access.
type Directory struct {
	exec           Executor
	projects       []Project
	settleDelay    time.Duration
	settleAttempts int
	sleep          func(context.Context, time.Duration) error
	log            *logging.Logger
}

type Option func(*Directory)

// WithSettle sets how long Toggle waits between refreshes and how many
// refreshes it performs at most.
func WithSettle(delay time.Duration, attempts int) Option {
	return func(d *Directory) {
		d.settleDelay = delay
		if attempts > 0 {
			d.settleAttempts = attempts
		}
	}
}

// WithSleep replaces the wait used by Toggle.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(d *Directory) { d.sleep = sleep }
}

func WithLogger(l *logging.Logger) Option {
	return func(d *Directory) { d.log = l }
}

// New creates an empty Directory. Call Refresh to populate it.
func New(exec Executor, opts ...Option) *Directory {
	d := &Directory{
		exec:           exec,
		projects:       []Project{},
		settleDelay:    DefaultSettleDelay,
		settleAttempts: DefaultSettleAttempts,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Refresh replaces the cache with the backend's current project list.
// On failure the previous cache is kept.
func (d *Directory) Refresh(ctx context.Context) ([]Project, error) {
	res, err := d.exec.Execute(ctx, CmdListProjects)
	if err != nil {
		return nil, err
	}
	d.projects = parseProjects(res)
	d.log.Debugf("registry: refreshed %d project(s)", len(d.projects))
	return d.Projects(), nil
}

// Projects returns a copy of the cache in backend order.
func (d *Directory) Projects() []Project {
	out := make([]Project, len(d.projects))
	copy(out, d.projects)
	return out
}

func (d *Directory) FindByUUID(uuid string) (Project, bool) {
	for _, p := range d.projects {
		if p.UUID == uuid {
			return p, true
		}
	}
	return Project{}, false
}

func (d *Directory) FindByName(name string) (Project, bool) {
	for _, p := range d.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Resolve looks key up as a uuid first, then as a name.
func (d *Directory) Resolve(key string) (Project, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Project{}, false
	}
	if p, ok := d.FindByUUID(key); ok {
		return p, true
	}
	return d.FindByName(key)
}

// MatchByPath finds the project whose folder is dir.
func (d *Directory) MatchByPath(dir string) (Project, bool) {
	want := normalizePath(dir)
	if want == "" {
		return Project{}, false
	}
	for _, p := range d.projects {
		if normalizePath(p.Path) == want {
			return p, true
		}
	}
	return Project{}, false
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(bridge.SanitizeArg(p))
}

// Toggle stops a monitoring project or starts a stopped one, then polls the
// backend until the status changes or the attempts run out. The returned
// project is the latest one read.
func (d *Directory) Toggle(ctx context.Context, key string) (Project, error) {
	before, ok := d.Resolve(key)
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	cmd := CmdStartSentry
	if before.Status == StatusMonitoring {
		cmd = CmdStopSentry
	}
	if _, err := d.exec.Execute(ctx, cmd, before.UUID); err != nil {
		return Project{}, err
	}

	var (
		current Project
		found   bool
	)
	for attempt := 1; attempt <= d.settleAttempts; attempt++ {
		if err := d.sleep(ctx, d.settleDelay); err != nil {
			return Project{}, err
		}
		if _, err := d.Refresh(ctx); err != nil {
			return Project{}, fmt.Errorf("refresh after %s: %w", cmd, err)
		}
		current, found = d.FindByUUID(before.UUID)
		if !found || current.Status != before.Status {
			break
		}
		d.log.Debugf("registry: %s still %s after attempt %d", before.Name, current.Status, attempt)
	}
	if !found {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, before.UUID)
	}
	return current, nil
}

// AddProject registers a new project with the backend. The cache is not
// touched; call Refresh to see the new project.
func (d *Directory) AddProject(ctx context.Context, name, projectPath, outputFile string) error {
	name, err := bridge.Require("name", name)
	if err != nil {
		return err
	}
	projectPath, err = bridge.Require("path", projectPath)
	if err != nil {
		return err
	}
	outputFile, err = bridge.Require("output_file", outputFile)
	if err != nil {
		return err
	}
	_, err = d.exec.Execute(ctx, CmdAddProject, name, projectPath, outputFile)
	return err
}

// AddTarget adds another watched output file to a project.
func (d *Directory) AddTarget(ctx context.Context, uuid, file string) error {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return err
	}
	file, err = bridge.Require("path", file)
	if err != nil {
		return err
	}
	_, err = d.exec.Execute(ctx, CmdAddTarget, uuid, file)
	return err
}

// RemoveTarget detaches a watched output file from a project.
func (d *Directory) RemoveTarget(ctx context.Context, uuid, file string) error {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return err
	}
	file, err = bridge.Require("path", file)
	if err != nil {
		return err
	}
	_, err = d.exec.Execute(ctx, CmdRemoveTarget, uuid, file)
	return err
}

func (d *Directory) DeleteProject(ctx context.Context, uuid string) error {
	return d.simple(ctx, CmdDeleteProject, uuid)
}

// DeleteProjects deletes each project in turn and reports every failure.
func (d *Directory) DeleteProjects(ctx context.Context, uuids []string) error {
	var errs []error
	for _, id := range uuids {
		if err := d.DeleteProject(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// EditProject changes one of name, path or output_file.
func (d *Directory) EditProject(ctx context.Context, uuid, fieldName, value string) error {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return err
	}
	fieldName, err = bridge.Require("field", fieldName)
	if err != nil {
		return err
	}
	if !editableFields[fieldName] {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldName)
	}
	value, err = bridge.Require("value", value)
	if err != nil {
		return err
	}
	_, err = d.exec.Execute(ctx, CmdEditProject, uuid, fieldName, value)
	return err
}

func (d *Directory) TriggerManualUpdate(ctx context.Context, uuid string) error {
	return d.simple(ctx, CmdManualUpdate, uuid)
}

func (d *Directory) ListIgnoreCandidates(ctx context.Context, uuid string) ([]string, error) {
	return d.list(ctx, CmdListIgnoreCandidates, uuid)
}

func (d *Directory) ListIgnorePatterns(ctx context.Context, uuid string) ([]string, error) {
	return d.list(ctx, CmdListIgnorePatterns, uuid)
}

// UpdateIgnorePatterns replaces the ignore patterns of a project. An empty
// slice clears them.
func (d *Directory) UpdateIgnorePatterns(ctx context.Context, uuid string, patterns []string) error {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return err
	}
	args := append([]string{uuid}, patterns...)
	_, err = d.exec.Execute(ctx, CmdUpdateIgnorePatterns, args...)
	return err
}

// Stats counts cached projects for the tray tooltip. A silent project counts
// as silent whatever its status; otherwise monitoring projects are counted.
func (d *Directory) Stats() Stats {
	var s Stats
	for _, p := range d.projects {
		switch {
		case p.Mode == ModeSilent:
			s.Silent++
		case p.Status == StatusMonitoring:
			s.Monitoring++
		}
	}
	return s
}

func (d *Directory) simple(ctx context.Context, cmd, uuid string) error {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return err
	}
	_, err = d.exec.Execute(ctx, cmd, uuid)
	return err
}

func (d *Directory) list(ctx context.Context, cmd, uuid string) ([]string, error) {
	uuid, err := bridge.Require("uuid", uuid)
	if err != nil {
		return nil, err
	}
	res, err := d.exec.Execute(ctx, cmd, uuid)
	if err != nil {
		return nil, err
	}
	return res.Strings(), nil
}
