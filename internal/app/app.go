// Package app wires the command bridge, project directory, drop resolver and
// journal together. An App is built once per process and handed to the CLI
// commands or the session daemon.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/config"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/journal"
	"github.com/gurisko/sentryctl/internal/logging"
	"github.com/gurisko/sentryctl/internal/registry"
)

// App is not safe for concurrent use; the session daemon serializes calls.
type App struct {
	Config   *config.Config
	Log      *logging.Logger
	Bridge   *bridge.Bridge
	Projects *registry.Directory
	Drops    *drop.Resolver
	Journal  *journal.Journal // nil when journaling is disabled
}

type options struct {
	runner     bridge.Runner
	noJournal  bool
	persistent bool
}

type Option func(*options)

// WithRunner replaces process execution, e.g. with a scripted runner in tests.
func WithRunner(r bridge.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithoutJournal skips opening the invocation journal.
func WithoutJournal() Option {
	return func(o *options) { o.noJournal = true }
}

// WithPendingStore persists the drop state in the configured state directory.
func WithPendingStore() Option {
	return func(o *options) { o.persistent = true }
}

// New builds an App from configuration.
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log}

	bridgeOpts := []bridge.Option{bridge.WithLogger(log)}
	if cfg.Journal.Enabled && !o.noJournal {
		j, err := journal.Open(cfg.JournalPath(), log)
		if err != nil {
			log.Warnf("journal disabled: %v", err)
		} else {
			a.Journal = j
			bridgeOpts = append(bridgeOpts, bridge.WithObserver(j))
		}
	}

	a.Bridge = bridge.New(cfg.BridgeConfig(), o.runner, bridgeOpts...)
	a.Projects = registry.New(a.Bridge,
		registry.WithSettle(cfg.Toggle.SettleDelay, cfg.Toggle.SettleAttempts),
		registry.WithLogger(log),
	)

	dropOpts := []drop.Option{drop.WithLogger(log)}
	if o.persistent {
		dropOpts = append(dropOpts, drop.WithStore(drop.NewPendingStore(cfg.PendingPath())))
	}
	a.Drops = drop.New(a.Projects, cfg.DropOptions(), dropOpts...)
	if err := a.Drops.Restore(); err != nil {
		log.Warnf("starting with empty drop state: %v", err)
	}
	return a, nil
}

func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

func (a *App) RefreshProjects(ctx context.Context) ([]registry.Project, error) {
	return a.Projects.Refresh(ctx)
}

// ensureLoaded refreshes an empty cache so one-shot commands can use keys.
func (a *App) ensureLoaded(ctx context.Context) error {
	if len(a.Projects.Projects()) > 0 {
		return nil
	}
	if _, err := a.Projects.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	return nil
}

// AddProject registers a project folder and returns it from the refreshed
// cache, or nil when the backend does not list it yet. A taken name comes
// back as a *drop.NameConflictError.
func (a *App) AddProject(ctx context.Context, name, path, outputFile string) (*registry.Project, error) {
	name = strings.TrimSpace(name)
	if err := a.Projects.AddProject(ctx, name, path, outputFile); err != nil {
		if conflict, ok := a.Drops.NameConflict(name, err); ok {
			return nil, conflict
		}
		return nil, err
	}
	if _, err := a.Projects.Refresh(ctx); err != nil {
		return nil, err
	}
	if p, ok := a.Projects.FindByName(name); ok {
		return &p, nil
	}
	return nil, nil
}

// ToggleProject starts or stops the project named by key (uuid or name).
func (a *App) ToggleProject(ctx context.Context, key string) (registry.Project, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return registry.Project{}, err
	}
	return a.Projects.Toggle(ctx, key)
}

// ResolveDrop refreshes the cache so path matching sees current projects,
// then resolves the drop.
func (a *App) ResolveDrop(ctx context.Context, paths []string) (drop.Outcome, error) {
	if _, err := a.Projects.Refresh(ctx); err != nil {
		return drop.Outcome{}, fmt.Errorf("failed to list projects: %w", err)
	}
	return a.Drops.Drop(ctx, paths)
}

// Stats refreshes the cache and counts projects.
func (a *App) Stats(ctx context.Context) (registry.Stats, error) {
	if _, err := a.Projects.Refresh(ctx); err != nil {
		return registry.Stats{}, err
	}
	return a.Projects.Stats(), nil
}

// ResolveProject finds a project by uuid or name, refreshing if needed.
func (a *App) ResolveProject(ctx context.Context, key string) (registry.Project, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return registry.Project{}, err
	}
	p, ok := a.Projects.Resolve(key)
	if !ok {
		return registry.Project{}, fmt.Errorf("%w: %s", registry.ErrNotFound, key)
	}
	return p, nil
}
