//go:build unix

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/apiclient"
	"github.com/gurisko/sentryctl/internal/app"
	"github.com/gurisko/sentryctl/internal/daemon"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/registry"
)

// session is what the commands need from sentryctl. It is served either by an
// in-process App or by a running session daemon.
type session interface {
	drop.Registrar

	ListProjects(ctx context.Context) ([]registry.Project, error)
	AddProject(ctx context.Context, name, path, outputFile string) (*registry.Project, error)
	DeleteProject(ctx context.Context, key string) error
	EditProject(ctx context.Context, key, field, value string) error
	ToggleProject(ctx context.Context, key string) (registry.Project, error)
	UpdateProject(ctx context.Context, key string) error
	IgnoreInfo(ctx context.Context, key string) (candidates, patterns []string, err error)
	SetIgnorePatterns(ctx context.Context, key string, patterns []string) error
	AddTarget(ctx context.Context, key, file string) error
	RemoveTarget(ctx context.Context, key, file string) error
	Stats(ctx context.Context) (registry.Stats, error)

	Drop(ctx context.Context, paths []string) (drop.Outcome, error)
	Pending(ctx context.Context) (daemon.PendingResponse, error)
	ResetDrops(ctx context.Context) error

	Remote() bool
	Close() error
}

var noSession bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&noSession, "no-session", false, "run in-process even if a session daemon is running")
}

// openSession connects to the session daemon when one answers, and otherwise
// builds an in-process App whose drop state persists in the state directory.
func openSession(cmd *cobra.Command) (session, error) {
	if !noSession {
		d := daemon.New(&daemon.Config{SocketPath: cfg.Session.Socket, PIDFile: cfg.Session.PIDFile}, nil, logger)
		if d.IsRunning() {
			logger.Debugf("using session daemon at %s", cfg.Session.Socket)
			return &remoteSession{c: apiclient.New(cfg.Session.Socket)}, nil
		}
	}
	a, err := app.New(cfg, logger, app.WithPendingStore())
	if err != nil {
		return nil, err
	}
	return &localSession{a: a}, nil
}

type localSession struct {
	a *app.App
}

func (s *localSession) Remote() bool { return false }
func (s *localSession) Close() error { return s.a.Close() }

func (s *localSession) ListProjects(ctx context.Context) ([]registry.Project, error) {
	return s.a.RefreshProjects(ctx)
}

func (s *localSession) AddProject(ctx context.Context, name, path, outputFile string) (*registry.Project, error) {
	return s.a.AddProject(ctx, name, path, outputFile)
}

func (s *localSession) DeleteProject(ctx context.Context, key string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.DeleteProject(ctx, p.UUID)
}

func (s *localSession) EditProject(ctx context.Context, key, field, value string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.EditProject(ctx, p.UUID, field, value)
}

func (s *localSession) ToggleProject(ctx context.Context, key string) (registry.Project, error) {
	return s.a.ToggleProject(ctx, key)
}

func (s *localSession) UpdateProject(ctx context.Context, key string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.TriggerManualUpdate(ctx, p.UUID)
}

func (s *localSession) IgnoreInfo(ctx context.Context, key string) ([]string, []string, error) {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	candidates, err := s.a.Projects.ListIgnoreCandidates(ctx, p.UUID)
	if err != nil {
		return nil, nil, err
	}
	patterns, err := s.a.Projects.ListIgnorePatterns(ctx, p.UUID)
	if err != nil {
		return nil, nil, err
	}
	return candidates, patterns, nil
}

func (s *localSession) SetIgnorePatterns(ctx context.Context, key string, patterns []string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.UpdateIgnorePatterns(ctx, p.UUID, patterns)
}

func (s *localSession) AddTarget(ctx context.Context, key, file string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.AddTarget(ctx, p.UUID, file)
}

func (s *localSession) RemoveTarget(ctx context.Context, key, file string) error {
	p, err := s.a.ResolveProject(ctx, key)
	if err != nil {
		return err
	}
	return s.a.Projects.RemoveTarget(ctx, p.UUID, file)
}

func (s *localSession) Stats(ctx context.Context) (registry.Stats, error) {
	return s.a.Stats(ctx)
}

func (s *localSession) Drop(ctx context.Context, paths []string) (drop.Outcome, error) {
	return s.a.ResolveDrop(ctx, paths)
}

func (s *localSession) Pending(context.Context) (daemon.PendingResponse, error) {
	resp := daemon.PendingResponse{
		State:  s.a.Drops.State().String(),
		Staged: s.a.Drops.Staged(),
	}
	if reg, ok := s.a.Drops.Pending(); ok {
		resp.Registration = &reg
	}
	return resp, nil
}

func (s *localSession) ResetDrops(context.Context) error {
	s.a.Drops.Reset()
	return nil
}

func (s *localSession) Confirm(ctx context.Context, id, name string) (drop.Outcome, error) {
	return s.a.Drops.Confirm(ctx, id, name)
}

func (s *localSession) Cancel(id string) error {
	return s.a.Drops.Cancel(id)
}
