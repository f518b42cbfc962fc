//go:build unix

package cmd

import (
	"context"
	"errors"
	"net/url"

	"github.com/gurisko/sentryctl/internal/apiclient"
	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/daemon"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/registry"
)

// remoteSession forwards every call to the session daemon.
type remoteSession struct {
	c *apiclient.Client
}

func projectPath(key, suffix string) string {
	return "/api/projects/" + url.PathEscape(key) + suffix
}

func (s *remoteSession) Remote() bool { return true }
func (s *remoteSession) Close() error { return nil }

func (s *remoteSession) ListProjects(ctx context.Context) ([]registry.Project, error) {
	var out daemon.ListProjectsResponse
	if err := s.c.GetJSON(ctx, "/api/projects", &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (s *remoteSession) AddProject(ctx context.Context, name, path, outputFile string) (*registry.Project, error) {
	var out daemon.ProjectResponse
	req := daemon.AddProjectRequest{Name: name, Path: path, OutputFile: outputFile}
	if err := s.c.PostJSON(ctx, "/api/projects", req, &out); err != nil {
		var api *apiclient.APIError
		if apiclient.IsConflict(err) && errors.As(err, &api) {
			return nil, &drop.NameConflictError{Name: name, Suggested: api.Suggested, Err: err}
		}
		return nil, err
	}
	if out.Project.UUID == "" {
		return nil, nil
	}
	return &out.Project, nil
}

func (s *remoteSession) DeleteProject(ctx context.Context, key string) error {
	return s.c.Delete(ctx, projectPath(key, ""))
}

func (s *remoteSession) EditProject(ctx context.Context, key, field, value string) error {
	return s.c.PatchJSON(ctx, projectPath(key, ""), daemon.EditProjectRequest{Field: field, Value: value})
}

func (s *remoteSession) ToggleProject(ctx context.Context, key string) (registry.Project, error) {
	var out daemon.ProjectResponse
	err := s.c.PostJSON(ctx, projectPath(key, "/toggle"), nil, &out)
	return out.Project, err
}

func (s *remoteSession) UpdateProject(ctx context.Context, key string) error {
	return s.c.PostJSON(ctx, projectPath(key, "/update"), nil, nil)
}

func (s *remoteSession) IgnoreInfo(ctx context.Context, key string) ([]string, []string, error) {
	var out daemon.IgnoreResponse
	if err := s.c.GetJSON(ctx, projectPath(key, "/ignore"), &out); err != nil {
		return nil, nil, err
	}
	return out.Candidates, out.Patterns, nil
}

func (s *remoteSession) SetIgnorePatterns(ctx context.Context, key string, patterns []string) error {
	if patterns == nil {
		patterns = []string{}
	}
	return s.c.PutJSON(ctx, projectPath(key, "/ignore"), daemon.IgnorePatternsRequest{Patterns: patterns})
}

func (s *remoteSession) AddTarget(ctx context.Context, key, file string) error {
	return s.c.PostJSON(ctx, projectPath(key, "/targets"), daemon.TargetRequest{Path: file}, nil)
}

func (s *remoteSession) RemoveTarget(ctx context.Context, key, file string) error {
	return s.c.Delete(ctx, projectPath(key, "/targets")+"?path="+url.QueryEscape(file))
}

func (s *remoteSession) Stats(ctx context.Context) (registry.Stats, error) {
	var out registry.Stats
	err := s.c.GetJSON(ctx, "/api/stats", &out)
	return out, err
}

func (s *remoteSession) Drop(ctx context.Context, paths []string) (drop.Outcome, error) {
	var out daemon.OutcomeResponse
	err := s.c.PostJSON(ctx, "/api/drops", daemon.DropRequest{Paths: paths}, &out)
	return out.Outcome, err
}

func (s *remoteSession) Pending(ctx context.Context) (daemon.PendingResponse, error) {
	var out daemon.PendingResponse
	err := s.c.GetJSON(ctx, "/api/drops/pending", &out)
	return out, err
}

func (s *remoteSession) ResetDrops(ctx context.Context) error {
	return s.c.Delete(ctx, "/api/drops/pending")
}

// Confirm translates conflict and validation responses back into the drop
// package errors so the name prompt loop works the same as in-process.
func (s *remoteSession) Confirm(ctx context.Context, id, name string) (drop.Outcome, error) {
	var out daemon.OutcomeResponse
	err := s.c.PostJSON(ctx, "/api/registrations/"+url.PathEscape(registrationKey(id))+"/confirm", daemon.ConfirmRequest{Name: name}, &out)
	var api *apiclient.APIError
	switch {
	case err == nil:
		return out.Outcome, nil
	case apiclient.IsConflict(err) && errors.As(err, &api):
		return drop.Outcome{}, &drop.NameConflictError{Name: name, Suggested: api.Suggested, Err: err}
	case apiclient.IsValidation(err):
		return drop.Outcome{}, &bridge.ValidationError{Field: "name"}
	default:
		return drop.Outcome{}, err
	}
}

func (s *remoteSession) Cancel(id string) error {
	return s.c.Delete(context.Background(), "/api/registrations/"+url.PathEscape(registrationKey(id)))
}

func registrationKey(id string) string {
	if id == "" {
		return "current"
	}
	return id
}
