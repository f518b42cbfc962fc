//go:build unix

package daemon

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/limits"
	"github.com/gurisko/sentryctl/internal/registry"
)

// Request/Response types

type AddProjectRequest struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	OutputFile string `json:"output_file"`
}

type EditProjectRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type TargetRequest struct {
	Path string `json:"path"`
}

type IgnorePatternsRequest struct {
	Patterns []string `json:"patterns"`
}

type ListProjectsResponse struct {
	Projects []registry.Project `json:"projects"`
}

type ProjectResponse struct {
	Project registry.Project `json:"project"`
}

type IgnoreResponse struct {
	Candidates []string `json:"candidates"`
	Patterns   []string `json:"patterns"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`      // backend failure kind or "validation"
	Suggested string `json:"suggested,omitempty"` // alternative name on a conflict
}

// Handler methods

func (d *Daemon) handleListProjects(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	projects, err := d.app.RefreshProjects(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if projects == nil {
		projects = []registry.Project{}
	}
	writeJSON(w, ListProjectsResponse{Projects: projects}, http.StatusOK)
}

func (d *Daemon) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var req AddProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.AddProject(r.Context(), req.Name, req.Path, req.OutputFile)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if p == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Location", "/api/projects/"+p.UUID)
	writeJSON(w, ProjectResponse{Project: *p}, http.StatusCreated)
}

func (d *Daemon) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.DeleteProject(r.Context(), p.UUID); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleEditProject(w http.ResponseWriter, r *http.Request) {
	var req EditProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.EditProject(r.Context(), p.UUID, req.Field, req.Value); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleToggleProject(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ToggleProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, ProjectResponse{Project: p}, http.StatusOK)
}

func (d *Daemon) handleManualUpdate(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.TriggerManualUpdate(r.Context(), p.UUID); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleListIgnore(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx := r.Context()
	p, err := d.app.ResolveProject(ctx, r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	candidates, err := d.app.Projects.ListIgnoreCandidates(ctx, p.UUID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	patterns, err := d.app.Projects.ListIgnorePatterns(ctx, p.UUID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, IgnoreResponse{Candidates: nonNil(candidates), Patterns: nonNil(patterns)}, http.StatusOK)
}

func (d *Daemon) handleUpdateIgnore(w http.ResponseWriter, r *http.Request) {
	var req IgnorePatternsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.UpdateIgnorePatterns(r.Context(), p.UUID, req.Patterns); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.AddTarget(r.Context(), p.UUID, req.Path); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveTarget takes the file from the path query parameter.
func (d *Daemon) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("path")

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.app.ResolveProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := d.app.Projects.RemoveTarget(r.Context(), p.UUID, file); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleStats(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats, err := d.app.Stats(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, stats, http.StatusOK)
}

// Helper functions

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.JSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeFailure maps session errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var conflict *drop.NameConflictError
	switch {
	case errors.As(err, &conflict):
		status = http.StatusConflict
		resp.Suggested = conflict.Suggested
		if be, ok := bridge.AsBackendError(err); ok {
			resp.Kind = be.Kind.String()
		}
	case bridge.IsValidation(err), errors.Is(err, registry.ErrUnknownField):
		status = http.StatusBadRequest
		resp.Kind = "validation"
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, drop.ErrNoRegistration):
		status = http.StatusNotFound
	default:
		if be, ok := bridge.AsBackendError(err); ok {
			status = http.StatusBadGateway
			resp.Kind = be.Kind.String()
		}
	}
	writeJSON(w, resp, status)
}

func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	buf, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func writeError(w http.ResponseWriter, message string, status int) {
	resp := ErrorResponse{
		Error: message,
	}
	writeJSON(w, resp, status)
}
