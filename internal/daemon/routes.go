//go:build unix
// +build unix

package daemon

import (
	"net/http"
	"time"
)

// Handler returns the session API.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	d.setupRoutes(mux)
	return mux
}

func (d *Daemon) setupRoutes(mux *http.ServeMux) {
	// Health endpoint
	mux.HandleFunc("GET /health", d.handleHealth)

	// Projects
	mux.HandleFunc("GET /api/projects", d.handleListProjects)
	mux.HandleFunc("POST /api/projects", d.handleAddProject)
	mux.HandleFunc("DELETE /api/projects/{id}", d.handleDeleteProject)
	mux.HandleFunc("PATCH /api/projects/{id}", d.handleEditProject)
	mux.HandleFunc("POST /api/projects/{id}/toggle", d.handleToggleProject)
	mux.HandleFunc("POST /api/projects/{id}/update", d.handleManualUpdate)
	mux.HandleFunc("GET /api/projects/{id}/ignore", d.handleListIgnore)
	mux.HandleFunc("PUT /api/projects/{id}/ignore", d.handleUpdateIgnore)
	mux.HandleFunc("POST /api/projects/{id}/targets", d.handleAddTarget)
	mux.HandleFunc("DELETE /api/projects/{id}/targets", d.handleRemoveTarget)
	mux.HandleFunc("GET /api/stats", d.handleStats)

	// Drops
	mux.HandleFunc("POST /api/drops", d.handleDrop)
	mux.HandleFunc("GET /api/drops/pending", d.handlePending)
	mux.HandleFunc("DELETE /api/drops/pending", d.handleResetDrops)
	mux.HandleFunc("POST /api/registrations/{id}/confirm", d.handleConfirm)
	mux.HandleFunc("DELETE /api/registrations/{id}", d.handleCancel)
}

// handleHealth never waits for a backend call in progress; a busy session
// reports what it last knew.
func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(d.startTime).Seconds(),
	}
	if d.mu.TryLock() {
		resp.Projects = len(d.app.Projects.Projects())
		resp.DropState = d.app.Drops.State().String()
		d.mu.Unlock()
	} else {
		resp.Status = "busy"
	}
	writeJSON(w, resp, http.StatusOK)
}
