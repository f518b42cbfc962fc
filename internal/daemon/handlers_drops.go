//go:build unix

package daemon

import (
	"net/http"

	"github.com/gurisko/sentryctl/internal/drop"
)

type DropRequest struct {
	Paths []string `json:"paths"`
}

type ConfirmRequest struct {
	Name string `json:"name"`
}

type OutcomeResponse struct {
	Outcome drop.Outcome `json:"outcome"`
}

type PendingResponse struct {
	State        string             `json:"state"`
	Staged       string             `json:"staged,omitempty"`
	Registration *drop.Registration `json:"registration,omitempty"`
}

func (d *Daemon) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.app.ResolveDrop(r.Context(), req.Paths)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, OutcomeResponse{Outcome: out}, http.StatusOK)
}

func (d *Daemon) handlePending(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	writeJSON(w, d.pending(), http.StatusOK)
}

func (d *Daemon) handleResetDrops(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.app.Drops.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleConfirm registers the pending folder. The id "current" addresses
// whichever registration is open.
func (d *Daemon) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.app.Drops.Confirm(r.Context(), registrationID(r), req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, OutcomeResponse{Outcome: out}, http.StatusOK)
}

func (d *Daemon) handleCancel(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.app.Drops.Cancel(registrationID(r)); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) pending() PendingResponse {
	resp := PendingResponse{
		State:  d.app.Drops.State().String(),
		Staged: d.app.Drops.Staged(),
	}
	if reg, ok := d.app.Drops.Pending(); ok {
		resp.Registration = &reg
	}
	return resp
}

func registrationID(r *http.Request) string {
	id := r.PathValue("id")
	if id == "current" {
		return ""
	}
	return id
}
