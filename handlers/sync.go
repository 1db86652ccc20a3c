package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"watchsync/config"
	syncsvc "watchsync/services/sync"
)

type syncRunner interface {
	Run() (syncsvc.Stats, error)
}

type taskScheduler interface {
	TaskStatus() []config.ScheduledTask
	RunTaskNow(taskID string) error
}

// SyncHandler exposes the manual sync trigger and the scheduler status.
type SyncHandler struct {
	Runner    syncRunner
	Scheduler taskScheduler
}

func NewSyncHandler(runner syncRunner, scheduler taskScheduler) *SyncHandler {
	return &SyncHandler{Runner: runner, Scheduler: scheduler}
}

type syncRunResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Stats   *syncsvc.Stats `json:"stats,omitempty"`
}

// Run executes a sync synchronously and reports per-category results. A
// second trigger while one run is in flight fails fast instead of queuing.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Runner.Run()
	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()
		switch {
		case errors.Is(err, syncsvc.ErrSyncRunning):
			status = http.StatusConflict
		case errors.Is(err, syncsvc.ErrSettingsIncomplete):
			status = http.StatusBadRequest
			message = "configure the Plex token and at least one download service first"
		}
		writeJSON(w, status, syncRunResponse{Success: false, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, syncRunResponse{
		Success: true,
		Message: fmt.Sprintf("Sync complete: %d added, %d skipped", len(stats.Added), len(stats.Skipped)),
		Stats:   &stats,
	})
}

// RunTask triggers one scheduled task immediately, off the request cycle.
func (h *SyncHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	if err := h.Scheduler.RunTaskNow(taskID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

// Status returns the scheduled tasks with their last outcome.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	tasks := h.Scheduler.TaskStatus()
	if tasks == nil {
		tasks = []config.ScheduledTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}
