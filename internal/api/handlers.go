package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/LeventeLantos/reminder-sms/internal/repo"
	"github.com/LeventeLantos/reminder-sms/internal/scheduler"
	"github.com/LeventeLantos/reminder-sms/internal/service"
)

type AggregationRunner interface {
	Run(ctx context.Context) (service.AggregationSummary, error)
}

type Handler struct {
	scheds  []*scheduler.Scheduler
	job     AggregationRunner
	history repo.HistoryReader
}

func NewHandler(job AggregationRunner, history repo.HistoryReader, scheds ...*scheduler.Scheduler) *Handler {
	return &Handler{scheds: scheds, job: job, history: history}
}

type schedulerStatus struct {
	Name    string     `json:"name"`
	Running bool       `json:"running"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*scheduler.Scheduler).Start)
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*scheduler.Scheduler).Stop)
}

// apply runs op on the scheduler named by ?name=, or on all of them.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, op func(*scheduler.Scheduler) bool) {
	name := r.URL.Query().Get("name")
	matched := false
	for _, s := range h.scheds {
		if name == "" || s.Name() == name {
			op(s)
			matched = true
		}
	}
	if !matched {
		http.Error(w, "unknown scheduler: "+name, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handler) status() map[string]any {
	running := len(h.scheds) > 0
	items := make([]schedulerStatus, 0, len(h.scheds))
	for _, s := range h.scheds {
		st := schedulerStatus{Name: s.Name(), Running: s.IsRunning()}
		if next := s.NextRun(); !next.IsZero() {
			st.NextRun = &next
		}
		running = running && st.Running
		items = append(items, st)
	}
	return map[string]any{"running": running, "schedulers": items}
}

// RunAggregation runs the job to completion even if the caller goes away.
func (h *Handler) RunAggregation(w http.ResponseWriter, r *http.Request) {
	sum, err := h.job.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sum.LockHeld {
		writeJSON(w, http.StatusConflict, sum)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.history.ListHistory(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
