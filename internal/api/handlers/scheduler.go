package handlers

import (
	"net/http"
	"sort"

	"github.com/wonny/consolidator/internal/scheduler"
)

// JobStatsSource exposes scheduler statistics (scheduler.Scheduler)
type JobStatsSource interface {
	GetJobStats() map[string]scheduler.JobStats
}

// SchedulerHandler serves job statistics of an in-process scheduler
type SchedulerHandler struct {
	source JobStatsSource
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(source JobStatsSource) *SchedulerHandler {
	return &SchedulerHandler{source: source}
}

// ListJobs returns job statistics sorted by name
// GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.source.GetJobStats()

	out := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  out,
		"count": len(out),
	})
}
