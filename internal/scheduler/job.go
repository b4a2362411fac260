package scheduler

import (
	"context"
	"time"
)

// maxHistory bounds the per-job result ring
const maxHistory = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 30 17 * * 1-5" (weekdays 17:30), "@hourly"
	Schedule() string
}

// RunRecord is what one activation produced. Jobs report it with RecordRun.
type RunRecord struct {
	RunID      string `json:"run_id,omitempty"`
	Artifacts  int    `json:"artifacts"`
	TaskErrors int    `json:"task_errors"`
	Anomalies  int    `json:"anomalies"`
	Skipped    bool   `json:"skipped,omitempty"` // run lock held elsewhere
}

// Degraded reports whether the run finished but lost some (kind, year) tasks
func (r *RunRecord) Degraded() bool {
	return r != nil && !r.Skipped && r.TaskErrors > 0
}

type recordSlot struct {
	rec RunRecord
	set bool
}

type recordKey struct{}

// withRunRecord gives one activation attempt its own record slot
func withRunRecord(ctx context.Context) (context.Context, *recordSlot) {
	slot := &recordSlot{}
	return context.WithValue(ctx, recordKey{}, slot), slot
}

// RecordRun attaches rec to the activation running under ctx.
// Outside a scheduler activation it does nothing.
func RecordRun(ctx context.Context, rec RunRecord) {
	if slot, ok := ctx.Value(recordKey{}).(*recordSlot); ok {
		slot.rec = rec
		slot.set = true
	}
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Run       *RunRecord    `json:"run,omitempty"`
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult
}

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n <= 0 {
		return []JobResult{}
	}

	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetDegradedResults returns successful activations whose run lost tasks
func (h *JobHistory) GetDegradedResults() []JobResult {
	degraded := make([]JobResult, 0)
	for _, result := range h.Results {
		if result.Success && result.Run.Degraded() {
			degraded = append(degraded, result)
		}
	}
	return degraded
}

// LastRunRecord returns the newest record of a run that actually executed
// (skipped activations are ignored), or nil
func (h *JobHistory) LastRunRecord() *RunRecord {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if rec := h.Results[i].Run; rec != nil && !rec.Skipped {
			return rec
		}
	}
	return nil
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
