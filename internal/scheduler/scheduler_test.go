package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wonny/consolidator/pkg/logger"
)

// funcJob adapts a function to Job
type funcJob struct {
	name     string
	schedule string
	calls    int32
	run      func(ctx context.Context, call int32) error
}

func (j *funcJob) Name() string     { return j.name }
func (j *funcJob) Schedule() string { return j.schedule }
func (j *funcJob) Run(ctx context.Context) error {
	return j.run(ctx, atomic.AddInt32(&j.calls, 1))
}

func waitHistory(t *testing.T, s *Scheduler, name string, n int) *JobHistory {
	t.Helper()
	var h *JobHistory
	require.Eventually(t, func() bool {
		var err error
		h, err = s.GetJobHistory(name)
		return err == nil && len(h.Results) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	job := &funcJob{name: "consolidate", schedule: "0 30 17 * * 1-5", run: func(context.Context, int32) error { return nil }}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate job")

	bad := &funcJob{name: "bad", schedule: "not a cron", run: func(context.Context, int32) error { return nil }}
	assert.Error(t, s.AddJob(bad))

	assert.Equal(t, []string{"consolidate"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	job := &funcJob{name: "cleanup", schedule: "@hourly", run: func(context.Context, int32) error { return nil }}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RemoveJob("cleanup"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("cleanup"))
	assert.Error(t, s.RunJob("cleanup"))
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(logger.Nop(), WithRetry(3, 5*time.Millisecond))
	job := &funcJob{name: "flaky", schedule: "@daily", run: func(_ context.Context, call int32) error {
		if call < 2 {
			return errors.New("transient")
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("flaky"))

	h := waitHistory(t, s, "flaky", 1)
	s.Stop()

	last := h.GetLatestResults(1)[0]
	assert.True(t, last.Success)
	assert.Equal(t, 2, last.Attempts)
	assert.Empty(t, last.Error)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(logger.Nop(), WithRetry(2, time.Millisecond))
	job := &funcJob{name: "broken", schedule: "@daily", run: func(context.Context, int32) error {
		return errors.New("shard dir missing")
	}}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("broken"))

	h := waitHistory(t, s, "broken", 1)
	s.Stop()

	last := h.Results[0]
	assert.False(t, last.Success)
	assert.Equal(t, 3, last.Attempts)
	assert.Equal(t, "shard dir missing", last.Error)
	assert.Len(t, h.GetFailedResults(), 1)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(logger.Nop(), WithRetry(5, time.Hour))
	started := make(chan struct{})
	job := &funcJob{name: "long", schedule: "@daily", run: func(ctx context.Context, call int32) error {
		if call == 1 {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("long"))
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	h, err := s.GetJobHistory("long")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
	assert.Equal(t, 1, h.Results[0].Attempts)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(logger.Nop())
	job := &funcJob{name: "consolidate", schedule: "0 30 17 * * 1-5", run: func(context.Context, int32) error { return nil }}
	require.NoError(t, s.AddJob(job))

	s.Start()
	require.Eventually(t, func() bool {
		next, err := s.NextRun("consolidate")
		return err == nil && !next.IsZero()
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	_, err := s.NextRun("missing")
	assert.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < 105; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.01)
}

func TestRunJob_RecordsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	job := &funcJob{name: "consolidate", schedule: "@daily", run: func(ctx context.Context, call int32) error {
		if call == 1 {
			// 실패한 시도의 기록은 버려짐
			RecordRun(ctx, RunRecord{RunID: "discarded"})
			return errors.New("transient")
		}
		RecordRun(ctx, RunRecord{RunID: "run-2", Artifacts: 7, TaskErrors: 1, Anomalies: 3})
		return nil
	}}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("consolidate"))

	h := waitHistory(t, s, "consolidate", 1)
	s.Stop()

	last := h.Results[0]
	require.NotNil(t, last.Run)
	assert.Equal(t, "run-2", last.Run.RunID)
	assert.Equal(t, 7, last.Run.Artifacts)
	assert.True(t, last.Run.Degraded())

	stats := s.GetJobStats()["consolidate"]
	assert.Equal(t, 1, stats.DegradedRuns)
	assert.Equal(t, "run-2", stats.LastRunID)
	assert.Equal(t, 7, stats.LastArtifacts)
}

func TestRecordRun_OutsideActivation(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRun(context.Background(), RunRecord{RunID: "ignored"})
	})
}

func TestJobHistory_RunRecords(t *testing.T) {
	h := &JobHistory{}
	assert.Nil(t, h.LastRunRecord())

	h.AddResult(JobResult{Success: true, Run: &RunRecord{RunID: "a", Artifacts: 10}})
	h.AddResult(JobResult{Success: true, Run: &RunRecord{RunID: "b", Artifacts: 4, TaskErrors: 2}})
	h.AddResult(JobResult{Success: true, Run: &RunRecord{Skipped: true}})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false, Error: "engine open failed"})

	rec := h.LastRunRecord()
	require.NotNil(t, rec)
	assert.Equal(t, "b", rec.RunID)

	degraded := h.GetDegradedResults()
	require.Len(t, degraded, 1)
	assert.Equal(t, "b", degraded[0].Run.RunID)

	var none *RunRecord
	assert.False(t, none.Degraded())
	assert.False(t, (&RunRecord{Skipped: true, TaskErrors: 1}).Degraded())
}
