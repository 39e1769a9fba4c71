package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"filing-lens/internal/domain"
)

// scriptedFetcher returns queued jobs or errors in order.
type scriptedFetcher struct {
	responses []fetchResponse
	calls     int
}

type fetchResponse struct {
	job domain.Job
	err error
}

// FetchJobStatus pops the next scripted response. Every fetch is counted,
// including those past the end of the script.
func (f *scriptedFetcher) FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	f.calls++
	if f.calls > len(f.responses) {
		return domain.Job{ID: jobID, Status: domain.JobStatusRunning}, nil
	}
	resp := f.responses[f.calls-1]
	return resp.job, resp.err
}

// pending builds a non-terminal scripted response.
func pending(jobID string) fetchResponse {
	return fetchResponse{job: domain.Job{ID: jobID, Status: domain.JobStatusPending}}
}

// noSleep records wait intervals without waiting.
func noSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

// TestPollReturnsOnTerminalStatus checks the happy path and progress callbacks.
func TestPollReturnsOnTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		pending("job-1"),
		pending("job-1"),
		{job: domain.Job{ID: "job-1", Status: domain.JobStatusSucceeded}},
	}}
	var delays []time.Duration
	engine := NewEngineForTests(fetcher, zap.NewNop(), noSleep(&delays))

	var seen []domain.JobStatus
	job, err := engine.Poll(context.Background(), "job-1", Policy{
		OnProgress: func(j domain.Job) { seen = append(seen, j.Status) },
	})
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s", job.Status)
	}
	if fetcher.calls != 3 {
		t.Fatalf("fetch calls = %d, want 3", fetcher.calls)
	}
	if len(seen) != 3 || seen[2] != domain.JobStatusSucceeded {
		t.Fatalf("progress statuses = %v", seen)
	}
	if len(delays) != 2 {
		t.Fatalf("waits = %v, want 2 waits", delays)
	}
}

// TestPollImmediateTerminalSkipsWaiting checks a job that is already done.
func TestPollImmediateTerminalSkipsWaiting(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{job: domain.Job{ID: "job-1", Status: domain.JobStatusFailed, ErrorMessage: "parse error"}},
	}}
	var delays []time.Duration
	engine := NewEngineForTests(fetcher, zap.NewNop(), noSleep(&delays))

	job, err := engine.Poll(context.Background(), "job-1", Policy{})
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if len(delays) != 0 {
		t.Fatalf("unexpected waits: %v", delays)
	}
}

// TestPollHardTimeoutWithoutCallback checks the ErrPollingTimeout branch.
func TestPollHardTimeoutWithoutCallback(t *testing.T) {
	fetcher := &scriptedFetcher{}
	var delays []time.Duration
	engine := NewEngineForTests(fetcher, zap.NewNop(), noSleep(&delays))

	_, err := engine.Poll(context.Background(), "job-1", Policy{MaxAttempts: 5})
	if !errors.Is(err, ErrPollingTimeout) {
		t.Fatalf("error = %v, want ErrPollingTimeout", err)
	}
	if fetcher.calls != 5 {
		t.Fatalf("fetch calls = %d, want 5", fetcher.calls)
	}
}

// TestPollSoftTimeoutWithCallback checks the last-known-job branch.
func TestPollSoftTimeoutWithCallback(t *testing.T) {
	fetcher := &scriptedFetcher{}
	var delays []time.Duration
	engine := NewEngineForTests(fetcher, zap.NewNop(), noSleep(&delays))

	var timedOut *domain.Job
	job, err := engine.Poll(context.Background(), "job-1", Policy{
		MaxAttempts: 3,
		OnTimeout:   func(last domain.Job) { timedOut = &last },
	})
	if err != nil {
		t.Fatalf("Poll() error = %v, want soft timeout", err)
	}
	if timedOut == nil || timedOut.Status != domain.JobStatusRunning {
		t.Fatalf("timeout callback job = %+v", timedOut)
	}
	if job.Status != domain.JobStatusRunning {
		t.Fatalf("returned job = %+v", job)
	}
}

// TestPollPropagatesFetchErrors checks the non-recoverable error branch.
func TestPollPropagatesFetchErrors(t *testing.T) {
	wantErr := errors.New("boom")
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		pending("job-1"),
		{err: wantErr},
	}}
	var delays []time.Duration
	engine := NewEngineForTests(fetcher, zap.NewNop(), noSleep(&delays))

	_, err := engine.Poll(context.Background(), "job-1", Policy{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if fetcher.calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", fetcher.calls)
	}
}

// TestPollCancelDuringWaitStopsFetching asserts no fetch happens after cancel.
func TestPollCancelDuringWaitStopsFetching(t *testing.T) {
	fetcher := &scriptedFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngineForTests(fetcher, zap.NewNop(), func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := engine.Poll(ctx, "job-1", Policy{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (none after cancel)", fetcher.calls)
	}
}

// TestPollCancelledBeforeStart checks the pre-fetch cancellation guard.
func TestPollCancelledBeforeStart(t *testing.T) {
	fetcher := &scriptedFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngineForTests(fetcher, zap.NewNop(), func(ctx context.Context, d time.Duration) error { return ctx.Err() })

	_, err := engine.Poll(ctx, "job-1", Policy{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, want 0", fetcher.calls)
	}
}

// TestWaitIntervalSchedule checks the adaptive tiers and the fixed override.
func TestWaitIntervalSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		fixed   time.Duration
		want    time.Duration
	}{
		{1, 0, 2 * time.Second},
		{60, 0, 2 * time.Second},
		{61, 0, 5 * time.Second},
		{150, 0, 5 * time.Second},
		{151, 0, 10 * time.Second},
		{900, 0, 10 * time.Second},
		{1, 500 * time.Millisecond, 500 * time.Millisecond},
		{400, 500 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tc := range cases {
		if got := WaitInterval(tc.attempt, tc.fixed); got != tc.want {
			t.Fatalf("WaitInterval(%d, %v) = %v, want %v", tc.attempt, tc.fixed, got, tc.want)
		}
	}
}

// TestSessionCancel checks the handle the orchestrator holds.
func TestSessionCancel(t *testing.T) {
	session := NewSession(context.Background(), "0001-23-000045")
	if session.Cancelled() {
		t.Fatal("new session should not be cancelled")
	}
	if session.ID == "" || session.TargetID != "0001-23-000045" {
		t.Fatalf("session = %+v", session)
	}

	session.Cancel()
	if !session.Cancelled() {
		t.Fatal("expected cancelled after Cancel")
	}
	if session.Context().Err() == nil {
		t.Fatal("session context should be done")
	}
}
