package polling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"filing-lens/internal/domain"
)

// ErrPollingTimeout is returned when the attempt ceiling is reached and no
// soft-timeout callback was configured.
var ErrPollingTimeout = errors.New("polling attempt ceiling reached")

// DefaultMaxAttempts bounds one monitoring loop. With the adaptive
// schedule this spans roughly half an hour of watching.
const DefaultMaxAttempts = 300

// StatusFetcher is the single backend call the engine repeats.
type StatusFetcher interface {
	FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error)
}

// Policy configures one polling loop.
type Policy struct {
	// MaxAttempts caps non-terminal polls; DefaultMaxAttempts when zero.
	MaxAttempts int
	// FixedInterval, when positive, replaces the adaptive schedule.
	FixedInterval time.Duration
	// OnProgress receives every polled job snapshot, including the
	// terminal one.
	OnProgress func(job domain.Job)
	// OnTimeout, when set, turns the attempt ceiling into a soft timeout:
	// the callback fires and Poll returns the last known job without an
	// error. When nil, Poll fails with ErrPollingTimeout instead. Both
	// behaviors are relied on by callers; do not unify them.
	OnTimeout func(last domain.Job)
}

// Engine runs sequential status polls until a job reaches a terminal
// state. One loop issues one fetch at a time; there is never a concurrent
// fan-out of polls for a single job.
type Engine struct {
	fetcher StatusFetcher
	log     *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine builds a polling engine over a status fetcher.
func NewEngine(fetcher StatusFetcher, log *zap.Logger) *Engine {
	return &Engine{
		fetcher: fetcher,
		log:     log,
		sleep:   sleepContext,
	}
}

// NewEngineForTests builds an engine with an injectable wait function.
func NewEngineForTests(fetcher StatusFetcher, log *zap.Logger, sleep func(ctx context.Context, d time.Duration) error) *Engine {
	e := NewEngine(fetcher, log)
	e.sleep = sleep
	return e
}

// Poll fetches job status in an iterative loop until the job is terminal,
// the attempt ceiling is hit, or the context is cancelled. The loop checks
// cancellation before every fetch and abandons a pending wait immediately
// on cancel, so no further fetch is issued after cancellation.
func (e *Engine) Poll(ctx context.Context, jobID string, policy Policy) (domain.Job, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	attempt := 0
	var last domain.Job
	for {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("polling cancelled: %w", err)
		}

		job, err := e.fetcher.FetchJobStatus(ctx, jobID)
		if err != nil {
			// The transport already absorbed its one transient retry;
			// anything reaching here ends the loop.
			return last, err
		}
		last = job
		if policy.OnProgress != nil {
			policy.OnProgress(job)
		}
		if job.Status.IsTerminal() {
			e.log.Info("job reached terminal status",
				zap.String("jobId", jobID),
				zap.String("status", string(job.Status)),
				zap.Int("attempts", attempt),
			)
			return job, nil
		}

		attempt++
		if attempt >= maxAttempts {
			e.log.Warn("polling attempt ceiling reached",
				zap.String("jobId", jobID),
				zap.Int("attempts", attempt),
			)
			if policy.OnTimeout != nil {
				policy.OnTimeout(job)
				return job, nil
			}
			return job, fmt.Errorf("job %s still %s after %d attempts: %w", jobID, job.Status, attempt, ErrPollingTimeout)
		}

		if err := e.sleep(ctx, WaitInterval(attempt, policy.FixedInterval)); err != nil {
			return last, fmt.Errorf("polling cancelled: %w", err)
		}
	}
}

// WaitInterval computes the delay before the next poll. The adaptive
// schedule slows down as wait time grows; a positive fixed interval
// overrides it entirely.
func WaitInterval(attempt int, fixed time.Duration) time.Duration {
	if fixed > 0 {
		return fixed
	}

	switch {
	case attempt <= 60:
		return 2 * time.Second
	case attempt <= 150:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
