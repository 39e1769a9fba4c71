package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"filing-lens/internal/domain"
	"filing-lens/internal/filings"
	"filing-lens/internal/polling"
	"filing-lens/internal/progress"
	"filing-lens/internal/transport"
)

// ErrAnalysisInFlight is returned when a second start is attempted for a
// filing that already has an active monitoring session.
var ErrAnalysisInFlight = errors.New("analysis already in flight for filing")

// ErrNoActiveSession is returned when cancel is requested for an idle filing.
var ErrNoActiveSession = errors.New("no active analysis session")

// ErrAnalysisFailed is returned when the backend job ends in failed status.
var ErrAnalysisFailed = errors.New("analysis job failed")

// ErrNoBackgroundAnalysis is returned by the recovery probe when neither a
// running job nor a finished analysis exists for the filing.
var ErrNoBackgroundAnalysis = errors.New("no background analysis found")

// ErrMissingJobID is returned when the backend accepts a submission but
// its response carries no job identifier to poll.
var ErrMissingJobID = errors.New("submit response missing job id")

// resourceClient is the job resource surface the orchestrator drives.
type resourceClient interface {
	SubmitAnalysis(ctx context.Context, accessionNumber string, opts domain.AnalysisOptions) (domain.Job, error)
	FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error)
	FetchAnalysis(ctx context.Context, accessionNumber string) (*domain.AnalysisReport, error)
	FetchLatestJob(ctx context.Context, accessionNumber string) (domain.Job, error)
}

// Config tunes the monitoring loops the orchestrator starts.
type Config struct {
	// MaxAttempts caps each polling session; engine default when zero.
	MaxAttempts int
	// FixedInterval disables the adaptive schedule when positive.
	FixedInterval time.Duration
	// SoftTimeout makes an exhausted session yield the last known job
	// instead of failing with a polling timeout.
	SoftTimeout bool
}

// Outcome is the final answer of one monitoring session.
type Outcome struct {
	// Report is the canonical analysis resource, re-read after job
	// success; the job's own result payload may be partial.
	Report *domain.AnalysisReport `json:"report,omitempty"`
	// LastJob is the last polled snapshot.
	LastJob domain.Job `json:"lastJob"`
	// TimedOut marks a soft timeout: the job is presumed still running
	// server-side but the client gave up watching.
	TimedOut bool `json:"timedOut"`
}

// Orchestrator is the UI-facing façade over submit, polling, and the
// progress state machine. It guarantees at most one active polling session
// per filing and publishes every state transition on its snapshot bus.
type Orchestrator struct {
	client resourceClient
	engine *polling.Engine
	bus    *progress.Bus
	log    *zap.Logger
	cfg    Config

	mu       sync.Mutex
	sessions map[string]*polling.Session
}

// NewOrchestrator wires the façade over a resource client.
func NewOrchestrator(client resourceClient, bus *progress.Bus, log *zap.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		client:   client,
		engine:   polling.NewEngine(client, log),
		bus:      bus,
		log:      log,
		cfg:      cfg,
		sessions: make(map[string]*polling.Session),
	}
}

// NewOrchestratorForTests additionally injects the polling wait function.
func NewOrchestratorForTests(client resourceClient, bus *progress.Bus, log *zap.Logger, cfg Config, sleep func(ctx context.Context, d time.Duration) error) *Orchestrator {
	o := NewOrchestrator(client, bus, log, cfg)
	o.engine = polling.NewEngineForTests(client, log, sleep)
	return o
}

// Bus exposes the snapshot stream for subscribers.
func (o *Orchestrator) Bus() *progress.Bus {
	return o.bus
}

// StartAnalysis submits one analysis job for a filing and monitors it to
// completion. A second call for the same filing while one is in flight is
// rejected with ErrAnalysisInFlight and triggers no submit. On job
// success the canonical analysis resource is re-read and returned.
func (o *Orchestrator) StartAnalysis(ctx context.Context, accessionNumber string, opts domain.AnalysisOptions) (Outcome, error) {
	session, err := o.beginSession(ctx, accessionNumber)
	if err != nil {
		return Outcome{}, err
	}
	defer o.endSession(session)

	proj := progress.NewProjection(accessionNumber)
	o.bus.Publish(proj.Initiating())

	job, err := o.client.SubmitAnalysis(session.Context(), accessionNumber, opts)
	if err != nil {
		// The transport already spent its transient retry; a submit
		// failure is terminal here.
		o.bus.Publish(proj.Failed(err))
		return Outcome{}, err
	}
	if job.ID == "" {
		err := fmt.Errorf("filing %s: %w", accessionNumber, ErrMissingJobID)
		o.bus.Publish(proj.Failed(err))
		return Outcome{}, err
	}
	o.log.Info("analysis job submitted",
		zap.String("accessionNumber", accessionNumber),
		zap.String("jobId", job.ID),
		zap.String("sessionId", session.ID),
	)

	return o.monitor(session, proj, job.ID)
}

// CheckBackgroundAnalysis recovers an analysis started in a prior client
// instance. It first asks for the filing's latest job and re-attaches to
// it when still running; otherwise the canonical analysis resource's
// existence stands in for completion. No submit call is ever issued.
func (o *Orchestrator) CheckBackgroundAnalysis(ctx context.Context, accessionNumber string) (Outcome, error) {
	session, err := o.beginSession(ctx, accessionNumber)
	if err != nil {
		return Outcome{}, err
	}
	defer o.endSession(session)

	proj := progress.NewProjection(accessionNumber)

	job, err := o.client.FetchLatestJob(session.Context(), accessionNumber)
	switch {
	case err == nil && !job.Status.IsTerminal():
		o.log.Info("re-attaching to running analysis job",
			zap.String("accessionNumber", accessionNumber),
			zap.String("jobId", job.ID),
		)
		o.bus.Publish(proj.AttachBackground(job))
		return o.monitor(session, proj, job.ID)

	case err == nil && job.Status == domain.JobStatusFailed:
		o.bus.Publish(proj.Failed(errors.New(failureDetail(job))))
		return Outcome{LastJob: job}, fmt.Errorf("%s: %w", failureDetail(job), ErrAnalysisFailed)

	case err != nil && !errors.Is(err, filings.ErrNoJob):
		o.bus.Publish(proj.Failed(err))
		return Outcome{}, err
	}

	// Latest job succeeded, or the backend has no job lookup data: the
	// analysis resource's existence is the completion signal.
	report, err := o.client.FetchAnalysis(session.Context(), accessionNumber)
	if err != nil {
		if errors.Is(err, filings.ErrAnalysisNotFound) {
			return Outcome{}, fmt.Errorf("filing %s: %w", accessionNumber, ErrNoBackgroundAnalysis)
		}
		o.bus.Publish(proj.Failed(err))
		return Outcome{}, err
	}

	o.bus.Publish(proj.Completed())
	return Outcome{Report: report}, nil
}

// Cancel stops the active session for a filing, if there is one.
func (o *Orchestrator) Cancel(accessionNumber string) error {
	o.mu.Lock()
	session, ok := o.sessions[accessionNumber]
	o.mu.Unlock()

	if !ok {
		return ErrNoActiveSession
	}
	session.Cancel()
	return nil
}

// ResetProgress publishes an idle snapshot when no session is active. It
// is a deliberate no-op while a session is still running.
func (o *Orchestrator) ResetProgress() {
	o.mu.Lock()
	active := len(o.sessions) > 0
	o.mu.Unlock()
	if active {
		return
	}

	if latest, ok := o.bus.Latest(); !ok || latest.State == progress.StateIdle {
		return
	}
	o.bus.Publish(progress.NewProjection("").Idle())
}

// monitor drives one polling session to its outcome and publishes every
// transition. Shared by the fresh-start and background-recovery paths.
func (o *Orchestrator) monitor(session *polling.Session, proj *progress.Projection, jobID string) (Outcome, error) {
	timedOut := false
	policy := polling.Policy{
		MaxAttempts:   o.cfg.MaxAttempts,
		FixedInterval: o.cfg.FixedInterval,
		OnProgress: func(job domain.Job) {
			o.bus.Publish(proj.ObservePoll(job))
		},
	}
	if o.cfg.SoftTimeout {
		policy.OnTimeout = func(last domain.Job) {
			timedOut = true
			o.log.Warn("gave up watching still-running job",
				zap.String("targetId", session.TargetID),
				zap.String("jobId", last.ID),
			)
		}
	}

	job, err := o.engine.Poll(session.Context(), jobID, policy)
	if err != nil {
		if transport.IsCancelled(err) {
			// Cancellation is a user action, not a failure; the stream
			// just resets.
			o.bus.Publish(proj.Idle())
			return Outcome{LastJob: job}, err
		}
		o.bus.Publish(proj.Failed(err))
		return Outcome{LastJob: job}, err
	}

	if timedOut {
		return Outcome{LastJob: job, TimedOut: true}, nil
	}

	switch job.Status {
	case domain.JobStatusFailed:
		// The error snapshot was already published by the poll observer.
		return Outcome{LastJob: job}, fmt.Errorf("%s: %w", failureDetail(job), ErrAnalysisFailed)
	case domain.JobStatusSucceeded:
		report, err := o.client.FetchAnalysis(session.Context(), session.TargetID)
		if err != nil {
			o.bus.Publish(proj.Failed(err))
			return Outcome{LastJob: job}, err
		}
		o.bus.Publish(proj.Completed())
		return Outcome{Report: report, LastJob: job}, nil
	default:
		return Outcome{LastJob: job}, fmt.Errorf("polling ended with non-terminal status %s", job.Status)
	}
}

// beginSession registers the single-flight entry for a filing.
func (o *Orchestrator) beginSession(ctx context.Context, accessionNumber string) (*polling.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.sessions[accessionNumber]; exists {
		return nil, fmt.Errorf("filing %s: %w", accessionNumber, ErrAnalysisInFlight)
	}
	session := polling.NewSession(ctx, accessionNumber)
	o.sessions[accessionNumber] = session
	return session, nil
}

// endSession releases the single-flight entry and the session context.
func (o *Orchestrator) endSession(session *polling.Session) {
	session.Cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.sessions[session.TargetID]; ok && current.ID == session.ID {
		delete(o.sessions, session.TargetID)
	}
}

// failureDetail prefers the server-provided failure message.
func failureDetail(job domain.Job) string {
	if job.ErrorMessage != "" {
		return job.ErrorMessage
	}
	return "analysis job failed"
}
