package progress

import (
	"time"

	"filing-lens/internal/domain"
	"filing-lens/internal/transport"
)

// Snapshot is one published projection of job progress. Seq and Timestamp
// are assigned by the bus on publish.
type Snapshot struct {
	Seq             int64               `json:"seq"`
	Timestamp       time.Time           `json:"timestamp"`
	TargetID        string              `json:"targetId"`
	JobID           string              `json:"jobId,omitempty"`
	State           State               `json:"state"`
	Message         string              `json:"message"`
	ProgressPercent *int                `json:"progressPercent,omitempty"`
	CurrentStep     string              `json:"currentStep,omitempty"`
	Error           *transport.APIError `json:"error,omitempty"`
}

// Projection accumulates one session's snapshot stream: poll attempt
// count, highest observed percentage, and the job identity once known.
// All state changes flow through the pure PollState mapping.
type Projection struct {
	targetID string
	jobID    string
	attempts int
	percent  *int
	step     string
}

// NewProjection starts an empty projection for one filing.
func NewProjection(targetID string) *Projection {
	return &Projection{targetID: targetID}
}

// Initiating marks the submit call as issued.
func (p *Projection) Initiating() Snapshot {
	return p.snapshot(StateInitiating, domain.Job{})
}

// AttachBackground re-attaches to an already-running job discovered after
// a reload. The loading_target phase is skipped: the backend already
// accepted the job, so subsequent polls land directly in analyzing.
func (p *Projection) AttachBackground(job domain.Job) Snapshot {
	p.jobID = job.ID
	p.attempts = 1
	return p.observe(StateBackgrounded, job)
}

// ObservePoll folds one polled job into the stream and returns the
// snapshot to publish.
func (p *Projection) ObservePoll(job domain.Job) Snapshot {
	state := PollState(p.attempts, job.Status)
	if !job.Status.IsTerminal() {
		p.attempts++
	}
	return p.observe(state, job)
}

// Completed marks the canonical resource refetch as finished.
func (p *Projection) Completed() Snapshot {
	return p.snapshot(StateCompleted, domain.Job{})
}

// Failed maps any failure into an error snapshot, preserving the
// normalized transport error when there is one.
func (p *Projection) Failed(err error) Snapshot {
	job := domain.Job{}
	if err != nil {
		job.ErrorMessage = err.Error()
	}
	snap := p.snapshot(StateError, job)
	snap.Error = transport.AsAPIError(err)
	return snap
}

// Idle resets the stream back to its ground state.
func (p *Projection) Idle() Snapshot {
	p.attempts = 0
	p.percent = nil
	p.step = ""
	return p.snapshot(StateIdle, domain.Job{})
}

// observe absorbs job fields shared by poll-driven snapshots.
func (p *Projection) observe(state State, job domain.Job) Snapshot {
	if job.ID != "" {
		p.jobID = job.ID
	}
	p.percent = ClampPercent(p.percent, job.ProgressPercent)
	if job.CurrentStep != "" {
		p.step = job.CurrentStep
	}
	return p.snapshot(state, job)
}

// snapshot assembles the published form from current projection state.
func (p *Projection) snapshot(state State, job domain.Job) Snapshot {
	return Snapshot{
		TargetID:        p.targetID,
		JobID:           p.jobID,
		State:           state,
		Message:         MessageFor(state, job),
		ProgressPercent: p.percent,
		CurrentStep:     p.step,
	}
}
