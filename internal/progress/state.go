package progress

import (
	"fmt"

	"filing-lens/internal/domain"
)

// State is the UI-facing progress state of one analysis.
type State string

const (
	StateIdle          State = "idle"
	StateInitiating    State = "initiating"
	StateLoadingTarget State = "loading_target"
	StateAnalyzing     State = "analyzing"
	StateCompleting    State = "completing"
	StateCompleted     State = "completed"
	StateError         State = "error"
	StateBackgrounded  State = "backgrounded"
)

// IsTerminal reports whether a state ends the snapshot sequence.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// PollState maps one polled job snapshot to a progress state. attempt is
// the number of completed non-terminal polls before this one. The mapping
// is pure: two observers of the same job sequence derive the same states.
func PollState(attempt int, status domain.JobStatus) State {
	switch status {
	case domain.JobStatusFailed:
		return StateError
	case domain.JobStatusSucceeded:
		return StateCompleting
	default:
		if attempt == 0 {
			return StateLoadingTarget
		}
		return StateAnalyzing
	}
}

// MessageFor derives the short human text shown for a state.
func MessageFor(state State, job domain.Job) string {
	switch state {
	case StateIdle:
		return "Ready to analyze"
	case StateInitiating:
		return "Requesting analysis"
	case StateLoadingTarget:
		return "Loading filing"
	case StateAnalyzing:
		if job.CurrentStep != "" {
			return "Analyzing: " + job.CurrentStep
		}
		return "Analyzing filing"
	case StateCompleting:
		return "Finalizing analysis"
	case StateCompleted:
		return "Analysis complete"
	case StateError:
		if job.ErrorMessage != "" {
			return "Analysis failed: " + job.ErrorMessage
		}
		return "Analysis failed"
	case StateBackgrounded:
		return "Reconnecting to running analysis"
	default:
		return fmt.Sprintf("Unknown state %q", state)
	}
}

// ClampPercent keeps the displayed percentage monotonically non-decreasing
// for one job, even when the server briefly reports a lower value.
func ClampPercent(prev, next *int) *int {
	if next == nil {
		return prev
	}
	if prev != nil && *prev > *next {
		return prev
	}
	return next
}
