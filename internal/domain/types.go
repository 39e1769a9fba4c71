package domain

import "encoding/json"

// JobStatus is the server-side lifecycle status of one analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a status can no longer change on the server.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is the read-only client view of one backend analysis task. It is
// created by the submit call and mutated only by the server; this client
// never writes it back.
type Job struct {
	ID              string          `json:"jobId"`
	Status          JobStatus       `json:"status"`
	ProgressPercent *int            `json:"progressPercent,omitempty"`
	CurrentStep     string          `json:"currentStep,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
}

// Settings contains user-selectable client configuration.
type Settings struct {
	APIBaseURL      string `json:"apiBaseUrl"`
	APIToken        string `json:"apiToken"`
	DefaultTemplate string `json:"defaultTemplate"`
}
