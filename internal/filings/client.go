package filings

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"filing-lens/internal/domain"
	"filing-lens/internal/transport"
)

// ErrAnalysisNotFound is returned when no canonical analysis exists yet.
var ErrAnalysisNotFound = errors.New("analysis not available")

// ErrNoJob is returned when the backend knows no job for a filing.
var ErrNoJob = errors.New("no analysis job for filing")

// sender is the transport surface this client needs.
type sender interface {
	Send(ctx context.Context, method, path string, body, out any) error
}

// Client wraps the analysis job endpoints in typed calls. It is stateless
// per call; resilience lives in the transport layer underneath.
type Client struct {
	transport sender
}

// NewClient builds a resource client on top of a transport.
func NewClient(t sender) *Client {
	return &Client{transport: t}
}

// SubmitAnalysis asks the backend to start analyzing a filing. The server
// deduplicates repeated submissions for the same filing, so calling this
// again after an uncertain outcome is safe.
func (c *Client) SubmitAnalysis(ctx context.Context, accessionNumber string, opts domain.AnalysisOptions) (domain.Job, error) {
	var job domain.Job
	path := fmt.Sprintf("/filings/%s/analyze", accessionNumber)
	if err := c.transport.Send(ctx, http.MethodPost, path, opts, &job); err != nil {
		return domain.Job{}, fmt.Errorf("submit analysis for %s: %w", accessionNumber, err)
	}
	return job, nil
}

// FetchJobStatus returns the current server snapshot of a job. No side
// effects; safe to call repeatedly on terminal jobs.
func (c *Client) FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	var job domain.Job
	path := fmt.Sprintf("/tasks/%s/status", jobID)
	if err := c.transport.Send(ctx, http.MethodGet, path, nil, &job); err != nil {
		return domain.Job{}, fmt.Errorf("fetch status for job %s: %w", jobID, err)
	}
	return job, nil
}

// FetchAnalysis reads the canonical analysis resource for a filing. A 404
// maps to ErrAnalysisNotFound so callers can use existence as a signal.
func (c *Client) FetchAnalysis(ctx context.Context, accessionNumber string) (*domain.AnalysisReport, error) {
	var report domain.AnalysisReport
	path := fmt.Sprintf("/filings/%s/analysis", accessionNumber)
	if err := c.transport.Send(ctx, http.MethodGet, path, nil, &report); err != nil {
		if transport.IsNotFound(err) {
			return nil, fmt.Errorf("analysis for %s: %w", accessionNumber, ErrAnalysisNotFound)
		}
		return nil, fmt.Errorf("fetch analysis for %s: %w", accessionNumber, err)
	}
	return &report, nil
}

// FetchLatestJob looks up the most recent analysis job for a filing. Used
// by background recovery; a 404 maps to ErrNoJob.
func (c *Client) FetchLatestJob(ctx context.Context, accessionNumber string) (domain.Job, error) {
	var job domain.Job
	path := fmt.Sprintf("/filings/%s/analyze/latest", accessionNumber)
	if err := c.transport.Send(ctx, http.MethodGet, path, nil, &job); err != nil {
		if transport.IsNotFound(err) {
			return domain.Job{}, fmt.Errorf("latest job for %s: %w", accessionNumber, ErrNoJob)
		}
		return domain.Job{}, fmt.Errorf("fetch latest job for %s: %w", accessionNumber, err)
	}
	return job, nil
}
