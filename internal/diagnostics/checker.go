package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"filing-lens/internal/domain"
	"filing-lens/internal/transport"
)

const probeTimeout = 5 * time.Second

// Checker validates client configuration and backend reachability before
// the first analysis is started.
type Checker struct {
	log   *zap.Logger
	probe func(ctx context.Context, settings domain.Settings) error
}

// NewChecker builds a checker that probes the real backend.
func NewChecker(log *zap.Logger) *Checker {
	c := &Checker{log: log}
	c.probe = func(ctx context.Context, settings domain.Settings) error {
		client := transport.New(settings.APIBaseURL, settings.APIToken, log)
		return client.Send(ctx, http.MethodGet, "/healthz", nil, nil)
	}
	return c
}

// NewCheckerForTests builds a checker with an injectable backend probe.
func NewCheckerForTests(log *zap.Logger, probe func(ctx context.Context, settings domain.Settings) error) *Checker {
	c := NewChecker(log)
	c.probe = probe
	return c
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	baseURLItem := c.checkBaseURL(settings.APIBaseURL)
	items := []domain.DiagnosticItem{
		baseURLItem,
		c.checkToken(settings.APIToken),
	}
	if baseURLItem.Status == domain.DiagnosticStatusPass {
		items = append(items, c.checkBackend(ctx, settings))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkBaseURL validates the configured API endpoint.
func (c *Checker) checkBaseURL(baseURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_base_url",
		Name: "API base URL",
	}

	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "API base URL is empty."
		item.Hint = "Set the analysis service URL in settings."
		return item
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("API base URL is not a valid http(s) URL: %s", trimmed)
		item.Hint = "Use a full URL such as https://api.filinglens.dev."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", trimmed)
	return item
}

// checkToken verifies a bearer credential is configured.
func (c *Checker) checkToken(token string) domain.DiagnosticItem {
	if strings.TrimSpace(token) == "" {
		return domain.DiagnosticItem{
			ID:      "api_token",
			Name:    "API token",
			Status:  domain.DiagnosticStatusFail,
			Message: "No API token configured.",
			Hint:    "Paste your service token in settings before starting an analysis.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "api_token",
		Name:    "API token",
		Status:  domain.DiagnosticStatusPass,
		Message: "Token configured.",
	}
}

// checkBackend probes the health endpoint through the transport layer.
func (c *Checker) checkBackend(ctx context.Context, settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_reachable",
		Name: "Analysis service",
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.probe(probeCtx, settings); err != nil {
		c.log.Warn("backend probe failed", zap.Error(err))
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Service is not reachable: %v", err)
		item.Hint = "Check your network connection and the configured base URL."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Service responded."
	return item
}
