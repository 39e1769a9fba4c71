package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"filing-lens/internal/analysis"
	"filing-lens/internal/config"
	"filing-lens/internal/diagnostics"
	"filing-lens/internal/domain"
	"filing-lens/internal/filings"
	"filing-lens/internal/progress"
	"filing-lens/internal/transport"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// progressEventName is the push channel the frontend listens on.
const progressEventName = "analysis:progress"

// App wires configuration, the analysis orchestrator, and UI runtime
// callbacks. The snapshot bus outlives orchestrator rebuilds so the
// frontend keeps one uninterrupted event stream.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	log         *zap.Logger
	bus         *progress.Bus

	mu           sync.Mutex
	orchestrator *analysis.Orchestrator
	runtimeCtx   context.Context
	unsubscribe  func()
}

// New builds the application with persisted settings and startup
// diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".filing-lens", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(logger)
	report := checker.Run(context.Background(), settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		log:         logger,
		bus:         progress.NewBus(1000),
	}
	app.orchestrator = app.buildOrchestrator(settings)
	return app, nil
}

// buildOrchestrator assembles the transport stack for current settings.
func (a *App) buildOrchestrator(settings domain.Settings) *analysis.Orchestrator {
	client := filings.NewClient(transport.New(settings.APIBaseURL, settings.APIToken, a.log))
	return analysis.NewOrchestrator(client, a.bus, a.log, analysis.Config{SoftTimeout: true})
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Filing Lens",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and starts forwarding
// snapshots to the frontend.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	snapshots, cancel := a.bus.Subscribe()
	a.mu.Lock()
	a.unsubscribe = cancel
	a.mu.Unlock()

	go func() {
		for snap := range snapshots {
			a.mu.Lock()
			rctx := a.runtimeCtx
			a.mu.Unlock()
			if rctx != nil {
				wailsruntime.EventsEmit(rctx, progressEventName, snap)
			}
		}
	}()
}

// Shutdown stops snapshot forwarding and releases the runtime context.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.runtimeCtx = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	_ = a.log.Sync()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns connectivity checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(context.Background(), settings)
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, rebuilds the transport
// stack, and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	a.orchestrator = a.buildOrchestrator(normalized)
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(context.Background(), normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// StartAnalysis submits and monitors one analysis job. The returned
// promise resolves with the final outcome; progress arrives separately
// through analysis:progress events.
func (a *App) StartAnalysis(accessionNumber string, opts domain.AnalysisOptions) (analysis.Outcome, error) {
	accessionNumber = strings.TrimSpace(accessionNumber)
	if accessionNumber == "" {
		return analysis.Outcome{}, fmt.Errorf("accession number is empty")
	}

	a.mu.Lock()
	orchestrator := a.orchestrator
	if opts.Template == "" {
		opts.Template = a.Settings.DefaultTemplate
	}
	a.mu.Unlock()

	outcome, err := orchestrator.StartAnalysis(context.Background(), accessionNumber, opts)
	if err != nil {
		a.log.Error("analysis failed",
			zap.String("accessionNumber", accessionNumber),
			zap.Error(err),
		)
		return analysis.Outcome{}, err
	}
	return outcome, nil
}

// CheckBackgroundAnalysis looks for an analysis started before the UI
// loaded and re-attaches to it or resolves it from the stored report.
func (a *App) CheckBackgroundAnalysis(accessionNumber string) (analysis.Outcome, error) {
	a.mu.Lock()
	orchestrator := a.orchestrator
	a.mu.Unlock()

	return orchestrator.CheckBackgroundAnalysis(context.Background(), strings.TrimSpace(accessionNumber))
}

// CancelAnalysis stops the active monitoring session for a filing.
func (a *App) CancelAnalysis(accessionNumber string) error {
	a.mu.Lock()
	orchestrator := a.orchestrator
	a.mu.Unlock()

	return orchestrator.Cancel(strings.TrimSpace(accessionNumber))
}

// ResetProgress clears a finished snapshot stream back to idle.
func (a *App) ResetProgress() {
	a.mu.Lock()
	orchestrator := a.orchestrator
	a.mu.Unlock()

	orchestrator.ResetProgress()
}

// ProgressEvents returns all snapshots with sequence greater than
// sinceSeq, letting a reloaded frontend re-sync the stream.
func (a *App) ProgressEvents(sinceSeq int64) []progress.Snapshot {
	return a.bus.Since(sinceSeq)
}

// CurrentProgress returns the most recent snapshot, or nil before any
// analysis activity.
func (a *App) CurrentProgress() *progress.Snapshot {
	snap, ok := a.bus.Latest()
	if !ok {
		return nil
	}
	return &snap
}

// normalizeSettings trims user inputs and applies the default template
// when empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.APIBaseURL = strings.TrimRight(strings.TrimSpace(settings.APIBaseURL), "/")
	settings.APIToken = strings.TrimSpace(settings.APIToken)
	settings.DefaultTemplate = strings.TrimSpace(settings.DefaultTemplate)
	if settings.DefaultTemplate == "" {
		settings.DefaultTemplate = config.DefaultSettings().DefaultTemplate
	}
	return settings
}
