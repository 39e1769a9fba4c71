package domain

import "time"

// AnalysisOptions customizes one analysis submission.
type AnalysisOptions struct {
	Template        string   `json:"template,omitempty"`
	Sections        []string `json:"sections,omitempty"`
	ForceReanalysis bool     `json:"forceReanalysis,omitempty"`
}

// AnalysisSection is one reviewed portion of a filing.
type AnalysisSection struct {
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment,omitempty"`
}

// AnalysisReport is the canonical analysis resource for a filing. The job
// result payload may be partial, so job success only signals that this
// resource should be re-read.
type AnalysisReport struct {
	AccessionNumber string            `json:"accessionNumber"`
	Template        string            `json:"template"`
	Summary         string            `json:"summary"`
	Sections        []AnalysisSection `json:"sections,omitempty"`
	GeneratedAt     time.Time         `json:"generatedAt"`
}
