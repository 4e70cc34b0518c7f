package model

import "time"

// AnalysisStatus is the terminal state of one pipeline run.
type AnalysisStatus string

const (
	StatusCompleted AnalysisStatus = "completed"
	StatusDegraded  AnalysisStatus = "degraded"
	StatusFailed    AnalysisStatus = "failed"
)

// StageStatus records how one pipeline stage ended.
type StageStatus string

const (
	StageComplete StageStatus = "complete"
	StageFallback StageStatus = "fallback"
	StageSkipped  StageStatus = "skipped"
	StageFailed   StageStatus = "failed"
)

// StageRecord is the audit entry for one stage. Records are append-only; a
// later stage never rewrites an earlier stage's entry.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`
	Warning    string      `json:"warning,omitempty"`
}

// SummaryClaim is one cited statement in the structured summary.
type SummaryClaim struct {
	Text     string   `json:"text"`
	Citation Citation `json:"citation"`
}

// StructuredSummary is the summarization oracle's output: a bilingual answer
// with its claims individually cited.
type StructuredSummary struct {
	Answer   string         `json:"answer"`
	AnswerKO string         `json:"answer_ko,omitempty"`
	Claims   []SummaryClaim `json:"claims,omitempty"`
}

// AgencyTargets is the targeter output carried through the pipeline.
type AgencyTargets struct {
	Primary    []string `json:"primary"`
	Secondary  []string `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"` // rule | learned | oracle | inferred | default
}

// AnalysisResult is the single immutable output of one pipeline run.
type AnalysisResult struct {
	ID              string                     `json:"id"`
	Request         AnalysisRequest            `json:"request"`
	Status          AnalysisStatus             `json:"status"`
	Keywords        []string                   `json:"keywords,omitempty"`
	Targets         AgencyTargets              `json:"targets"`
	Requirements    ConsolidatedRequirementSet `json:"requirements"`
	Citations       []Citation                 `json:"citations,omitempty"`
	Summary         *StructuredSummary         `json:"summary,omitempty"`
	Confidence      ConfidenceResult           `json:"confidence"`
	Validation      ValidationResult           `json:"validation"`
	CrossValidation CrossValidation            `json:"cross_validation"`
	Conflicts       []Conflict                 `json:"conflicts"`
	Stages          []StageRecord              `json:"stages"`
	Warnings        []string                   `json:"warnings,omitempty"`
	FromCache       bool                       `json:"from_cache,omitempty"`
	StartedAt       time.Time                  `json:"started_at"`
	ElapsedMS       int64                      `json:"elapsed_ms"`
}
