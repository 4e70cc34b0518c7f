package model

// Outcome labels the decided result of a historical case.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeReview  Outcome = "review"
)

// PrecedentCase is one historical decided instance from the corpus.
type PrecedentCase struct {
	ID      string  `json:"id"`
	HSCode  string  `json:"hs_code"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Outcome Outcome `json:"outcome"`
}

// Verdict is the precedent validator's overall judgment.
type Verdict string

const (
	VerdictReliable     Verdict = "RELIABLE"
	VerdictNeedsReview  Verdict = "NEEDS_REVIEW"
	VerdictUnreliable   Verdict = "UNRELIABLE"
	VerdictNoPrecedents Verdict = "NO_PRECEDENTS"
)

// RequirementMatch pairs one of our requirements with a precedent requirement.
type RequirementMatch struct {
	Ours       string  `json:"ours"`
	Precedent  string  `json:"precedent"`
	Similarity float64 `json:"similarity"`
	Type       string  `json:"type"`
}

// MissingRequirement is a precedent requirement our analysis did not surface.
type MissingRequirement struct {
	Requirement string   `json:"requirement"`
	PrecedentID string   `json:"precedent_id"`
	Severity    Severity `json:"severity"`
}

// ExtraRequirement is one of ours with no precedent counterpart. Informational.
type ExtraRequirement struct {
	Requirement string `json:"requirement"`
	Type        string `json:"type"`
	Note        string `json:"note,omitempty"`
}

// RedFlag is a warning raised during precedent validation.
type RedFlag struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ValidationResult compares consolidated requirements against the corpus.
type ValidationResult struct {
	Score         float64              `json:"score"`
	CasesAnalyzed int                  `json:"cases_analyzed"`
	Matched       []RequirementMatch   `json:"matched,omitempty"`
	Missing       []MissingRequirement `json:"missing,omitempty"`
	Extra         []ExtraRequirement   `json:"extra,omitempty"`
	RedFlags      []RedFlag            `json:"red_flags,omitempty"`
	Verdict       Verdict              `json:"verdict"`
}
