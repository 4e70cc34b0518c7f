package model

// ConflictKind classifies a detected regulatory contradiction.
type ConflictKind string

const (
	ConflictAgency        ConflictKind = "agency_conflict"
	ConflictFederalState  ConflictKind = "federal_state_conflict"
	ConflictInternational ConflictKind = "international_conflict"
)

// Severity grades a conflict or a missing requirement.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Conflict is one contradictory pair of claims between independent sources.
type Conflict struct {
	Kind          ConflictKind  `json:"kind"`
	Agencies      []string      `json:"agencies"`
	Severity      Severity      `json:"severity"`
	Description   string        `json:"description"`
	Resolution    string        `json:"resolution"`
	AffectedItems []EvidenceKey `json:"affected_items,omitempty"`
}

// CrossValidation is the conflict-detector output for one analysis.
type CrossValidation struct {
	Conflicts       []Conflict `json:"conflicts"`
	ValidationScore float64    `json:"validation_score"`
	Recommendations []string   `json:"recommendations,omitempty"`
}
