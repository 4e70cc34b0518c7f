package model

// ConfidenceLevel is one of five discrete bands.
type ConfidenceLevel string

const (
	ConfidenceHigh       ConfidenceLevel = "HIGH"        // >= 0.8
	ConfidenceMediumHigh ConfidenceLevel = "MEDIUM_HIGH" // >= 0.6
	ConfidenceMedium     ConfidenceLevel = "MEDIUM"      // >= 0.4
	ConfidenceMediumLow  ConfidenceLevel = "MEDIUM_LOW"  // >= 0.2
	ConfidenceLow        ConfidenceLevel = "LOW"
)

// FactorBreakdown holds the five weighted factor scores, each in [0,1].
type FactorBreakdown struct {
	SourceQuality    float64 `json:"source_quality"`
	DataCompleteness float64 `json:"data_completeness"`
	AgencyMatch      float64 `json:"agency_match"`
	Recency          float64 `json:"recency"`
	Consistency      float64 `json:"consistency"`
}

// ConfidenceResult is the weighted confidence for one analysis.
type ConfidenceResult struct {
	Score     float64         `json:"score"`
	Level     ConfidenceLevel `json:"level"`
	Breakdown FactorBreakdown `json:"breakdown"`
	Factors   []string        `json:"factors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}
