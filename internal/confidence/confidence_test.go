package confidence

import (
	"fmt"
	"testing"
	"time"

	"github.com/lawgenie/compliance-cli/internal/evidence"
	"github.com/lawgenie/compliance-cli/internal/model"
)

func freshItem(agency, provider, title string) model.EvidenceItem {
	return model.EvidenceItem{
		Agency:      agency,
		Title:       title,
		Description: "details",
		SourceURL:   "https://" + agency + ".gov/" + title,
		Provenance: model.Provenance{
			Provider:    provider,
			RetrievedAt: time.Now(),
		},
	}
}

func TestCalculateEmptySetIsLowWithZeroScore(t *testing.T) {
	result := Calculate(Inputs{
		Set:     model.ConsolidatedRequirementSet{},
		Targets: model.AgencyTargets{Primary: []string{"FDA"}, Confidence: 0.9},
	})
	if result.Score != 0.0 {
		t.Fatalf("expected score 0.0, got %v", result.Score)
	}
	if result.Level != model.ConfidenceLow {
		t.Fatalf("expected LOW, got %s", result.Level)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for empty evidence")
	}
}

func TestCalculateNearMaximalEvidenceIsHigh(t *testing.T) {
	// 20 requirements from one agency across 20 official-API sources,
	// all current, full agency match.
	var items []model.EvidenceItem
	for i := 0; i < 20; i++ {
		items = append(items, freshItem("FDA", "datagov", fmt.Sprintf("rule-%d", i)))
	}
	set := evidence.Consolidate(items)

	result := Calculate(Inputs{
		Set:     set,
		Targets: model.AgencyTargets{Primary: []string{"FDA"}, Confidence: 0.9, Source: "rule"},
	})
	if result.Level != model.ConfidenceHigh {
		t.Fatalf("expected HIGH, got %s (score %v)", result.Level, result.Score)
	}
	if result.Score < 0.9 {
		t.Fatalf("expected score >= 0.9, got %v", result.Score)
	}
	if len(result.Factors) != 5 {
		t.Fatalf("expected 5 factor entries, got %v", result.Factors)
	}
}

func TestCalculateSourceQualityMonotonic(t *testing.T) {
	official := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "registration"),
		freshItem("FDA", "datagov", "labeling"),
	})
	scraped := evidence.Consolidate([]model.EvidenceItem{
		{Agency: "FDA", Title: "registration", Description: "details",
			SourceURL:  "https://example.com/registration",
			Provenance: model.Provenance{Provider: "scrape", RetrievedAt: time.Now()}},
		{Agency: "FDA", Title: "labeling", Description: "details",
			SourceURL:  "https://example.com/labeling",
			Provenance: model.Provenance{Provider: "scrape", RetrievedAt: time.Now()}},
	})

	targets := model.AgencyTargets{Primary: []string{"FDA"}, Confidence: 0.9}
	high := Calculate(Inputs{Set: official, Targets: targets})
	low := Calculate(Inputs{Set: scraped, Targets: targets})

	if high.Breakdown.SourceQuality <= low.Breakdown.SourceQuality {
		t.Fatalf("official sources must outrank scraped: %v vs %v",
			high.Breakdown.SourceQuality, low.Breakdown.SourceQuality)
	}
	if high.Score <= low.Score {
		t.Fatalf("better sources must raise the score: %v vs %v", high.Score, low.Score)
	}
}

func TestCalculateMappingConfidenceCapsScore(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "registration"),
		freshItem("FDA", "tavily", "labeling"),
		freshItem("FDA", "datagov", "testing"),
	})
	strong := Calculate(Inputs{
		Set:     set,
		Targets: model.AgencyTargets{Primary: []string{"FDA"}, Confidence: 0.9},
	})
	weak := Calculate(Inputs{
		Set:     set,
		Targets: model.AgencyTargets{Primary: []string{"FDA"}, Confidence: 0.0, Source: "default"},
	})
	if weak.Score >= strong.Score {
		t.Fatalf("weak mapping should cap the score: weak %v, strong %v", weak.Score, strong.Score)
	}
	if len(weak.Warnings) == 0 {
		t.Fatal("expected low-mapping warning")
	}
}

func TestAgencyMatchCountsCoveredTargets(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "registration"),
		freshItem("FDA", "datagov", "labeling"),
	})
	result := Calculate(Inputs{
		Set: set,
		Targets: model.AgencyTargets{
			Primary:    []string{"FDA"},
			Secondary:  []string{"USDA", "CBP", "EPA"},
			Confidence: 0.9,
		},
	})
	// One of four targeted agencies has evidence.
	if result.Breakdown.AgencyMatch != 0.25 {
		t.Fatalf("expected agency match 0.25, got %v", result.Breakdown.AgencyMatch)
	}
	found := false
	for _, w := range result.Warnings {
		if w == "evidence covers fewer than half of the targeted agencies" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage warning, got %v", result.Warnings)
	}
}

func TestConsistencyRewardsDominantAgency(t *testing.T) {
	split := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "registration"),
		freshItem("USDA", "datagov", "organic"),
	})
	dominant := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "registration"),
		freshItem("FDA", "datagov", "labeling"),
		freshItem("FDA", "datagov", "testing"),
	})

	if got := consistency(split); got != 0.75 {
		t.Fatalf("even split should score 0.5*1.5=0.75, got %v", got)
	}
	if got := consistency(dominant); got != 1.0 {
		t.Fatalf("single-agency evidence should saturate at 1.0, got %v", got)
	}
}

func TestCalculateSingleOfficialSourceAtLeastMedium(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		freshItem("FDA", "datagov", "cosmetic-registration"),
	})
	result := Calculate(Inputs{
		Set: set,
		Targets: model.AgencyTargets{
			Primary:    []string{"FDA"},
			Secondary:  []string{"CPSC", "CBP"},
			Confidence: 0.9,
			Source:     "rule",
		},
	})
	if result.Score < 0.4 {
		t.Fatalf("one official source should reach at least MEDIUM, got %v (%s)",
			result.Score, result.Level)
	}
}

func TestLevelBandBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  model.ConfidenceLevel
	}{
		{0.95, model.ConfidenceHigh},
		{0.8, model.ConfidenceHigh},
		{0.79, model.ConfidenceMediumHigh},
		{0.6, model.ConfidenceMediumHigh},
		{0.59, model.ConfidenceMedium},
		{0.4, model.ConfidenceMedium},
		{0.39, model.ConfidenceMediumLow},
		{0.2, model.ConfidenceMediumLow},
		{0.19, model.ConfidenceLow},
		{0.0, model.ConfidenceLow},
	}
	for _, tc := range cases {
		if got := Level(tc.score); got != tc.want {
			t.Fatalf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestRecencyPrefersEffectiveDate(t *testing.T) {
	now := time.Now()
	stale := now.Add(-4 * 365 * 24 * time.Hour)
	item := freshItem("FDA", "datagov", "registration")
	item.EffectiveAt = &stale

	// RetrievedAt is fresh, but the effective date wins.
	if got := recency([]model.EvidenceItem{item}, now); got != 0.0 {
		t.Fatalf("stale effective date should score 0, got %v", got)
	}
}

func TestRecencyUndatedIsNeutral(t *testing.T) {
	item := freshItem("FDA", "datagov", "registration")
	item.Provenance.RetrievedAt = time.Time{}

	if got := recency([]model.EvidenceItem{item}, time.Now()); got != 0.5 {
		t.Fatalf("undated evidence should score 0.5, got %v", got)
	}
}
