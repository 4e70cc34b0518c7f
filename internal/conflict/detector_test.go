package conflict

import (
	"math"
	"testing"

	"github.com/lawgenie/compliance-cli/internal/evidence"
	"github.com/lawgenie/compliance-cli/internal/model"
)

func item(agency, title, desc string) model.EvidenceItem {
	return model.EvidenceItem{
		Agency: agency, Title: title, Description: desc,
		SourceURL: "https://" + agency + ".gov/" + title,
	}
}

func TestDetectNoConflictsScoresOne(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		item("FDA", "Facility Registration", "register the production facility"),
		item("CPSC", "Tracking Label", "permanent tracking information"),
	})

	cv := NewDetector().Detect(set)
	if len(cv.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", cv.Conflicts)
	}
	if cv.ValidationScore != 1.0 {
		t.Fatalf("expected score 1.0, got %v", cv.ValidationScore)
	}
}

func TestDetectOrganicCertificationConflict(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		item("FDA", "Organic Cosmetic Oversight", "organic ingredient marketing on cosmetics"),
		item("USDA", "NOP Enforcement", "products not certified under the National Organic Program are misbranded"),
	})

	cv := NewDetector().Detect(set)
	if len(cv.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", cv.Conflicts)
	}
	c := cv.Conflicts[0]
	if c.Severity != model.SeverityHigh {
		t.Fatalf("expected high severity, got %s", c.Severity)
	}
	if c.Kind != model.ConflictAgency {
		t.Fatalf("expected agency conflict, got %s", c.Kind)
	}
	if len(c.AffectedItems) != 2 {
		t.Fatalf("expected 2 affected items, got %d", len(c.AffectedItems))
	}
	// One high conflict: 1 - 0.6/2.0 = 0.7.
	if math.Abs(cv.ValidationScore-0.7) > 1e-9 {
		t.Fatalf("expected score 0.7, got %v", cv.ValidationScore)
	}
	if len(cv.Recommendations) != 1 {
		t.Fatalf("expected a resolution recommendation, got %v", cv.Recommendations)
	}
}

func TestDetectIsSymmetric(t *testing.T) {
	// Positive language on USDA's side, contradiction on FDA's.
	set := evidence.Consolidate([]model.EvidenceItem{
		item("USDA", "Organic Certification", "usda organic certification for agricultural products"),
		item("FDA", "Import Refusal Notice", "organic claim found misbranded at entry"),
	})

	cv := NewDetector().Detect(set)
	if len(cv.Conflicts) != 1 {
		t.Fatalf("expected symmetric detection, got %+v", cv.Conflicts)
	}
}

func TestDetectSingleAgencyCannotConflict(t *testing.T) {
	set := evidence.Consolidate([]model.EvidenceItem{
		item("FDA", "Organic Labeling", "organic claims"),
		item("FDA", "Misbranding Notice", "misbranded organic claim"),
	})

	cv := NewDetector().Detect(set)
	if len(cv.Conflicts) != 0 {
		t.Fatalf("pattern needs both agencies present, got %+v", cv.Conflicts)
	}
}

func TestScorePenaltyCaps(t *testing.T) {
	conflicts := []model.Conflict{
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityHigh},
	}
	// Sum 2.6 caps at 2.0, so the floor is 0.
	if got := score(conflicts); got != 0 {
		t.Fatalf("expected floor score 0, got %v", got)
	}
}

func TestScoreMixedSeverities(t *testing.T) {
	conflicts := []model.Conflict{
		{Severity: model.SeverityLow},
		{Severity: model.SeverityMedium},
	}
	// 1 - 0.4/2.0 = 0.8.
	if got := score(conflicts); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("expected 0.8, got %v", got)
	}
}
