package model

import "testing"

func TestEvidenceKey_NormalizesTitleAndURL(t *testing.T) {
	a := EvidenceItem{
		Agency:    "fda",
		Title:     "  Cosmetic Registration ",
		SourceURL: "https://www.fda.gov/cosmetics/",
		Required:  true,
	}
	b := EvidenceItem{
		Agency:    "FDA",
		Title:     "cosmetic registration",
		SourceURL: "http://fda.gov/cosmetics",
		Required:  true,
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %+v vs %+v", a.Key(), b.Key())
	}
}

func TestEvidenceKey_RequiredFlagDistinguishes(t *testing.T) {
	a := EvidenceItem{Agency: "FDA", Title: "Labeling", Required: true}
	b := EvidenceItem{Agency: "FDA", Title: "Labeling", Required: false}
	if a.Key() == b.Key() {
		t.Error("required flag should be part of the identity")
	}
}

func TestCitations_DeduplicatesByURL(t *testing.T) {
	set := ConsolidatedRequirementSet{
		Items: []EvidenceItem{
			{Agency: "FDA", Title: "A", SourceURL: "https://fda.gov/a"},
			{Agency: "FDA", Title: "B", SourceURL: "https://www.fda.gov/a/"},
			{Agency: "USDA", Title: "C", SourceURL: "https://usda.gov/c"},
			{Agency: "USDA", Title: "D"},
		},
	}
	cites := set.Citations()
	if len(cites) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(cites))
	}
	if cites[0].Agency != "FDA" || cites[1].Agency != "USDA" {
		t.Errorf("unexpected citation order: %+v", cites)
	}
}

func TestChapterAndHeadingPrefix(t *testing.T) {
	r := AnalysisRequest{HSCode: "3304.99.00"}
	if got := r.ChapterPrefix(); got != "33" {
		t.Errorf("chapter = %q, want 33", got)
	}
	if got := r.HeadingPrefix(); got != "3304" {
		t.Errorf("heading = %q, want 3304", got)
	}
	if got := (AnalysisRequest{HSCode: "9"}).HeadingPrefix(); got != "" {
		t.Errorf("short code heading = %q, want empty", got)
	}
}
