package evidence

import (
	"testing"

	"github.com/lawgenie/compliance-cli/internal/model"
)

func TestConsolidateDropsDuplicatesFirstSeenWins(t *testing.T) {
	items := []model.EvidenceItem{
		{
			Agency: "FDA", Title: "Facility Registration",
			SourceURL:  "https://www.fda.gov/registration/",
			Required:   true,
			Provenance: model.Provenance{Provider: "datagov"},
		},
		{
			// Same claim from a different provider: case and URL
			// scheme differ but the key matches.
			Agency: "fda", Title: "FACILITY REGISTRATION",
			SourceURL:  "http://fda.gov/registration",
			Required:   true,
			Provenance: model.Provenance{Provider: "tavily"},
		},
		{
			Agency: "FDA", Title: "Color Additive Approval",
			SourceURL: "https://fda.gov/color-additives",
			Required:  true,
		},
		{
			Agency: "CPSC", Title: "Facility Registration",
			SourceURL: "https://cpsc.gov/registration",
		},
	}

	set := Consolidate(items)

	if set.Total != 3 {
		t.Fatalf("expected 3 unique items, got %d", set.Total)
	}
	if set.Items[0].Provenance.Provider != "datagov" {
		t.Fatalf("first occurrence must win, got provider %s", set.Items[0].Provenance.Provider)
	}
	if set.CountsByAgency["FDA"] != 2 || set.CountsByAgency["CPSC"] != 1 {
		t.Fatalf("unexpected agency counts: %v", set.CountsByAgency)
	}

	again := Consolidate(set.Items)
	if again.Total != set.Total {
		t.Fatalf("consolidating a consolidated set changed it: %d -> %d", set.Total, again.Total)
	}
}

func TestConsolidateRequiredFlagDistinguishes(t *testing.T) {
	items := []model.EvidenceItem{
		{Agency: "FDA", Title: "Labeling Review", SourceURL: "https://fda.gov/labels", Required: true},
		{Agency: "FDA", Title: "Labeling Review", SourceURL: "https://fda.gov/labels", Required: false},
	}
	set := Consolidate(items)
	if set.Total != 2 {
		t.Fatalf("differing required flags are distinct claims, got %d", set.Total)
	}
}

func TestConsolidateEmpty(t *testing.T) {
	set := Consolidate(nil)
	if set.Total != 0 || len(set.Items) != 0 {
		t.Fatalf("unexpected set: %+v", set)
	}
}
