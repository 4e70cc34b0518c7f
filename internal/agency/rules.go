// Package agency maps HS codes to the federal agencies that regulate
// them. Resolution order: learned mappings, the static rule table,
// the language-model oracle, then chapter-band inference. The result
// is never empty; an unknown product defaults to FDA with CBP as the
// catch-all secondary.
package agency

import "github.com/lawgenie/compliance-cli/internal/model"

// Mapping confidence by source. Static rules are curated; inferred
// chapter bands are a guess.
const (
	RuleConfidence     = 0.9
	InferredConfidence = 0.4
)

// CBP reviews every import regardless of product category.
const catchAllSecondary = "CBP"

// headingRules maps 4-digit HS headings to regulating agencies,
// primary first.
var headingRules = map[string][]string{
	"3304": {"FDA", "CPSC"}, // cosmetics
	"3307": {"FDA"},         // toiletries
	"2106": {"FDA", "USDA"}, // food preparations
	"1904": {"FDA", "USDA"}, // prepared cereals
	"1905": {"FDA", "USDA"}, // baked goods
	"1902": {"FDA", "USDA"}, // pasta
	"2005": {"FDA", "USDA"}, // prepared vegetables
	"8471": {"FCC", "CPSC"}, // computers
	"8517": {"FCC", "CPSC"}, // phones and network gear
	"6109": {"CPSC"},        // apparel
	"9503": {"CPSC", "FDA"}, // toys
}

// chapterBand is a coarse product-category inference from the 2-digit
// HS chapter.
type chapterBand struct {
	lo, hi   string
	agencies []string
}

var chapterBands = []chapterBand{
	{"01", "24", []string{"FDA", "USDA"}}, // agricultural and food
	{"28", "38", []string{"EPA", "FDA"}},  // chemical
	{"84", "85", []string{"FCC", "CPSC"}}, // electronics
	{"90", "96", []string{"FDA", "CPSC"}}, // instruments and misc manufactured
}

// defaultAgencies applies when no rule, oracle answer, or band
// matches.
var defaultAgencies = []string{"FDA"}

// lookupHeading returns the static rule for a 4-digit heading, if any.
func lookupHeading(heading string) ([]string, bool) {
	agencies, ok := headingRules[heading]
	return agencies, ok
}

// inferFromChapter returns the band agencies for a 2-digit chapter,
// if one covers it.
func inferFromChapter(chapter string) ([]string, bool) {
	if len(chapter) != 2 {
		return nil, false
	}
	for _, band := range chapterBands {
		if chapter >= band.lo && chapter <= band.hi {
			return band.agencies, true
		}
	}
	return nil, false
}

// buildTargets splits an agency list into primary and secondary and
// appends the customs catch-all.
func buildTargets(agencies []string, confidence float64, source string) model.AgencyTargets {
	if len(agencies) == 0 {
		agencies = defaultAgencies
	}
	targets := model.AgencyTargets{
		Primary:    agencies[:1],
		Confidence: confidence,
		Source:     source,
	}
	for _, a := range agencies[1:] {
		targets.Secondary = append(targets.Secondary, a)
	}
	if !containsAgency(targets.Primary, catchAllSecondary) && !containsAgency(targets.Secondary, catchAllSecondary) {
		targets.Secondary = append(targets.Secondary, catchAllSecondary)
	}
	return targets
}

func containsAgency(agencies []string, name string) bool {
	for _, a := range agencies {
		if a == name {
			return true
		}
	}
	return false
}
