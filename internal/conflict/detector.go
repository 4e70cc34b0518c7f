// Package conflict scans the consolidated requirement set for
// contradictions between agencies. Detection is pattern-driven: each
// pattern names an agency pair plus the keyword sets whose
// co-occurrence across that pair signals a contradiction.
package conflict

import (
	"fmt"
	"strings"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// severityWeights convert conflict severities into the validation
// score penalty.
var severityWeights = map[model.Severity]float64{
	model.SeverityLow:      0.1,
	model.SeverityMedium:   0.3,
	model.SeverityHigh:     0.6,
	model.SeverityCritical: 1.0,
}

// maxPenalty caps the total severity penalty before normalization.
const maxPenalty = 2.0

// pattern describes one known contradiction class. A conflict fires
// when one agency's items mention the positive keywords and the
// paired agency's items mention the contradicting ones, in either
// direction.
type pattern struct {
	name          string
	kind          model.ConflictKind
	agencies      [2]string
	positive      []string
	contradicting []string
	severity      model.Severity
	resolution    string
}

var patterns = []pattern{
	{
		name:          "organic certification",
		kind:          model.ConflictAgency,
		agencies:      [2]string{"FDA", "USDA"},
		positive:      []string{"organic", "usda organic"},
		contradicting: []string{"organic claim", "not certified", "misbranded"},
		severity:      model.SeverityHigh,
		resolution:    "USDA National Organic Program governs organic claims; FDA governs the product itself. Obtain NOP certification before labeling organic.",
	},
	{
		name:          "food additive approval",
		kind:          model.ConflictAgency,
		agencies:      [2]string{"FDA", "USDA"},
		positive:      []string{"additive", "gras", "food contact"},
		contradicting: []string{"prohibited", "not approved", "unapproved"},
		severity:      model.SeverityCritical,
		resolution:    "Confirm the additive's approval status in FDA's food additive inventory before import; USDA rules apply only to meat, poultry, and egg products.",
	},
	{
		name:          "pesticide residue tolerance",
		kind:          model.ConflictAgency,
		agencies:      [2]string{"FDA", "EPA"},
		positive:      []string{"pesticide", "residue", "tolerance"},
		contradicting: []string{"exceed", "violation", "no tolerance"},
		severity:      model.SeverityCritical,
		resolution:    "EPA sets residue tolerances; FDA enforces them at the border. Verify the specific tolerance for each crop-chemical combination.",
	},
	{
		name:          "safety standard overlap",
		kind:          model.ConflictAgency,
		agencies:      [2]string{"CPSC", "FDA"},
		positive:      []string{"safety standard", "testing", "children"},
		contradicting: []string{"recall", "ban", "hazard"},
		severity:      model.SeverityHigh,
		resolution:    "CPSC governs general product safety; FDA governs health claims and ingestible or topical exposure. Both certifications may be needed.",
	},
	{
		name:          "labeling requirements",
		kind:          model.ConflictAgency,
		agencies:      [2]string{"FDA", "USDA"},
		positive:      []string{"label", "labeling", "ingredient statement"},
		contradicting: []string{"misbranded", "false labeling", "relabel"},
		severity:      model.SeverityMedium,
		resolution:    "Follow the stricter labeling rule; FDA format governs unless the product is USDA-regulated meat, poultry, or egg.",
	},
}

// Detector runs the cross-validation pass.
type Detector struct{}

// NewDetector creates a conflict detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect scans the consolidated set and scores overall consistency.
// No conflicts yields a validation score of 1.0.
func (d *Detector) Detect(set model.ConsolidatedRequirementSet) model.CrossValidation {
	byAgency := set.ByAgency()

	var conflicts []model.Conflict
	for _, p := range patterns {
		a, b := p.agencies[0], p.agencies[1]
		itemsA, okA := byAgency[a]
		itemsB, okB := byAgency[b]
		if !okA || !okB {
			continue
		}
		// Symmetric: either side may carry the contradicting language.
		posA, conA := matchItems(itemsA, p.positive), matchItems(itemsA, p.contradicting)
		posB, conB := matchItems(itemsB, p.positive), matchItems(itemsB, p.contradicting)

		var affected []model.EvidenceKey
		switch {
		case len(posA) > 0 && len(conB) > 0:
			affected = append(keysOf(posA), keysOf(conB)...)
		case len(posB) > 0 && len(conA) > 0:
			affected = append(keysOf(posB), keysOf(conA)...)
		default:
			continue
		}

		conflicts = append(conflicts, model.Conflict{
			Kind:     p.kind,
			Agencies: []string{a, b},
			Severity: p.severity,
			Description: fmt.Sprintf("%s and %s requirements disagree on %s (%d affected items)",
				a, b, p.name, len(affected)),
			Resolution:    p.resolution,
			AffectedItems: affected,
		})
	}

	return model.CrossValidation{
		Conflicts:       conflicts,
		ValidationScore: score(conflicts),
		Recommendations: recommendations(conflicts),
	}
}

// score maps accumulated severity into [0,1]: 1.0 with no conflicts,
// 0.0 once penalties reach the cap.
func score(conflicts []model.Conflict) float64 {
	total := 0.0
	for _, c := range conflicts {
		total += severityWeights[c.Severity]
	}
	if total > maxPenalty {
		total = maxPenalty
	}
	return 1.0 - total/maxPenalty
}

func recommendations(conflicts []model.Conflict) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range conflicts {
		if _, dup := seen[c.Resolution]; dup {
			continue
		}
		seen[c.Resolution] = struct{}{}
		out = append(out, c.Resolution)
	}
	return out
}

func matchItems(items []model.EvidenceItem, keywords []string) []model.EvidenceItem {
	var out []model.EvidenceItem
	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Description)
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func keysOf(items []model.EvidenceItem) []model.EvidenceKey {
	keys := make([]model.EvidenceKey, len(items))
	for i, item := range items {
		keys[i] = item.Key()
	}
	return keys
}
