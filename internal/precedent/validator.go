package precedent

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// Score weighting: coverage of precedent requirements dominates; the
// quality of the individual matches refines it.
const (
	coverageWeight   = 0.7
	similarityWeight = 0.3
)

// NoPrecedentScore is the neutral score when the corpus has nothing
// for a heading. New product categories must not be punished for
// having no history.
const NoPrecedentScore = 0.5

// Report caps keep the result readable; the full sets rarely add
// signal past these.
const (
	maxMissing       = 5
	maxExtra         = 5
	maxExtraRedFlags = 2
)

// Verdict thresholds.
const (
	reliableThreshold    = 0.85
	needsReviewThreshold = 0.7
)

var highSeverityMarkers = []string{"prohibited", "banned", "illegal", "violation", "penalty"}
var mediumSeverityMarkers = []string{"required", "mandatory", "must", "certification", "approval"}

// Validator compares consolidated requirements against the decided
// cases of the same HS heading.
type Validator struct {
	corpus Corpus
	sim    Similarity
}

// NewValidator wires the validator. A nil similarity defaults to
// word-overlap matching.
func NewValidator(corpus Corpus, sim Similarity) *Validator {
	if sim == nil {
		sim = JaccardWords{}
	}
	return &Validator{corpus: corpus, sim: sim}
}

type precedentStatement struct {
	text   string
	caseID string
}

// Validate scores the analysis against the corpus. Cases are matched
// by heading first, then by lexical similarity to the product and its
// requirements; only when both come back empty is the NO_PRECEDENTS
// policy answer returned, which is not a failure.
func (v *Validator) Validate(ctx context.Context, req model.AnalysisRequest, set model.ConsolidatedRequirementSet) (model.ValidationResult, error) {
	cases, err := v.corpus.SearchByCode(ctx, req.HSCode)
	if err != nil {
		return model.ValidationResult{}, eris.Wrap(err, "search precedent corpus")
	}
	if len(cases) == 0 {
		cases, err = v.corpus.SearchSimilar(ctx, similarityQuery(req, set))
		if err != nil {
			return model.ValidationResult{}, eris.Wrap(err, "search similar precedents")
		}
	}
	if len(cases) == 0 {
		return model.ValidationResult{
			Score:   NoPrecedentScore,
			Verdict: model.VerdictNoPrecedents,
		}, nil
	}

	statements := collectStatements(cases)
	result := model.ValidationResult{CasesAnalyzed: len(cases)}

	matchedOurs := make(map[int]bool)
	similaritySum := 0.0
	var missing []model.MissingRequirement

	for _, stmt := range statements {
		bestIdx, bestScore := -1, 0.0
		for i, item := range set.Items {
			s := v.sim.Score(stmt.text, item.Title)
			if s > bestScore {
				bestIdx, bestScore = i, s
			}
		}
		if bestIdx >= 0 && bestScore > MatchThreshold {
			matchedOurs[bestIdx] = true
			similaritySum += bestScore
			result.Matched = append(result.Matched, model.RequirementMatch{
				Ours:       set.Items[bestIdx].Title,
				Precedent:  stmt.text,
				Similarity: bestScore,
				Type:       string(set.Items[bestIdx].Kind),
			})
			continue
		}
		missing = append(missing, model.MissingRequirement{
			Requirement: stmt.text,
			PrecedentID: stmt.caseID,
			Severity:    missingSeverity(stmt.text),
		})
	}

	coverage := float64(len(result.Matched)) / float64(len(statements))
	avgSimilarity := 0.0
	if len(result.Matched) > 0 {
		avgSimilarity = similaritySum / float64(len(result.Matched))
	}
	result.Score = coverageWeight*coverage + similarityWeight*avgSimilarity

	// Highest severity first, then cap.
	sort.SliceStable(missing, func(i, j int) bool {
		return severityRank(missing[i].Severity) > severityRank(missing[j].Severity)
	})
	hasHighMissing := len(missing) > 0 && severityRank(missing[0].Severity) >= severityRank(model.SeverityHigh)
	if len(missing) > maxMissing {
		missing = missing[:maxMissing]
	}
	result.Missing = missing

	result.Extra = collectExtra(set, matchedOurs)
	result.RedFlags = buildRedFlags(result.Missing, result.Extra)
	result.Verdict = verdict(result.Score, hasHighMissing)
	return result, nil
}

// similarityQuery renders the request and its consolidated findings
// as one text for corpus similarity search.
func similarityQuery(req model.AnalysisRequest, set model.ConsolidatedRequirementSet) string {
	parts := []string{req.ProductName, req.ProductDescription}
	for _, item := range set.Items {
		parts = append(parts, item.Title)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// collectStatements splits case text into individual requirement
// statements. Case exports separate statements with newlines or
// semicolons.
func collectStatements(cases []model.PrecedentCase) []precedentStatement {
	var out []precedentStatement
	for _, pc := range cases {
		for _, line := range strings.FieldsFunc(pc.Text, func(r rune) bool {
			return r == '\n' || r == ';'
		}) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			out = append(out, precedentStatement{text: line, caseID: pc.ID})
		}
	}
	return out
}

func collectExtra(set model.ConsolidatedRequirementSet, matched map[int]bool) []model.ExtraRequirement {
	var out []model.ExtraRequirement
	for i, item := range set.Items {
		if matched[i] {
			continue
		}
		out = append(out, model.ExtraRequirement{
			Requirement: item.Title,
			Type:        string(item.Kind),
			Note:        "no precedent counterpart",
		})
		if len(out) == maxExtra {
			break
		}
	}
	return out
}

func buildRedFlags(missing []model.MissingRequirement, extra []model.ExtraRequirement) []model.RedFlag {
	var flags []model.RedFlag
	for _, m := range missing {
		if severityRank(m.Severity) < severityRank(model.SeverityHigh) {
			continue
		}
		flags = append(flags, model.RedFlag{
			Type:           "missing_enforced_requirement",
			Severity:       m.Severity,
			Description:    "precedent cases enforced a requirement this analysis did not surface: " + m.Requirement,
			Recommendation: "verify against precedent case " + m.PrecedentID + " before relying on this analysis",
		})
	}
	extraFlags := 0
	for _, e := range extra {
		if extraFlags == maxExtraRedFlags {
			break
		}
		flags = append(flags, model.RedFlag{
			Type:        "unverified_requirement",
			Severity:    model.SeverityLow,
			Description: "requirement has no precedent support: " + e.Requirement,
		})
		extraFlags++
	}
	return flags
}

func missingSeverity(text string) model.Severity {
	lower := strings.ToLower(text)
	for _, marker := range highSeverityMarkers {
		if strings.Contains(lower, marker) {
			return model.SeverityHigh
		}
	}
	for _, marker := range mediumSeverityMarkers {
		if strings.Contains(lower, marker) {
			return model.SeverityMedium
		}
	}
	return model.SeverityLow
}

func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityHigh:
		return 2
	case model.SeverityMedium:
		return 1
	default:
		return 0
	}
}

func verdict(score float64, hasHighMissing bool) model.Verdict {
	switch {
	case score >= reliableThreshold && !hasHighMissing:
		return model.VerdictReliable
	case score >= needsReviewThreshold:
		return model.VerdictNeedsReview
	default:
		return model.VerdictUnreliable
	}
}
