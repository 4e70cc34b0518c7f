// Package confidence scores how much an analysis result should be
// trusted. Five weighted factors feed a raw score, which is then
// scaled by how confident the agency mapping itself was.
package confidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// Factor weights. These sum to 1.0 and are tuned against labeled
// analyst reviews; change them only with a new calibration run.
const (
	WeightSourceQuality    = 0.30
	WeightDataCompleteness = 0.25
	WeightAgencyMatch      = 0.20
	WeightRecency          = 0.15
	WeightConsistency      = 0.10
)

// Mapping adjustment: the raw factor score is scaled into
// [mappingFloor, 1.0] of itself by the agency-mapping confidence, so
// a guessed mapping caps the result even when the evidence looks
// good.
const (
	mappingFloor  = 0.7
	mappingWeight = 0.3
)

// Per-source trust: structured official APIs beat official-domain
// pages beat everything else.
const (
	trustOfficialAPI    = 1.0
	trustOfficialDomain = 0.8
	trustDefault        = 0.5
)

// Completeness saturates at these volumes.
const (
	expectedRequirements = 20
	expectedSources      = 10
)

// Evidence older than this no longer counts as recent.
const recencyWindow = 3 * 365 * 24 * time.Hour

// consistencyBoost scales the top-agency share so a clear majority
// saturates the factor.
const consistencyBoost = 1.5

// Inputs carries everything the calculator reads. Now defaults to
// time.Now when zero.
type Inputs struct {
	Set     model.ConsolidatedRequirementSet
	Targets model.AgencyTargets
	Now     time.Time
}

// Calculate produces the weighted confidence result. An empty
// evidence set scores 0.0/LOW outright.
func Calculate(in Inputs) model.ConfidenceResult {
	if in.Set.Total == 0 {
		return model.ConfidenceResult{
			Score:    0.0,
			Level:    model.ConfidenceLow,
			Warnings: []string{"no evidence gathered; confidence floor applied"},
		}
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	breakdown := model.FactorBreakdown{
		SourceQuality:    sourceQuality(in.Set.Items),
		DataCompleteness: dataCompleteness(in.Set),
		AgencyMatch:      agencyMatch(in.Set, in.Targets),
		Recency:          recency(in.Set.Items, in.Now),
		Consistency:      consistency(in.Set),
	}

	raw := WeightSourceQuality*breakdown.SourceQuality +
		WeightDataCompleteness*breakdown.DataCompleteness +
		WeightAgencyMatch*breakdown.AgencyMatch +
		WeightRecency*breakdown.Recency +
		WeightConsistency*breakdown.Consistency

	score := clamp(raw * (mappingFloor + mappingWeight*clamp(in.Targets.Confidence)))

	result := model.ConfidenceResult{
		Score:     score,
		Level:     Level(score),
		Breakdown: breakdown,
		Factors: []string{
			fmt.Sprintf("source_quality=%.2f", breakdown.SourceQuality),
			fmt.Sprintf("data_completeness=%.2f", breakdown.DataCompleteness),
			fmt.Sprintf("agency_match=%.2f", breakdown.AgencyMatch),
			fmt.Sprintf("recency=%.2f", breakdown.Recency),
			fmt.Sprintf("consistency=%.2f", breakdown.Consistency),
		},
	}
	if in.Targets.Confidence < 0.5 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("agency mapping is low confidence (%s, %.2f); result capped accordingly",
				in.Targets.Source, in.Targets.Confidence))
	}
	if breakdown.AgencyMatch < 0.5 {
		result.Warnings = append(result.Warnings, "evidence covers fewer than half of the targeted agencies")
	}
	return result
}

// Level maps a score onto the five discrete bands.
func Level(score float64) model.ConfidenceLevel {
	switch {
	case score >= 0.8:
		return model.ConfidenceHigh
	case score >= 0.6:
		return model.ConfidenceMediumHigh
	case score >= 0.4:
		return model.ConfidenceMedium
	case score >= 0.2:
		return model.ConfidenceMediumLow
	default:
		return model.ConfidenceLow
	}
}

func sourceQuality(items []model.EvidenceItem) float64 {
	total := 0.0
	for _, item := range items {
		switch {
		case item.Provenance.Provider == "datagov":
			total += trustOfficialAPI
		case strings.Contains(item.SourceURL, ".gov"):
			total += trustOfficialDomain
		default:
			total += trustDefault
		}
	}
	return total / float64(len(items))
}

// dataCompleteness blends requirement volume with the number of
// distinct sources backing them.
func dataCompleteness(set model.ConsolidatedRequirementSet) float64 {
	volume := clamp(float64(set.Total) / expectedRequirements)

	urls := make(map[string]struct{})
	for _, item := range set.Items {
		if item.SourceURL != "" {
			urls[item.SourceURL] = struct{}{}
		}
	}
	sources := clamp(float64(len(urls)) / expectedSources)

	return 0.5*volume + 0.5*sources
}

// agencyMatch is the share of targeted agencies actually represented
// in the evidence.
func agencyMatch(set model.ConsolidatedRequirementSet, targets model.AgencyTargets) float64 {
	targeted := make(map[string]struct{})
	for _, a := range targets.Primary {
		targeted[strings.ToUpper(a)] = struct{}{}
	}
	for _, a := range targets.Secondary {
		targeted[strings.ToUpper(a)] = struct{}{}
	}
	if len(targeted) == 0 {
		return 0
	}

	covered := make(map[string]struct{})
	for _, item := range set.Items {
		acronym := strings.ToUpper(item.Agency)
		if _, ok := targeted[acronym]; ok {
			covered[acronym] = struct{}{}
		}
	}
	return float64(len(covered)) / float64(len(targeted))
}

// recency is the fraction of dated evidence inside the recency
// window; undated evidence scores a neutral 0.5.
func recency(items []model.EvidenceItem, now time.Time) float64 {
	dated, recent := 0, 0
	for _, item := range items {
		at := item.Provenance.RetrievedAt
		if item.EffectiveAt != nil {
			at = *item.EffectiveAt
		}
		if at.IsZero() {
			continue
		}
		dated++
		if now.Sub(at) <= recencyWindow {
			recent++
		}
	}
	if dated == 0 {
		return 0.5
	}
	return float64(recent) / float64(dated)
}

// consistency rewards evidence concentrated on one agency; a clear
// majority saturates the factor.
func consistency(set model.ConsolidatedRequirementSet) float64 {
	if set.Total < 2 {
		return 1.0
	}
	top := 0
	for _, n := range set.CountsByAgency {
		if n > top {
			top = n
		}
	}
	return clamp(float64(top) / float64(set.Total) * consistencyBoost)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
