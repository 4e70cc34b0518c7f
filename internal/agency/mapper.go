package agency

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/pkg/oracle"
)

// Suggester is the model-backed fallback for headings the rule table
// does not cover.
type Suggester interface {
	Suggest(ctx context.Context, hsCode, productName, description string) (*oracle.AgencySuggestion, error)
}

// Mapper resolves which agencies to query for a product. It never
// fails: every fallback below the rule table degrades confidence
// instead of returning an error.
type Mapper struct {
	store    *Store
	suggest  Suggester
	registry *Registry
}

// NewMapper wires the mapper. store and suggest may be nil; the
// mapper then skips those resolution steps.
func NewMapper(store *Store, suggest Suggester, registry *Registry) *Mapper {
	return &Mapper{store: store, suggest: suggest, registry: registry}
}

// Resolve maps the request's HS code to agency targets.
func (m *Mapper) Resolve(ctx context.Context, req model.AnalysisRequest) model.AgencyTargets {
	heading := req.HeadingPrefix()

	if m.store != nil && heading != "" {
		agencies, confidence, ok, err := m.store.Lookup(ctx, heading)
		if err != nil {
			zap.L().Warn("learned mapping lookup failed", zap.String("heading", heading), zap.Error(err))
		} else if ok {
			if err := m.store.RecordUse(ctx, heading); err != nil {
				zap.L().Warn("mapping usage update failed", zap.String("heading", heading), zap.Error(err))
			}
			return buildTargets(agencies, confidence, "learned")
		}
	}

	if agencies, ok := lookupHeading(heading); ok {
		return buildTargets(agencies, RuleConfidence, "rule")
	}

	if m.suggest != nil {
		suggestion, err := m.suggest.Suggest(ctx, req.HSCode, req.ProductName, req.ProductDescription)
		if err != nil {
			zap.L().Warn("agency oracle failed, inferring from chapter",
				zap.String("hs_code", req.HSCode), zap.Error(err))
		} else if agencies := m.filterKnown(append(suggestion.Primary, suggestion.Secondary...)); len(agencies) > 0 {
			if m.store != nil && heading != "" {
				if err := m.store.Save(ctx, heading, agencies, suggestion.Confidence); err != nil {
					zap.L().Warn("save learned mapping failed", zap.String("heading", heading), zap.Error(err))
				}
			}
			return buildTargets(agencies, suggestion.Confidence, "oracle")
		}
	}

	if agencies, ok := inferFromChapter(req.ChapterPrefix()); ok {
		return buildTargets(agencies, InferredConfidence, "inferred")
	}

	return buildTargets(defaultAgencies, InferredConfidence, "default")
}

// filterKnown drops acronyms absent from the manifest so a model
// hallucination cannot steer the gatherer at a nonexistent agency.
func (m *Mapper) filterKnown(agencies []string) []string {
	if m.registry == nil {
		return agencies
	}
	out := make([]string, 0, len(agencies))
	seen := make(map[string]struct{})
	for _, a := range agencies {
		acronym := strings.ToUpper(strings.TrimSpace(a))
		if acronym == "" || !m.registry.Known(acronym) {
			continue
		}
		if _, dup := seen[acronym]; dup {
			continue
		}
		seen[acronym] = struct{}{}
		out = append(out, acronym)
	}
	return out
}
