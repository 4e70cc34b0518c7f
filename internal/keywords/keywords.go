// Package keywords turns a product name and description into the
// search terms the evidence gatherer queries with. The language-model
// extractor runs first; a frequency heuristic covers model outages.
package keywords

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/pkg/oracle"
)

// DefaultLimit is how many keywords an analysis uses.
const DefaultLimit = 3

// Extractor produces search keywords for a product.
type Extractor interface {
	Extract(ctx context.Context, productName, description string) ([]string, error)
}

// Chain tries each extractor in order and returns the first non-empty
// result. It never fails: the last extractor is the heuristic, which
// always produces something for non-empty input.
type Chain struct {
	extractors []Extractor
}

// NewChain builds the production chain: oracle first, heuristic
// fallback.
func NewChain(keywordOracle *oracle.KeywordOracle) *Chain {
	return &Chain{extractors: []Extractor{
		&oracleExtractor{oracle: keywordOracle},
		&Heuristic{Limit: DefaultLimit},
	}}
}

// NewChainOf builds a chain from explicit extractors, for tests and
// offline mode.
func NewChainOf(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Extract runs the chain. An extractor error demotes to the next
// extractor with a warning rather than failing the analysis.
func (c *Chain) Extract(ctx context.Context, productName, description string) ([]string, error) {
	var lastErr error
	for _, ex := range c.extractors {
		kws, err := ex.Extract(ctx, productName, description)
		if err != nil {
			zap.L().Warn("keyword extractor failed, trying next",
				zap.String("product", productName),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(kws) > 0 {
			return kws, nil
		}
	}
	return nil, lastErr
}

type oracleExtractor struct {
	oracle *oracle.KeywordOracle
}

func (o *oracleExtractor) Extract(ctx context.Context, productName, description string) ([]string, error) {
	return o.oracle.Extract(ctx, productName, description, DefaultLimit)
}

// Heuristic is the model-free fallback: tokenize, drop stopwords and
// short tokens, rank by frequency then first appearance.
type Heuristic struct {
	Limit int
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {},
	"that": {}, "are": {}, "was": {}, "has": {}, "have": {}, "its": {},
	"can": {}, "will": {}, "made": {}, "used": {}, "use": {}, "other": {},
	"product": {}, "products": {}, "item": {}, "items": {},
}

func (h *Heuristic) Extract(_ context.Context, productName, description string) ([]string, error) {
	limit := h.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	text := strings.ToLower(productName + " " + description)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		counts[tok]++
		if _, ok := firstSeen[tok]; !ok {
			firstSeen[tok] = i
		}
	}

	unique := make([]string, 0, len(counts))
	for tok := range counts {
		unique = append(unique, tok)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return firstSeen[unique[i]] < firstSeen[unique[j]]
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique, nil
}
