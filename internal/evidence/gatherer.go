package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/internal/agency"
	"github.com/lawgenie/compliance-cli/internal/cache"
	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/internal/parallel"
)

// strategies are tried per agency, narrowest formulation first.
var strategies = []Strategy{StrategyCode, StrategyKeyword, StrategyFreeText}

// maxKeywordPrefix bounds the keyword-strategy broadening: prefixes of
// the ranked keyword list are tried as top-1, top-2, top-3.
const maxKeywordPrefix = 3

// Gatherer fans one analysis out into per-agency, per-strategy tasks.
// Providers are tried in order per task; the first one that returns
// items wins. Task failures degrade the analysis instead of aborting
// it.
type Gatherer struct {
	providers []Provider
	registry  *agency.Registry
	runner    *parallel.Runner
	breakers  *parallel.ProviderBreakers
	cache     *cache.Tiered
	retry     parallel.RetryConfig
}

// NewGatherer wires the gatherer. cache may be nil (tests, cache
// bypass).
func NewGatherer(providers []Provider, registry *agency.Registry, runner *parallel.Runner, tiered *cache.Tiered) *Gatherer {
	return &Gatherer{
		providers: providers,
		registry:  registry,
		runner:    runner,
		breakers:  parallel.NewProviderBreakers(parallel.DefaultCircuitConfig()),
		cache:     tiered,
		retry:     parallel.DefaultRetryConfig(),
	}
}

// Outcome is the gathering result: every item found plus a warning
// per failed task.
type Outcome struct {
	Items    []model.EvidenceItem
	Warnings []string
}

// CacheKey is the evidence cache key for one agency, strategy, and
// code.
func CacheKey(agencyAcronym string, strategy Strategy, hsCode string) string {
	return fmt.Sprintf("evidence:%s:%s:%s", strings.ToUpper(agencyAcronym), strategy, hsCode)
}

// Gather runs all agency×strategy tasks through the bounded runner and
// merges their results in task order. Zero items overall is a valid
// outcome. The keyword strategy is skipped when extraction produced
// nothing.
func (g *Gatherer) Gather(ctx context.Context, req model.AnalysisRequest, targets model.AgencyTargets, keywords []string, mode parallel.Mode) Outcome {
	agencies := append(append([]string{}, targets.Primary...), targets.Secondary...)

	var tasks []parallel.Task
	for _, acronym := range agencies {
		info, ok := g.registry.Lookup(acronym)
		if !ok {
			zap.L().Warn("skipping unknown agency", zap.String("agency", acronym))
			continue
		}
		for _, strategy := range strategies {
			if strategy == StrategyKeyword && len(keywords) == 0 {
				continue
			}
			q := Query{
				Agency:      info,
				Strategy:    strategy,
				HSCode:      req.HSCode,
				ProductName: req.ProductName,
				Description: req.ProductDescription,
				Keywords:    keywords,
			}
			tasks = append(tasks, parallel.Task{
				ID: fmt.Sprintf("%s/%s", info.Acronym, strategy),
				Fn: func(ctx context.Context) (any, error) {
					return g.gatherOne(ctx, q, req.ForceRefresh)
				},
			})
		}
	}

	results := g.runner.RunAll(ctx, tasks, mode, 0)

	var out Outcome
	for _, res := range results {
		if !res.OK() {
			zap.L().Warn("evidence task failed",
				zap.String("task", res.TaskID),
				zap.Error(res.Err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("evidence %s: %v", res.TaskID, res.Err))
			continue
		}
		items, _ := res.Value.([]model.EvidenceItem)
		out.Items = append(out.Items, items...)
	}
	return out
}

// gatherOne resolves a single agency×strategy query: cache, then the
// provider waterfall.
func (g *Gatherer) gatherOne(ctx context.Context, q Query, forceRefresh bool) ([]model.EvidenceItem, error) {
	key := CacheKey(q.Agency.Acronym, q.Strategy, q.HSCode)

	if g.cache != nil && !forceRefresh {
		if raw := g.cache.Get(ctx, key); raw != nil {
			var items []model.EvidenceItem
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
			// Corrupt entry; drop it and regather.
			g.cache.Delete(ctx, key)
		}
	}

	items, err := g.search(ctx, q)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			g.cache.Set(ctx, key, raw, cache.TTLEvidence)
		}
	}
	return items, nil
}

// search runs the waterfall for one query. The keyword strategy
// broadens through escalating prefixes of the ranked keyword list
// (top-1, then top-2, then top-3) until one returns results.
func (g *Gatherer) search(ctx context.Context, q Query) ([]model.EvidenceItem, error) {
	if q.Strategy != StrategyKeyword {
		return g.waterfall(ctx, q)
	}

	limit := len(q.Keywords)
	if limit > maxKeywordPrefix {
		limit = maxKeywordPrefix
	}
	var lastErr error
	for n := 1; n <= limit; n++ {
		sub := q
		sub.Keywords = q.Keywords[:n]
		items, err := g.waterfall(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
		lastErr = nil
	}
	return nil, lastErr
}

// waterfall tries each provider in order. A provider error moves on
// to the next provider; only all providers failing is an error. Empty
// results from every provider is a legitimate zero-evidence answer.
func (g *Gatherer) waterfall(ctx context.Context, q Query) ([]model.EvidenceItem, error) {
	var lastErr error
	failures := 0
	for _, p := range g.providers {
		breaker := g.breakers.Get(p.Name())
		items, err := parallel.Call(ctx, breaker, func(ctx context.Context) ([]model.EvidenceItem, error) {
			return parallel.Retry(ctx, g.retryFor(p.Name()), func(ctx context.Context) ([]model.EvidenceItem, error) {
				return p.Gather(ctx, q)
			})
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Debug("provider failed, falling through",
				zap.String("provider", p.Name()),
				zap.String("agency", q.Agency.Acronym),
				zap.String("strategy", string(q.Strategy)),
				zap.Error(err))
			lastErr = err
			failures++
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if failures == len(g.providers) && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (g *Gatherer) retryFor(provider string) parallel.RetryConfig {
	cfg := g.retry
	cfg.OnRetry = parallel.RetryLogger(provider, "gather")
	return cfg
}

// BreakerStates exposes per-provider circuit states for the stats
// endpoint.
func (g *Gatherer) BreakerStates() map[string]string {
	states := g.breakers.States()
	out := make(map[string]string, len(states))
	for name, state := range states {
		out[name] = state.String()
	}
	return out
}

// Refresh regathers a single agency×strategy query, bypassing the
// cache. The refresh endpoint uses it to rebuild entries without a
// full analysis.
func (g *Gatherer) Refresh(ctx context.Context, acronym string, strategy Strategy, req model.AnalysisRequest, keywords []string) ([]model.EvidenceItem, error) {
	info, ok := g.registry.Lookup(acronym)
	if !ok {
		return nil, eris.Errorf("unknown agency %q", acronym)
	}
	if !strategy.Valid() {
		return nil, eris.Errorf("unknown strategy %q", strategy)
	}
	q := Query{
		Agency:      info,
		Strategy:    strategy,
		HSCode:      req.HSCode,
		ProductName: req.ProductName,
		Description: req.ProductDescription,
		Keywords:    keywords,
	}
	start := time.Now()
	items, err := g.gatherOne(ctx, q, true)
	if err != nil {
		return nil, err
	}
	zap.L().Info("evidence refreshed",
		zap.String("agency", info.Acronym),
		zap.String("strategy", string(strategy)),
		zap.Int("items", len(items)),
		zap.Duration("elapsed", time.Since(start)))
	return items, nil
}
