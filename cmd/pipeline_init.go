package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/internal/agency"
	"github.com/lawgenie/compliance-cli/internal/analysis"
	"github.com/lawgenie/compliance-cli/internal/cache"
	"github.com/lawgenie/compliance-cli/internal/conflict"
	"github.com/lawgenie/compliance-cli/internal/evidence"
	"github.com/lawgenie/compliance-cli/internal/keywords"
	"github.com/lawgenie/compliance-cli/internal/parallel"
	"github.com/lawgenie/compliance-cli/internal/precedent"
	"github.com/lawgenie/compliance-cli/internal/stats"
	"github.com/lawgenie/compliance-cli/pkg/datagov"
	"github.com/lawgenie/compliance-cli/pkg/oracle"
	"github.com/lawgenie/compliance-cli/pkg/tavily"
	"github.com/lawgenie/compliance-cli/pkg/webscrape"
)

// pipelineEnv holds all initialized clients, stores, and the analyzer
// needed by the analyze/serve/cache/stats commands.
type pipelineEnv struct {
	Tiered   *cache.Tiered
	SQLite   *cache.SQLiteTier
	Runner   *parallel.Runner
	Gatherer *evidence.Gatherer
	Analyzer *analysis.Analyzer
	Mappings *agency.Store
	Corpus   *precedent.SQLiteCorpus
	Stats    *stats.Collector

	closers []interface{ Close() error }
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		if err := pe.closers[i].Close(); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// initPipeline sets up the cache tiers, provider clients, stores, and
// the analyzer. Callers should defer env.Close(). Components whose
// credentials are missing are skipped with a warning; the pipeline
// degrades rather than refuses to start.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	env := &pipelineEnv{}

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create cache dir")
	}

	// Cache tiers fastest-first: in-process memory, local sqlite, then
	// the shared redis tier when enabled.
	cacheMetrics := cache.NewMetrics(prometheus.DefaultRegisterer)
	memTier := cache.NewMemoryTier(cfg.Cache.MemoryCapacity)
	memTier.OnEvict(func() { cacheMetrics.RecordEviction(memTier.Name()) })
	tiers := []cache.Tier{memTier}
	sqliteTier, err := cache.NewSQLiteTier(filepath.Join(cfg.Cache.Dir, "cache.db"))
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open sqlite cache")
	}
	tiers = append(tiers, sqliteTier)
	env.SQLite = sqliteTier
	env.closers = append(env.closers, sqliteTier)
	if cfg.Cache.RedisEnabled {
		redisTier, err := cache.NewRedisTier(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			zap.L().Warn("redis unavailable, continuing without it", zap.Error(err))
		} else {
			tiers = append(tiers, redisTier)
			env.closers = append(env.closers, redisTier)
		}
	}
	env.Tiered = cache.NewTiered(cacheMetrics, tiers...)

	registry, err := agency.LoadRegistry()
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load agency registry")
	}

	mappings, err := agency.NewStore(filepath.Join(cfg.Cache.Dir, "mappings.db"))
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open mapping store")
	}
	env.Mappings = mappings
	env.closers = append(env.closers, mappings)

	// Model-backed components are optional; without a key the keyword
	// heuristic and rule-based mapping still run.
	var (
		kw         *keywords.Chain
		suggester  agency.Suggester
		reqOracle  *oracle.RequirementOracle
		summarizer analysis.Summarizer
	)
	if cfg.Anthropic.Key != "" {
		client := oracle.NewClient(cfg.Anthropic.Key)
		kw = keywords.NewChain(oracle.NewKeywordOracle(client, oracle.WithModel(cfg.Anthropic.FastModel)))
		suggester = oracle.NewAgencyOracle(client, oracle.WithModel(cfg.Anthropic.FastModel))
		reqOracle = oracle.NewRequirementOracle(client, oracle.WithModel(cfg.Anthropic.FastModel))
		summarizer = analysis.NewOracleSummarizer(oracle.NewSummaryOracle(client, oracle.WithModel(cfg.Anthropic.QualityModel)))
	} else {
		zap.L().Warn("COMPLIANCE_ANTHROPIC_KEY not set, running with heuristics only")
		kw = keywords.NewChainOf(&keywords.Heuristic{})
	}

	// Evidence providers in waterfall order: structured catalog data
	// first, web search second, page scraping last.
	var providers []evidence.Provider
	providers = append(providers, evidence.NewDatagovProvider(
		datagov.NewClient(datagov.WithBaseURL(cfg.Datagov.BaseURL))))
	if cfg.Tavily.Key != "" {
		providers = append(providers, evidence.NewTavilyProvider(
			tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))))
	} else {
		zap.L().Warn("COMPLIANCE_TAVILY_KEY not set, web search provider disabled")
	}
	if reqOracle != nil {
		providers = append(providers, evidence.NewScrapeProvider(webscrape.New(), reqOracle))
	}

	env.Runner = parallel.NewRunner(cfg.Pipeline.MaxInFlight, cfg.Pipeline.TaskTimeout())
	env.Gatherer = evidence.NewGatherer(providers, registry, env.Runner, env.Tiered)

	corpus, err := precedent.NewSQLiteCorpus(cfg.Precedent.DBPath)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open precedent corpus")
	}
	env.Corpus = corpus
	env.closers = append(env.closers, corpus)

	stageMetrics := analysis.NewStageMetrics(prometheus.DefaultRegisterer)
	env.Analyzer = analysis.New(
		kw,
		agency.NewMapper(mappings, suggester, registry),
		env.Gatherer,
		conflict.NewDetector(),
		precedent.NewValidator(corpus, nil),
		summarizer,
		env.Tiered,
		analysis.Options{
			Mode:   parallel.Mode(cfg.Pipeline.Mode),
			Stages: stageMetrics,
		},
	)

	env.Stats = &stats.Collector{
		Tiered:   env.Tiered,
		Runner:   env.Runner,
		Stages:   stageMetrics,
		Breakers: env.Gatherer,
		Mappings: mappings,
		Corpus:   corpus,
	}

	return env, nil
}
