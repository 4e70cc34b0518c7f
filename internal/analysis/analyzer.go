// Package analysis orchestrates one compliance analysis end to end:
// keywords, agency targeting, evidence gathering, consolidation,
// cross-validation and precedent checks, summary, and scoring. Stage
// failures degrade the result instead of aborting it; only context
// cancellation stops a run.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lawgenie/compliance-cli/internal/agency"
	"github.com/lawgenie/compliance-cli/internal/cache"
	"github.com/lawgenie/compliance-cli/internal/confidence"
	"github.com/lawgenie/compliance-cli/internal/conflict"
	"github.com/lawgenie/compliance-cli/internal/evidence"
	"github.com/lawgenie/compliance-cli/internal/keywords"
	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/internal/parallel"
	"github.com/lawgenie/compliance-cli/internal/precedent"
)

// Summarizer renders the final cited summary. Kept as an interface so
// offline mode and tests can skip the model.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) (*model.StructuredSummary, error)
}

// SummaryInput is what the summarizer needs from the pipeline.
type SummaryInput struct {
	Request      model.AnalysisRequest
	Requirements model.ConsolidatedRequirementSet
	Conflicts    []model.Conflict
}

// Analyzer runs the pipeline. All collaborators are injected at
// construction; an Analyzer is safe for concurrent use.
type Analyzer struct {
	keywords   *keywords.Chain
	mapper     *agency.Mapper
	gatherer   *evidence.Gatherer
	detector   *conflict.Detector
	validator  *precedent.Validator
	summarizer Summarizer
	cache      *cache.Tiered
	mode       parallel.Mode
	stages     *StageMetrics
}

// Options toggles optional collaborators.
type Options struct {
	// Mode selects how evidence tasks are scheduled. Defaults to
	// parallel.
	Mode parallel.Mode
	// Stages, when set, accumulates stage outcomes across runs.
	Stages *StageMetrics
}

// New wires an Analyzer. summarizer and tiered may be nil; the
// corresponding stages then fall back (plain summary) or are skipped
// (result caching).
func New(
	kw *keywords.Chain,
	mapper *agency.Mapper,
	gatherer *evidence.Gatherer,
	detector *conflict.Detector,
	validator *precedent.Validator,
	summarizer Summarizer,
	tiered *cache.Tiered,
	opts Options,
) *Analyzer {
	mode := opts.Mode
	if mode == "" {
		mode = parallel.ModeParallel
	}
	return &Analyzer{
		keywords:   kw,
		mapper:     mapper,
		gatherer:   gatherer,
		detector:   detector,
		validator:  validator,
		summarizer: summarizer,
		cache:      tiered,
		mode:       mode,
		stages:     opts.Stages,
	}
}

// ResultCacheKey is the cache key for a finished analysis.
func ResultCacheKey(req model.AnalysisRequest) string {
	product := strings.ToLower(strings.Join(strings.Fields(req.ProductName), "-"))
	return fmt.Sprintf("analysis:%s:%s", req.HSCode, product)
}

// Analyze runs the full pipeline for one request.
func (a *Analyzer) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	log := zap.L().With(zap.String("hs_code", req.HSCode), zap.String("product", req.ProductName))

	if a.cache != nil && !req.ForceRefresh {
		if raw := a.cache.Get(ctx, ResultCacheKey(req)); raw != nil {
			var cached model.AnalysisResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.FromCache = true
				log.Info("analysis served from cache", zap.String("id", cached.ID))
				return &cached, nil
			}
			a.cache.Delete(ctx, ResultCacheKey(req))
		}
	}
	if a.cache != nil && req.ForceRefresh {
		// Drop only this product's entry; other products sharing the
		// HS code keep their cached analyses.
		a.cache.Delete(ctx, ResultCacheKey(req))
		log.Info("force refresh dropped cached analysis")
	}

	start := time.Now()
	result := &model.AnalysisResult{
		ID:        uuid.NewString(),
		Request:   req,
		StartedAt: start,
	}
	log = log.With(zap.String("id", result.ID))
	log.Info("analysis started")

	// Stage records are append-only; the mutex covers the parallel
	// validation stages.
	var stageMu sync.Mutex
	trackStage := func(name string, fn func() (model.StageStatus, string, error)) error {
		stageStart := time.Now()
		status, warning, err := fn()
		record := model.StageRecord{
			Name:       name,
			Status:     status,
			DurationMS: time.Since(stageStart).Milliseconds(),
			Warning:    warning,
		}
		if err != nil {
			record.Status = model.StageFailed
			record.Warning = err.Error()
			log.Error("stage failed", zap.String("stage", name), zap.Error(err))
		} else {
			log.Info("stage finished",
				zap.String("stage", name),
				zap.String("status", string(status)),
				zap.Int64("duration_ms", record.DurationMS))
		}
		if a.stages != nil {
			a.stages.Record(name, record.Status)
		}
		stageMu.Lock()
		result.Stages = append(result.Stages, record)
		if record.Warning != "" {
			result.Warnings = append(result.Warnings, name+": "+record.Warning)
		}
		stageMu.Unlock()
		return err
	}

	// Keywords. The chain falls back internally; a total failure
	// proceeds with the raw product name.
	_ = trackStage("extract_keywords", func() (model.StageStatus, string, error) {
		kws, err := a.keywords.Extract(ctx, req.ProductName, req.ProductDescription)
		if err != nil || len(kws) == 0 {
			return model.StageFallback, "keyword extraction unavailable; using product name", nil
		}
		result.Keywords = kws
		return model.StageComplete, "", nil
	})

	// Agency targeting never fails; confidence reflects the source.
	_ = trackStage("target_agencies", func() (model.StageStatus, string, error) {
		result.Targets = a.mapper.Resolve(ctx, req)
		if result.Targets.Source == "default" {
			return model.StageFallback, "no mapping found; defaulted to FDA", nil
		}
		return model.StageComplete, "", nil
	})

	// Evidence gathering. Partial provider failures become warnings
	// and lower completeness.
	var outcome evidence.Outcome
	_ = trackStage("gather_evidence", func() (model.StageStatus, string, error) {
		outcome = a.gatherer.Gather(ctx, req, result.Targets, result.Keywords, a.mode)
		if ctx.Err() != nil {
			return model.StageFallback, "deadline reached; proceeding with partial evidence", nil
		}
		if len(outcome.Warnings) > 0 {
			return model.StageFallback, fmt.Sprintf("%d of %d evidence tasks failed",
				len(outcome.Warnings), len(outcome.Warnings)+len(outcome.Items)), nil
		}
		return model.StageComplete, "", nil
	})

	if err := ctx.Err(); err != nil && len(outcome.Items) == 0 {
		result.Status = model.StatusFailed
		return result, err
	}

	// Consolidation is pure and always runs; zero evidence is a valid
	// (low-confidence) analysis.
	_ = trackStage("consolidate", func() (model.StageStatus, string, error) {
		result.Requirements = evidence.Consolidate(outcome.Items)
		result.Citations = result.Requirements.Citations()
		if result.Requirements.Total == 0 {
			return model.StageComplete, "no requirements found for this product", nil
		}
		return model.StageComplete, "", nil
	})

	// Cross-validation and precedent checks are independent; run them
	// together.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trackStage("detect_conflicts", func() (model.StageStatus, string, error) {
			result.CrossValidation = a.detector.Detect(result.Requirements)
			result.Conflicts = result.CrossValidation.Conflicts
			return model.StageComplete, "", nil
		})
	})
	g.Go(func() error {
		_ = trackStage("validate_precedents", func() (model.StageStatus, string, error) {
			validation, err := a.validator.Validate(gCtx, req, result.Requirements)
			if err != nil {
				result.Validation = model.ValidationResult{
					Score:   precedent.NoPrecedentScore,
					Verdict: model.VerdictNoPrecedents,
				}
				return model.StageFallback, "precedent corpus unavailable: " + err.Error(), nil
			}
			result.Validation = validation
			return model.StageComplete, "", nil
		})
		return nil
	})
	_ = g.Wait()

	// Summary. Model failure falls back to a generated plain answer.
	_ = trackStage("summarize", func() (model.StageStatus, string, error) {
		if result.Requirements.Total == 0 {
			result.Summary = fallbackSummary(result.Requirements)
			return model.StageComplete, "", nil
		}
		if a.summarizer == nil {
			result.Summary = fallbackSummary(result.Requirements)
			return model.StageFallback, "summary generated without model", nil
		}
		summary, err := a.summarizer.Summarize(ctx, SummaryInput{
			Request:      req,
			Requirements: result.Requirements,
			Conflicts:    result.Conflicts,
		})
		if err != nil {
			result.Summary = fallbackSummary(result.Requirements)
			return model.StageFallback, "summary model failed: " + err.Error(), nil
		}
		result.Summary = summary
		return model.StageComplete, "", nil
	})

	// Scoring is deterministic over the other stages' outputs.
	_ = trackStage("score", func() (model.StageStatus, string, error) {
		result.Confidence = confidence.Calculate(confidence.Inputs{
			Set:     result.Requirements,
			Targets: result.Targets,
		})
		return model.StageComplete, "", nil
	})

	result.Status = finalStatus(result)
	result.ElapsedMS = time.Since(start).Milliseconds()

	if a.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			a.cache.Set(ctx, ResultCacheKey(req), raw, cache.TTLAnalysis)
		}
	}

	log.Info("analysis finished",
		zap.String("status", string(result.Status)),
		zap.Int("requirements", result.Requirements.Total),
		zap.Float64("confidence", result.Confidence.Score),
		zap.Int64("elapsed_ms", result.ElapsedMS))
	return result, nil
}

// finalStatus derives the run status from the stage records: any
// failed or fallback stage degrades the run.
func finalStatus(result *model.AnalysisResult) model.AnalysisStatus {
	for _, stage := range result.Stages {
		if stage.Status == model.StageFailed {
			return model.StatusDegraded
		}
		if stage.Status == model.StageFallback {
			return model.StatusDegraded
		}
	}
	return model.StatusCompleted
}

// koFallbackHeader prefixes the fallback's Korean answer field; the
// body below it stays in English when the model is unavailable.
const koFallbackHeader = "[요약] 아래 내용은 영문으로 제공됩니다."

// fallbackSummary builds a minimal summary without the model: the
// required items first, one claim per cited source.
func fallbackSummary(set model.ConsolidatedRequirementSet) *model.StructuredSummary {
	if set.Total == 0 {
		answer := "No import requirements were found for this product. Verify the HS code and consult a licensed customs broker before shipping."
		return &model.StructuredSummary{
			Answer:   answer,
			AnswerKO: koFallbackHeader + "\n" + answer,
		}
	}
	var b strings.Builder
	b.WriteString("Identified requirements: ")
	for i, item := range set.Items {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s (%s)", item.Title, strings.ToUpper(item.Agency))
		if i == 9 {
			break
		}
	}
	summary := &model.StructuredSummary{
		Answer:   b.String(),
		AnswerKO: koFallbackHeader + "\n" + b.String(),
	}
	for _, c := range set.Citations() {
		summary.Claims = append(summary.Claims, model.SummaryClaim{
			Text:     c.Title,
			Citation: c,
		})
		if len(summary.Claims) == 5 {
			break
		}
	}
	return summary
}
