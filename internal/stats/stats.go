// Package stats aggregates runtime counters from the cache, runner,
// circuit breakers, learned agency mappings, and precedent corpus into
// a single snapshot for the stats command and HTTP endpoint.
package stats

import (
	"context"

	"github.com/lawgenie/compliance-cli/internal/agency"
	"github.com/lawgenie/compliance-cli/internal/analysis"
	"github.com/lawgenie/compliance-cli/internal/cache"
)

// RunnerStats summarizes the shared task runner.
type RunnerStats struct {
	MaxInFlight  int   `json:"max_in_flight"`
	PeakInFlight int   `json:"peak_in_flight"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
}

// Snapshot is a point-in-time view of pipeline internals.
type Snapshot struct {
	Cache          map[string]cache.TierStats      `json:"cache"`
	Runner         RunnerStats                     `json:"runner"`
	Stages         map[string]analysis.StageCounts `json:"stages,omitempty"`
	Breakers       map[string]string               `json:"breakers"`
	TopMappings    []agency.UsageRow               `json:"top_mappings"`
	PrecedentCount int                             `json:"precedent_count"`
}

// Runner is the subset of the task runner used for reporting.
type Runner interface {
	MaxInFlight() int
	PeakInFlight() int
	Counts() (completed, failed int64)
}

// BreakerSource reports per-provider circuit states.
type BreakerSource interface {
	BreakerStates() map[string]string
}

// Collector gathers counters from its sources. Any source may be nil;
// the corresponding section is left zero.
type Collector struct {
	Tiered   *cache.Tiered
	Runner   Runner
	Stages   *analysis.StageMetrics
	Breakers BreakerSource
	Mappings *agency.Store
	Corpus   interface {
		Count(ctx context.Context) (int, error)
	}
}

// Collect builds a snapshot. Failures in individual sources are
// tolerated; partial data is better than none on a stats endpoint.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	var snap Snapshot

	if c.Tiered != nil {
		snap.Cache = c.Tiered.Stats()
	}
	if c.Runner != nil {
		completed, failed := c.Runner.Counts()
		snap.Runner = RunnerStats{
			MaxInFlight:  c.Runner.MaxInFlight(),
			PeakInFlight: c.Runner.PeakInFlight(),
			Completed:    completed,
			Failed:       failed,
		}
	}
	if c.Stages != nil {
		snap.Stages = c.Stages.Snapshot()
	}
	if c.Breakers != nil {
		snap.Breakers = c.Breakers.BreakerStates()
	}
	if c.Mappings != nil {
		if rows, err := c.Mappings.TopUsed(ctx, 10); err == nil {
			snap.TopMappings = rows
		}
	}
	if c.Corpus != nil {
		if n, err := c.Corpus.Count(ctx); err == nil {
			snap.PrecedentCount = n
		}
	}

	return snap
}
