package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawgenie/compliance-cli/internal/analysis"
	"github.com/lawgenie/compliance-cli/internal/cache"
	"github.com/lawgenie/compliance-cli/internal/model"
)

type fakeRunner struct{}

func (fakeRunner) MaxInFlight() int                  { return 5 }
func (fakeRunner) PeakInFlight() int                 { return 3 }
func (fakeRunner) Counts() (completed, failed int64) { return 12, 2 }

type fakeBreakers struct{}

func (fakeBreakers) BreakerStates() map[string]string {
	return map[string]string{"tavily": "closed", "datagov": "open"}
}

type fakeCorpus struct{ n int }

func (f fakeCorpus) Count(context.Context) (int, error) { return f.n, nil }

func TestCollectAllSources(t *testing.T) {
	ctx := context.Background()

	mem := cache.NewMemoryTier(10)
	tiered := cache.NewTiered(cache.NewMetrics(nil), mem)
	tiered.Set(ctx, "k", []byte("v"), time.Minute)
	tiered.Get(ctx, "k")
	tiered.Get(ctx, "absent")

	stages := analysis.NewStageMetrics(nil)
	stages.Record("gather_evidence", model.StageComplete)
	stages.Record("gather_evidence", model.StageFallback)
	stages.Record("summarize", model.StageFailed)

	c := &Collector{
		Tiered:   tiered,
		Runner:   fakeRunner{},
		Stages:   stages,
		Breakers: fakeBreakers{},
		Corpus:   fakeCorpus{n: 7},
	}

	snap := c.Collect(ctx)

	require.Contains(t, snap.Cache, "memory")
	assert.Equal(t, int64(1), snap.Cache["memory"].Hits)
	assert.Equal(t, int64(1), snap.Cache["memory"].Misses)
	assert.Equal(t, 5, snap.Runner.MaxInFlight)
	assert.Equal(t, 3, snap.Runner.PeakInFlight)
	assert.Equal(t, int64(12), snap.Runner.Completed)
	assert.Equal(t, int64(2), snap.Runner.Failed)
	assert.Equal(t, "open", snap.Breakers["datagov"])
	assert.Equal(t, 7, snap.PrecedentCount)
	assert.Equal(t, analysis.StageCounts{Complete: 1, Fallback: 1}, snap.Stages["gather_evidence"])
	assert.Equal(t, analysis.StageCounts{Failed: 1}, snap.Stages["summarize"])
}

func TestCollectNilSources(t *testing.T) {
	c := &Collector{}
	snap := c.Collect(context.Background())

	assert.Nil(t, snap.Cache)
	assert.Zero(t, snap.Runner)
	assert.Nil(t, snap.Breakers)
	assert.Nil(t, snap.Stages)
	assert.Zero(t, snap.PrecedentCount)
}
