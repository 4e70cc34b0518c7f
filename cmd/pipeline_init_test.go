//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawgenie/compliance-cli/internal/config"
)

func TestInitPipelineTierOrder(t *testing.T) {
	dir := t.TempDir()
	old := cfg
	defer func() { cfg = old }()

	cfg = &config.Config{}
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Cache.MemoryCapacity = 10
	cfg.Precedent.DBPath = filepath.Join(dir, "precedents.db")
	cfg.Pipeline.Mode = "parallel"
	cfg.Pipeline.MaxInFlight = 2
	cfg.Pipeline.TaskTimeoutSecs = 5

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	// Lookups must walk fastest-first: the in-process LRU, then the
	// local sqlite file. Redis, when enabled, sits behind both.
	assert.Equal(t, []string{"memory", "sqlite"}, env.Tiered.TierNames())
}
