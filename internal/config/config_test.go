package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, FsyncOnCommit, cfg.WAL.FsyncPolicy)
	assert.Equal(t, int64(8<<20), cfg.WAL.SizeBytes)
	assert.Equal(t, uint8(80), cfg.WAL.ProactiveCommitThresholdPercent)
	assert.True(t, cfg.WAL.ReplayStateSnapshotEnabled)

	assert.Equal(t, EngineAuto, cfg.Vector.Engine)
	assert.Equal(t, 1024, cfg.Vector.InitialCapacity)

	assert.Equal(t, 1.2, cfg.Lexical.BM25K1)
	assert.Equal(t, 0.75, cfg.Lexical.BM25B)

	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 20, cfg.Search.MaxResults)

	assert.Equal(t, 8000, cfg.Context.MaxContextTokens)
	assert.Equal(t, TierImportance, cfg.Context.TierPolicy)

	assert.Equal(t, QoSDefault, cfg.IO.QueueQoS)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_AppliesArchiveLocalYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
search:
  alpha: 0.8
  rrf_constant: 30
vector:
  engine: cpu_only
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Search.Alpha)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, EngineCPUOnly, cfg.Vector.Engine)
	// untouched fields keep defaults
	assert.Equal(t, 20, cfg.Search.MaxResults)
}

func TestLoad_AppliesJSONCOverlay(t *testing.T) {
	dir := t.TempDir()
	jsonc := `{
  // local experiment: favor text search
  "search": {
    "alpha": 0.2,
  },
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.jsonc"), []byte(jsonc), 0o644))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Search.Alpha)
}

func TestLoad_EnvOverridesTakeHighestPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.yaml"), []byte("search:\n  alpha: 0.8\n"), 0o644))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("RAGARCHIVE_SEARCH_ALPHA", "0.1")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Search.Alpha)
}

func TestValidate_RejectsOutOfRangeAlpha(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Alpha = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownFsyncPolicy(t *testing.T) {
	cfg := NewConfig()
	cfg.WAL.FsyncPolicy = "whenever"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEngine(t *testing.T) {
	cfg := NewConfig()
	cfg.Vector.Engine = "quantum"
	assert.Error(t, cfg.Validate())
}

func TestWALConfig_ProactiveCommitThreshold(t *testing.T) {
	w := WALConfig{
		ProactiveCommitThresholdPercent: 50,
		ProactiveCommitMinPendingBytes:  100,
	}

	assert.False(t, w.ProactiveCommitThreshold(40, 1000), "below min pending bytes")
	assert.False(t, w.ProactiveCommitThreshold(400, 1000), "below percent threshold")
	assert.True(t, w.ProactiveCommitThreshold(500, 1000), "at percent threshold")
}

func TestWALConfig_ProactiveCommitThreshold_RespectsMaxWALSizeBound(t *testing.T) {
	w := WALConfig{
		ProactiveCommitThresholdPercent: 10,
		ProactiveCommitMaxWALSizeBytes:  500,
	}

	assert.False(t, w.ProactiveCommitThreshold(200, 1000), "walSize exceeds bound")
	assert.True(t, w.ProactiveCommitThreshold(50, 400))
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.Search.Alpha = 0.42
	require.NoError(t, cfg.WriteYAML(path))

	reloaded := NewConfig()
	require.NoError(t, reloaded.loadYAML(path))
	assert.Equal(t, 0.42, reloaded.Search.Alpha)
}

func TestGetUserConfigPath_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	assert.Equal(t, "/tmp/xdgtest/ragarchive/config.yaml", GetUserConfigPath())
}
