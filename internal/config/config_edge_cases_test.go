package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Edge cases around merge precedence and malformed input, mirroring the
// scenarios a hand-edited config file can trigger in the field.

func TestLoad_MissingArchiveLocalConfig_UsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search.Alpha, cfg.Search.Alpha)
}

func TestLoad_MalformedYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.yaml"), []byte("search: [this is not a map"), 0o644))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_MalformedJSONC_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.jsonc"), []byte("{ not valid json at all"), 0o644))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_YAMLTakesPrecedenceOverJSONC(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.yaml"), []byte("search:\n  alpha: 0.9\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragarchive.jsonc"), []byte(`{"search": {"alpha": 0.1}}`), 0o644))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.Alpha)
}

func TestMergeWith_ZeroValuesDoNotOverrideDefaults(t *testing.T) {
	cfg := NewConfig()
	other := &Config{} // all zero values
	cfg.mergeWith(other)

	assert.Equal(t, NewConfig().Search.Alpha, cfg.Search.Alpha)
	assert.Equal(t, NewConfig().WAL.SizeBytes, cfg.WAL.SizeBytes)
}

func TestValidate_RejectsNonPositiveWALSize(t *testing.T) {
	cfg := NewConfig()
	cfg.WAL.SizeBytes = 0
	assert.Error(t, cfg.Validate())

	cfg.WAL.SizeBytes = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroMaxContextTokens(t *testing.T) {
	cfg := NewConfig()
	cfg.Context.MaxContextTokens = 0
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvOverrides_InvalidNumericStringIsIgnored(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("RAGARCHIVE_RRF_CONSTANT", "not-a-number")
	cfg.applyEnvOverrides()
	assert.Equal(t, NewConfig().Search.RRFConstant, cfg.Search.RRFConstant)
}

func TestApplyEnvOverrides_OutOfRangeAlphaIsIgnored(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("RAGARCHIVE_SEARCH_ALPHA", "5.0")
	cfg.applyEnvOverrides()
	assert.Equal(t, NewConfig().Search.Alpha, cfg.Search.Alpha)
}

func TestUserConfigExists_FalseWhenNoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestLoadUserConfig_NilWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
