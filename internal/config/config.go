package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// FsyncPolicyKind selects when the WAL writer issues fsync.
type FsyncPolicyKind string

const (
	FsyncOnCommit    FsyncPolicyKind = "on_commit"
	FsyncEveryNBytes FsyncPolicyKind = "every_n_bytes"
	FsyncEveryRecord FsyncPolicyKind = "every_record"
)

// IOQueueQoS is an advisory hint passed to the OS scheduler for WAL and
// archive I/O; it has no effect on correctness.
type IOQueueQoS string

const (
	QoSDefault    IOQueueQoS = "default"
	QoSUserActive IOQueueQoS = "user_active"
	QoSBackground IOQueueQoS = "background"
)

// EngineMode selects the vector engine used for matrix dot-product and top-K.
type EngineMode string

const (
	EngineAuto        EngineMode = "auto"
	EngineCPUOnly     EngineMode = "cpu_only"
	EngineGPUPreferred EngineMode = "gpu_preferred"
)

// TierPolicy selects how the context builder picks full/gist/micro tiers.
type TierPolicy string

const (
	TierDisabled   TierPolicy = "disabled"
	TierAgeOnly    TierPolicy = "age_only"
	TierImportance TierPolicy = "importance"
)

// Config is the complete configuration surface for an archive session. It
// mirrors the options struct consumed at archive open (spec §6.3) plus the
// vector/lexical/context defaults layered on top.
type Config struct {
	Version int        `yaml:"version" json:"version"`
	WAL     WALConfig  `yaml:"wal" json:"wal"`
	Vector  VectorConfig `yaml:"vector" json:"vector"`
	Lexical LexicalConfig `yaml:"lexical" json:"lexical"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Context ContextConfig `yaml:"context" json:"context"`
	IO      IOConfig   `yaml:"io" json:"io"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// WALConfig configures the write-ahead ring and proactive auto-commit.
type WALConfig struct {
	SizeBytes int64           `yaml:"size_bytes" json:"size_bytes"`
	FsyncPolicy FsyncPolicyKind `yaml:"fsync_policy" json:"fsync_policy"`
	FsyncEveryNBytes int64      `yaml:"fsync_every_n_bytes" json:"fsync_every_n_bytes"`

	// ProactiveCommitThresholdPercent triggers an auto-commit when pending
	// bytes reach this percentage of walSize. 0 disables the threshold.
	ProactiveCommitThresholdPercent uint8 `yaml:"proactive_commit_threshold_percent" json:"proactive_commit_threshold_percent"`
	// ProactiveCommitMaxWALSizeBytes only applies the threshold when walSize
	// is at or below this bound; 0 means no bound.
	ProactiveCommitMaxWALSizeBytes int64 `yaml:"proactive_commit_max_wal_size_bytes" json:"proactive_commit_max_wal_size_bytes"`
	// ProactiveCommitMinPendingBytes is the floor below which auto-commit
	// never triggers regardless of percentage.
	ProactiveCommitMinPendingBytes int64 `yaml:"proactive_commit_min_pending_bytes" json:"proactive_commit_min_pending_bytes"`

	// ReplayStateSnapshotEnabled enables the fast-path replay that skips
	// re-deriving frame/index state from scratch on open.
	ReplayStateSnapshotEnabled bool `yaml:"replay_state_snapshot_enabled" json:"replay_state_snapshot_enabled"`
}

// VectorConfig configures the dense vector engine.
type VectorConfig struct {
	Dimension int        `yaml:"dimension" json:"dimension"`
	Engine    EngineMode `yaml:"engine" json:"engine"`
	InitialCapacity int  `yaml:"initial_capacity" json:"initial_capacity"`
}

// LexicalConfig configures the inverted index.
type LexicalConfig struct {
	// MmapReadOnly opens the lexical blob via mmap instead of loading it
	// into a mutable copy-on-write structure.
	MmapReadOnly bool `yaml:"mmap_read_only" json:"mmap_read_only"`
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b"`
}

// SearchConfig configures hybrid search fusion.
type SearchConfig struct {
	Alpha       float64 `yaml:"alpha" json:"alpha"`
	RRFConstant int     `yaml:"rrf_constant" json:"rrf_constant"`
	MaxResults  int     `yaml:"max_results" json:"max_results"`
	EngineCacheSize int `yaml:"engine_cache_size" json:"engine_cache_size"`
}

// ContextConfig configures the context builder.
type ContextConfig struct {
	MaxContextTokens int        `yaml:"max_context_tokens" json:"max_context_tokens"`
	TierPolicy       TierPolicy `yaml:"tier_policy" json:"tier_policy"`
	CodeGistEnabled  bool       `yaml:"code_gist_enabled" json:"code_gist_enabled"`
}

// IOConfig carries advisory I/O scheduler hints.
type IOConfig struct {
	QueueLabel string     `yaml:"queue_label" json:"queue_label"`
	QueueQoS   IOQueueQoS `yaml:"queue_qos" json:"queue_qos"`
}

// ServerConfig configures the MCP tool shim and logging.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		WAL: WALConfig{
			SizeBytes:        8 << 20, // 8 MiB
			FsyncPolicy:      FsyncOnCommit,
			FsyncEveryNBytes: 1 << 20,
			ProactiveCommitThresholdPercent: 80,
			ProactiveCommitMaxWALSizeBytes:  0,
			ProactiveCommitMinPendingBytes:  64 << 10,
			ReplayStateSnapshotEnabled:      true,
		},
		Vector: VectorConfig{
			Dimension:       0, // 0 means "infer from first embedding"
			Engine:          EngineAuto,
			InitialCapacity: 1024,
		},
		Lexical: LexicalConfig{
			MmapReadOnly: false,
			BM25K1:       1.2,
			BM25B:        0.75,
		},
		Search: SearchConfig{
			Alpha:           0.5,
			RRFConstant:     60,
			MaxResults:      20,
			EngineCacheSize: 64,
		},
		Context: ContextConfig{
			MaxContextTokens: 8000,
			TierPolicy:       TierImportance,
			CodeGistEnabled:  true,
		},
		IO: IOConfig{
			QueueLabel: "ragarchive",
			QueueQoS:   QoSDefault,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/ragarchive/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragarchive/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragarchive", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragarchive", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragarchive", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for an archive directory, applying sources in
// order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/ragarchive/config.yaml)
//  3. Archive-local config (.ragarchive.yaml, or .ragarchive.jsonc for a
//     commented overlay) in dir
//  4. Environment variables (RAGARCHIVE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .ragarchive.yaml,
// .ragarchive.yml, or a JSONC .ragarchive.jsonc overlay, in that order.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".ragarchive.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".ragarchive.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	jsoncPath := filepath.Join(dir, ".ragarchive.jsonc")
	if _, err := os.Stat(jsoncPath); err == nil {
		return c.loadJSONC(jsoncPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// loadJSONC loads a commented JSON overlay (for quick local experiments)
// by stripping comments/trailing commas with hujson and then unmarshaling
// the standardized JSON into the YAML-tagged struct.
func (c *Config) loadJSONC(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config overlay %s: %w", path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("failed to normalize jsonc overlay %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(std, &parsed); err != nil {
		return fmt.Errorf("failed to parse config overlay %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.WAL.SizeBytes != 0 {
		c.WAL.SizeBytes = other.WAL.SizeBytes
	}
	if other.WAL.FsyncPolicy != "" {
		c.WAL.FsyncPolicy = other.WAL.FsyncPolicy
	}
	if other.WAL.FsyncEveryNBytes != 0 {
		c.WAL.FsyncEveryNBytes = other.WAL.FsyncEveryNBytes
	}
	if other.WAL.ProactiveCommitThresholdPercent != 0 {
		c.WAL.ProactiveCommitThresholdPercent = other.WAL.ProactiveCommitThresholdPercent
	}
	if other.WAL.ProactiveCommitMaxWALSizeBytes != 0 {
		c.WAL.ProactiveCommitMaxWALSizeBytes = other.WAL.ProactiveCommitMaxWALSizeBytes
	}
	if other.WAL.ProactiveCommitMinPendingBytes != 0 {
		c.WAL.ProactiveCommitMinPendingBytes = other.WAL.ProactiveCommitMinPendingBytes
	}
	if other.WAL.ReplayStateSnapshotEnabled {
		c.WAL.ReplayStateSnapshotEnabled = true
	}

	if other.Vector.Dimension != 0 {
		c.Vector.Dimension = other.Vector.Dimension
	}
	if other.Vector.Engine != "" {
		c.Vector.Engine = other.Vector.Engine
	}
	if other.Vector.InitialCapacity != 0 {
		c.Vector.InitialCapacity = other.Vector.InitialCapacity
	}

	if other.Lexical.BM25K1 != 0 {
		c.Lexical.BM25K1 = other.Lexical.BM25K1
	}
	if other.Lexical.BM25B != 0 {
		c.Lexical.BM25B = other.Lexical.BM25B
	}
	if other.Lexical.MmapReadOnly {
		c.Lexical.MmapReadOnly = true
	}

	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.EngineCacheSize != 0 {
		c.Search.EngineCacheSize = other.Search.EngineCacheSize
	}

	if other.Context.MaxContextTokens != 0 {
		c.Context.MaxContextTokens = other.Context.MaxContextTokens
	}
	if other.Context.TierPolicy != "" {
		c.Context.TierPolicy = other.Context.TierPolicy
	}
	if other.Context.CodeGistEnabled {
		c.Context.CodeGistEnabled = true
	}

	if other.IO.QueueLabel != "" {
		c.IO.QueueLabel = other.IO.QueueLabel
	}
	if other.IO.QueueQoS != "" {
		c.IO.QueueQoS = other.IO.QueueQoS
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies RAGARCHIVE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGARCHIVE_WAL_FSYNC_POLICY"); v != "" {
		c.WAL.FsyncPolicy = FsyncPolicyKind(v)
	}
	if v := os.Getenv("RAGARCHIVE_WAL_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.WAL.SizeBytes = n
		}
	}
	if v := os.Getenv("RAGARCHIVE_SEARCH_ALPHA"); v != "" {
		if a, err := parseFloat64(v); err == nil && a >= 0 && a <= 1 {
			c.Search.Alpha = a
		}
	}
	if v := os.Getenv("RAGARCHIVE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("RAGARCHIVE_VECTOR_ENGINE"); v != "" {
		c.Vector.Engine = EngineMode(v)
	}
	if v := os.Getenv("RAGARCHIVE_MAX_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Context.MaxContextTokens = n
		}
	}
	if v := os.Getenv("RAGARCHIVE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %f", c.Search.Alpha)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	if c.WAL.SizeBytes <= 0 {
		return fmt.Errorf("wal.size_bytes must be positive, got %d", c.WAL.SizeBytes)
	}
	validFsync := map[FsyncPolicyKind]bool{
		FsyncOnCommit: true, FsyncEveryNBytes: true, FsyncEveryRecord: true,
	}
	if !validFsync[c.WAL.FsyncPolicy] {
		return fmt.Errorf("wal.fsync_policy must be 'on_commit', 'every_n_bytes', or 'every_record', got %s", c.WAL.FsyncPolicy)
	}
	if c.WAL.ProactiveCommitThresholdPercent > 100 {
		return fmt.Errorf("wal.proactive_commit_threshold_percent must be 0..100, got %d", c.WAL.ProactiveCommitThresholdPercent)
	}

	validEngine := map[EngineMode]bool{EngineAuto: true, EngineCPUOnly: true, EngineGPUPreferred: true}
	if !validEngine[c.Vector.Engine] {
		return fmt.Errorf("vector.engine must be 'auto', 'cpu_only', or 'gpu_preferred', got %s", c.Vector.Engine)
	}

	validTier := map[TierPolicy]bool{TierDisabled: true, TierAgeOnly: true, TierImportance: true}
	if !validTier[c.Context.TierPolicy] {
		return fmt.Errorf("context.tier_policy must be 'disabled', 'age_only', or 'importance', got %s", c.Context.TierPolicy)
	}
	if c.Context.MaxContextTokens <= 0 {
		return fmt.Errorf("context.max_context_tokens must be positive, got %d", c.Context.MaxContextTokens)
	}

	validQoS := map[IOQueueQoS]bool{QoSDefault: true, QoSUserActive: true, QoSBackground: true}
	if !validQoS[c.IO.QueueQoS] {
		return fmt.Errorf("io.queue_qos must be 'default', 'user_active', or 'background', got %s", c.IO.QueueQoS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// ProactiveCommitThreshold reports whether pendingBytes crosses the
// configured proactive auto-commit threshold for the given walSize.
func (w WALConfig) ProactiveCommitThreshold(pendingBytes, walSize int64) bool {
	if w.ProactiveCommitThresholdPercent == 0 {
		return false
	}
	if w.ProactiveCommitMaxWALSizeBytes > 0 && walSize > w.ProactiveCommitMaxWALSizeBytes {
		return false
	}
	if pendingBytes < w.ProactiveCommitMinPendingBytes {
		return false
	}
	threshold := int64(math.Round(float64(walSize) * float64(w.ProactiveCommitThresholdPercent) / 100.0))
	return pendingBytes >= threshold
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
