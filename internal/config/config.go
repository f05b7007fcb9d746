package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the taxoclass service configuration.
type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	Database       DatabaseConfig       `yaml:"database"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Classification ClassificationConfig `yaml:"classification"`
	Index          IndexConfig          `yaml:"index"`
	SemanticHash   SemanticHashConfig   `yaml:"semantic_hash"`
	Auth           AuthConfig           `yaml:"auth"`
	Storage        StorageConfig        `yaml:"storage"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, sqlite (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds the remote embedding provider and its resilience settings.
type EmbeddingConfig struct {
	Provider     string          `yaml:"provider"`
	APIKey       string          `yaml:"api_key"`
	BaseURL      string          `yaml:"base_url"`
	Model        string          `yaml:"model"`
	Dimensions   int             `yaml:"dimensions"`
	TimeoutSec   float64         `yaml:"timeout_sec"`
	RateLimitRPS float64         `yaml:"rate_limit_rps"` // 0 = unlimited
	RateBurst    int             `yaml:"rate_burst"`
	Fallback     bool            `yaml:"fallback"` // deterministic local vectors, no remote calls
	CacheEnabled bool            `yaml:"cache_enabled"`
	Retry        RetryConfig     `yaml:"retry"`
	Breaker      BreakerConfig   `yaml:"circuit_breaker"`
	Instruction  InstructionText `yaml:"instruction"`
}

// InstructionText holds optional prefixes for document and query embeddings.
type InstructionText struct {
	Document string `yaml:"document"`
	Query    string `yaml:"query"`
}

// RetryConfig holds retry settings for transient provider failures.
type RetryConfig struct {
	Attempts     int     `yaml:"attempts"`
	BaseDelaySec float64 `yaml:"base_delay_sec"`
	MaxDelaySec  float64 `yaml:"max_delay_sec"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	ResetTimeoutSec  float64 `yaml:"reset_timeout_sec"`
}

// ClassificationConfig holds ranking settings.
type ClassificationConfig struct {
	DefaultTopK    int `yaml:"default_top_k"`
	MaxTopK        int `yaml:"max_top_k"`
	OverfetchMul   int `yaml:"overfetch_multiplier"`
	OverfetchFloor int `yaml:"overfetch_min"`
}

// IndexConfig holds vector index persistence settings.
type IndexConfig struct {
	BlobKey        string `yaml:"blob_key"`
	LoadOnStart    bool   `yaml:"load_on_start"`
	RebuildOnStart bool   `yaml:"rebuild_on_start"`
}

// SemanticHashConfig selects the stopword language used for duplicate detection.
type SemanticHashConfig struct {
	Language string `yaml:"language"` // spanish (default), english
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "taxoclass.db"
	}
	c.applyEmbeddingDefaults()
	if c.Classification.DefaultTopK <= 0 {
		c.Classification.DefaultTopK = 5
	}
	if c.Classification.MaxTopK <= 0 {
		c.Classification.MaxTopK = 100
	}
	if c.Classification.OverfetchMul <= 0 {
		c.Classification.OverfetchMul = 10
	}
	if c.Classification.OverfetchFloor <= 0 {
		c.Classification.OverfetchFloor = 50
	}
	if c.Index.BlobKey == "" {
		c.Index.BlobKey = "index:categories"
	}
	if c.SemanticHash.Language == "" {
		c.SemanticHash.Language = "spanish"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "taxoclass:"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		e.Dimensions = 768
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 15
	}
	if e.RateBurst <= 0 {
		e.RateBurst = 1
	}
	if e.Retry.Attempts <= 0 {
		e.Retry.Attempts = 3
	}
	if e.Retry.BaseDelaySec <= 0 {
		e.Retry.BaseDelaySec = 0.3
	}
	if e.Retry.MaxDelaySec <= 0 {
		e.Retry.MaxDelaySec = 3
	}
	if e.Breaker.FailureThreshold <= 0 {
		e.Breaker.FailureThreshold = 5
	}
	if e.Breaker.ResetTimeoutSec <= 0 {
		e.Breaker.ResetTimeoutSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of valkey, redis, sqlite, got %q", c.Database.Driver)
	}
	if !c.Embedding.Fallback && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required unless embedding.fallback is enabled")
	}
	if c.Embedding.Retry.MaxDelaySec < c.Embedding.Retry.BaseDelaySec {
		return fmt.Errorf("embedding.retry.max_delay_sec (%g) must be >= base_delay_sec (%g)",
			c.Embedding.Retry.MaxDelaySec, c.Embedding.Retry.BaseDelaySec)
	}
	if c.Classification.DefaultTopK > c.Classification.MaxTopK {
		return fmt.Errorf("classification.default_top_k (%d) exceeds max_top_k (%d)",
			c.Classification.DefaultTopK, c.Classification.MaxTopK)
	}
	switch c.SemanticHash.Language {
	case "spanish", "english":
	default:
		return fmt.Errorf("semantic_hash.language must be \"spanish\" or \"english\", got %q", c.SemanticHash.Language)
	}
	return nil
}

// Timeout returns the per-call embedding timeout.
func (e EmbeddingConfig) Timeout() time.Duration {
	return seconds(e.TimeoutSec)
}

// BaseDelay returns the first retry backoff ceiling.
func (r RetryConfig) BaseDelay() time.Duration { return seconds(r.BaseDelaySec) }

// MaxDelay returns the retry backoff cap.
func (r RetryConfig) MaxDelay() time.Duration { return seconds(r.MaxDelaySec) }

// ResetTimeout returns how long the breaker stays open.
func (b BreakerConfig) ResetTimeout() time.Duration { return seconds(b.ResetTimeoutSec) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
