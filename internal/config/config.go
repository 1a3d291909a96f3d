package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Embedding providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Defaults
const (
	DefaultRepoPath          = "."
	DefaultExtensions        = ".go,.py"
	DefaultMaxTokensPerBatch = 300_000
	DefaultMaxChunksPerBatch = 2048
	DefaultOpenAIModel       = "text-embedding-3-large"
	DefaultGeminiModel       = "gemini-embedding-001"
	DefaultLocalModel        = "local-hash"
	DefaultDimensions        = 1536
	DefaultCollection        = "code_index"
	DefaultIndexDir          = "code_index"
	DefaultCacheSize         = 10000
	DefaultRedisURL          = "redis://localhost:6379"
	DefaultCacheTTL          = 24 * time.Hour
	DefaultLogLevel          = "info"
)

// Environment variables
const (
	EnvRepoPath     = "CODE_REPO_PATH"
	EnvExtensions   = "EXTENSIONS"
	EnvMaxTokens    = "MAX_TOKENS_PER_BATCH"
	EnvModel        = "EMBEDDING_MODEL"
	EnvDimensions   = "EMBEDDING_DIMENSIONS"
	EnvProvider     = "EMBEDDING_PROVIDER"
	EnvCollection   = "COLLECTION_NAME"
	EnvIndexDir     = "CODE_INDEX_DIR"
	EnvCache        = "EMBEDDING_CACHE"
	EnvRedisURL     = "REDIS_URL"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvLogLevel     = "REPOINGEST_LOG_LEVEL"
)

// DatabaseFileName is the SQLite file created inside IndexDir
const DatabaseFileName = "index.db"

// ErrInvalidConfig is returned for configuration that has no usable fallback
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the run configuration. It is built once at startup and passed
// by value or pointer into every component.
type Config struct {
	RepoPath   string   `toml:"repo_path"`
	Extensions []string `toml:"extensions"`

	MaxTokensPerBatch int `toml:"max_tokens_per_batch"`
	MaxChunksPerBatch int `toml:"max_chunks_per_batch"`

	EmbeddingProvider   string `toml:"embedding_provider"`
	EmbeddingModel      string `toml:"embedding_model"`
	EmbeddingDimensions int    `toml:"embedding_dimensions"`

	CollectionName string `toml:"collection_name"`
	IndexDir       string `toml:"index_dir"`

	Cache CacheConfig `toml:"cache"`

	LogLevel string `toml:"log_level"`

	// API keys are only read from the environment
	OpenAIAPIKey string `toml:"-"`
	GeminiAPIKey string `toml:"-"`
}

// CacheConfig selects the embedding cache backend
type CacheConfig struct {
	Backend  string        `toml:"backend"`
	Size     int           `toml:"size"`
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		RepoPath:            DefaultRepoPath,
		Extensions:          ParseExtensions(DefaultExtensions),
		MaxTokensPerBatch:   DefaultMaxTokensPerBatch,
		MaxChunksPerBatch:   DefaultMaxChunksPerBatch,
		EmbeddingDimensions: DefaultDimensions,
		CollectionName:      DefaultCollection,
		IndexDir:            DefaultIndexDir,
		Cache: CacheConfig{
			Backend:  CacheMemory,
			Size:     DefaultCacheSize,
			RedisURL: DefaultRedisURL,
			TTL:      DefaultCacheTTL,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment, then normalizes it. The returned warnings describe every
// invalid value that was replaced by its default.
func Load(path string) (*Config, []string, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}

	warnings := cfg.ApplyEnv()
	warnings = append(warnings, cfg.Normalize()...)
	return cfg, warnings, nil
}

// LoadFile overlays the values present in a TOML file
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overlays values set in the environment
func (c *Config) ApplyEnv() []string {
	var warnings []string

	if v, ok := os.LookupEnv(EnvRepoPath); ok && v != "" {
		c.RepoPath = v
	}
	if v, ok := os.LookupEnv(EnvExtensions); ok {
		c.Extensions = ParseExtensions(v)
	}
	if v, ok := os.LookupEnv(EnvMaxTokens); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s must be an integer, using default %d", EnvMaxTokens, DefaultMaxTokensPerBatch))
			n = DefaultMaxTokensPerBatch
		}
		c.MaxTokensPerBatch = n
	}
	if v, ok := os.LookupEnv(EnvDimensions); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s must be an integer, using default %d", EnvDimensions, DefaultDimensions))
			n = DefaultDimensions
		}
		c.EmbeddingDimensions = n
	}
	if v, ok := os.LookupEnv(EnvModel); ok && v != "" {
		c.EmbeddingModel = v
	}
	if v, ok := os.LookupEnv(EnvProvider); ok && v != "" {
		c.EmbeddingProvider = v
	}
	if v, ok := os.LookupEnv(EnvCollection); ok && v != "" {
		c.CollectionName = v
	}
	if v, ok := os.LookupEnv(EnvIndexDir); ok && v != "" {
		c.IndexDir = v
	}
	if v, ok := os.LookupEnv(EnvCache); ok && v != "" {
		c.Cache.Backend = v
	}
	if v, ok := os.LookupEnv(EnvRedisURL); ok && v != "" {
		c.Cache.RedisURL = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}

	c.OpenAIAPIKey = os.Getenv(EnvOpenAIAPIKey)
	c.GeminiAPIKey = os.Getenv(EnvGeminiAPIKey)

	return warnings
}

// Normalize replaces invalid values with their documented defaults and
// fills in values derived from others. It returns one warning per
// replacement.
func (c *Config) Normalize() []string {
	var warnings []string

	if c.RepoPath == "" {
		c.RepoPath = DefaultRepoPath
	}

	c.Extensions = NormalizeExtensions(c.Extensions)
	if len(c.Extensions) == 0 {
		warnings = append(warnings, fmt.Sprintf("no extensions configured, using default %s", DefaultExtensions))
		c.Extensions = ParseExtensions(DefaultExtensions)
	}

	if c.MaxTokensPerBatch <= 0 {
		warnings = append(warnings, fmt.Sprintf("max tokens per batch must be positive, got %d, using default %d", c.MaxTokensPerBatch, DefaultMaxTokensPerBatch))
		c.MaxTokensPerBatch = DefaultMaxTokensPerBatch
	}
	if c.MaxChunksPerBatch < 0 {
		warnings = append(warnings, fmt.Sprintf("max chunks per batch must not be negative, got %d, using default %d", c.MaxChunksPerBatch, DefaultMaxChunksPerBatch))
		c.MaxChunksPerBatch = DefaultMaxChunksPerBatch
	}
	if c.EmbeddingDimensions <= 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimensions must be positive, got %d, using default %d", c.EmbeddingDimensions, DefaultDimensions))
		c.EmbeddingDimensions = DefaultDimensions
	}

	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	switch c.EmbeddingProvider {
	case "":
		c.EmbeddingProvider = c.DetectProvider()
	case ProviderOpenAI, ProviderGemini, ProviderLocal:
	default:
		detected := c.DetectProvider()
		warnings = append(warnings, fmt.Sprintf("unknown embedding provider %q, using %s", c.EmbeddingProvider, detected))
		c.EmbeddingProvider = detected
	}

	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultModel(c.EmbeddingProvider)
	}

	if c.CollectionName == "" {
		c.CollectionName = DefaultCollection
	}
	if c.IndexDir == "" {
		c.IndexDir = DefaultIndexDir
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	case "":
		c.Cache.Backend = CacheMemory
	default:
		warnings = append(warnings, fmt.Sprintf("unknown cache backend %q, using %s", c.Cache.Backend, CacheMemory))
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Cache.TTL < 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		warnings = append(warnings, fmt.Sprintf("%v, using %s", err, DefaultLogLevel))
		c.LogLevel = DefaultLogLevel
	}

	return warnings
}

// DetectProvider picks a provider from the available API keys, falling
// back to the local provider when none is set
func (c *Config) DetectProvider() string {
	if c.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	if c.GeminiAPIKey != "" {
		return ProviderGemini
	}
	return ProviderLocal
}

// APIKey returns the API key for the configured provider
func (c *Config) APIKey() string {
	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// DatabasePath returns the SQLite file inside the index directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.IndexDir, DatabaseFileName)
}

// DefaultModel returns the default embedding model for a provider
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderLocal:
		return DefaultLocalModel
	default:
		return DefaultOpenAIModel
	}
}

// ParseExtensions parses a comma-separated extension list
func ParseExtensions(s string) []string {
	return NormalizeExtensions(strings.Split(s, ","))
}

// NormalizeExtensions trims each extension, drops empty entries, adds a
// leading "." where missing and removes duplicates, keeping first-seen order
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// ParseLogLevel maps a level name to a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
