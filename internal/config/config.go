package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog"`
	Cache      CacheConfig      `yaml:"cache"`
	Validation ValidationConfig `yaml:"validation"`
	Thresholds Thresholds       `yaml:"thresholds"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CatalogConfig holds settings for the external metadata catalog.
type CatalogConfig struct {
	BaseURL string        `yaml:"base_url"`
	Contact string        `yaml:"contact"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds cache settings. An empty Path selects the in-memory store.
type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// ValidationConfig holds settings for the secondary validation sources.
// An empty LLM API key disables the reranker.
type ValidationConfig struct {
	WikipediaBaseURL string `yaml:"wikipedia_base_url"`
	LLMBaseURL       string `yaml:"llm_base_url"`
	LLMAPIKey        string `yaml:"llm_api_key"`
	LLMModel         string `yaml:"llm_model"`
}

// Thresholds holds the empirically tuned scoring constants. The defaults are
// behavior-compatible with the tuned originals; override with care.
type Thresholds struct {
	ScoreGap           int `yaml:"score_gap"`           // canonical gap for single-word queries
	MinConfidence      int `yaml:"min_confidence"`      // floor for unprotected ambiguous entries
	ValidationTrigger  int `yaml:"validation_trigger"`  // top score below this may trigger validation
	RerankWindow       int `yaml:"rerank_window"`       // top-two gap that triggers the LLM reranker
	AgeBiasCap         int `yaml:"age_bias_cap"`
	ResultCap          int `yaml:"result_cap"`          // artist-provided / single-word queries
	AmbiguousCap       int `yaml:"ambiguous_cap"`       // multi-word title-only queries
	InferredConfidence int `yaml:"inferred_confidence"` // score given to encyclopedia-inferred songs
}

// DiscoveryConfig bounds the per-strategy fan-out.
type DiscoveryConfig struct {
	MaxArtistProbes   int           `yaml:"max_artist_probes"`
	MaxReleaseLookups int           `yaml:"max_release_lookups"`
	MaxTitleVariants  int           `yaml:"max_title_variants"`
	TitlePages        int           `yaml:"title_pages"`
	StrategyTimeout   time.Duration `yaml:"strategy_timeout"`
	FallbackTimeout   time.Duration `yaml:"fallback_timeout"`
	PageSize          int           `yaml:"page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL: "https://musicbrainz.org/ws/2",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Validation: ValidationConfig{
			WikipediaBaseURL: "https://en.wikipedia.org",
			LLMBaseURL:       "https://api.openai.com",
			LLMModel:         "gpt-4o-mini",
		},
		Thresholds: Thresholds{
			ScoreGap:           5,
			MinConfidence:      30,
			ValidationTrigger:  95,
			RerankWindow:       10,
			AgeBiasCap:         10,
			ResultCap:          5,
			AmbiguousCap:       10,
			InferredConfidence: 50,
		},
		Discovery: DiscoveryConfig{
			MaxArtistProbes:   6,
			MaxReleaseLookups: 10,
			MaxTitleVariants:  3,
			TitlePages:        2,
			StrategyTimeout:   3 * time.Second,
			FallbackTimeout:   6 * time.Second,
			PageSize:          25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SC_CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("SC_CATALOG_CONTACT"); v != "" {
		c.Catalog.Contact = v
	}
	if v := os.Getenv("SC_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("SC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("SC_WIKIPEDIA_URL"); v != "" {
		c.Validation.WikipediaBaseURL = v
	}
	if v := os.Getenv("SC_LLM_URL"); v != "" {
		c.Validation.LLMBaseURL = v
	}
	if v := os.Getenv("SC_LLM_API_KEY"); v != "" {
		c.Validation.LLMAPIKey = v
	}
	if v := os.Getenv("SC_LLM_MODEL"); v != "" {
		c.Validation.LLMModel = v
	}
	if v := os.Getenv("SC_SCORE_GAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Thresholds.ScoreGap = n
		}
	}
	if v := os.Getenv("SC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func (c *Config) validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Thresholds.ScoreGap < 0 {
		return fmt.Errorf("score gap must be non-negative, got %d", c.Thresholds.ScoreGap)
	}
	if c.Thresholds.ResultCap < 1 || c.Thresholds.AmbiguousCap < 1 {
		return fmt.Errorf("result caps must be at least 1")
	}
	if c.Discovery.PageSize < 1 || c.Discovery.PageSize > 100 {
		return fmt.Errorf("invalid page size: %d", c.Discovery.PageSize)
	}
	if c.Discovery.TitlePages < 1 || c.Discovery.TitlePages > 5 {
		return fmt.Errorf("invalid title page count: %d", c.Discovery.TitlePages)
	}
	return nil
}
