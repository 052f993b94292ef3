// Package config loads and validates websearch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/realtime-search/internal/docstore"
	"github.com/JakeFAU/realtime-search/internal/index"
	"github.com/JakeFAU/realtime-search/internal/indexer"
	"github.com/JakeFAU/realtime-search/internal/logging"
	"github.com/JakeFAU/realtime-search/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-search/internal/search"
	"github.com/JakeFAU/realtime-search/internal/textproc"
)

// EnvPrefix is prepended to every environment override, e.g. SEARCH_SERVER_PORT.
const EnvPrefix = "SEARCH"

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Event backends.
const (
	EventsNone   = "none"
	EventsMemory = "memory"
	EventsPubSub = "pubsub"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  logging.Config `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Index    IndexConfig    `mapstructure:"index"`
	Search   SearchConfig   `mapstructure:"search"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	FetchLog FetchLogConfig `mapstructure:"fetch_log"`
	Events   EventsConfig   `mapstructure:"events"`
}

// CrawlerConfig governs one crawl run.
type CrawlerConfig struct {
	Seeds          []string      `mapstructure:"seeds"`
	MaxPages       int           `mapstructure:"max_pages"`
	Delay          time.Duration `mapstructure:"delay"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	ThrottleScope  string        `mapstructure:"throttle_scope"`
	TextSelector   string        `mapstructure:"text_selector"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	DocumentPath   string        `mapstructure:"document_path"`
}

// IndexConfig controls vocabulary pruning and tokenization.
type IndexConfig struct {
	MaxDFRatio     float64 `mapstructure:"max_df_ratio"`
	MinDFCount     int     `mapstructure:"min_df_count"`
	MaxFeatures    int     `mapstructure:"max_features"`
	Stopwords      string  `mapstructure:"stopwords"`
	Stem           bool    `mapstructure:"stem"`
	MinTokenLength int     `mapstructure:"min_token_length"`
	Prefix         string  `mapstructure:"prefix"`
}

// SearchConfig controls ranking output.
type SearchConfig struct {
	MinScore      float64 `mapstructure:"min_score"`
	SnippetLength int     `mapstructure:"snippet_length"`
	DefaultLimit  int     `mapstructure:"default_limit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where the corpus and index artifacts live.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// FetchLogConfig controls the optional Postgres fetch log.
type FetchLogConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	RunTable        string        `mapstructure:"run_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// Enabled reports whether a DSN was configured.
func (c FetchLogConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// EventsConfig selects the event publisher.
type EventsConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.max_pages", 50)
	v.SetDefault("crawler.delay", "1s")
	v.SetDefault("crawler.allowed_domains", []string{})
	v.SetDefault("crawler.user_agent", "websearch-bot/0.1")
	v.SetDefault("crawler.request_timeout", "10s")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.throttle_scope", string(ratelimit.ScopeGlobal))
	v.SetDefault("crawler.text_selector", "p")
	v.SetDefault("crawler.max_body_bytes", 5*1024*1024)
	v.SetDefault("crawler.document_path", docstore.DefaultPath)

	v.SetDefault("index.max_df_ratio", indexer.DefaultMaxDFRatio)
	v.SetDefault("index.min_df_count", indexer.DefaultMinDFCount)
	v.SetDefault("index.max_features", indexer.DefaultMaxFeatures)
	v.SetDefault("index.stopwords", textproc.StopwordsEnglish)
	v.SetDefault("index.stem", false)
	v.SetDefault("index.min_token_length", 2)
	v.SetDefault("index.prefix", index.DefaultPrefix)

	v.SetDefault("search.min_score", search.DefaultMinScore)
	v.SetDefault("search.snippet_length", search.DefaultSnippetLength)
	v.SetDefault("search.default_limit", 10)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.bucket", "")

	v.SetDefault("fetch_log.dsn", "")
	v.SetDefault("fetch_log.table", "crawl_fetches")
	v.SetDefault("fetch_log.run_table", "crawl_runs")
	v.SetDefault("fetch_log.max_conns", 4)
	v.SetDefault("fetch_log.min_conns", 0)
	v.SetDefault("fetch_log.max_conn_lifetime", "30m")

	v.SetDefault("events.backend", EventsNone)
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "")
}

// Validate enforces required values and reasonable limits. Crawl seeds are
// checked by the crawl command, so serve and search work without them.
func (c Config) Validate() error {
	var errs []error
	if c.Crawler.MaxPages < 0 {
		errs = append(errs, errors.New("crawler.max_pages must be >= 0"))
	}
	if c.Crawler.Delay < 0 {
		errs = append(errs, errors.New("crawler.delay must be >= 0"))
	}
	if c.Crawler.RequestTimeout <= 0 {
		errs = append(errs, errors.New("crawler.request_timeout must be > 0"))
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		errs = append(errs, errors.New("crawler.user_agent must be set"))
	}
	if _, err := ratelimit.ParseScope(c.Crawler.ThrottleScope); err != nil {
		errs = append(errs, fmt.Errorf("crawler.throttle_scope: %w", err))
	}
	if strings.TrimSpace(c.Crawler.DocumentPath) == "" {
		errs = append(errs, errors.New("crawler.document_path must be set"))
	}
	if err := c.Index.builderConfig(nil).Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Index.Prefix) == "" {
		errs = append(errs, errors.New("index.prefix must be set"))
	}
	if c.Search.MinScore < 0 {
		errs = append(errs, errors.New("search.min_score must be >= 0"))
	}
	if c.Search.SnippetLength <= 0 {
		errs = append(errs, errors.New("search.snippet_length must be > 0"))
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > 100 {
		errs = append(errs, errors.New("search.default_limit must be between 1 and 100"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server.port must be in 1..65535"))
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			errs = append(errs, errors.New("storage.base_dir is required for the local backend"))
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of local, memory, gcs", c.Storage.Backend))
	}
	if c.FetchLog.Enabled() && c.FetchLog.MinConns > c.FetchLog.MaxConns {
		errs = append(errs, errors.New("fetch_log.min_conns must not exceed fetch_log.max_conns"))
	}
	switch c.Events.Backend {
	case EventsNone, EventsMemory:
	case EventsPubSub:
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			errs = append(errs, errors.New("events.project_id and events.topic are required for the pubsub backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.backend %q is not one of none, memory, pubsub", c.Events.Backend))
	}
	return errors.Join(errs...)
}

// Scope returns the parsed throttle scope.
func (c CrawlerConfig) Scope() ratelimit.Scope {
	scope, err := ratelimit.ParseScope(c.ThrottleScope)
	if err != nil {
		return ratelimit.ScopeGlobal
	}
	return scope
}

// TokenizerConfig builds the tokenizer setup for the given stop list.
func (c IndexConfig) TokenizerConfig(stopwords []string) textproc.Config {
	return textproc.Config{
		Lowercase:      true,
		MinTokenLength: c.MinTokenLength,
		Stem:           c.Stem,
		Stopwords:      stopwords,
	}
}

// BuilderConfig returns the index builder configuration for the given stop list.
func (c IndexConfig) BuilderConfig(stopwords []string) indexer.Config {
	return c.builderConfig(stopwords)
}

func (c IndexConfig) builderConfig(stopwords []string) indexer.Config {
	return indexer.Config{
		MaxDFRatio:  c.MaxDFRatio,
		MinDFCount:  c.MinDFCount,
		MaxFeatures: c.MaxFeatures,
		Tokenizer:   c.TokenizerConfig(stopwords),
	}
}
