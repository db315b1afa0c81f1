package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the newsbrief service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret required")
	}
	return nil
}

// LLMConfig describes the OpenAI-compatible chat completions endpoint.
// An empty APIKey is allowed at boot; synthesis requests are rejected until one is configured.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	return nil
}

// FeedsConfig controls outbound feed fetching and candidate validation.
type FeedsConfig struct {
	FetchTimeout        time.Duration    `mapstructure:"fetch_timeout"`
	ValidateTimeout     time.Duration    `mapstructure:"validate_timeout"`
	MaxBodyBytes        int64            `mapstructure:"max_body_bytes"`
	FetchConcurrency    int              `mapstructure:"fetch_concurrency"`
	ValidateConcurrency int              `mapstructure:"validate_concurrency"`
	UserAgent           string           `mapstructure:"user_agent"`
	Policy              HostPolicyConfig `mapstructure:"policy"`
}

func (f FeedsConfig) Validate() error {
	if f.FetchTimeout <= 0 || f.ValidateTimeout <= 0 {
		return fmt.Errorf("feeds.fetch_timeout and feeds.validate_timeout must be > 0")
	}
	if f.MaxBodyBytes <= 0 {
		return fmt.Errorf("feeds.max_body_bytes must be > 0")
	}
	if f.FetchConcurrency < 1 || f.ValidateConcurrency < 1 {
		return fmt.Errorf("feeds concurrency must be >= 1")
	}
	return f.Policy.Validate()
}

// AggregateConfig bounds the merged article list.
type AggregateConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

func (a AggregateConfig) Validate() error {
	if a.MaxLimit < 1 {
		return fmt.Errorf("aggregate.max_limit must be >= 1")
	}
	if a.DefaultLimit < 1 || a.DefaultLimit > a.MaxLimit {
		return fmt.Errorf("aggregate.default_limit must be within [1,%d]", a.MaxLimit)
	}
	return nil
}

// SummarizeConfig controls the map-reduce synthesis pipeline.
type SummarizeConfig struct {
	MaxArticles     int           `mapstructure:"max_articles"`
	MapConcurrency  int           `mapstructure:"map_concurrency"`
	ContentBudget   int           `mapstructure:"content_budget"`
	FullText        bool          `mapstructure:"full_text"`
	FullTextTimeout time.Duration `mapstructure:"full_text_timeout"`
}

func (s SummarizeConfig) Validate() error {
	if s.MaxArticles < 1 {
		return fmt.Errorf("summarize.max_articles must be >= 1")
	}
	if s.MapConcurrency < 1 {
		return fmt.Errorf("summarize.map_concurrency must be >= 1")
	}
	if s.ContentBudget < 1 {
		return fmt.Errorf("summarize.content_budget must be >= 1")
	}
	return nil
}

const (
	JobsBackendMemory = "memory"
	JobsBackendRedis  = "redis"
)

// JobsConfig selects where synthesis jobs live.
type JobsConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func (j JobsConfig) Validate() error {
	switch j.Backend {
	case JobsBackendMemory, JobsBackendRedis:
	default:
		return fmt.Errorf("jobs.backend must be %q or %q", JobsBackendMemory, JobsBackendRedis)
	}
	if j.Backend == JobsBackendRedis && j.TTL <= 0 {
		return fmt.Errorf("jobs.ttl must be > 0 for the redis backend")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.jwt_secret", "")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("feeds.fetch_timeout", 10*time.Second)
	v.SetDefault("feeds.validate_timeout", 8*time.Second)
	v.SetDefault("feeds.max_body_bytes", 2*1024*1024)
	v.SetDefault("feeds.fetch_concurrency", 5)
	v.SetDefault("feeds.validate_concurrency", 6)
	v.SetDefault("feeds.user_agent", "newsbrief/1.0 (+feed reader)")
	v.SetDefault("feeds.policy.allow", []string{})
	v.SetDefault("feeds.policy.disallow", []string{})

	v.SetDefault("aggregate.default_limit", 50)
	v.SetDefault("aggregate.max_limit", 200)

	v.SetDefault("summarize.max_articles", 12)
	v.SetDefault("summarize.map_concurrency", 4)
	v.SetDefault("summarize.content_budget", 12000)
	v.SetDefault("summarize.full_text", false)
	v.SetDefault("summarize.full_text_timeout", 10*time.Second)

	v.SetDefault("jobs.backend", JobsBackendMemory)
	v.SetDefault("jobs.ttl", 24*time.Hour)

	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)

	v.SetDefault("telemetry.metrics_enabled", true)
}

// Load reads config from file (optional when path is empty) and NEWSBRIEF_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("NEWSBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Feeds.Policy = cfg.Feeds.Policy.Normalize()

	for _, validate := range []func() error{
		cfg.Server.Validate,
		cfg.LLM.Validate,
		cfg.Feeds.Validate,
		cfg.Aggregate.Validate,
		cfg.Summarize.Validate,
		cfg.Jobs.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Jobs.Backend == JobsBackendRedis {
		if err := cfg.Storage.Redis.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads config and panics on failure; used by command entrypoints.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
