package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	TextExtract TextExtractConfig `yaml:"textextract" mapstructure:"textextract"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Matching    MatchingConfig    `yaml:"matching" mapstructure:"matching"`
	Jobs        JobsConfig        `yaml:"jobs" mapstructure:"jobs"`
	Worker      WorkerConfig      `yaml:"worker" mapstructure:"worker"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TextExtractConfig points at the external file-to-text service.
type TextExtractConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractionConfig tunes the fact extraction pass.
type ExtractionConfig struct {
	AITimeoutSecs       int     `yaml:"ai_timeout_secs" mapstructure:"ai_timeout_secs"`
	Concurrency         int     `yaml:"concurrency" mapstructure:"concurrency"`
	AIRequestsPerSecond float64 `yaml:"ai_requests_per_second" mapstructure:"ai_requests_per_second"`
	ChunkMaxChars       int     `yaml:"chunk_max_chars" mapstructure:"chunk_max_chars"`
	ChunkOverlapChars   int     `yaml:"chunk_overlap_chars" mapstructure:"chunk_overlap_chars"`
}

// MatchingConfig tunes duplicate matching.
type MatchingConfig struct {
	MinScore       float64 `yaml:"min_score" mapstructure:"min_score"`
	TopN           int     `yaml:"top_n" mapstructure:"top_n"`
	CatalogTTLSecs int     `yaml:"catalog_ttl_secs" mapstructure:"catalog_ttl_secs"`
}

// JobsConfig tunes import job orchestration.
type JobsConfig struct {
	BackgroundWordThreshold   int     `yaml:"background_word_threshold" mapstructure:"background_word_threshold"`
	BackgroundSourceThreshold int     `yaml:"background_source_threshold" mapstructure:"background_source_threshold"`
	ReviewConfidenceThreshold float64 `yaml:"review_confidence_threshold" mapstructure:"review_confidence_threshold"`
}

// WorkerConfig configures the background worker connection.
type WorkerConfig struct {
	HostPort         string `yaml:"host_port" mapstructure:"host_port"`
	Namespace        string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue        string `yaml:"task_queue" mapstructure:"task_queue"`
	HealthTimeoutSec int    `yaml:"health_timeout_secs" mapstructure:"health_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IMPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "importer.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("textextract.timeout_secs", 60)
	v.SetDefault("extraction.ai_timeout_secs", 30)
	v.SetDefault("extraction.concurrency", 4)
	v.SetDefault("extraction.ai_requests_per_second", 2)
	v.SetDefault("extraction.chunk_max_chars", 8000)
	v.SetDefault("extraction.chunk_overlap_chars", 200)
	v.SetDefault("matching.min_score", 0.55)
	v.SetDefault("matching.top_n", 5)
	v.SetDefault("matching.catalog_ttl_secs", 300)
	v.SetDefault("jobs.background_word_threshold", 4000)
	v.SetDefault("jobs.background_source_threshold", 3)
	v.SetDefault("jobs.review_confidence_threshold", 0.6)
	v.SetDefault("worker.host_port", "localhost:7233")
	v.SetDefault("worker.namespace", "default")
	v.SetDefault("worker.task_queue", "import-jobs")
	v.SetDefault("worker.health_timeout_secs", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
