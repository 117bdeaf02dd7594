package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw, interim, and processed data directories.
type DataConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	InterimDir   string `yaml:"interim_dir" mapstructure:"interim_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`

	// CrosswalkPath points to an optional location_id -> GEOID mapping CSV
	// used to reconcile proxy-keyed sources. Empty means no crosswalk.
	CrosswalkPath string `yaml:"crosswalk_path" mapstructure:"crosswalk_path"`

	// ESGAliasPath points to an optional YAML file overriding the built-in
	// ESG header spelling aliases.
	ESGAliasPath string `yaml:"esg_alias_path" mapstructure:"esg_alias_path"`
}

// FeaturesPath returns the path of the fused feature table.
func (d DataConfig) FeaturesPath() string {
	return filepath.Join(d.ProcessedDir, "features.csv")
}

// SourcesConfig holds raw-source download endpoints.
type SourcesConfig struct {
	TemperatureURL string   `yaml:"temperature_url" mapstructure:"temperature_url"`
	AQSURLs        []string `yaml:"aqs_urls" mapstructure:"aqs_urls"`
	ESGURL         string   `yaml:"esg_url" mapstructure:"esg_url"`
	TIGERYear      int      `yaml:"tiger_year" mapstructure:"tiger_year"`
	TIGERStates    []string `yaml:"tiger_states" mapstructure:"tiger_states"`
}

// FetchConfig configures raw-source downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ClusterConfig holds constants consumed by the external segmentation step.
type ClusterConfig struct {
	KMeansClusters    int `yaml:"kmeans_clusters" mapstructure:"kmeans_clusters"`
	HDBSCANMinSamples int `yaml:"hdbscan_min_samples" mapstructure:"hdbscan_min_samples"`
}

// StoreConfig configures the serving database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the query API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AnthropicConfig holds Anthropic API settings for the insights endpoint.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TemporalConfig configures the workflow worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
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
	v.SetEnvPrefix("CBI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.interim_dir", "data/interim")
	v.SetDefault("data.processed_dir", "data/processed")
	v.SetDefault("sources.tiger_year", 2025)
	v.SetDefault("fetch.user_agent", "cbi-pipeline/1.0 ops@climateburdentract.org")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("cluster.kmeans_clusters", 5)
	v.SetDefault("cluster.hdbscan_min_samples", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cbi.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "cbi-pipeline")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
