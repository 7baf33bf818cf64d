// Package config loads application configuration from file and environment
// and owns global logger setup.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the outbound HTTP client.
type FetchConfig struct {
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HostRate    float64  `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst   int      `yaml:"host_burst" mapstructure:"host_burst"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyKB   int      `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	Blocklist   []string `yaml:"blocklist" mapstructure:"blocklist"`
}

// DiscoveryConfig configures the source orchestrator.
type DiscoveryConfig struct {
	TargetCount    int    `yaml:"target_count" mapstructure:"target_count"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	Query          string `yaml:"query" mapstructure:"query"`
	Country        string `yaml:"country" mapstructure:"country"`
}

// ExtractConfig configures the page extractor.
type ExtractConfig struct {
	Synthesize    bool   `yaml:"synthesize" mapstructure:"synthesize"`
	MaxCandidates int    `yaml:"max_candidates" mapstructure:"max_candidates"`
	Industry      string `yaml:"industry" mapstructure:"industry"`
}

// ValidationConfig holds the scoring thresholds. AcceptScore is the loose
// gate applied during discovery, ValidScore the strict one.
type ValidationConfig struct {
	AcceptScore int `yaml:"accept_score" mapstructure:"accept_score"`
	ValidScore  int `yaml:"valid_score" mapstructure:"valid_score"`
}

// EnrichConfig configures the contact research worker.
type EnrichConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAgeHours int `yaml:"max_age_hours" mapstructure:"max_age_hours"`
	MaxEmails   int `yaml:"max_emails" mapstructure:"max_emails"`
	MaxPhones   int `yaml:"max_phones" mapstructure:"max_phones"`
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
	v.SetEnvPrefix("AGSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "agscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.host_rate", 1.0)
	v.SetDefault("fetch.host_burst", 2)
	v.SetDefault("fetch.max_body_kb", 512)
	v.SetDefault("discovery.target_count", 10)
	v.SetDefault("discovery.max_retries", 2)
	v.SetDefault("discovery.retry_delay_secs", 2)
	v.SetDefault("discovery.query", "agriculture")
	v.SetDefault("extract.max_candidates", 6)
	v.SetDefault("extract.industry", "AgTech")
	v.SetDefault("validation.accept_score", 30)
	v.SetDefault("validation.valid_score", 60)
	v.SetDefault("enrich.concurrency", 3)
	v.SetDefault("enrich.max_age_hours", 168)
	v.SetDefault("enrich.max_emails", 10)
	v.SetDefault("enrich.max_phones", 3)

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

// Validate checks the settings a given mode depends on. Modes are the
// top-level subcommands: discover, enrich, serve.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			missing = append(missing, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	default:
		missing = append(missing, "store.driver must be sqlite or postgres")
	}

	if c.Validation.AcceptScore < 0 || c.Validation.AcceptScore > 100 {
		missing = append(missing, "validation.accept_score must be between 0 and 100")
	}
	if c.Validation.ValidScore < 0 || c.Validation.ValidScore > 100 {
		missing = append(missing, "validation.valid_score must be between 0 and 100")
	}
	if c.Validation.AcceptScore > c.Validation.ValidScore {
		missing = append(missing, "validation.accept_score must not exceed validation.valid_score")
	}

	switch mode {
	case "discover":
		if c.Discovery.TargetCount < 1 {
			missing = append(missing, "discovery.target_count must be >= 1")
		}
		if c.Discovery.MaxRetries < 0 {
			missing = append(missing, "discovery.max_retries must be >= 0")
		}
	case "enrich":
		if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 20 {
			missing = append(missing, "enrich.concurrency must be between 1 and 20")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 20 {
			missing = append(missing, "enrich.concurrency must be between 1 and 20")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(missing, "\n  - "))
	}
	return nil
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
