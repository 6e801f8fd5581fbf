// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stroysmeta/normcat-cli/internal/canonical"
	"github.com/stroysmeta/normcat-cli/internal/validate"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig               `yaml:"store" mapstructure:"store"`
	Sources    SourcesConfig             `yaml:"sources" mapstructure:"sources"`
	ETL        ETLConfig                 `yaml:"etl" mapstructure:"etl"`
	Validation validate.Config           `yaml:"validation" mapstructure:"validation"`
	Rates      canonical.ConversionRates `yaml:"rates" mapstructure:"rates"`
	Pricing    PricingConfig             `yaml:"pricing" mapstructure:"pricing"`
	Schedule   ScheduleConfig            `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig              `yaml:"server" mapstructure:"server"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the catalog collectors.
type SourcesConfig struct {
	Enabled []string `yaml:"enabled" mapstructure:"enabled"`

	// Regions are the territorial subject codes fetched by the regional
	// collectors.
	Regions []string `yaml:"regions" mapstructure:"regions"`

	FERURL        string `yaml:"fer_url" mapstructure:"fer_url"`
	TERURLFormat  string `yaml:"ter_url_format" mapstructure:"ter_url_format"`
	GESNURL       string `yaml:"gesn_url" mapstructure:"gesn_url"`
	FSSCURL       string `yaml:"fssc_url" mapstructure:"fssc_url"`
	TSSCURLFormat string `yaml:"tssc_url_format" mapstructure:"tssc_url_format"`

	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	InterRequestDelayMS int    `yaml:"inter_request_delay_ms" mapstructure:"inter_request_delay_ms"`
}

// ETLConfig configures the pipeline.
type ETLConfig struct {
	ChunkSize        int `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxConcurrent    int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	MaxJobErrors     int `yaml:"max_job_errors" mapstructure:"max_job_errors"`
}

// PricingConfig configures the price calculation engine.
type PricingConfig struct {
	CacheTTLSecs int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	BasePeriod   string `yaml:"base_period" mapstructure:"base_period"`
	SeedPath     string `yaml:"seed_path" mapstructure:"seed_path"`
}

// CacheTTL returns the pricing cache TTL as a duration.
func (c PricingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// ScheduleConfig configures the periodic pipeline trigger.
type ScheduleConfig struct {
	// ETLSpec is a six-field cron expression.
	ETLSpec string `yaml:"etl_spec" mapstructure:"etl_spec"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("NORMCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sources.enabled", []string{"fer", "ter", "gesn", "fssc", "tssc"})
	v.SetDefault("sources.regions", []string{"77", "78", "23", "66"})
	v.SetDefault("sources.fer_url", "https://www.minstroyrf.gov.ru/docs/fer/current.csv")
	v.SetDefault("sources.ter_url_format", "https://www.minstroyrf.gov.ru/docs/ter/%s/current.xlsx")
	v.SetDefault("sources.gesn_url", "https://www.minstroyrf.gov.ru/docs/gesn/current.csv")
	v.SetDefault("sources.fssc_url", "ftp://ftp.minstroyrf.gov.ru/fssc/current.csv")
	v.SetDefault("sources.tssc_url_format", "https://fgiscs.minstroyrf.ru/api/tssc/%s/current.json")
	v.SetDefault("sources.user_agent", "normcat-cli/1.0")
	v.SetDefault("sources.timeout_secs", 30)
	v.SetDefault("sources.inter_request_delay_ms", 1000)
	v.SetDefault("etl.chunk_size", 500)
	v.SetDefault("etl.max_concurrent", 3)
	v.SetDefault("etl.max_retries", 3)
	v.SetDefault("etl.retry_base_delay_ms", 500)
	v.SetDefault("etl.max_job_errors", 25)
	v.SetDefault("validation.max_code_length", 50)
	v.SetDefault("validation.max_name_length", 500)
	v.SetDefault("validation.cost_tolerance", 0.01)
	v.SetDefault("rates.labor_hour_rate", 100)
	v.SetDefault("rates.machine_hour_rate", 500)
	v.SetDefault("pricing.cache_ttl_secs", 300)
	v.SetDefault("pricing.base_period", "2001")
	v.SetDefault("pricing.seed_path", "coefficients.yaml")
	v.SetDefault("schedule.etl_spec", "0 0 */6 * * *")

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
