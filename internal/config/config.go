package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Fairness FairnessConfig `yaml:"fairness" mapstructure:"fairness"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// SourceConfig configures the data.gov.sg resale transaction source.
type SourceConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ResourceID  string `yaml:"resource_id" mapstructure:"resource_id"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	MaxRecords  int    `yaml:"max_records" mapstructure:"max_records"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`

	// BreakerThreshold consecutive upstream failures open the circuit for
	// BreakerCooldownSecs. Zero disables the breaker.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// FairnessConfig holds the default hedonic coefficients and estimator tuning.
type FairnessConfig struct {
	BetaLease         float64 `yaml:"beta_lease" mapstructure:"beta_lease"`
	GammaLogArea      float64 `yaml:"gamma_log_area" mapstructure:"gamma_log_area"`
	LeaseScaleYears   float64 `yaml:"lease_scale_years" mapstructure:"lease_scale_years"`
	AreaScaleFraction float64 `yaml:"area_scale_fraction" mapstructure:"area_scale_fraction"`
	MaxComparables    int     `yaml:"max_comparables" mapstructure:"max_comparables"`
	MaxReturned       int     `yaml:"max_returned" mapstructure:"max_returned"`
	MinComparables    int     `yaml:"min_comparables" mapstructure:"min_comparables"`
	MinThreshold      float64 `yaml:"min_threshold" mapstructure:"min_threshold"`
	MaxThreshold      float64 `yaml:"max_threshold" mapstructure:"max_threshold"`
}

// FairnessParams projects the tuning section into estimator params.
func (c *Config) FairnessParams() fairness.Params {
	f := c.Fairness
	return fairness.Params{
		LeaseScaleYears:   f.LeaseScaleYears,
		AreaScaleFraction: f.AreaScaleFraction,
		MaxComparables:    f.MaxComparables,
		MaxReturned:       f.MaxReturned,
		MinComparables:    f.MinComparables,
		MinThreshold:      f.MinThreshold,
		MaxThreshold:      f.MaxThreshold,
	}
}

// Coefficients returns the configured default hedonic coefficients.
func (c *Config) Coefficients() fairness.Coefficients {
	return fairness.Coefficients{
		BetaLease:    c.Fairness.BetaLease,
		GammaLogArea: c.Fairness.GammaLogArea,
	}
}

// Validate checks the settings a command needs. Mode is one of "serve",
// "estimate" or "pool".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxBodyBytes <= 0 {
			errs = append(errs, "server.max_body_bytes must be > 0")
		}
		errs = append(errs, c.sourceErrors()...)
		errs = append(errs, c.fairnessErrors()...)
	case "estimate":
		errs = append(errs, c.fairnessErrors()...)
	case "pool":
		errs = append(errs, c.sourceErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) sourceErrors() []string {
	var errs []string
	if c.Source.BaseURL == "" {
		errs = append(errs, "source.base_url is required")
	}
	if c.Source.ResourceID == "" {
		errs = append(errs, "source.resource_id is required")
	}
	if c.Source.PageSize < 1 || c.Source.PageSize > 10000 {
		errs = append(errs, "source.page_size must be between 1 and 10000")
	}
	if c.Source.Concurrency < 1 || c.Source.Concurrency > 16 {
		errs = append(errs, "source.concurrency must be between 1 and 16")
	}
	if c.Source.MaxRecords < 0 {
		errs = append(errs, "source.max_records must be >= 0")
	}
	if c.Source.BreakerThreshold < 0 {
		errs = append(errs, "source.breaker_threshold must be >= 0")
	}
	return errs
}

func (c *Config) fairnessErrors() []string {
	if err := fairness.ValidateParams(c.FairnessParams()); err != nil {
		return []string{fmt.Sprintf("fairness: %v", err)}
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HDB_FAIRNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("source.base_url", "https://data.gov.sg")
	v.SetDefault("source.resource_id", "d_8b84c4ee58e3cfc0ece0d773c8ca6abc")
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.max_records", 5000)
	v.SetDefault("source.concurrency", 4)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.user_agent", "hdb-fairness/1.0")
	v.SetDefault("source.breaker_threshold", 5)
	v.SetDefault("source.breaker_cooldown_secs", 30)

	p := fairness.DefaultParams()
	v.SetDefault("fairness.beta_lease", 0.015)
	v.SetDefault("fairness.gamma_log_area", -0.15)
	v.SetDefault("fairness.lease_scale_years", p.LeaseScaleYears)
	v.SetDefault("fairness.area_scale_fraction", p.AreaScaleFraction)
	v.SetDefault("fairness.max_comparables", p.MaxComparables)
	v.SetDefault("fairness.max_returned", p.MaxReturned)
	v.SetDefault("fairness.min_comparables", p.MinComparables)
	v.SetDefault("fairness.min_threshold", p.MinThreshold)
	v.SetDefault("fairness.max_threshold", p.MaxThreshold)

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
