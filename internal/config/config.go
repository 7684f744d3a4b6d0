// Package config holds the application's root configuration.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// PostgresConfig holds settings for the database connection. An empty URL
// selects the in-memory store.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// BrowserConfig holds settings for launched browser sessions.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless"`
	ExecPath        string   `mapstructure:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors"`
	Args            []string `mapstructure:"args"`
	// UserDataRoot is the directory persistent profiles are created under.
	// Empty means sessions use throwaway directories.
	UserDataRoot string        `mapstructure:"user_data_root"`
	CloseTimeout time.Duration `mapstructure:"close_timeout"`
}

// GeneratorConfig tunes fingerprint sampling.
type GeneratorConfig struct {
	FontsMin      int    `mapstructure:"fonts_min"`
	FontsMax      int    `mapstructure:"fonts_max"`
	DefaultRegion string `mapstructure:"default_region"`
}

// ValidatorConfig tunes risk scoring.
type ValidatorConfig struct {
	// NewestMajor is the newest Chrome major version considered current.
	NewestMajor int `mapstructure:"newest_major"`
}

// CatalogConfig lists extra YAML seed files merged over the built-in catalog.
type CatalogConfig struct {
	SeedFiles []string `mapstructure:"seed_files"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "fishbrowser")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.close_timeout", 10*time.Second)

	v.SetDefault("generator.fonts_min", 30)
	v.SetDefault("generator.fonts_max", 50)
	v.SetDefault("generator.default_region", "")

	v.SetDefault("validator.newest_major", 143)
}

// Validate checks the loaded values for internal consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Generator.FontsMin < 0 {
		errs = append(errs, errors.New("generator.fonts_min must not be negative"))
	}
	if c.Generator.FontsMax < c.Generator.FontsMin {
		errs = append(errs, errors.New("generator.fonts_max must be at least generator.fonts_min"))
	}
	if c.Validator.NewestMajor <= 0 {
		errs = append(errs, errors.New("validator.newest_major must be a positive integer"))
	}
	if c.Browser.CloseTimeout < 0 {
		errs = append(errs, errors.New("browser.close_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			loadErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set replaces the configuration singleton. Used by tests and embedders that
// build a Config without Viper.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
