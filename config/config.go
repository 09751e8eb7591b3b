package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/nutrition-proxy/internal/httpserver"
	"github.com/angeloszaimis/nutrition-proxy/internal/upstream"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
	StaticDir   string `mapstructure:"static_dir"`
	CORSOrigin  string `mapstructure:"cors_origin"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

type RetryConfig struct {
	TextAttempts  int    `mapstructure:"text_attempts"`
	ImageAttempts int    `mapstructure:"image_attempts"`
	InitialDelay  string `mapstructure:"initial_delay"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in increasing order of precedence.
// An empty path searches for config.yaml in ./config and the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env file", slog.String("error", err.Error()))
		return nil, err
	}

	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("provider.model", "gemini-2.0-flash")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("retry.text_attempts", 5)
	v.SetDefault("retry.image_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("logging.level", LogLevelInfo)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("provider.api_key", "PROVIDER_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("port", "PORT"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	if port := v.GetString("port"); port != "" {
		v.Set("server.address", ":"+port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section. A missing API key is allowed; requests
// fail individually instead.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Provider),
		validation.Field(&c.Retry),
		validation.Field(&c.Logging),
	)
}

func (sc ServerConfig) Validate() error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&sc.Address,
			validation.Required,
			validation.By(httpserver.ValidateAddress),
		),
	)
}

func (pc ProviderConfig) Validate() error {
	return validation.ValidateStruct(&pc,
		validation.Field(&pc.BaseURL, validation.By(validateServerURL)),
		validation.Field(&pc.Model, validation.Required),
		validation.Field(&pc.Timeout, validation.Required, validation.By(validateDuration)),
	)
}

func (rc RetryConfig) Validate() error {
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.TextAttempts, validation.Required, validation.Min(1), validation.Max(upstream.MaxAttempts)),
		validation.Field(&rc.ImageAttempts, validation.Required, validation.Min(1), validation.Max(upstream.MaxAttempts)),
		validation.Field(&rc.InitialDelay, validation.Required, validation.By(validateDuration)),
	)
}

func (lc LoggingConfig) Validate() error {
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

// TimeoutDuration returns the per-attempt timeout. Call it after Validate.
func (pc ProviderConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(pc.Timeout)
	return d
}

// InitialDelayDuration returns the first backoff delay. Call it after Validate.
func (rc RetryConfig) InitialDelayDuration() time.Duration {
	d, _ := time.ParseDuration(rc.InitialDelay)
	return d
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
