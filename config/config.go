// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the settings of the service and the CLI from a YAML
// file, .env files, GEOCODE_* environment variables and command line flags.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of every environment variable.
const EnvPrefix = "GEOCODE"

// FileName is the config file name, without extension.
const FileName = "geocode-web"

type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Addr          string   `yaml:"addr" mapstructure:"addr" validate:"required"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	SessionCookie string   `yaml:"session_cookie" mapstructure:"session_cookie" validate:"required"`
	SecureCookie  bool     `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	// Restore reloads the latest stored batch of a returning session.
	Restore bool `yaml:"restore" mapstructure:"restore"`
}

type BackendConfig struct {
	URL        string        `yaml:"url" mapstructure:"url" validate:"required,url"`
	PreviewURL string        `yaml:"preview_url" mapstructure:"preview_url" validate:"omitempty,url"`
	Token      string        `yaml:"token" mapstructure:"token"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
	Burst      int           `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	Samples    []string      `yaml:"samples" mapstructure:"samples"`
}

type StoreConfig struct {
	// Path of the DuckDB history file. Empty disables the history.
	Path string `yaml:"path" mapstructure:"path"`
}

type ArchiveConfig struct {
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	AccessKey string        `yaml:"access_key" mapstructure:"access_key" validate:"required_with=Endpoint"`
	SecretKey string        `yaml:"secret_key" mapstructure:"secret_key" validate:"required_with=Endpoint"`
	Region    string        `yaml:"region" mapstructure:"region"`
	Bucket    string        `yaml:"bucket" mapstructure:"bucket" validate:"required_with=Endpoint"`
	Prefix    string        `yaml:"prefix" mapstructure:"prefix"`
	UseSSL    bool          `yaml:"use_ssl" mapstructure:"use_ssl"`
	URLTTL    time.Duration `yaml:"url_ttl" mapstructure:"url_ttl" validate:"gte=0"`
}

type AnalyticsConfig struct {
	PostHogKey  string `yaml:"posthog_key" mapstructure:"posthog_key"`
	PostHogHost string `yaml:"posthog_host" mapstructure:"posthog_host" validate:"omitempty,url"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`
}

// New returns a viper instance with every default set, reading GEOCODE_*
// variables and geocode-web.yaml from the working directory.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.session_cookie", "geocode_session")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.restore", true)
	v.SetDefault("backend.url", "https://geocode.gimi9.com")
	v.SetDefault("backend.preview_url", "https://geocode-dev.gimi9.com")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.user_agent", "geocode-web")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.rate_limit", 0)
	v.SetDefault("backend.burst", 1)
	v.SetDefault("backend.samples", []string{})
	v.SetDefault("store.path", "")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.bucket", "geocode-exports")
	v.SetDefault("archive.prefix", "exports")
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.url_ttl", 24*time.Hour)
	v.SetDefault("analytics.posthog_key", "")
	v.SetDefault("analytics.posthog_host", "https://us.i.posthog.com")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	return v
}

// Load reads .env files, the config file and the environment into a
// validated Config. A missing config file or .env file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file loaded", zap.Error(err))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// GEOCODE_SERVER_CORS_ORIGINS="a, b" arrives as a single string
	cfg.Server.CORSOrigins = splitCSV(cfg.Server.CORSOrigins)
	cfg.Backend.Samples = splitCSV(cfg.Backend.Samples)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the validation tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return eris.Wrap(err, "config: invalid")
	}

	return nil
}

// splitCSV splits comma separated items, trimming spaces and dropping
// empty entries.
func splitCSV(values []string) []string {
	results := make([]string, 0, len(values))

	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				results = append(results, trimmed)
			}
		}
	}

	return results
}

// InitLogger replaces the global zap logger.
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
