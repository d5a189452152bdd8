// Package config loads, defaults and validates the bot configuration from an
// optional YAML file and PQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Quotly    QuotlyConfig    `mapstructure:"quotly"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig configures the Bot API connection.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token" validate:"required"`
	Mode     string        `mapstructure:"mode"      validate:"oneof=polling webhook"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig is only used when Mode is "webhook".
type WebhookConfig struct {
	URL    string `mapstructure:"url"    validate:"omitempty,url"`
	Listen string `mapstructure:"listen" validate:"required"`
	Path   string `mapstructure:"path"   validate:"required,startswith=/"`
	Secret string `mapstructure:"secret"`
}

// QuotlyConfig configures the quote image service.
type QuotlyConfig struct {
	URL   string `mapstructure:"url"   validate:"required,url"`
	Scale int    `mapstructure:"scale" validate:"min=1,max=20"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig controls how long observed chat messages stay quotable.
type CacheConfig struct {
	Retention time.Duration `mapstructure:"retention" validate:"min=1m"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing texts.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	Help          string `mapstructure:"help"           validate:"required"`
	ReplyRequired string `mapstructure:"reply_required" validate:"required"`
	ServerError   string `mapstructure:"server_error"   validate:"required"`
	GenericError  string `mapstructure:"generic_error"  validate:"required"`
}

// envOnlyKeys have no default but must still be readable from the environment.
var envOnlyKeys = []string{
	"telegram.bot_token",
	"telegram.webhook.url",
	"telegram.webhook.secret",
}

// LoadConfig reads the configuration: defaults first, then the YAML file at
// path (if it exists), then PQ_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Telegram.Mode == ModeWebhook && c.Telegram.Webhook.URL == "" {
		return fmt.Errorf("invalid configuration: telegram.webhook.url is required in webhook mode")
	}
	return nil
}
