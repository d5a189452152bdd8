package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultQuotlyURL      = "https://bot.lyo.su/quote/generate"
	DefaultQuotlyScale    = 2
	DefaultCacheRetention = 7 * 24 * time.Hour
)

var defaults = map[string]any{
	"log.level": "info",
	"log.json":  true,

	"telegram.mode":           ModePolling,
	"telegram.webhook.listen": ":8080",
	"telegram.webhook.path":   "/telegram/webhook",

	"quotly.url":   DefaultQuotlyURL,
	"quotly.scale": DefaultQuotlyScale,

	"database.path": "punquote.db",

	"cache.retention": DefaultCacheRetention,

	"scheduler.tasks": map[string]any{
		"message_cache_prune": map[string]any{"enabled": true, "schedule": "0 0 * * * *"},
		"sql_maintenance":     map[string]any{"enabled": true, "schedule": "0 0 3 * * *"},
	},

	"messages.welcome":        "Reply to a message with /q to turn it into a quote sticker.",
	"messages.help":           "Reply to a message with /q [count] [r] [m].\ncount: number of messages to quote, negative to go backwards (max 10)\nr: keep replies\nm: keep media",
	"messages.reply_required": "Command must be sent as a reply to a message",
	"messages.server_error":   "Quotly server error. Code %d: %s",
	"messages.generic_error":  "Failed to generate quote: %v",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist)
}
