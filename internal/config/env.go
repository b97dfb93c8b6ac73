package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvBotToken        = "BOT_TOKEN"
	EnvBroadcastChatID = "BROADCAST_CHAT_ID"
	EnvNotifyTime      = "NOTIFY_TIME"
	EnvNotifyTimezone  = "NOTIFY_TIMEZONE"
	EnvTimetablePath   = "TIMETABLE_PATH"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// applyEnv overlays the environment on cfg. Setting BROADCAST_CHAT_ID also
// enables the notification.
func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) bool {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
			return true
		}
		return false
	}
	set(&cfg.Telegram.Token, EnvBotToken)
	if set(&cfg.Notification.ChatID, EnvBroadcastChatID) {
		cfg.Notification.Enabled = true
	}
	set(&cfg.Notification.Time, EnvNotifyTime)
	set(&cfg.Notification.Timezone, EnvNotifyTimezone)
	set(&cfg.Timetable.Path, EnvTimetablePath)
}
