package app

import (
	"strings"
	"time"

	"timetablebot/internal/broadcast"
	"timetablebot/internal/config"
	"timetablebot/internal/scheduler"
	"timetablebot/internal/timetable"
	kit "timetablebot/internal/transport"
	logx "timetablebot/pkg/logx"
)

// logConfig maps the logging section. withTelegram=false lets the caller set
// the log chat before the Telegram sink is switched on, so Apply does not warn
// about a missing target.
func logConfig(cfg *config.Config, withTelegram bool) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    withTelegram && cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func storeConfig(cfg *config.Config) timetable.StoreConfig {
	return timetable.StoreConfig{
		Path:  strings.TrimSpace(cfg.Timetable.Path),
		Sheet: strings.TrimSpace(cfg.Timetable.Sheet),
	}
}

func broadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	chatID, err := cfg.BroadcastChatID()
	if err != nil {
		return broadcast.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("notification.dispatch_timeout", cfg.Notification.DispatchTimeout, config.DefaultDispatchTimeout)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		Target:     kit.ChatTarget{ChatID: chatID, ThreadID: cfg.Notification.ThreadID},
		Timeout:    timeout,
		RatePerSec: cfg.Notification.RatePerSec,
	}, nil
}

func triggerFor(cfg *config.Config) (scheduler.Trigger, error) {
	return scheduler.ParseTrigger(cfg.Notification.Time, cfg.Notification.Timezone)
}

func pollTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
}
