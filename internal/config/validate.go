package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "timetablebot/pkg/logx"
)

// ErrConfigInvalid wraps every configuration problem. It is fatal at startup;
// on hot reload the offending file is rejected and the running config kept.
var ErrConfigInvalid = errors.New("invalid configuration")

const (
	DefaultNotifyTime      = "20:00"
	DefaultNotifyTimezone  = "Europe/Moscow"
	DefaultTimetablePath   = "schedule.xlsx"
	DefaultDispatchTimeout = 30 * time.Second
	DefaultPollTimeout     = 10 * time.Second
)

// ApplyDefaults fills fields left empty.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Timetable.Path) == "" {
		c.Timetable.Path = DefaultTimetablePath
	}
	if strings.TrimSpace(c.Notification.Time) == "" {
		c.Notification.Time = DefaultNotifyTime
	}
	if strings.TrimSpace(c.Notification.Timezone) == "" {
		c.Notification.Timezone = DefaultNotifyTimezone
	}
	if c.Notification.RatePerSec <= 0 {
		c.Notification.RatePerSec = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks everything the bot needs before it can start.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if g := strings.TrimSpace(c.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add("telegram.group_log: invalid chat id %q", g)
		}
	}
	if !logx.ValidLevel(c.Logging.Level) {
		add("logging.level: unknown level %q", c.Logging.Level)
	}
	if !logx.ValidLevel(c.Logging.Telegram.MinLevel) {
		add("logging.telegram.min_level: unknown level %q", c.Logging.Telegram.MinLevel)
	}
	if strings.TrimSpace(c.Timetable.Path) == "" {
		add("timetable.path is required")
	}

	n := c.Notification
	if n.Enabled {
		if _, err := c.BroadcastChatID(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, _, err := ParseTimeOfDay(n.Time); err != nil {
		add("notification.time: %v", err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("notification.dispatch_timeout", n.DispatchTimeout); err != nil {
		errs = append(errs, err)
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				add("storage.path is required when storage.driver=sqlite")
			}
		default:
			add("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
}

// BroadcastChatID parses notification.chat_id.
func (c *Config) BroadcastChatID() (int64, error) {
	raw := strings.TrimSpace(c.Notification.ChatID)
	if raw == "" {
		return 0, fmt.Errorf("%w: notification.chat_id is required", ErrConfigInvalid)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: notification.chat_id: invalid chat id %q", ErrConfigInvalid, raw)
	}
	return id, nil
}

// Location loads notification.timezone from the tz database.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Notification.Timezone)
	if tz == "" {
		tz = DefaultNotifyTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: notification.timezone: unknown timezone %q", ErrConfigInvalid, tz)
	}
	return loc, nil
}

// GroupLogChatID returns the log chat id, or 0 when unset.
func (c *Config) GroupLogChatID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(c.Telegram.GroupLog), 10, 64)
	return id
}

// ParseTimeOfDay parses a strict 24h "H:MM" or "HH:MM".
func ParseTimeOfDay(raw string) (hour, minute int, err error) {
	s := strings.TrimSpace(raw)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q must be HH:MM", ErrConfigInvalid, raw)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrConfigInvalid, raw)
	}
	return hour, minute, nil
}
