package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newManager(path string, env map[string]string) *ConfigManager {
	m := NewConfigManager(path)
	m.getenv = func(k string) string { return env[k] }
	return m
}

const validYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
logging:
  level: info
  console: true
timetable:
  path: ./schedule.xlsx
notification:
  enabled: true
  chat_id: "-1001234567890"
  time: "20:00"
  timezone: Europe/Moscow
  dispatch_timeout: 15s
storage:
  driver: sqlite
  path: ./bot.db
`

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)
	cfg, err := newManager(path, nil).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id, err := cfg.BroadcastChatID()
	if err != nil || id != -1001234567890 {
		t.Fatalf("chat id: %d %v", id, err)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Moscow" {
		t.Fatalf("location: %v %v", loc, err)
	}
	if cfg.Notification.RatePerSec != 1 {
		t.Fatalf("expected default rate, got %d", cfg.Notification.RatePerSec)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"x"},"scheduler":{"enabled":true}}`)
	_, err := newManager(path, nil).Load()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"file-token"}}`)
	env := map[string]string{
		EnvBotToken:        "env-token",
		EnvBroadcastChatID: "-100500",
		EnvNotifyTime:      "07:30",
		EnvNotifyTimezone:  "Asia/Yekaterinburg",
		EnvTimetablePath:   "/data/t.csv",
	}
	cfg, err := newManager(path, env).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" || !cfg.Notification.Enabled ||
		cfg.Notification.ChatID != "-100500" || cfg.Notification.Time != "07:30" ||
		cfg.Notification.Timezone != "Asia/Yekaterinburg" || cfg.Timetable.Path != "/data/t.csv" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Telegram.Token = "t"
		c.Notification = NotificationConfig{Enabled: true, ChatID: "-1", Time: "20:00", Timezone: "Europe/Moscow"}
		c.ApplyDefaults()
		return c
	}
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, false},
		{"bad timezone", func(c *Config) { c.Notification.Timezone = "Mars/Olympus" }, false},
		{"bad time", func(c *Config) { c.Notification.Time = "25:00" }, false},
		{"time without minutes", func(c *Config) { c.Notification.Time = "20" }, false},
		{"missing chat when enabled", func(c *Config) { c.Notification.ChatID = "" }, false},
		{"missing chat when disabled", func(c *Config) { c.Notification.ChatID = ""; c.Notification.Enabled = false }, true},
		{"bad duration", func(c *Config) { c.Notification.DispatchTimeout = "soon" }, false},
		{"bad storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "mongo"} }, false},
		{"sqlite without path", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("7:05")
	if err != nil || h != 7 || m != 5 {
		t.Fatalf("got %d:%d %v", h, m, err)
	}
	for _, bad := range []string{"", "7", "07:5", "24:00", "12:60", "ab:cd"} {
		if _, _, err := ParseTimeOfDay(bad); !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("%q: expected ErrConfigInvalid, got %v", bad, err)
		}
	}
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
	path := writeFile(t, ".env", "TIMETABLEBOT_TEST_VAR=hello\n")
	t.Setenv("TIMETABLEBOT_TEST_VAR", "")
	os.Unsetenv("TIMETABLEBOT_TEST_VAR")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("TIMETABLEBOT_TEST_VAR"); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)
	m := newManager(path, nil)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	// An invalid file is rejected.
	if err := os.WriteFile(path, []byte("telegram: {token: ''}\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-sub:
		t.Fatalf("invalid config must not be published")
	case <-time.After(600 * time.Millisecond):
	}

	updated := strings.Replace(validYAML, "level: info", "level: debug", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("unexpected published config: %+v", cfg.Logging)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("valid config was not published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("Get should return the committed config")
	}
	cancel()
	<-done
}

func TestSummarizeConfigChange(t *testing.T) {
	a := &Config{}
	a.Telegram.Token = "secret"
	b := *a
	b.Logging.Level = "debug"
	b.Notification.Time = "21:00"
	sections, _ := SummarizeConfigChange(a, &b)
	if len(sections) != 2 || sections[0] != "logging" || sections[1] != "notification" {
		t.Fatalf("got %v", sections)
	}
	if r := RestartRequired(a, &b); len(r) != 1 || r[0] != "notification" {
		t.Fatalf("restart required: %v", r)
	}
}
