package config

// Config is the on-disk configuration (config.yaml or config.json).
//
// Durations are Go duration strings ("500ms", "10s", "1m").
type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Timetable    TimetableConfig    `json:"timetable"`
	Notification NotificationConfig `json:"notification"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	PollTimeout  string  `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TimetableConfig points at the timetable file (.xlsx or .csv).
type TimetableConfig struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet,omitempty"`
}

// NotificationConfig controls the daily "tomorrow" broadcast.
//
// ChatID is kept as a string so negative group ids survive YAML and env
// overrides unchanged; it is parsed by Validate.
type NotificationConfig struct {
	Enabled         bool   `json:"enabled"`
	ChatID          string `json:"chat_id"`
	ThreadID        int    `json:"thread_id,omitempty"`
	Time            string `json:"time"`
	Timezone        string `json:"timezone"`
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the firing journal backend.
//
//	"storage": { "driver": "sqlite", "path": "./timetablebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
