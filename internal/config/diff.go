package config

import (
	"reflect"
	"sort"
	"strings"

	logx "timetablebot/pkg/logx"
)

// SummarizeConfigChange lists the changed top-level sections and a few safe
// fields for the log. Tokens and chat ids are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.GroupLog != nt.GroupLog ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Timetable != newCfg.Timetable {
		changed = append(changed, "timetable")
		attrs = append(attrs, logx.String("timetable.path", newCfg.Timetable.Path))
	}

	if oldCfg.Notification != newCfg.Notification {
		changed = append(changed, "notification")
		attrs = append(attrs,
			logx.Bool("notification.enabled", newCfg.Notification.Enabled),
			logx.String("notification.time", newCfg.Notification.Time),
			logx.String("notification.timezone", newCfg.Notification.Timezone),
		)
	}

	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newS.Driver))
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists changes that only take effect after a restart.
// Logging, owners and the timetable location apply live.
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		out = append(out, "telegram")
	}
	if oldCfg.Notification != newCfg.Notification {
		out = append(out, "notification")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		out = append(out, "storage")
	}
	return out
}
