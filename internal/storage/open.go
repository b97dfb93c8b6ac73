package storage

import (
	"context"
	"fmt"
	"strings"

	logx "timetablebot/pkg/logx"
)

// Store is the firing journal.
type Store interface {
	AppendFiring(ctx context.Context, f Firing) error
	// LastFiring returns the most recent firing with the given trigger.
	LastFiring(ctx context.Context, trigger Trigger) (Firing, bool, error)
	// RecentFirings returns up to n firings, newest first.
	RecentFirings(ctx context.Context, n int) ([]Firing, error)
	Close() error
}

// Open returns (nil, nil) when storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
