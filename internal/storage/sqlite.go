package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "timetablebot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" to a single shared database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendFiring(ctx context.Context, f Firing) error {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO firings(at, date, trigger, actor_id, target, parity, weekday, sessions, data_unavailable, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		f.At.UTC().Format(time.RFC3339Nano), f.Date, string(f.Trigger), f.ActorID,
		f.Target, f.Parity, f.Weekday, f.Sessions, boolInt(f.DataUnavailable), nullStr(f.Error), f.TookMS,
	)
	return err
}

const firingColumns = `at, date, trigger, actor_id, target, parity, weekday, sessions, data_unavailable, err, took_ms`

func (s *sqliteStore) LastFiring(ctx context.Context, trigger Trigger) (Firing, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+firingColumns+` FROM firings WHERE trigger = ? ORDER BY id DESC LIMIT 1`, string(trigger))
	f, err := scanFiring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Firing{}, false, nil
	}
	if err != nil {
		return Firing{}, false, err
	}
	return f, true, nil
}

func (s *sqliteStore) RecentFirings(ctx context.Context, n int) ([]Firing, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+firingColumns+` FROM firings ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Firing
	for rows.Next() {
		f, err := scanFiring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanFiring(sc scanner) (Firing, error) {
	var (
		f       Firing
		at      string
		trigger string
		unavail int
		errStr  sql.NullString
	)
	if err := sc.Scan(&at, &f.Date, &trigger, &f.ActorID, &f.Target, &f.Parity, &f.Weekday,
		&f.Sessions, &unavail, &errStr, &f.TookMS); err != nil {
		return Firing{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Firing{}, fmt.Errorf("firing at %q: %w", at, err)
	}
	f.At = t
	f.Trigger = Trigger(trigger)
	f.DataUnavailable = unavail != 0
	f.Error = errStr.String
	return f, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
