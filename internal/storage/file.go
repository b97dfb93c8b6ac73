package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "timetablebot/pkg/logx"
)

const (
	defaultFilePath = "./data/firings.jsonl"
	fileKeep        = 400
	fileCompactAt   = 2 * fileKeep
)

// fileStore keeps the journal as JSON lines and the newest records in memory.
// When the file grows past fileCompactAt lines it is rewritten with the newest fileKeep.
type fileStore struct {
	log  logx.Logger
	path string

	mu      sync.Mutex
	f       *os.File
	recent  []Firing // oldest first
	written int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	recent, lines, err := replay(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s := &fileStore{log: log, path: path, f: f, recent: recent, written: lines}
	if lines >= fileCompactAt {
		s.mu.Lock()
		if err := s.compactLocked(); err != nil {
			log.Warn("firing journal compact failed", logx.Err(err))
		}
		s.mu.Unlock()
	}
	return s, nil
}

func replay(path string) ([]Firing, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var out []Firing
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		var r Firing
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.At.IsZero() {
			continue
		}
		out = append(out, r)
		if len(out) > fileKeep {
			out = out[len(out)-fileKeep:]
		}
	}
	return out, lines, sc.Err()
}

func (s *fileStore) AppendFiring(ctx context.Context, r Firing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.recent = append(s.recent, r)
	if len(s.recent) > fileKeep {
		s.recent = s.recent[len(s.recent)-fileKeep:]
	}
	s.written++
	if s.written >= fileCompactAt {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("firing journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) LastFiring(ctx context.Context, trigger Trigger) (Firing, bool, error) {
	if err := ctx.Err(); err != nil {
		return Firing{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].Trigger == trigger {
			return s.recent[i], true, nil
		}
	}
	return Firing{}, false, nil
}

func (s *fileStore) RecentFirings(ctx context.Context, n int) ([]Firing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]Firing, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// compactLocked rewrites the file with the in-memory tail and reopens it for appending.
func (s *fileStore) compactLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range s.recent {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if s.f != nil {
		_ = s.f.Close()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.f, _ = os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		return err
	}
	s.f, err = os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	s.written = len(s.recent)
	return err
}
