package timetable

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	logx "timetablebot/pkg/logx"
)

// ErrDataUnavailable marks a timetable source that could not be read or lacks
// a required column. Callers render it like an empty day.
var ErrDataUnavailable = errors.New("timetable data unavailable")

type column int

const (
	colWeek column = iota
	colDay
	colTime
	colSubject
	colRoom
	numColumns
)

var columnNames = [numColumns]string{"week", "weekday", "time", "subject", "room"}

var headerAliases = map[string]column{
	"неделя":      colWeek,
	"тип недели":  colWeek,
	"четность":    colWeek,
	"week":        colWeek,
	"parity":      colWeek,
	"week parity": colWeek,
	"день недели": colDay,
	"день":        colDay,
	"day":         colDay,
	"weekday":     colDay,
	"время":       colTime,
	"начало":      colTime,
	"time":        colTime,
	"start":       colTime,
	"start time":  colTime,
	"предмет":     colSubject,
	"дисциплина":  colSubject,
	"subject":     colSubject,
	"кабинет":     colRoom,
	"аудитория":   colRoom,
	"room":        colRoom,
}

// RowError describes a rejected source row.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) String() string { return fmt.Sprintf("row %d: %s", e.Row, e.Reason) }

// LoadReport summarizes one load.
type LoadReport struct {
	Path     string
	Rows     int
	Accepted int
	Rejected []RowError
}

type StoreConfig struct {
	Path  string
	Sheet string // xlsx only; empty means the first sheet
}

// Store reads the timetable file. Every Load reads the file again; nothing is cached.
type Store struct {
	mu  sync.RWMutex
	cfg StoreConfig
	log logx.Logger
}

func NewStore(cfg StoreConfig, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{cfg: cfg, log: log}
}

func (s *Store) Config() StoreConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig points later loads at a different file.
func (s *Store) SetConfig(cfg StoreConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Load returns every valid session in the source. Rejected rows are logged.
func (s *Store) Load(ctx context.Context) ([]SessionRecord, error) {
	recs, rep, err := s.LoadWithReport(ctx)
	if err != nil {
		return nil, err
	}
	if len(rep.Rejected) > 0 {
		reasons := make([]string, 0, len(rep.Rejected))
		for i, r := range rep.Rejected {
			if i == 10 {
				reasons = append(reasons, fmt.Sprintf("... and %d more", len(rep.Rejected)-i))
				break
			}
			reasons = append(reasons, r.String())
		}
		s.log.Warn("timetable rows rejected",
			logx.String("path", rep.Path),
			logx.Int("accepted", rep.Accepted),
			logx.Int("rejected", len(rep.Rejected)),
			logx.String("reasons", strings.Join(reasons, "; ")),
		)
	}
	return recs, nil
}

// LoadWithReport is Load without logging, returning the per-row outcome.
func (s *Store) LoadWithReport(ctx context.Context) ([]SessionRecord, LoadReport, error) {
	cfg := s.Config()
	rep := LoadReport{Path: cfg.Path}
	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}
	rows, err := readRows(cfg.Path, cfg.Sheet)
	if err != nil {
		return nil, rep, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	recs, err := parseRows(rows, &rep)
	if err != nil {
		return nil, rep, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, cfg.Path, err)
	}
	return recs, rep, nil
}

func readRows(path, sheet string) ([][]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("timetable path is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readWorkbook(path, sheet)
	case ".csv", ".txt":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported timetable format %q", filepath.Ext(path))
	}
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	// Raw values: a styled time cell would otherwise come back as "10:00 AM"
	// or "12/30/99 10:00" depending on its number format.
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func readCSV(path string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = detectDelimiter(b)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

// detectDelimiter picks ';' when the header line has more semicolons than commas.
func detectDelimiter(b []byte) rune {
	line := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		line = b[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func parseRows(rows [][]string, rep *LoadReport) ([]SessionRecord, error) {
	hdr := -1
	for i, row := range rows {
		if !blankRow(row) {
			hdr = i
			break
		}
	}
	if hdr < 0 {
		return nil, errors.New("no header row")
	}

	idx := [numColumns]int{}
	for i := range idx {
		idx[i] = -1
	}
	for i, name := range rows[hdr] {
		if c, ok := headerAliases[normalizeLabel(name)]; ok && idx[c] < 0 {
			idx[c] = i
		}
	}
	var missing []string
	for c, i := range idx {
		if i < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing column(s): %s", strings.Join(missing, ", "))
	}

	out := make([]SessionRecord, 0, len(rows)-hdr)
	for i := hdr + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rep.Rows++
		rowNum := i + 1

		rec, reason := parseRecord(row, idx)
		if reason != "" {
			rep.Rejected = append(rep.Rejected, RowError{Row: rowNum, Reason: reason})
			continue
		}
		rec.Row = rowNum
		out = append(out, rec)
	}
	rep.Accepted = len(out)
	return out, nil
}

func parseRecord(row []string, idx [numColumns]int) (SessionRecord, string) {
	get := func(c column) string {
		i := idx[c]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	parity, ok := ParseParity(get(colWeek))
	if !ok {
		return SessionRecord{}, fmt.Sprintf("unknown week parity %q", get(colWeek))
	}
	day, ok := ParseWeekday(get(colDay))
	if !ok {
		return SessionRecord{}, fmt.Sprintf("unknown weekday %q", get(colDay))
	}
	if day == Sunday {
		return SessionRecord{}, "sessions cannot be scheduled on sunday"
	}
	start, err := ParseClock(get(colTime))
	if err != nil {
		return SessionRecord{}, err.Error()
	}
	subject := get(colSubject)
	if subject == "" {
		return SessionRecord{}, "empty subject"
	}
	return SessionRecord{
		Parity:    parity,
		Weekday:   day,
		StartTime: start,
		Subject:   subject,
		Room:      get(colRoom),
	}, ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
