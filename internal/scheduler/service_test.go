package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"timetablebot/internal/config"
	"timetablebot/internal/render"
	"timetablebot/internal/storage"
	"timetablebot/internal/timetable"
	logx "timetablebot/pkg/logx"
)

func mustTrigger(t *testing.T, at, tz string) Trigger {
	t.Helper()
	tr, err := ParseTrigger(at, tz)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	return tr
}

func TestTriggerNext(t *testing.T) {
	tr := mustTrigger(t, "20:00", "Europe/Moscow")
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)},
		{"exactly at", time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)},
		{"after", time.Date(2026, 3, 2, 17, 0, 1, 0, time.UTC), time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)},
		{"local midnight crossing", time.Date(2026, 12, 31, 21, 30, 0, 0, time.UTC), time.Date(2027, 1, 1, 17, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tr.Next(tc.now)
			if !got.Equal(tc.want) || got.Location() != time.UTC {
				t.Fatalf("Next(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestTriggerNextHonorsDST(t *testing.T) {
	tr := mustTrigger(t, "08:30", "Europe/Berlin")
	// CET (UTC+1) before the switch on 2026-03-29, CEST (UTC+2) after.
	if got := tr.Next(time.Date(2026, 3, 27, 12, 0, 0, 0, time.UTC)); !got.Equal(time.Date(2026, 3, 28, 7, 30, 0, 0, time.UTC)) {
		t.Fatalf("winter: %s", got)
	}
	if got := tr.Next(time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC)); !got.Equal(time.Date(2026, 3, 29, 6, 30, 0, 0, time.UTC)) {
		t.Fatalf("summer: %s", got)
	}
}

func TestTriggerNextAcrossDSTTransitions(t *testing.T) {
	utc := func(mo time.Month, d, h, m int) time.Time { return time.Date(2026, mo, d, h, m, 0, 0, time.UTC) }
	repeated := mustTrigger(t, "01:30", "America/New_York")
	skipped := mustTrigger(t, "02:30", "America/New_York")
	cases := []struct {
		name string
		tr   Trigger
		now  time.Time
		want time.Time
	}{
		{"fall back, first 01:30", repeated, utc(time.October, 31, 6, 0), utc(time.November, 1, 5, 30)},
		{"fall back, after firing", repeated, utc(time.November, 1, 5, 30), utc(time.November, 2, 6, 30)},
		{"fall back, inside repeated hour", repeated, utc(time.November, 1, 6, 0), utc(time.November, 2, 6, 30)},
		{"spring forward, gap day", skipped, utc(time.March, 8, 0, 0), utc(time.March, 8, 6, 30)},
		{"spring forward, after firing", skipped, utc(time.March, 8, 6, 30), utc(time.March, 9, 6, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tr.Next(tc.now); !got.Equal(tc.want) {
				t.Fatalf("Next(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestParseTriggerErrors(t *testing.T) {
	for _, tc := range []struct{ at, tz string }{
		{"25:00", "Europe/Moscow"},
		{"20:00", ""},
		{"20:00", "Mars/Base"},
		{"8pm", "UTC"},
	} {
		if _, err := ParseTrigger(tc.at, tc.tz); !errors.Is(err, config.ErrConfigInvalid) {
			t.Fatalf("%q %q: expected ErrConfigInvalid, got %v", tc.at, tc.tz, err)
		}
	}
}

// fakeClock advances instantly on every wait. After limit waits it blocks
// forever and signals on blocked.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	limit   int
	waits   int
	blocked chan struct{}
}

func newFakeClock(start time.Time, limit int) *fakeClock {
	return &fakeClock{now: start, limit: limit, blocked: make(chan struct{}, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits++
	if c.waits > c.limit {
		select {
		case c.blocked <- struct{}{}:
		default:
		}
		return nil
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type sent struct {
	at   time.Time
	text string
}

type fakeSink struct {
	mu    sync.Mutex
	clock *fakeClock
	sent  []sent
	fail  map[int]bool // by attempt index
	calls int
}

func (s *fakeSink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if s.fail[i] {
		return errors.New("chat not found")
	}
	s.sent = append(s.sent, sent{at: s.clock.Now(), text: text})
	return nil
}

type staticLoader struct {
	recs []timetable.SessionRecord
	err  error
}

func (l staticLoader) Load(context.Context) ([]timetable.SessionRecord, error) { return l.recs, l.err }

func sampleSource(loc *time.Location) *timetable.Service {
	recs := []timetable.SessionRecord{
		{Parity: timetable.ParityOdd, Weekday: timetable.Tuesday, StartTime: timetable.NewClock(10, 0), Subject: "Algorithms", Room: "204"},
		{Parity: timetable.ParityEven, Weekday: timetable.Monday, StartTime: timetable.NewClock(9, 0), Subject: "Physics", Room: "101"},
	}
	return timetable.NewService(staticLoader{recs: recs}, timetable.NewResolver(loc), logx.Nop())
}

func openJournal(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "firings.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func runUntilBlocked(t *testing.T, s *Service, clk *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case <-clk.blocked:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not reach the wait limit")
	}
	if st := s.Snapshot(); st.State != StateArmed || st.Next.IsZero() {
		t.Fatalf("expected armed state, got %+v", st)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if st := s.Snapshot(); st.State != StateIdle {
		t.Fatalf("expected idle after stop, got %s", st.State)
	}
}

func TestRunFiresOncePerDay(t *testing.T) {
	tr := mustTrigger(t, "20:00", "Europe/Moscow")
	// Sunday 2026-03-01 (ISO W09, odd), 12:00 UTC.
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 3)
	sink := &fakeSink{clock: clk}
	journal := openJournal(t)
	s := New(tr, sampleSource(tr.Location()), sink, logx.Nop(), WithClock(clk.Now, clk.After), WithJournal(journal))

	runUntilBlocked(t, s, clk)

	if len(sink.sent) != 3 {
		t.Fatalf("expected 3 firings, got %d", len(sink.sent))
	}
	for i, m := range sink.sent {
		want := time.Date(2026, 3, 1+i, 17, 0, 0, 0, time.UTC)
		if !m.at.Equal(want) {
			t.Fatalf("firing %d at %s, want %s", i, m.at, want)
		}
	}
	// Sunday evening: tomorrow is Monday with flipped parity (even).
	if !strings.Contains(sink.sent[0].text, "понедельник, четная") || !strings.Contains(sink.sent[0].text, "Physics") {
		t.Fatalf("unexpected sunday broadcast:\n%s", sink.sent[0].text)
	}
	// Monday evening: Tuesday of W10 (even), the odd Algorithms row does not match.
	if sink.sent[1].text != render.NoneTomorrow {
		t.Fatalf("unexpected monday broadcast:\n%s", sink.sent[1].text)
	}

	recent, err := journal.RecentFirings(context.Background(), 10)
	if err != nil || len(recent) != 3 {
		t.Fatalf("journal: %d %v", len(recent), err)
	}
	if recent[2].Date != "2026-03-01" || recent[2].Target != "2026-03-02" || recent[2].Parity != "even" {
		t.Fatalf("unexpected journal entry: %+v", recent[2])
	}
}

func TestRunFiresOncePerLocalDateAcrossDST(t *testing.T) {
	cases := []struct {
		name  string
		at    string
		start time.Time
		dates []string
	}{
		{"fall back", "01:30", time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC), []string{"2026-10-31", "2026-11-01", "2026-11-02", "2026-11-03"}},
		{"spring forward", "02:30", time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), []string{"2026-03-07", "2026-03-08", "2026-03-09"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := mustTrigger(t, tc.at, "America/New_York")
			clk := newFakeClock(tc.start, len(tc.dates))
			sink := &fakeSink{clock: clk}
			// No journal: the loop alone must keep one firing per date.
			s := New(tr, sampleSource(tr.Location()), sink, logx.Nop(), WithClock(clk.Now, clk.After))

			runUntilBlocked(t, s, clk)

			if len(sink.sent) != len(tc.dates) {
				t.Fatalf("expected %d firings, got %d", len(tc.dates), len(sink.sent))
			}
			for i, m := range sink.sent {
				if got := tr.LocalDate(m.at); got != tc.dates[i] {
					t.Fatalf("firing %d on %s (%s), want %s", i, got, m.at, tc.dates[i])
				}
			}
		})
	}
}

func TestRunSurvivesFailures(t *testing.T) {
	tr := mustTrigger(t, "07:00", "UTC")
	clk := newFakeClock(time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), 3)
	sink := &fakeSink{clock: clk, fail: map[int]bool{0: true}}
	journal := openJournal(t)
	src := timetable.NewService(staticLoader{err: timetable.ErrDataUnavailable}, timetable.NewResolver(time.UTC), logx.Nop())
	s := New(tr, src, sink, logx.Nop(), WithClock(clk.Now, clk.After), WithJournal(journal))

	runUntilBlocked(t, s, clk)

	if sink.calls != 3 || len(sink.sent) != 2 {
		t.Fatalf("expected 3 attempts and 2 deliveries, got %d/%d", sink.calls, len(sink.sent))
	}
	if sink.sent[0].text != render.NoneTomorrow {
		t.Fatalf("unavailable data should render as no classes, got %q", sink.sent[0].text)
	}
	recent, _ := journal.RecentFirings(context.Background(), 10)
	oldest := recent[len(recent)-1]
	if oldest.Delivered() || !oldest.DataUnavailable {
		t.Fatalf("failure not recorded: %+v", oldest)
	}
	if last := s.Snapshot().Last; last == nil || !last.Delivered() {
		t.Fatalf("snapshot should hold the latest firing: %+v", last)
	}
}

func TestRunSkipsDateAlreadyFired(t *testing.T) {
	tr := mustTrigger(t, "20:00", "Europe/Moscow")
	clk := newFakeClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), 2)
	sink := &fakeSink{clock: clk}
	journal := openJournal(t)
	// A previous process already sent today's broadcast.
	if err := journal.AppendFiring(context.Background(), storage.Firing{
		At:      time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		Date:    "2026-03-02",
		Trigger: storage.TriggerScheduled,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := New(tr, sampleSource(tr.Location()), sink, logx.Nop(), WithClock(clk.Now, clk.After), WithJournal(journal))

	runUntilBlocked(t, s, clk)

	if len(sink.sent) != 1 || !sink.sent[0].at.Equal(time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected a single firing on 2026-03-03, got %+v", sink.sent)
	}
}

func TestFireNow(t *testing.T) {
	tr := mustTrigger(t, "20:00", "Europe/Moscow")
	// Monday 2026-01-12 21:00 Moscow, ISO W03 (odd).
	now := time.Date(2026, 1, 12, 18, 0, 0, 0, time.UTC)
	clk := newFakeClock(now, 0)
	sink := &fakeSink{clock: clk}
	journal := openJournal(t)
	s := New(tr, sampleSource(tr.Location()), sink, logx.Nop(), WithClock(clk.Now, clk.After), WithJournal(journal))

	rec, err := s.FireNow(context.Background(), 42)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if rec.Trigger != storage.TriggerManual || rec.ActorID != 42 || rec.Target != "2026-01-13" || rec.Sessions != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(sink.sent) != 1 || !strings.Contains(sink.sent[0].text, "Algorithms") {
		t.Fatalf("unexpected broadcast: %+v", sink.sent)
	}
	if _, ok, _ := journal.LastFiring(context.Background(), storage.TriggerScheduled); ok {
		t.Fatalf("manual firing must not count as scheduled")
	}
	if st := s.Snapshot(); st.State != StateIdle {
		t.Fatalf("expected idle, got %s", st.State)
	}

	sink.fail = map[int]bool{1: true}
	if _, err := s.FireNow(context.Background(), 42); err == nil {
		t.Fatalf("expected dispatch error")
	}
}

func TestComposeMatchesDirectTomorrow(t *testing.T) {
	tr := mustTrigger(t, "20:00", "Europe/Moscow")
	src := sampleSource(tr.Location())
	s := New(tr, src, &fakeSink{}, logx.Nop())
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)

	text, _, err := s.Compose(context.Background(), now)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	res, _ := src.TomorrowAt(context.Background(), now)
	if text != render.Result(res) {
		t.Fatalf("broadcast and direct reply differ")
	}
}
