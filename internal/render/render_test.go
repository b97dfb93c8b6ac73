package render

import (
	"strings"
	"testing"
	"time"

	"timetablebot/internal/timetable"
)

func rec(p timetable.Parity, w timetable.Weekday, h, m int, subj, room string) timetable.SessionRecord {
	return timetable.SessionRecord{Parity: p, Weekday: w, StartTime: timetable.NewClock(h, m), Subject: subj, Room: room}
}

func TestDay(t *testing.T) {
	d := timetable.Day{
		Date:    time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		Parity:  timetable.ParityEven,
		Weekday: timetable.Tuesday,
	}
	got := Result(timetable.Result{
		Kind: timetable.KindToday,
		Day:  d,
		Sessions: []timetable.SessionRecord{
			rec(timetable.ParityEven, timetable.Tuesday, 9, 0, "Алгоритмы", "204"),
			rec(timetable.ParityEven, timetable.Tuesday, 10, 45, "Физика", ""),
		},
	})
	want := "Расписание на сегодня (вторник, четная неделя):\n\n" +
		"🕐 09:00\n📚 Алгоритмы\n🏛 Кабинет: 204\n\n" +
		"🕐 10:45\n📚 Физика\n🏛 Кабинет: -"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEmptyAndUnavailableRenderTheSame(t *testing.T) {
	cases := []struct {
		kind timetable.Kind
		want string
	}{
		{timetable.KindToday, NoneToday},
		{timetable.KindTomorrow, NoneTomorrow},
		{timetable.KindFull, NoneFull},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			empty := Result(timetable.Result{Kind: tc.kind})
			unavailable := Result(timetable.Result{Kind: tc.kind, Unavailable: true})
			if empty != tc.want || unavailable != tc.want {
				t.Fatalf("got %q / %q, want %q", empty, unavailable, tc.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	groups := timetable.QueryAll([]timetable.SessionRecord{
		rec(timetable.ParityEven, timetable.Monday, 9, 0, "Матан", "1"),
		rec(timetable.ParityOdd, timetable.Friday, 12, 0, "История", "2"),
		rec(timetable.ParityOdd, timetable.Monday, 8, 30, "Химия", "3"),
	})
	got := Full(groups)
	if !strings.HasPrefix(got, "📚 ПОЛНОЕ РАСПИСАНИЕ:\n\n=== НЕЧЕТНАЯ НЕДЕЛЯ ===\n\n📅 ПОНЕДЕЛЬНИК:\n🕐 08:30") {
		t.Fatalf("unexpected head:\n%s", got)
	}
	odd := strings.Index(got, "НЕЧЕТНАЯ")
	even := strings.Index(got, "=== ЧЕТНАЯ")
	fri := strings.Index(got, "ПЯТНИЦА")
	if !(odd < fri && fri < even) {
		t.Fatalf("wrong order:\n%s", got)
	}
	if n := strings.Count(got, strings.TrimSpace(daySeparator)); n != 3 {
		t.Fatalf("expected 3 separators, got %d", n)
	}
}

func TestHelp(t *testing.T) {
	if strings.Contains(Help(false), "/fire") {
		t.Fatalf("owner commands leaked into public help")
	}
	if !strings.Contains(Help(true), "/status") {
		t.Fatalf("owner help misses /status")
	}
}
