package timetable

import "testing"

func rec(p Parity, d Weekday, at string, subject string) SessionRecord {
	c, err := ParseClock(at)
	if err != nil {
		panic(err)
	}
	return SessionRecord{Parity: p, Weekday: d, StartTime: c, Subject: subject}
}

func TestQuerySingleRow(t *testing.T) {
	r := rec(ParityOdd, Tuesday, "10:00", "Algorithms")
	r.Room = "204"
	recs := []SessionRecord{r}

	got := Query(recs, ParityOdd, Tuesday)
	if len(got) != 1 || got[0] != r {
		t.Fatalf("expected the single record, got %+v", got)
	}
	if got := Query(recs, ParityEven, Tuesday); len(got) != 0 {
		t.Fatalf("expected no sessions for even week, got %+v", got)
	}
}

func TestQuerySortsByStartTime(t *testing.T) {
	recs := []SessionRecord{
		rec(ParityEven, Monday, "14:00", "Physics"),
		rec(ParityOdd, Monday, "08:00", "Other week"),
		rec(ParityEven, Monday, "9:00", "Math"),
	}
	got := Query(recs, ParityEven, Monday)
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].Subject != "Math" || got[1].Subject != "Physics" {
		t.Fatalf("wrong order: %s, %s", got[0].StartTime, got[1].StartTime)
	}
}

func TestQueryStableForEqualTimes(t *testing.T) {
	recs := []SessionRecord{
		rec(ParityOdd, Friday, "12:00", "B"),
		rec(ParityOdd, Friday, "10:00", "A"),
		rec(ParityOdd, Friday, "12:00", "C"),
		rec(ParityOdd, Friday, "12:00", "B"),
	}
	got := Query(recs, ParityOdd, Friday)
	want := []string{"A", "B", "C", "B"}
	for i, s := range want {
		if got[i].Subject != s {
			t.Fatalf("position %d: got %s want %s", i, got[i].Subject, s)
		}
	}
}

func TestQueryEmpty(t *testing.T) {
	if got := Query(nil, ParityOdd, Monday); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := QueryAll(nil); len(got) != 0 {
		t.Fatalf("expected no groups, got %+v", got)
	}
}

func TestQueryAllOrder(t *testing.T) {
	recs := []SessionRecord{
		rec(ParityEven, Saturday, "10:00", "e-sat"),
		rec(ParityOdd, Wednesday, "10:00", "o-wed"),
		rec(ParityEven, Monday, "11:00", "e-mon-2"),
		rec(ParityOdd, Sunday, "10:00", "o-sun"),
		rec(ParityEven, Monday, "09:00", "e-mon-1"),
		rec(ParityOdd, Monday, "10:00", "o-mon"),
	}
	groups := QueryAll(recs)

	type key struct {
		p Parity
		d Weekday
	}
	want := []key{{ParityOdd, Monday}, {ParityOdd, Wednesday}, {ParityEven, Monday}, {ParityEven, Saturday}}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, g := range groups {
		if (key{g.Parity, g.Weekday}) != want[i] {
			t.Fatalf("group %d: got %s/%s", i, g.Parity, g.Weekday)
		}
		if g.Weekday == Sunday {
			t.Fatalf("sunday must not be listed")
		}
	}
	if groups[2].Sessions[0].Subject != "e-mon-1" {
		t.Fatalf("expected sessions sorted inside group, got %+v", groups[2].Sessions)
	}
}
