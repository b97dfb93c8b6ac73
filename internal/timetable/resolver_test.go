package timetable

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestParityOfFollowsISOWeek(t *testing.T) {
	// 2020 and 2026 are 53-week ISO years.
	for _, year := range []int{2020, 2021, 2024, 2026} {
		d := time.Date(year, 1, 1, 12, 0, 0, 0, time.UTC)
		end := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)
		for ; d.Before(end); d = d.AddDate(0, 0, 1) {
			_, wk := d.ISOWeek()
			want := ParityOdd
			if wk%2 == 0 {
				want = ParityEven
			}
			if got := ParityOf(d); got != want {
				t.Fatalf("ParityOf(%s) = %s, want %s (week %d)", d.Format("2006-01-02"), got, want, wk)
			}
		}
	}
}

func TestParityOfWeek53(t *testing.T) {
	d := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	if _, wk := d.ISOWeek(); wk != 53 {
		t.Fatalf("expected ISO week 53, got %d", wk)
	}
	if got := ParityOf(d); got != ParityOdd {
		t.Fatalf("expected odd, got %s", got)
	}
}

func TestWeekdayMapping(t *testing.T) {
	// 2024-01-01 is a Monday.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		d := base.AddDate(0, 0, i)
		w := WeekdayOf(d)
		if int(w) != i%7 {
			t.Fatalf("WeekdayOf(%s) = %d, want %d", d.Format("Mon 2006-01-02"), w, i%7)
		}
		if w.Time() != d.Weekday() {
			t.Fatalf("round trip %s: got %s want %s", w, w.Time(), d.Weekday())
		}
	}
}

func TestResolveUsesLocation(t *testing.T) {
	msk := mustLoc(t, "Europe/Moscow")
	r := NewResolver(msk)

	// 22:30 UTC Sunday is already Monday in Moscow.
	now := time.Date(2024, 1, 7, 22, 30, 0, 0, time.UTC)
	day := r.Resolve(now)
	if day.Weekday != Monday {
		t.Fatalf("expected Monday in Moscow, got %s", day.Weekday)
	}
	if day.Date.Location() != msk || day.Date.Hour() != 0 {
		t.Fatalf("expected local midnight, got %s", day.Date)
	}
}

func TestResolveTomorrow(t *testing.T) {
	r := NewResolver(time.UTC)
	cases := []struct {
		name       string
		now        time.Time
		wantDay    Weekday
		wantParity Parity
		diverges   bool
	}{
		{
			// 2024-01-07 is Sunday of ISO week 1 (odd).
			name:       "sunday flips",
			now:        time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC),
			wantDay:    Monday,
			wantParity: ParityEven,
		},
		{
			name:       "weekday keeps parity",
			now:        time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC),
			wantDay:    Wednesday,
			wantParity: ParityEven,
		},
		{
			name:       "saturday to sunday keeps parity",
			now:        time.Date(2024, 1, 13, 20, 0, 0, 0, time.UTC),
			wantDay:    Sunday,
			wantParity: ParityEven,
		},
		{
			// Sunday 2021-01-03 is 2020-W53; Monday 2021-01-04 is 2021-W01.
			name:       "after week 53",
			now:        time.Date(2021, 1, 3, 20, 0, 0, 0, time.UTC),
			wantDay:    Monday,
			wantParity: ParityEven,
			diverges:   true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm := r.ResolveTomorrow(tc.now)
			if tm.Weekday != tc.wantDay {
				t.Fatalf("weekday: got %s want %s", tm.Weekday, tc.wantDay)
			}
			if tm.Parity != tc.wantParity {
				t.Fatalf("parity: got %s want %s", tm.Parity, tc.wantParity)
			}
			if tm.Diverges() != tc.diverges {
				t.Fatalf("diverges: got %v want %v (iso %s)", tm.Diverges(), tc.diverges, tm.ISOParity)
			}
		})
	}
}

func TestResolveTomorrowFlipRule(t *testing.T) {
	r := NewResolver(time.UTC)
	d := time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		now := d.AddDate(0, 0, i)
		today := ParityOf(now)
		tm := r.ResolveTomorrow(now)
		want := today
		if now.Weekday() == time.Sunday {
			want = today.Flip()
		}
		if tm.Parity != want {
			t.Fatalf("%s: got %s want %s", now.Format("Mon 2006-01-02"), tm.Parity, want)
		}
	}
}
