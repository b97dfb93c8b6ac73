package timetable

import "time"

// ParityOf reports the parity of the ISO week that date falls in, using
// date's own location for the calendar.
func ParityOf(date time.Time) Parity {
	_, wk := date.ISOWeek()
	if wk%2 == 0 {
		return ParityEven
	}
	return ParityOdd
}

func WeekdayOf(date time.Time) Weekday { return WeekdayFromTime(date.Weekday()) }

// Day is a calendar date together with its resolved parity and weekday.
type Day struct {
	Date    time.Time // midnight, resolver location
	Parity  Parity
	Weekday Weekday
}

// Tomorrow is the result of the tomorrow rule.
//
// Parity follows today's ISO parity, flipped when today is Sunday.
// ISOParity is tomorrow's own ISO week parity, kept for comparison.
type Tomorrow struct {
	Day
	Today     Day
	ISOParity Parity
}

// Diverges reports whether the Sunday-flip rule disagrees with tomorrow's own ISO week.
// This happens after a 53-week ISO year, e.g. from Sunday 2021-01-03 (W53, odd) the
// rule gives EVEN while Monday 2021-01-04 is W01 (odd).
func (t Tomorrow) Diverges() bool { return t.Parity != t.ISOParity }

// Resolver maps instants to calendar days in a fixed location.
type Resolver struct {
	loc *time.Location
}

func NewResolver(loc *time.Location) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return Resolver{loc: loc}
}

func (r Resolver) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Resolve returns the calendar day containing t.
func (r Resolver) Resolve(t time.Time) Day {
	loc := r.Location()
	lt := t.In(loc)
	date := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return Day{Date: date, Parity: ParityOf(date), Weekday: WeekdayOf(date)}
}

// ResolveTomorrow applies the tomorrow rule relative to now.
func (r Resolver) ResolveTomorrow(now time.Time) Tomorrow {
	today := r.Resolve(now)
	date := today.Date.AddDate(0, 0, 1)

	parity := today.Parity
	if today.Weekday == Sunday {
		parity = parity.Flip()
	}
	return Tomorrow{
		Day:       Day{Date: date, Parity: parity, Weekday: WeekdayOf(date)},
		Today:     today,
		ISOParity: ParityOf(date),
	}
}
