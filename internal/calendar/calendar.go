// Package calendar exports upcoming sessions as an iCalendar document.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"timetablebot/internal/timetable"
)

const (
	DefaultDays     = 14
	DefaultDuration = 90 * time.Minute
	productID       = "-//timetablebot//schedule//RU"
)

type Options struct {
	Days     int           // number of calendar days starting today
	Duration time.Duration // length of every session
	Name     string        // X-WR-CALNAME
}

func (o Options) withDefaults() Options {
	if o.Days <= 0 {
		o.Days = DefaultDays
	}
	if o.Duration <= 0 {
		o.Duration = DefaultDuration
	}
	return o
}

// Build lays the timetable onto the next opt.Days calendar days from now.
// Each date uses its own ISO week parity, the same rule as "today".
func Build(records []timetable.SessionRecord, r timetable.Resolver, now time.Time, opt Options) (*ics.Calendar, int) {
	opt = opt.withDefaults()
	loc := r.Location()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRTimezone(loc.String())
	if opt.Name != "" {
		cal.SetXWRCalName(opt.Name)
	}

	first := r.Resolve(now).Date
	n := 0
	for i := 0; i < opt.Days; i++ {
		day := r.Resolve(first.AddDate(0, 0, i))
		for j, s := range timetable.Query(records, day.Parity, day.Weekday) {
			start := s.StartTime.On(day.Date, loc)
			ev := cal.AddEvent(eventUID(day.Date, s, j))
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(opt.Duration))
			ev.SetSummary(s.Subject)
			if room := strings.TrimSpace(s.Room); room != "" {
				ev.SetLocation(room)
			}
			n++
		}
	}
	return cal, n
}

// Export is Build followed by serialization.
func Export(records []timetable.SessionRecord, r timetable.Resolver, now time.Time, opt Options) (string, int) {
	cal, n := Build(records, r, now, opt)
	return cal.Serialize(), n
}

// FileName is the attachment name for an export starting on now's date.
func FileName(r timetable.Resolver, now time.Time) string {
	return "timetable-" + r.Resolve(now).Date.Format("2006-01-02") + ".ics"
}

// eventUID is stable across exports so calendar clients update instead of duplicating.
func eventUID(date time.Time, s timetable.SessionRecord, idx int) string {
	return fmt.Sprintf("%s-%s-%d@timetablebot", date.Format("20060102"), strings.ReplaceAll(s.StartTime.String(), ":", ""), idx)
}
