package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"timetablebot/internal/config"
)

// Trigger is a daily wall-clock time in a named timezone.
//
// The cron schedule runs over the zone's wall clock expressed as UTC, which
// has no DST gaps or repeats. Each wall-clock slot is then placed in the zone
// with time.Date, so every local calendar date maps to exactly one instant.
type Trigger struct {
	Hour, Minute int
	loc          *time.Location
	wall         cron.Schedule
}

// ParseTrigger builds a trigger from "HH:MM" and an IANA zone name.
// Errors wrap config.ErrConfigInvalid.
func ParseTrigger(at, tz string) (Trigger, error) {
	h, m, err := config.ParseTimeOfDay(at)
	if err != nil {
		return Trigger{}, err
	}
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return Trigger{}, fmt.Errorf("%w: timezone is required", config.ErrConfigInvalid)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Trigger{}, fmt.Errorf("%w: timezone %q: %v", config.ErrConfigInvalid, tz, err)
	}
	spec := fmt.Sprintf("CRON_TZ=UTC %d %d * * *", m, h)
	wall, err := cron.ParseStandard(spec)
	if err != nil {
		return Trigger{}, fmt.Errorf("%w: trigger %q: %v", config.ErrConfigInvalid, spec, err)
	}
	return Trigger{Hour: h, Minute: m, loc: loc, wall: wall}, nil
}

// Next returns the first firing instant strictly after now, in UTC.
//
// A time inside a spring-forward gap fires once at the instant time.Date
// normalizes it to; a time inside a fall-back repeat fires once.
func (t Trigger) Next(now time.Time) time.Time {
	if t.wall == nil {
		return time.Time{}
	}
	loc := t.Location()
	w := now.In(loc)
	slot := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
	var at time.Time
	// The slot on now's own date can normalize to an instant already past
	// (gap days), so a second slot is sometimes needed.
	for i := 0; i < 3; i++ {
		slot = t.wall.Next(slot)
		at = t.on(slot)
		if at.After(now) {
			break
		}
	}
	return at.UTC()
}

// on returns the firing instant on the calendar date of day.
func (t Trigger) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, t.Location())
}

func (t Trigger) Location() *time.Location {
	if t.loc == nil {
		return time.UTC
	}
	return t.loc
}

// LocalDate is the calendar date of at in the trigger's zone.
func (t Trigger) LocalDate(at time.Time) string {
	return at.In(t.Location()).Format("2006-01-02")
}

func (t Trigger) String() string {
	return fmt.Sprintf("%02d:%02d %s", t.Hour, t.Minute, t.Location())
}
