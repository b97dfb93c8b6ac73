package timetable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parity classifies a calendar week by its ISO week number.
type Parity int

const (
	ParityOdd Parity = iota + 1
	ParityEven
)

// Parities is the fixed enumeration order used by full timetable views.
var Parities = []Parity{ParityOdd, ParityEven}

func (p Parity) Valid() bool { return p == ParityOdd || p == ParityEven }

// Flip returns the opposite parity.
func (p Parity) Flip() Parity {
	switch p {
	case ParityOdd:
		return ParityEven
	case ParityEven:
		return ParityOdd
	default:
		return p
	}
}

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "unknown"
	}
}

var parityLabels = map[string]Parity{
	"нечетная": ParityOdd,
	"нечет":    ParityOdd,
	"odd":      ParityOdd,
	"четная":   ParityEven,
	"чет":      ParityEven,
	"even":     ParityEven,
}

// ParseParity maps a free-text week label to a Parity.
// Matching is case-insensitive and treats "ё" as "е".
func ParseParity(s string) (Parity, bool) {
	p, ok := parityLabels[normalizeLabel(s)]
	return p, ok
}

// Weekday numbers days Monday=0 … Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ScheduleDays lists the days a timetable can hold sessions on, in display order.
var ScheduleDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return "unknown"
	}
	return weekdayNames[w]
}

// WeekdayFromTime converts Go's Sunday-first numbering.
func WeekdayFromTime(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// Time converts back to Go's time.Weekday.
func (w Weekday) Time() time.Weekday {
	return time.Weekday((int(w) + 1) % 7)
}

var weekdayLabels = map[string]Weekday{
	"понедельник": Monday,
	"вторник":     Tuesday,
	"среда":       Wednesday,
	"четверг":     Thursday,
	"пятница":     Friday,
	"суббота":     Saturday,
	"воскресенье": Sunday,
	"пн":          Monday,
	"вт":          Tuesday,
	"ср":          Wednesday,
	"чт":          Thursday,
	"пт":          Friday,
	"сб":          Saturday,
	"вс":          Sunday,
	"mon":         Monday,
	"tue":         Tuesday,
	"wed":         Wednesday,
	"thu":         Thursday,
	"fri":         Friday,
	"sat":         Saturday,
	"sun":         Sunday,
}

func init() {
	for i, name := range weekdayNames {
		weekdayLabels[name] = Weekday(i)
	}
}

// ParseWeekday maps a free-text weekday label (Russian or English, full or short) to a Weekday.
func ParseWeekday(s string) (Weekday, bool) {
	w, ok := weekdayLabels[normalizeLabel(s)]
	return w, ok
}

// normalizeLabel folds case, "ё", surrounding whitespace and a trailing dot.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

// Clock is a local time-of-day in minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// On returns the instant of c on the calendar date of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// ParseClock accepts "9:00", "09:00", "09:00:00", "09.30", "10:00 AM", a
// range such as "10:00-11:30" (start is used), a spreadsheet day fraction like
// "0.375", or a date-time serial like "36524.4166666667" (time of day is used).
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	// Raw cell values may use exponent notation ("4.1666666666666664E-2"),
	// so numbers are tried before splitting on range dashes.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return clockFromNumber(f, raw)
	}
	for _, sep := range []string{"-", "–", "—"} {
		if i := strings.Index(s, sep); i > 0 {
			s = strings.TrimSpace(s[:i])
			break
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return clockFromNumber(f, raw)
	}

	var meridiem string
	if u := strings.ToUpper(s); strings.HasSuffix(u, "AM") || strings.HasSuffix(u, "PM") {
		meridiem = u[len(u)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	if meridiem != "" {
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("invalid hour in %q", raw)
		}
		h %= 12
		if meridiem == "PM" {
			h += 12
		}
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid seconds in %q", raw)
		}
	}
	return NewClock(h, m), nil
}

// clockFromNumber reads a day fraction, a date-time serial (>= 24, the
// integer part is the date) or an "HH.MM" decimal.
func clockFromNumber(f float64, raw string) (Clock, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	if f >= 24 {
		f -= math.Floor(f)
	}
	if f < 1 {
		m := int(math.Round(f * 24 * 60))
		if m >= 24*60 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		return Clock(m), nil
	}
	// 10.3 is 10:30, 9.05 is 09:05.
	hm := strconv.FormatFloat(f, 'f', 2, 64)
	h, _ := strconv.Atoi(hm[:len(hm)-3])
	m, _ := strconv.Atoi(hm[len(hm)-2:])
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return NewClock(h, m), nil
}

// SessionRecord is one scheduled class occurrence.
type SessionRecord struct {
	Parity    Parity
	Weekday   Weekday
	StartTime Clock
	Subject   string
	Room      string

	// Row is the 1-based row in the source file.
	Row int
}
