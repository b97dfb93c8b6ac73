// Package render turns timetable results into chat text.
//
// The same text is used for direct replies and for the daily broadcast, so a
// student asking "tomorrow" in the evening sees exactly what the group got.
package render

import (
	"strings"

	"timetablebot/internal/timetable"
)

// Reply keyboard button texts.
const (
	ButtonToday    = "Расписание на сегодня"
	ButtonFull     = "Показать всё расписание"
	ButtonTomorrow = "Расписание на завтра"
)

const (
	Greeting      = "Привет! Я бот расписания. Используйте кнопки ниже:"
	NoneToday     = "На сегодня занятий нет"
	NoneTomorrow  = "На завтра занятий нет"
	NoneFull      = "Расписание пусто"
	fullHeader    = "📚 ПОЛНОЕ РАСПИСАНИЕ:\n\n"
	daySeparator  = "---------------\n"
	CalendarTitle = "Расписание занятий"
)

// Keyboard returns the persistent reply keyboard, one button per row.
func Keyboard() [][]string {
	return [][]string{{ButtonToday}, {ButtonTomorrow}, {ButtonFull}}
}

var parityRU = map[timetable.Parity]string{
	timetable.ParityOdd:  "нечетная",
	timetable.ParityEven: "четная",
}

var weekdayRU = [...]string{
	"понедельник", "вторник", "среда", "четверг", "пятница", "суббота", "воскресенье",
}

// ParityLabel is the lowercase Russian adjective used in headings.
func ParityLabel(p timetable.Parity) string {
	if s, ok := parityRU[p]; ok {
		return s
	}
	return p.String()
}

func WeekdayLabel(w timetable.Weekday) string {
	if !w.Valid() {
		return w.String()
	}
	return weekdayRU[w]
}

// Result renders any query result. Unavailable data renders like an empty day.
func Result(r timetable.Result) string {
	switch r.Kind {
	case timetable.KindFull:
		return Full(r.Groups)
	case timetable.KindTomorrow:
		return Day("Расписание на завтра", NoneTomorrow, r.Day, r.Sessions)
	default:
		return Day("Расписание на сегодня", NoneToday, r.Day, r.Sessions)
	}
}

// Day renders one day's sessions under a heading such as
// "Расписание на сегодня (вторник, нечетная неделя):".
func Day(title, none string, d timetable.Day, sessions []timetable.SessionRecord) string {
	if len(sessions) == 0 {
		return none
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(" (")
	b.WriteString(WeekdayLabel(d.Weekday))
	b.WriteString(", ")
	b.WriteString(ParityLabel(d.Parity))
	b.WriteString(" неделя):\n\n")
	for _, s := range sessions {
		writeSession(&b, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Full renders the whole timetable grouped by parity and weekday.
func Full(groups []timetable.Group) string {
	if len(groups) == 0 {
		return NoneFull
	}
	var b strings.Builder
	b.WriteString(fullHeader)
	var cur timetable.Parity
	for _, g := range groups {
		if g.Parity != cur {
			cur = g.Parity
			b.WriteString("=== ")
			b.WriteString(strings.ToUpper(ParityLabel(g.Parity)))
			b.WriteString(" НЕДЕЛЯ ===\n\n")
		}
		b.WriteString("📅 ")
		b.WriteString(strings.ToUpper(WeekdayLabel(g.Weekday)))
		b.WriteString(":\n")
		for _, s := range g.Sessions {
			writeSession(&b, s)
		}
		b.WriteString(daySeparator)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSession(b *strings.Builder, s timetable.SessionRecord) {
	room := strings.TrimSpace(s.Room)
	if room == "" {
		room = "-"
	}
	b.WriteString("🕐 ")
	b.WriteString(s.StartTime.String())
	b.WriteString("\n📚 ")
	b.WriteString(s.Subject)
	b.WriteString("\n🏛 Кабинет: ")
	b.WriteString(room)
	b.WriteString("\n\n")
}

// Help lists the commands; owner-only ones are included when owner is true.
func Help(owner bool) string {
	lines := []string{
		"/today - расписание на сегодня",
		"/tomorrow - расписание на завтра",
		"/full - всё расписание",
		"/ical - календарь на две недели (.ics)",
	}
	if owner {
		lines = append(lines,
			"/status - состояние рассылки",
			"/fire - отправить рассылку сейчас",
		)
	}
	return "Команды:\n" + strings.Join(lines, "\n")
}
