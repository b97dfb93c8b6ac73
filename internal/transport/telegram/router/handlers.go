package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timetablebot/internal/calendar"
	"timetablebot/internal/render"
	"timetablebot/internal/scheduler"
	"timetablebot/internal/storage"
	"timetablebot/internal/timetable"
	kit "timetablebot/internal/transport"
	logx "timetablebot/pkg/logx"
	"timetablebot/pkg/tgui"
)

// Timetable answers direct queries. *timetable.Service satisfies it.
type Timetable interface {
	Today(ctx context.Context) (timetable.Result, error)
	Tomorrow(ctx context.Context) (timetable.Result, error)
	Full(ctx context.Context) (timetable.Result, error)
	Sessions(ctx context.Context) ([]timetable.SessionRecord, error)
	Resolver() timetable.Resolver
}

// Broadcaster is the notification scheduler as seen by owner commands.
type Broadcaster interface {
	FireNow(ctx context.Context, actorID int64) (storage.Firing, error)
	Snapshot() scheduler.Snapshot
}

// History lists past firings. storage.Store satisfies it.
type History interface {
	RecentFirings(ctx context.Context, n int) ([]storage.Firing, error)
}

// Handlers implements the bot's commands.
type Handlers struct {
	Timetable   Timetable
	Broadcaster Broadcaster // nil when the daily broadcast is disabled
	History     History     // nil without storage
	Calendar    calendar.Options
	Now         func() time.Time
}

// Commands returns the registry for CommandManager.SetRegistry.
func (h *Handlers) Commands() []Command {
	return []Command{
		{Name: "start", Description: "Показать клавиатуру", Handle: h.start},
		{Name: "today", Description: "Расписание на сегодня", Buttons: []string{render.ButtonToday}, Timeout: 20 * time.Second, Handle: h.query(timetable.KindToday)},
		{Name: "tomorrow", Description: "Расписание на завтра", Buttons: []string{render.ButtonTomorrow}, Timeout: 20 * time.Second, Handle: h.query(timetable.KindTomorrow)},
		{Name: "full", Aliases: []string{"all"}, Description: "Всё расписание", Buttons: []string{render.ButtonFull}, Timeout: 20 * time.Second, Handle: h.query(timetable.KindFull)},
		{Name: "ical", Description: "Календарь на две недели (.ics)", Timeout: 30 * time.Second, Handle: h.ical},
		{Name: "help", Description: "Список команд", Handle: h.help},
		{Name: "status", Description: "Состояние рассылки", Access: AccessOwnerOnly, Handle: h.status},
		{Name: "fire", Description: "Отправить рассылку сейчас", Access: AccessOwnerOnly, Timeout: time.Minute, Handle: h.fire},
	}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func reply(ctx context.Context, req *Request, msg tgui.Message) error {
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (h *Handlers) start(ctx context.Context, req *Request) error {
	return reply(ctx, req, tgui.Text(render.Greeting).WithKeyboard(render.Keyboard()))
}

func (h *Handlers) help(ctx context.Context, req *Request) error {
	return reply(ctx, req, tgui.Text(render.Help(req.IsOwner)))
}

func (h *Handlers) query(kind timetable.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		var (
			res timetable.Result
			err error
		)
		switch kind {
		case timetable.KindTomorrow:
			res, err = h.Timetable.Tomorrow(ctx)
		case timetable.KindFull:
			res, err = h.Timetable.Full(ctx)
		default:
			res, err = h.Timetable.Today(ctx)
		}
		if err != nil {
			req.Logger.Error("timetable query failed", logx.Bool("unavailable", res.Unavailable), logx.Err(err))
		}
		return reply(ctx, req, tgui.Text(render.Result(res)))
	}
}

func (h *Handlers) ical(ctx context.Context, req *Request) error {
	recs, err := h.Timetable.Sessions(ctx)
	if err != nil {
		req.Logger.Error("timetable unavailable for export", logx.Err(err))
	}
	r := h.Timetable.Resolver()
	now := h.now()
	opt := h.Calendar
	if opt.Name == "" {
		opt.Name = render.CalendarTitle
	}
	body, n := calendar.Export(recs, r, now, opt)
	if n == 0 {
		return reply(ctx, req, tgui.Text(render.NoneFull))
	}
	days := opt.Days
	if days <= 0 {
		days = calendar.DefaultDays
	}
	_, err = req.Adapter.SendDocument(ctx, req.Chat, kit.Document{
		FileName: calendar.FileName(r, now),
		Caption:  fmt.Sprintf("Занятий на %d дн.: %d", days, n),
		MIME:     "text/calendar",
		Body:     strings.NewReader(body),
	})
	return err
}

func (h *Handlers) status(ctx context.Context, req *Request) error {
	if h.Broadcaster == nil {
		return reply(ctx, req, tgui.Text("Ежедневная рассылка отключена."))
	}
	loc := h.Timetable.Resolver().Location()
	snap := h.Broadcaster.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Рассылка: %s\n", snap.Trigger)
	fmt.Fprintf(&b, "Состояние: %s\n", snap.State)
	if !snap.Next.IsZero() {
		fmt.Fprintf(&b, "Следующая: %s\n", snap.Next.In(loc).Format("2006-01-02 15:04 MST"))
	}

	var recent []storage.Firing
	if h.History != nil {
		var err error
		if recent, err = h.History.RecentFirings(ctx, 5); err != nil {
			req.Logger.Warn("firing history read failed", logx.Err(err))
		}
	} else if snap.Last != nil {
		recent = []storage.Firing{*snap.Last}
	}
	if len(recent) > 0 {
		b.WriteString("\nПоследние:\n")
		for _, f := range recent {
			b.WriteString(firingLine(f, loc))
			b.WriteByte('\n')
		}
	}
	return reply(ctx, req, tgui.Text(strings.TrimRight(b.String(), "\n")))
}

func firingLine(f storage.Firing, loc *time.Location) string {
	outcome := "ok"
	switch {
	case !f.Delivered():
		outcome = "ошибка: " + tgui.TruncRunes(f.Error, 120)
	case f.DataUnavailable:
		outcome = "ok, нет данных"
	}
	return fmt.Sprintf("- %s %s -> %s (%d) %s",
		f.At.In(loc).Format("01-02 15:04"), f.Trigger, f.Target, f.Sessions, outcome)
}

func (h *Handlers) fire(ctx context.Context, req *Request) error {
	if h.Broadcaster == nil {
		return reply(ctx, req, tgui.Text("Ежедневная рассылка отключена."))
	}
	rec, err := h.Broadcaster.FireNow(ctx, req.FromID)
	if err != nil {
		return reply(ctx, req, tgui.Text("Не удалось отправить рассылку: "+tgui.TruncRunes(err.Error(), 300)))
	}
	return reply(ctx, req, tgui.Text(fmt.Sprintf("Рассылка отправлена: %s, занятий: %d", rec.Target, rec.Sessions)))
}
