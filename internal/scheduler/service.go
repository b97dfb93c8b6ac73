// Package scheduler sends tomorrow's timetable to the broadcast chat once a day.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"timetablebot/internal/render"
	"timetablebot/internal/storage"
	"timetablebot/internal/timetable"
	logx "timetablebot/pkg/logx"
)

// Sink delivers the rendered broadcast.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Source answers "tomorrow" relative to a given instant.
type Source interface {
	TomorrowAt(ctx context.Context, now time.Time) (timetable.Result, error)
}

// Journal records firings. storage.Store satisfies it.
type Journal interface {
	AppendFiring(ctx context.Context, f storage.Firing) error
	LastFiring(ctx context.Context, trigger storage.Trigger) (storage.Firing, bool, error)
}

type State string

const (
	StateIdle   State = "idle"
	StateArmed  State = "armed"
	StateFiring State = "firing"
)

// Snapshot is a point-in-time view for status reporting.
type Snapshot struct {
	State   State
	Trigger string
	Next    time.Time // zero unless armed
	Last    *storage.Firing
}

// Service owns the daily firing loop. FireNow may be called concurrently with Run.
type Service struct {
	trigger Trigger
	src     Source
	sink    Sink
	journal Journal
	log     logx.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	fireMu sync.Mutex // one firing at a time

	mu      sync.Mutex
	state   State
	running bool
	next    time.Time
	last    *storage.Firing
}

type Option func(*Service)

// WithClock replaces the wall clock and timer, for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if after != nil {
			s.after = after
		}
	}
}

// WithJournal enables duplicate suppression and firing history. A nil journal is ignored.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

func New(trigger Trigger, src Source, sink Sink, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		trigger: trigger,
		src:     src,
		sink:    sink,
		log:     log,
		now:     time.Now,
		after:   time.After,
		state:   StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Trigger() Trigger { return s.trigger }

// Run arms the trigger and fires until ctx is done. A failed firing is
// logged and recorded; the loop always re-arms for the next day.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.state = StateIdle
		s.next = time.Time{}
		s.mu.Unlock()
	}()

	s.log.Info("notification scheduler started", logx.Stringer("trigger", s.trigger))

	var (
		lastFire time.Time
		lastDate string // local date of lastFire
	)
	for {
		from := s.now()
		if lastFire.After(from) {
			from = lastFire
		}
		next := s.trigger.Next(from)
		if lastDate != "" && s.trigger.LocalDate(next) == lastDate {
			next = s.trigger.Next(next)
		}
		s.setArmed(next)
		s.log.Debug("scheduler armed", logx.Time("next", next))

		if !s.sleepUntil(ctx, next) {
			s.log.Info("notification scheduler stopped")
			return nil
		}
		lastFire = next
		lastDate = s.trigger.LocalDate(next)

		if s.alreadyFired(ctx, next) {
			s.log.Info("scheduled firing skipped; already sent today", logx.String("date", s.trigger.LocalDate(next)))
			continue
		}
		_, _ = s.fire(ctx, storage.TriggerScheduled, next, 0)
	}
}

// sleepUntil waits for at. Early wakeups wait again for the remainder.
func (s *Service) sleepUntil(ctx context.Context, at time.Time) bool {
	for {
		d := at.Sub(s.now())
		if d <= 0 {
			return ctx.Err() == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.after(d):
		}
	}
}

func (s *Service) alreadyFired(ctx context.Context, at time.Time) bool {
	if s.journal == nil {
		return false
	}
	last, ok, err := s.journal.LastFiring(ctx, storage.TriggerScheduled)
	if err != nil {
		s.log.Warn("firing journal read failed", logx.Err(err))
		return false
	}
	return ok && last.Date == s.trigger.LocalDate(at)
}

// FireNow composes and dispatches immediately, returning the dispatch outcome.
// It does not count as the day's scheduled firing.
func (s *Service) FireNow(ctx context.Context, actorID int64) (storage.Firing, error) {
	return s.fire(ctx, storage.TriggerManual, s.now(), actorID)
}

// Compose renders the broadcast for the day after now. The text is always
// usable; err reports a timetable read failure.
func (s *Service) Compose(ctx context.Context, now time.Time) (string, timetable.Result, error) {
	res, err := s.src.TomorrowAt(ctx, now)
	return render.Result(res), res, err
}

func (s *Service) fire(ctx context.Context, trig storage.Trigger, at time.Time, actorID int64) (storage.Firing, error) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	s.setState(StateFiring)
	defer func() {
		s.mu.Lock()
		if s.running {
			s.state = StateArmed
		} else {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}()

	start := s.now()
	text, res, cerr := s.Compose(ctx, at)
	rec := storage.Firing{
		At:              at,
		Date:            s.trigger.LocalDate(at),
		Trigger:         trig,
		ActorID:         actorID,
		Target:          res.Day.Date.Format("2006-01-02"),
		Parity:          res.Day.Parity.String(),
		Weekday:         res.Day.Weekday.String(),
		Sessions:        len(res.Sessions),
		DataUnavailable: res.Unavailable,
	}
	fields := []logx.Field{
		logx.String("trigger", string(trig)),
		logx.String("target", rec.Target),
		logx.String("parity", rec.Parity),
	}
	if cerr != nil {
		s.log.Error("timetable unavailable for broadcast", append(fields, logx.Err(cerr))...)
	}

	err := s.sink.Send(ctx, text)
	rec.TookMS = s.now().Sub(start).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
		s.log.Error("broadcast dispatch failed", append(fields, logx.Err(err))...)
	} else {
		s.log.Info("broadcast sent", append(fields, logx.Int("sessions", rec.Sessions))...)
	}

	if s.journal != nil {
		if jerr := s.journal.AppendFiring(context.WithoutCancel(ctx), rec); jerr != nil {
			s.log.Warn("firing journal write failed", logx.Err(jerr))
		}
	}
	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()
	return rec, err
}

func (s *Service) setArmed(next time.Time) {
	s.mu.Lock()
	s.state = StateArmed
	s.next = next
	s.mu.Unlock()
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Trigger: s.trigger.String()}
	if s.state != StateIdle {
		snap.Next = s.next
	}
	if s.last != nil {
		l := *s.last
		snap.Last = &l
	}
	return snap
}
