package timetable

import (
	"context"
	"errors"
	"time"

	logx "timetablebot/pkg/logx"
)

// Loader yields the current timetable.
type Loader interface {
	Load(ctx context.Context) ([]SessionRecord, error)
}

type Kind string

const (
	KindToday    Kind = "today"
	KindTomorrow Kind = "tomorrow"
	KindFull     Kind = "full"
)

// Result is what a query hands to the rendering layer.
//
// For today/tomorrow, Day and Sessions are set; for full, Groups is set.
// Unavailable is true when the source could not be read; the accompanying
// error wraps ErrDataUnavailable.
type Result struct {
	Kind        Kind
	Day         Day
	Sessions    []SessionRecord
	Groups      []Group
	Unavailable bool
}

// Empty reports whether there is nothing to show.
func (r Result) Empty() bool { return len(r.Sessions) == 0 && len(r.Groups) == 0 }

// Service answers today/tomorrow/full questions against a Loader.
// It keeps no timetable state; each call loads afresh.
type Service struct {
	loader   Loader
	resolver Resolver
	now      func() time.Time
	log      logx.Logger
}

type ServiceOption func(*Service)

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(loader Loader, resolver Resolver, log logx.Logger, opts ...ServiceOption) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{loader: loader, resolver: resolver, now: time.Now, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Resolver() Resolver { return s.resolver }

func (s *Service) Today(ctx context.Context) (Result, error) { return s.TodayAt(ctx, s.now()) }

func (s *Service) Tomorrow(ctx context.Context) (Result, error) {
	return s.TomorrowAt(ctx, s.now())
}

func (s *Service) TodayAt(ctx context.Context, now time.Time) (Result, error) {
	day := s.resolver.Resolve(now)
	res := Result{Kind: KindToday, Day: day}
	recs, err := s.load(ctx)
	if err != nil {
		res.Unavailable = errors.Is(err, ErrDataUnavailable)
		return res, err
	}
	res.Sessions = Query(recs, day.Parity, day.Weekday)
	return res, nil
}

func (s *Service) TomorrowAt(ctx context.Context, now time.Time) (Result, error) {
	tm := s.resolver.ResolveTomorrow(now)
	if tm.Diverges() {
		s.log.Warn("tomorrow parity differs from its ISO week",
			logx.Date("date", tm.Date),
			logx.Stringer("parity", tm.Parity),
			logx.Stringer("iso_parity", tm.ISOParity),
		)
	}
	res := Result{Kind: KindTomorrow, Day: tm.Day}
	recs, err := s.load(ctx)
	if err != nil {
		res.Unavailable = errors.Is(err, ErrDataUnavailable)
		return res, err
	}
	res.Sessions = Query(recs, tm.Parity, tm.Weekday)
	return res, nil
}

func (s *Service) Full(ctx context.Context) (Result, error) {
	res := Result{Kind: KindFull, Day: s.resolver.Resolve(s.now())}
	recs, err := s.load(ctx)
	if err != nil {
		res.Unavailable = errors.Is(err, ErrDataUnavailable)
		return res, err
	}
	res.Groups = QueryAll(recs)
	return res, nil
}

// Sessions returns all valid sessions; used by exports.
func (s *Service) Sessions(ctx context.Context) ([]SessionRecord, error) { return s.load(ctx) }

func (s *Service) load(ctx context.Context) ([]SessionRecord, error) {
	if s.loader == nil {
		return nil, ErrDataUnavailable
	}
	return s.loader.Load(ctx)
}
