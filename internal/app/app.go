// Package app wires configuration, the timetable, the daily broadcast and the
// Telegram transport into one process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"timetablebot/internal/broadcast"
	"timetablebot/internal/calendar"
	"timetablebot/internal/config"
	rtsup "timetablebot/internal/runtime/supervisor"
	"timetablebot/internal/scheduler"
	"timetablebot/internal/storage"
	"timetablebot/internal/timetable"
	kit "timetablebot/internal/transport"
	telegram "timetablebot/internal/transport/telegram/adapter"
	"timetablebot/internal/transport/telegram/router"
	logx "timetablebot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store // nil without a journal

	tt    *timetable.Store
	ttSvc *timetable.Service
	sched *scheduler.Service // nil when the daily broadcast is disabled

	adapter  *telegram.Adapter
	handlers *router.Handlers
	cmdm     *router.CommandManager

	updates chan kit.Message
}

// New loads and validates the config and builds every component. Errors
// wrapping config.ErrConfigInvalid mean the config must be fixed.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	pt, err := pollTimeout(cfg)
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pt}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg, false), ad)
	if id := cfg.GroupLogChatID(); id != 0 {
		logSvc.SetTelegramTarget(id, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logConfig(cfg, true))
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if sc, enabled, err := storageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	tt := timetable.NewStore(storeConfig(cfg), log.With(logx.String("comp", "timetable")))
	ttSvc := timetable.NewService(tt, timetable.NewResolver(loc), log.With(logx.String("comp", "timetable")))

	h := &router.Handlers{Timetable: ttSvc, Calendar: calendar.Options{}}
	if store != nil {
		h.History = store
	}

	var sched *scheduler.Service
	if cfg.Notification.Enabled {
		bc, err := broadcastConfig(cfg)
		if err != nil {
			return nil, err
		}
		trig, err := triggerFor(cfg)
		if err != nil {
			return nil, err
		}
		sink := broadcast.New(bc, ad, log.With(logx.String("comp", "broadcast")))
		var opts []scheduler.Option
		if store != nil {
			opts = append(opts, scheduler.WithJournal(store))
		}
		sched = scheduler.New(trig, ttSvc, sink, log.With(logx.String("comp", "scheduler")), opts...)
		h.Broadcaster = sched
	} else {
		log.Info("daily broadcast disabled")
	}

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		tt:       tt,
		ttSvc:    ttSvc,
		sched:    sched,
		adapter:  ad,
		handlers: h,
		updates:  make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := storageConfig(cfg); err != nil {
			return err
		}
		if _, err := triggerFor(cfg); err != nil {
			return err
		}
		if cfg.Notification.Enabled {
			if _, err := broadcastConfig(cfg); err != nil {
				return err
			}
		}
		return nil
	})

	a.reportTimetable(ctx)

	a.cmdm = router.NewCommandManager(a.log.With(logx.String("comp", "commands")),
		a.adapter, a.cfgm.Get().Telegram.OwnerUserIDs, router.WithSupervisor(a.sup))
	a.cmdm.SetUsername(a.adapter.Username())
	a.cmdm.SetRegistry(a.handlers.Commands())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	if a.sched != nil {
		a.sup.Go("scheduler", a.sched.Run)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	fields := []logx.Field{logx.String("bot", a.adapter.Username())}
	if a.sched != nil {
		fields = append(fields, logx.String("broadcast_at", a.sched.Trigger().String()))
	}
	a.log.Info("app started", fields...)
	return nil
}

// reportTimetable loads the timetable once so a broken file shows up in the
// log at startup. The bot still starts; queries report no classes until the
// file is fixed.
func (a *App) reportTimetable(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, rep, err := a.tt.LoadWithReport(lctx)
	if err != nil {
		a.log.Error("timetable unavailable at startup", logx.String("path", rep.Path), logx.Err(err))
		return
	}
	a.log.Info("timetable loaded",
		logx.String("path", rep.Path),
		logx.Int("rows", rep.Rows),
		logx.Int("accepted", rep.Accepted),
		logx.Int("rejected", len(rep.Rejected)),
	)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// Scheduler and dispatcher unwind with the supervisor context; the journal
	// closes last so an in-flight firing can still be recorded.
	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and by ctx's own deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			if err := <-done; err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}
