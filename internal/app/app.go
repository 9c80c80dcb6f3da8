package app

import (
	"context"
	"fmt"
	"time"

	"todobot/internal/bot"
	"todobot/internal/config"
	"todobot/internal/notify"
	"todobot/internal/reminder"
	rtsup "todobot/internal/runtime/supervisor"
	"todobot/internal/storage"
	kit "todobot/internal/transport"
	"todobot/internal/transport/telegram"
	logx "todobot/pkg/logx"
)

// App wires config, logging, storage, transport, the reminder engine and
// the command router into one process. Everything is explicitly
// constructed here and passed by reference; there are no package-level
// singletons.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store     storage.Store
	adapter   *telegram.Adapter
	notifier  *notify.Service
	reminders *reminder.Service
	digest    *reminder.Digest // nil when disabled
	router    *bot.Router

	updates chan kit.Update
	sup     *rtsup.Supervisor
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	notifier := notify.New(adapter, cfg.Reminder.RatePerSec, log.With(logx.String("comp", "notify")))

	offset, err := config.ParseDurationOrDefault("reminder.offset", cfg.Reminder.Offset, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	reminders := reminder.New(reminder.Config{Offset: offset}, notifier, store,
		log.With(logx.String("comp", "reminder")))

	var digest *reminder.Digest
	if cfg.Digest.Enabled {
		digest, err = reminder.NewDigest(reminder.DigestConfig{
			Enabled:  true,
			Spec:     cfg.Digest.Spec,
			Timezone: cfg.Digest.Timezone,
		}, store, notifier, log.With(logx.String("comp", "digest")))
		if err != nil {
			return nil, err
		}
	}

	router := bot.NewRouter(adapter, store, reminders, log.With(logx.String("comp", "bot")))

	return &App{
		cfgm:      cfgm,
		logs:      logSvc,
		log:       log.With(logx.String("comp", "app")),
		store:     store,
		adapter:   adapter,
		notifier:  notifier,
		reminders: reminders,
		digest:    digest,
		router:    router,
		updates:   make(chan kit.Update, 128),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))

	// Reminder engine first, so recovery can re-arm into a live queue.
	a.reminders.Start(ctx)
	if err := a.reminders.Recover(ctx); err != nil {
		// Degraded start: persisted deadlines were not reconciled, but
		// the bot itself keeps working.
		a.log.Warn("starting without reminder recovery", logx.Err(err))
	}

	if a.digest != nil {
		a.digest.Start()
	}

	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return fmt.Errorf("start telegram adapter: %w", err)
	}

	a.sup.Go("router", func(c context.Context) {
		a.router.Run(c, a.updates)
	})

	// Config hot-reload: only logging settings apply at runtime.
	a.sup.Go("config.watch", func(c context.Context) {
		_ = a.cfgm.Watch(c)
	})
	a.sup.Go("config.apply", func(c context.Context) {
		sub := a.cfgm.Subscribe(1)
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg := <-sub:
				if cfg == nil {
					continue
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
			}
		}
	})

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	// Stop inbound first so no new commands arrive, then the reminder
	// engine (waits for in-flight deliveries), then storage.
	_ = a.adapter.Stop(ctx)
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
	}
	if a.digest != nil {
		a.digest.Stop(ctx)
	}
	a.reminders.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
