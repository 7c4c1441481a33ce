// Package app wires the bot together: config, logging, transport,
// notifier, search registry, router, and the optional search log.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticketbot/internal/config"
	"ticketbot/internal/eventbus"
	"ticketbot/internal/fetch"
	"ticketbot/internal/notifier"
	rtsup "ticketbot/internal/runtime/supervisor"
	"ticketbot/internal/rwby"
	"ticketbot/internal/search"
	"ticketbot/internal/storage"
	kit "ticketbot/internal/transport"
	telegram "ticketbot/internal/transport/telegram/adapter"
	"ticketbot/internal/transport/telegram/router"
	logx "ticketbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     storage.Store
	retention time.Duration
	pruneSpec string
	cron      *cron.Cron

	adapter kit.Adapter
	notif   *notifier.Service
	reg     *search.Registry
	router  *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink disabled, set the target, then
	// Apply() the final config; enabling it before a target exists logs a
	// false-positive warning.
	baseLogCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    false,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			logSvc.SetTelegramTarget(chatID)
		}
	}
	finalLogCfg := baseLogCfg
	finalLogCfg.Telegram.Enabled = cfg.Logging.Telegram.Enabled
	logSvc.Apply(finalLogCfg)

	bus := eventbus.New()

	var store storage.Store
	var retention time.Duration
	var pruneSpec string
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		retention, pruneSpec, err = mapRetention(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("search log enabled", logx.String("driver", sc.Driver))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus)

	pol, prx, err := mapFetchConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := fetch.NewClient(pol, prx, log.With(logx.String("comp", "fetch")))
	if err != nil {
		return nil, err
	}

	checker := rwby.NewChecker(cfg.Rwby.BaseURL, client, log.With(logx.String("comp", "rwby")))

	scfg, err := mapSearchConfig(cfg)
	if err != nil {
		return nil, err
	}
	reg := search.NewRegistry(scfg, checker, notifSvc, bus, log.With(logx.String("comp", "search")))

	rt := router.New(router.Deps{
		Registry: reg,
		Notifier: notifSvc,
		Log:      log.With(logx.String("comp", "router")),
	})

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		retention: retention,
		pruneSpec: pruneSpec,
		adapter:   ad,
		notif:     notifSvc,
		reg:       reg,
		router:    rt,
		updates:   make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapSearchConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapFetchConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapRetention(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.notif.Start(a.sup.Context())
	a.reg.Start(a.sup.Context())
	a.router.Run(a.sup.Context(), a.updates)

	if a.store != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("history", func(c context.Context) {
			defer unsub()
			historyLoop(c, events, a.store, a.log.With(logx.String("comp", "history")))
		})
		a.startRetentionCron()
	}

	// hot reload: logging is applied live, the rest needs a restart
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) startRetentionCron() {
	loc := a.reg.Config().Location
	a.cron = cron.New(cron.WithLocation(loc))
	_, err := a.cron.AddFunc(a.pruneSpec, func() {
		cutoff := time.Now().Add(-a.retention)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := a.store.PruneBefore(ctx, cutoff)
		if err != nil {
			a.log.Warn("search log prune failed", logx.Err(err))
			return
		}
		a.log.Info("search log pruned",
			logx.Any("removed", n),
			logx.Time("cutoff", cutoff))
	})
	if err != nil {
		a.log.Warn("invalid prune schedule; retention prune disabled",
			logx.String("spec", a.pruneSpec), logx.Err(err))
		a.cron = nil
		return
	}
	a.cron.Start()
}

func (a *App) applyReload(newCfg *config.Config) {
	if newCfg == nil {
		return
	}

	if gl := strings.TrimSpace(newCfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			a.logs.SetTelegramTarget(chatID)
		}
	} else {
		a.logs.SetTelegramTarget(0)
	}
	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    newCfg.Logging.Telegram.Enabled,
			MinLevel:   newCfg.Logging.Telegram.MinLevel,
			RatePerSec: newCfg.Logging.Telegram.RatePerSec,
		},
	})

	if ncfg, err := mapNotifierConfig(newCfg); err == nil {
		a.notif.Apply(ncfg)
	}

	// Search, fetch, and storage settings bind at startup; workers hold
	// their config for their whole run.
	a.log.Info("config reloaded (logging and notifier applied; other sections take effect on restart)")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// step bounds one component's shutdown so it can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

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
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Tell active users first, while the notifier and adapter still run,
	// then drain the notifier so the farewell actually leaves the queue.
	step("searches", 8*time.Second, func(c context.Context) error { a.reg.Shutdown(c); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })

	a.sup.Cancel()

	step("cron", 1*time.Second, func(c context.Context) error {
		if a.cron != nil {
			stopCtx := a.cron.Stop()
			select {
			case <-stopCtx.Done():
			case <-c.Done():
			}
		}
		return nil
	})
	step("router", 2*time.Second, func(c context.Context) error { a.router.Wait(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
