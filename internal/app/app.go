// Package app wires the bot together: config, logging, storage, the
// Telegram adapter, the scheduling dialog, the fan-out sender and the
// delivery poller. It owns the update loop and config hot reload.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"castbot/internal/config"
	"castbot/internal/services/broadcast"
	"castbot/internal/services/delivery"
	"castbot/internal/services/schedule"
	"castbot/internal/storage"
	kit "castbot/internal/transport"
	telegram "castbot/internal/transport/telegram/adapter"
	"castbot/internal/transport/telegram/router"
	logx "castbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter kit.Adapter

	dialog *schedule.Service
	caster *broadcast.Service
	poller *delivery.Service
	router *router.Router

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("telegram.token is required")
	}
	if len(cfg.Telegram.AdminUserIDs) == 0 {
		return nil, fmt.Errorf("telegram.admin_user_ids must list at least one admin")
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	caster := broadcast.New(mapBroadcastConfig(cfg), ad, store,
		log.With(logx.String("comp", "broadcast")))

	dialog := schedule.New(schedule.Config{
		Timezone: deliveryTimezone(cfg),
	}, store, caster, log.With(logx.String("comp", "schedule")))

	dc, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	poller := delivery.New(dc, store, caster, ad,
		log.With(logx.String("comp", "delivery")))

	rt := router.New(ad, dialog, store, cfg.Telegram.AdminUserIDs,
		log.With(logx.String("comp", "router")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		dialog:  dialog,
		caster:  caster,
		poller:  poller,
		router:  rt,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required")
		}
		if len(cfg.Telegram.AdminUserIDs) == 0 {
			return fmt.Errorf("telegram.admin_user_ids must list at least one admin")
		}
		if _, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDeliveryConfig(cfg); err != nil {
			return err
		}
		if cfg.Broadcast != nil {
			if cfg.Broadcast.RatePerSec < 0 {
				return fmt.Errorf("broadcast.rate_per_sec must be >= 0")
			}
			if cfg.Broadcast.RetryMax < 0 {
				return fmt.Errorf("broadcast.retry_max must be >= 0")
			}
		}
		if tz := deliveryTimezone(cfg); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("delivery.timezone: invalid %q: %w", tz, err)
			}
		}
		return nil
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if err := a.poller.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Single consumer for inbound updates. Dialog sessions assume one
	// operator action at a time, which this loop guarantees.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case up := <-a.updates:
				a.router.Handle(runCtx, up)
			}
		}
	}()

	// Config hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, newCfg)
				last = newCfg
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the running components.
// Storage, token and delivery schedule changes need a restart; everything
// else applies live.
func (a *App) applyConfig(old, cfg *config.Config) {
	sections := summarizeChange(old, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))

	for _, s := range sections {
		switch s {
		case "storage", "delivery":
			a.log.Warn("config section changed; restart required to take effect",
				logx.String("section", s))
		}
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.caster.Apply(mapBroadcastConfig(cfg))
	a.router.SetAdmins(cfg.Telegram.AdminUserIDs)
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	a.cancel()

	a.poller.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached before background loops exited")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = "castbot.db"
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func mapBroadcastConfig(cfg *config.Config) broadcast.Config {
	if cfg.Broadcast == nil {
		return broadcast.Config{}
	}
	return broadcast.Config{
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	dc := delivery.Config{Enabled: true}
	if cfg.Delivery == nil {
		return dc, nil
	}
	interval, err := config.Duration("delivery.poll_interval", cfg.Delivery.PollInterval, time.Minute)
	if err != nil {
		return delivery.Config{}, err
	}
	if cfg.Delivery.Enabled != nil {
		dc.Enabled = *cfg.Delivery.Enabled
	}
	dc.PollInterval = interval
	dc.MaxAttempts = cfg.Delivery.MaxAttempts
	return dc, nil
}

func deliveryTimezone(cfg *config.Config) string {
	if cfg.Delivery == nil {
		return ""
	}
	return strings.TrimSpace(cfg.Delivery.Timezone)
}
