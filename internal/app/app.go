// Package app wires the scheduling core together: config, store, publisher,
// dispatch queue, and scanner, started and stopped in dependency order.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"postbot/internal/config"
	"postbot/internal/content"
	"postbot/internal/dispatch"
	"postbot/internal/eventbus"
	"postbot/internal/report"
	"postbot/internal/scanner"
	"postbot/internal/store"
	"postbot/internal/telegram"
	logx "postbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	bus  eventbus.Bus

	store     store.Store
	publisher *telegram.Publisher
	queue     *dispatch.Service
	scan      *scanner.Service

	closeLog func() error

	cancelWatch context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log, closeLog, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	rep := report.New(log.With(logx.String("comp", "report")), bus)

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open store: %w", err)
	}

	pub, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: cfg.Telegram.RatePerSec,
		ParseMode:  cfg.Telegram.ParseMode,
	}, content.New(cfgm), log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = st.Close()
		_ = closeLog()
		return nil, fmt.Errorf("init publisher: %w", err)
	}

	queueCfg, err := dispatchConfig(cfg.Dispatch)
	if err != nil {
		_ = st.Close()
		_ = closeLog()
		return nil, err
	}
	queue := dispatch.New(queueCfg, pub, log.With(logx.String("comp", "dispatch")), bus, rep)

	interval, err := cfg.ScanInterval()
	if err != nil {
		_ = st.Close()
		_ = closeLog()
		return nil, err
	}
	scan := scanner.New(scanner.Config{Interval: interval}, st, queue,
		log.With(logx.String("comp", "scanner")), bus, rep)

	return &App{
		cfgm:      cfgm,
		log:       log.With(logx.String("comp", "app")),
		bus:       bus,
		store:     st,
		publisher: pub,
		queue:     queue,
		scan:      scan,
		closeLog:  closeLog,
	}, nil
}

func dispatchConfig(c config.DispatchConfig) (dispatch.Config, error) {
	execTimeout, err := config.ParseDurationField("dispatch.exec_timeout", c.ExecTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	initialDelay, err := config.ParseDurationField("dispatch.initial_delay", c.InitialDelay)
	if err != nil {
		return dispatch.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("dispatch.max_delay", c.MaxDelay)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Workers:           c.Workers,
		QueueSize:         c.QueueSize,
		ExecTimeout:       execTimeout,
		MaxAttempts:       c.MaxAttempts,
		InitialDelay:      initialDelay,
		BackoffMultiplier: c.BackoffMultiplier,
		MaxDelay:          maxDelay,
	}, nil
}

// Start brings services up in dependency order: queue before scanner so a
// claimed schedule always has somewhere to go.
func (a *App) Start(ctx context.Context) error {
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})
	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel
	go func() { _ = a.cfgm.Watch(watchCtx) }()

	a.queue.Start(ctx)

	if err := a.scan.InitializeNextRunTimes(ctx); err != nil {
		a.log.Warn("seeding next run times failed", logx.Err(err))
	}
	a.scan.Start(ctx)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("started")
	return nil
}

// Stop shuts down in reverse order, bounding each phase by ctx.
func (a *App) Stop(ctx context.Context) error {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && sent {
		a.log.Debug("sd_notify stopping sent")
	}

	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	a.scan.Stop(ctx)
	a.queue.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	if a.closeLog != nil {
		_ = a.closeLog()
	}
	return nil
}

// Scanner exposes the scanner for admin surfaces (reschedule on edit).
func (a *App) Scanner() *scanner.Service { return a.scan }

// Store exposes the schedule store for admin surfaces.
func (a *App) Store() store.Store { return a.store }

// Snapshot aggregates component diagnostics.
func (a *App) Snapshot() map[string]any {
	return map[string]any{
		"scanner":  a.scan.Snapshot(),
		"dispatch": a.queue.Snapshot(),
		"telegram": a.publisher.Snapshot(),
		"time":     time.Now().UTC(),
	}
}
