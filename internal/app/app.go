// Package app wires the daemon together: config, logging, storage, the
// matching engine, the delivery pipeline, the autopost scheduler, the
// assignment engine and the cron jobs.
package app

import (
	"context"

	"github.com/rentsearchrs/lviv-pject/internal/assign"
	"github.com/rentsearchrs/lviv-pject/internal/autopost"
	"github.com/rentsearchrs/lviv-pject/internal/config"
	"github.com/rentsearchrs/lviv-pject/internal/dispatch"
	"github.com/rentsearchrs/lviv-pject/internal/jobs"
	"github.com/rentsearchrs/lviv-pject/internal/match"
	"github.com/rentsearchrs/lviv-pject/internal/runtime/supervisor"
	"github.com/rentsearchrs/lviv-pject/internal/storage"
	telegram "github.com/rentsearchrs/lviv-pject/internal/transport/telegram"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    *storage.Store
	adapter  *telegram.Adapter
	engine   *match.Engine
	pipeline *dispatch.Pipeline
	auto     *autopost.Controller
	assigner *assign.Service
	jobs     *jobs.Service

	// lastCfg tracks the most recently applied config so reloads can warn
	// about sections that need a restart.
	lastCfg *config.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	tgCfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(tgCfg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	engine := match.New(mapMatchConfig(cfg), store, log.With(logx.String("comp", "match")))

	dpCfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	pipeline := dispatch.New(dpCfg, store, engine, adapter, log.With(logx.String("comp", "dispatch")))

	apCfg, err := mapAutopostConfig(cfg)
	if err != nil {
		return nil, err
	}
	auto := autopost.New(apCfg, engine, pipeline, log.With(logx.String("comp", "autopost")))

	assigner := assign.New(store, log.With(logx.String("comp", "assign")))

	jbCfg, err := mapJobsConfig(cfg)
	if err != nil {
		return nil, err
	}
	jobSvc := jobs.New(jbCfg, store, adapter, assigner, adapter.AdminChatID(),
		log.With(logx.String("comp", "jobs")))

	return &App{
		cfgm:     cfgm,
		lastCfg:  cfg,
		log:      log,
		logs:     logSvc,
		store:    store,
		adapter:  adapter,
		engine:   engine,
		pipeline: pipeline,
		auto:     auto,
		assigner: assigner,
		jobs:     jobSvc,
	}, nil
}

// Autopost exposes the scheduler controller (pause/resume from operator
// surfaces).
func (a *App) Autopost() *autopost.Controller { return a.auto }

// Assigner exposes the round-robin assignment engine.
func (a *App) Assigner() *assign.Service { return a.assigner }

// Done is closed when the supervisor context is canceled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if !a.lastCfg.Dispatch.Enabled {
		a.auto.Pause()
	}
	a.auto.Start(a.sup.Context())
	if err := a.jobs.Start(a.sup.Context()); err != nil {
		return err
	}

	// hot reload fan-out
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
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("started")
	return nil
}

// applyConfig applies the hot-reloadable parts of a committed config.
// Storage and transport changes need a restart and only produce a warning.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	if apCfg, err := mapAutopostConfig(cfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.auto.Apply(apCfg)
		if apCfg.Enabled {
			a.auto.Resume()
		} else {
			a.auto.Pause()
		}
	}

	prev := a.lastCfg
	if prev != nil {
		if cfg.Telegram != prev.Telegram {
			a.log.Warn("telegram config changed; restart required for changes to take effect")
		}
		if cfg.Storage != prev.Storage {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}
	a.lastCfg = cfg
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		a.sup.Cancel()
	}
	a.auto.Stop(ctx)
	a.jobs.Stop(ctx)
	var err error
	if a.sup != nil {
		err = a.sup.Wait(ctx)
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.logs.Close()
	a.log.Info("stopped")
	return err
}
