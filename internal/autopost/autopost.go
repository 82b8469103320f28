// Package autopost drives the periodic dispatch of eligible listings.
//
// A single worker pulls (channel, listings) batches from the matching engine
// and feeds listings one at a time into the delivery pipeline, pacing
// dispatches to stay inside upstream rate limits. The controller owns the
// running/paused state; the pause flag is consulted before every dispatch,
// not just at tick boundaries.
package autopost

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/dispatch"
	"github.com/rentsearchrs/lviv-pject/internal/match"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

const (
	defaultInterval  = time.Minute
	defaultPaceDelay = time.Minute
)

type Config struct {
	Enabled bool
	// Interval between scheduler ticks. 0 means 1m.
	Interval time.Duration
	// PaceDelay is the pause between consecutive listing dispatches. 0 means 1m.
	PaceDelay time.Duration
}

// Matcher computes the pending work of one tick.
type Matcher interface {
	PendingByChannel(ctx context.Context) ([]match.Batch, error)
}

// Dispatcher delivers one listing (the pipeline).
type Dispatcher interface {
	Dispatch(ctx context.Context, listingID int64) (*dispatch.Result, error)
}

type Controller struct {
	mu  sync.Mutex
	cfg Config

	matcher    Matcher
	dispatcher Dispatcher
	log        logx.Logger

	paused atomic.Bool

	stopCh    chan struct{}
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	// sleep is an injection point for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, matcher Matcher, dispatcher Dispatcher, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		cfg:        cfg,
		matcher:    matcher,
		dispatcher: dispatcher,
		log:        log,
		sleep:      sleepCtx,
	}
}

// Apply swaps the pacing configuration at runtime (config reload).
func (c *Controller) Apply(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// Pause suspends dispatching without stopping the loop. An in-flight channel
// attempt completes; the next dispatch is skipped until Resume.
func (c *Controller) Pause() {
	if c.paused.CompareAndSwap(false, true) {
		c.log.Info("auto-posting paused")
	}
}

// Resume re-enables dispatching.
func (c *Controller) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		c.log.Info("auto-posting resumed")
	}
}

// Running reports whether the loop is started and not paused.
func (c *Controller) Running() bool {
	c.mu.Lock()
	started := c.stopCh != nil
	c.mu.Unlock()
	return started && !c.paused.Load()
}

// Start launches the scheduler loop. Idempotent while running.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.stopCh = make(chan struct{})
	c.runCancel = cancel
	stopCh := c.stopCh

	// Read the pacing config directly: interval()/paceDelay() lock c.mu,
	// which Start already holds.
	interval, pace := c.cfg.Interval, c.cfg.PaceDelay
	if interval <= 0 {
		interval = defaultInterval
	}
	if pace <= 0 {
		pace = defaultPaceDelay
	}

	c.workerWG.Add(1)
	go func() {
		defer c.workerWG.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("panic in autopost loop", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		c.loop(runCtx, stopCh)
	}()
	c.log.Info("auto-posting started", logx.Duration("interval", interval), logx.Duration("pace", pace))
}

// Stop terminates the loop and waits for the worker to exit.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.stopCh == nil {
		c.mu.Unlock()
		return
	}
	stopCh := c.stopCh
	cancel := c.runCancel
	c.stopCh = nil
	c.runCancel = nil
	c.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.log.Info("auto-posting stopped")
	case <-ctx.Done():
		// stop continues in background
	}
}

func (c *Controller) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Interval > 0 {
		return c.cfg.Interval
	}
	return defaultInterval
}

func (c *Controller) paceDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.PaceDelay > 0 {
		return c.cfg.PaceDelay
	}
	return defaultPaceDelay
}

func (c *Controller) loop(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	for {
		if !c.paused.Load() {
			c.runTick(ctx, stopCh)
		}

		ticker.Reset(c.interval())
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

// runTick drains the currently pending work. Failures are logged and the loop
// proceeds; a tick never crashes the controller.
func (c *Controller) runTick(ctx context.Context, stopCh <-chan struct{}) {
	batches, err := c.matcher.PendingByChannel(ctx)
	if err != nil {
		c.log.Error("matching failed", logx.Err(err))
		return
	}
	if len(batches) == 0 {
		c.log.Debug("no pending listings")
		return
	}

	for _, batch := range batches {
		c.log.Info("processing channel batch",
			logx.String("chat", batch.Channel.ChatID),
			logx.String("category", string(batch.Channel.Category)),
			logx.Int("listings", len(batch.Listings)))

		for _, listing := range batch.Listings {
			// Stop/pause must win over remaining queued work.
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			default:
			}
			if c.paused.Load() {
				c.log.Info("auto-posting paused mid-tick")
				return
			}

			if _, err := c.dispatcher.Dispatch(ctx, listing.ID); err != nil {
				if errors.Is(err, dispatch.ErrAlreadyInFlight) {
					c.log.Debug("skipping in-flight listing", logx.Int64("listing", listing.ID))
					continue
				}
				c.log.Error("dispatch failed", logx.Int64("listing", listing.ID), logx.Err(err))
				continue
			}

			// Inter-dispatch pacing: cooperative suspension, stop-aware.
			if err := c.sleep(ctx, c.paceDelay()); err != nil {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}
