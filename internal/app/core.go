// Package app provides the application core consumed by the UI subsystem:
// logic-goroutine affinity, app/display time, timers, deferred calls and
// clean-frame callbacks, all advanced by an explicit Tick.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWrongThread is returned when a logic-thread-only call is made elsewhere.
var ErrWrongThread = errors.New("not called from the logic thread")

// WrongThreadError reports a mutating call made off the logic goroutine.
type WrongThreadError struct {
	Op string
}

func (e *WrongThreadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrWrongThread.Error())
}

func (e *WrongThreadError) Unwrap() error {
	return ErrWrongThread
}

// TickFunc is called once per tick with the app-time delta.
type TickFunc func(dt time.Duration)

type tickEntry struct {
	id uint64
	fn TickFunc
}

// Options configures a Core.
type Options struct {
	Logger *slog.Logger
	// Now overrides the wall clock used for DisplayTime.
	Now func() time.Time
}

// Core is the application core. All state below is owned by the logic
// goroutine except the push-call queue, which any goroutine may feed.
type Core struct {
	logger *slog.Logger
	now    func() time.Time
	start  time.Time

	logicID atomic.Int64
	ready   atomic.Bool

	appTime time.Duration
	frame   uint64

	timers    []*Timer
	tickFuncs []tickEntry
	tickSeq   uint64
	cleanCBs  []func()

	pushMu sync.Mutex
	pushed []func()
}

// NewCore creates a new application core. The core is not bound to any
// goroutine until Bind is called.
func NewCore(opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Core{
		logger: logger,
		now:    now,
		start:  now(),
	}
}

// Bind makes the calling goroutine the logic thread.
func (c *Core) Bind() {
	c.logicID.Store(goroutineID())
	c.logger.Debug("logic thread bound", "goroutine", c.logicID.Load())
}

// InLogicThread reports whether the caller runs on the logic goroutine.
func (c *Core) InLogicThread() bool {
	id := c.logicID.Load()
	return id != 0 && id == goroutineID()
}

// CheckThread returns a WrongThreadError naming op if the caller is not the
// logic goroutine.
func (c *Core) CheckThread(op string) error {
	if !c.InLogicThread() {
		return &WrongThreadError{Op: op}
	}
	return nil
}

// MarkReady flags the core as fully initialized.
func (c *Core) MarkReady() {
	c.ready.Store(true)
}

// Ready reports whether MarkReady has been called.
func (c *Core) Ready() bool {
	return c.ready.Load()
}

// AppTime returns the accumulated tick time.
func (c *Core) AppTime() time.Duration {
	return c.appTime
}

// DisplayTime returns wall time elapsed since the core was created.
func (c *Core) DisplayTime() time.Duration {
	return c.now().Sub(c.start)
}

// Frame returns the number of completed ticks.
func (c *Core) Frame() uint64 {
	return c.frame
}

// Logger returns the core's logger.
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

// OnTick registers fn to run every tick, before clean-frame callbacks. The
// returned func unregisters it.
func (c *Core) OnTick(fn TickFunc) (remove func()) {
	c.tickSeq++
	id := c.tickSeq
	c.tickFuncs = append(c.tickFuncs, tickEntry{id: id, fn: fn})
	return func() {
		for i, e := range c.tickFuncs {
			if e.id == id {
				c.tickFuncs = append(c.tickFuncs[:i:i], c.tickFuncs[i+1:]...)
				return
			}
		}
	}
}

// AddCleanFrameCallback schedules fn to run at the end of the current (or
// next) tick, once all per-tick work has finished.
func (c *Core) AddCleanFrameCallback(fn func()) error {
	if err := c.CheckThread("add_clean_frame_callback"); err != nil {
		return err
	}
	c.cleanCBs = append(c.cleanCBs, fn)
	return nil
}

// PushCall queues fn to run on the logic goroutine during the next tick.
// Safe to call from any goroutine.
func (c *Core) PushCall(fn func()) {
	c.pushMu.Lock()
	c.pushed = append(c.pushed, fn)
	c.pushMu.Unlock()
}

// Tick advances app time by dt and runs, in order: due timers, pushed calls,
// tick functions and clean-frame callbacks.
func (c *Core) Tick(dt time.Duration) error {
	if err := c.CheckThread("tick"); err != nil {
		return err
	}
	if dt < 0 {
		dt = 0
	}
	c.appTime += dt

	c.runTimers()

	c.pushMu.Lock()
	pushed := c.pushed
	c.pushed = nil
	c.pushMu.Unlock()
	for _, fn := range pushed {
		fn()
	}

	for _, e := range c.tickFuncs {
		e.fn(dt)
	}

	// Callbacks may schedule further callbacks; those run in the same pass.
	for len(c.cleanCBs) > 0 {
		cbs := c.cleanCBs
		c.cleanCBs = nil
		for _, fn := range cbs {
			fn()
		}
	}

	c.frame++
	return nil
}

// Run binds the calling goroutine and ticks at the given interval until ctx
// is cancelled.
func (c *Core) Run(ctx context.Context, interval time.Duration) error {
	c.Bind()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := c.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := c.now()
			if err := c.Tick(now.Sub(last)); err != nil {
				return err
			}
			last = now
		}
	}
}
