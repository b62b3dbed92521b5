package app

import (
	"bytes"
	"runtime"
	"strconv"
	"time"
)

// Timer fires a callback after an app-time interval, optionally repeating.
type Timer struct {
	core     *Core
	interval time.Duration
	due      time.Duration
	repeat   bool
	fn       func()
	stopped  bool
}

// NewTimer creates a timer driven by app time. Must be called on the logic
// thread.
func (c *Core) NewTimer(interval time.Duration, fn func(), repeat bool) (*Timer, error) {
	if err := c.CheckThread("app_timer"); err != nil {
		return nil, err
	}
	t := &Timer{
		core:     c,
		interval: interval,
		due:      c.appTime + interval,
		repeat:   repeat,
		fn:       fn,
	}
	c.timers = append(c.timers, t)
	return t, nil
}

// Stop cancels the timer. Stopping twice is a no-op.
func (t *Timer) Stop() {
	t.stopped = true
}

// Active reports whether the timer will still fire.
func (t *Timer) Active() bool {
	return !t.stopped
}

// runTimers fires every due timer and drops finished ones.
func (c *Core) runTimers() {
	if len(c.timers) == 0 {
		return
	}
	timers := c.timers
	c.timers = nil
	live := make([]*Timer, 0, len(timers))
	for _, t := range timers {
		if t.stopped {
			continue
		}
		if c.appTime >= t.due {
			t.fn()
			if t.repeat && t.interval > 0 {
				for t.due <= c.appTime {
					t.due += t.interval
				}
			} else {
				t.stopped = true
			}
		}
		if !t.stopped {
			live = append(live, t)
		}
	}
	// c.timers now only holds timers created by the callbacks above.
	c.timers = append(live, c.timers...)
}

// goroutineID parses the current goroutine's id from its stack header
// ("goroutine 42 [running]:").
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
