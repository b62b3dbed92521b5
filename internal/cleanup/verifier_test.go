package cleanup

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

type screen struct {
	name    string
	handles []widget.Handle
}

type recorder struct {
	leaks []LeakDetected
}

func (r *recorder) ReportLeak(l LeakDetected) {
	r.leaks = append(r.leaks, l)
}

type fixture struct {
	t       *testing.T
	core    *app.Core
	widgets *widget.Table
	mgr     *window.Manager
	rec     *recorder
	v       *Verifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	core := app.NewCore(app.Options{})
	core.Bind()
	widgets := widget.NewTable(core, nil, nil)
	f := &fixture{
		t:       t,
		core:    core,
		widgets: widgets,
		mgr:     window.NewManager(core, widgets, nil, window.Options{}),
		rec:     &recorder{},
	}
	opts.Reporter = f.rec
	f.v = New(core, opts)
	f.v.Attach(f.mgr)
	return f
}

// window builds a window with n buttons and returns it with the buttons.
func (f *fixture) window(name string, n int) (*window.Window, []widget.Handle) {
	f.t.Helper()
	root, err := f.widgets.CreateRoot(widget.KindContainer, widget.Config{Label: name})
	require.NoError(f.t, err)
	var hs []widget.Handle
	for i := 0; i < n; i++ {
		h, err := f.widgets.Create(widget.KindButton, root, widget.Config{})
		require.NoError(f.t, err)
		hs = append(hs, h)
	}
	return window.New(name, root), hs
}

func (f *fixture) tick() {
	f.t.Helper()
	require.NoError(f.t, f.core.Tick(10*time.Millisecond))
}

func (f *fixture) check() []LeakDetected {
	f.t.Helper()
	leaks, err := f.v.Check()
	require.NoError(f.t, err)
	return leaks
}

func (f *fixture) upkeep() []LeakDetected {
	f.t.Helper()
	leaks, err := f.v.Upkeep()
	require.NoError(f.t, err)
	return leaks
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"upkeep", PolicyUpkeep, false},
		{"on-demand", PolicyOnDemand, false},
		{"off", PolicyOff, false},
		{"", PolicyUpkeep, false},
		{"always", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck_NoLeakAfterDestroy(t *testing.T) {
	f := newFixture(t, Options{})

	base, _ := f.window("base", 0)
	w, hs := f.window("settings", 2)
	require.NoError(t, f.mgr.Push(base))
	require.NoError(t, f.mgr.Push(w))

	s := &screen{name: "settings", handles: hs}
	require.NoError(t, Register(f.v, s, w, hs...))

	assert.Empty(t, f.check(), "window still alive")
	assert.Equal(t, 1, f.v.Pending())

	require.NoError(t, f.mgr.Pop())
	f.tick()

	assert.Empty(t, f.check())
	assert.Equal(t, 0, f.v.Pending())
	assert.Empty(t, f.rec.leaks)
}

func TestCheck_HandleRetainedByAnotherWindow(t *testing.T) {
	f := newFixture(t, Options{})

	first, hs := f.window("first", 1)
	second, _ := f.window("second", 0)
	h1 := hs[0]
	// h2 lives in the second window's subtree.
	h2, err := f.widgets.Create(widget.KindText, second.Root(), widget.Config{})
	require.NoError(t, err)

	require.NoError(t, f.mgr.Push(second))
	require.NoError(t, f.mgr.Push(first))

	s := &screen{name: "first", handles: []widget.Handle{h1, h2}}
	require.NoError(t, Register(f.v, s, first, h1, h2))

	require.NoError(t, f.mgr.Pop())
	f.tick()
	require.Equal(t, window.Destroyed, first.State())

	leaks := f.check()
	require.Len(t, leaks, 1)
	leak := leaks[0]
	assert.Equal(t, h2.Ref(), leak.Handle)
	assert.Equal(t, "text", leak.Kind)
	assert.Equal(t, "first", leak.Window)
	assert.Contains(t, leak.Owner, "*cleanup.screen")
	assert.ErrorIs(t, leak, ErrLeakDetected)

	var ld LeakDetected
	assert.True(t, errors.As(error(leak), &ld))

	assert.Equal(t, leaks, f.rec.leaks)
	assert.Equal(t, 1, f.v.Reported())
}

func TestCheck_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})

	first, hs := f.window("first", 1)
	second, _ := f.window("second", 0)
	kept, err := f.widgets.Create(widget.KindButton, second.Root(), widget.Config{})
	require.NoError(t, err)

	require.NoError(t, f.mgr.Push(second))
	require.NoError(t, f.mgr.Push(first))
	require.NoError(t, Register(f.v, &screen{}, first, hs[0], kept))
	require.NoError(t, f.mgr.Pop())
	f.tick()

	assert.Len(t, f.check(), 1)
	assert.Empty(t, f.check())
	assert.Empty(t, f.upkeep())
	assert.Len(t, f.rec.leaks, 1)
}

func TestCheck_Policies(t *testing.T) {
	t.Run("on-demand skips upkeep", func(t *testing.T) {
		f := newFixture(t, Options{Policy: PolicyOnDemand})
		w, hs := f.window("w", 1)
		other, _ := f.window("other", 0)
		leaked, err := f.widgets.Create(widget.KindButton, other.Root(), widget.Config{})
		require.NoError(t, err)
		require.NoError(t, Register(f.v, &screen{}, w, hs[0], leaked))
		require.NoError(t, f.mgr.Push(w))
		require.NoError(t, f.mgr.Teardown())

		assert.Empty(t, f.upkeep())
		assert.Len(t, f.check(), 1)
	})

	t.Run("off records nothing", func(t *testing.T) {
		f := newFixture(t, Options{Policy: PolicyOff})
		w, hs := f.window("w", 1)
		require.NoError(t, Register(f.v, &screen{}, w, hs...))
		assert.Equal(t, 0, f.v.Pending())
		assert.Nil(t, f.check())
	})
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	w, _ := f.window("w", 0)

	assert.Error(t, Register[screen](f.v, nil, w))
	assert.Error(t, Register(f.v, &screen{}, nil))

	errCh := make(chan error, 1)
	go func() { errCh <- Register(f.v, &screen{}, w) }()
	assert.ErrorIs(t, <-errCh, app.ErrWrongThread)
}

func TestCheck_WrongThread(t *testing.T) {
	for _, policy := range []Policy{PolicyUpkeep, PolicyOnDemand, PolicyOff} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, Options{Policy: policy})

			type result struct {
				leaks []LeakDetected
				err   error
			}
			ch := make(chan result, 2)
			go func() {
				leaks, err := f.v.Check()
				ch <- result{leaks, err}
				leaks, err = f.v.Upkeep()
				ch <- result{leaks, err}
			}()
			for _, op := range []string{"check", "upkeep"} {
				r := <-ch
				if op == "upkeep" && policy != PolicyUpkeep {
					assert.NoError(t, r.err, op)
					continue
				}
				assert.ErrorIs(t, r.err, app.ErrWrongThread, op)
				assert.Nil(t, r.leaks, op)
			}
		})
	}
}

func registerTransient(t *testing.T, f *fixture, w *window.Window) {
	t.Helper()
	s := &screen{name: "transient", handles: make([]widget.Handle, 4)}
	require.NoError(t, Register(f.v, s, w))
}

func TestCheck_OwnerReachability(t *testing.T) {
	f := newFixture(t, Options{OwnerGrace: 50 * time.Millisecond})

	w, _ := f.window("w", 0)
	held := &screen{name: "held", handles: make([]widget.Handle, 4)}
	require.NoError(t, Register(f.v, held, w))
	registerTransient(t, f, w)

	require.NoError(t, f.mgr.Push(w))
	require.NoError(t, f.mgr.Teardown())

	assert.Empty(t, f.check(), "within grace period")
	assert.Equal(t, 2, f.v.Pending())

	for i := 0; i < 6; i++ {
		f.tick()
	}
	runtime.GC()
	runtime.GC()

	leaks := f.check()
	require.Len(t, leaks, 1)
	assert.Equal(t, OwnerKind, leaks[0].Kind)
	assert.Contains(t, leaks[0].Owner, "#1")
	assert.Equal(t, 0, f.v.Pending())

	runtime.KeepAlive(held)
}

func TestReporters_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	rs := Reporters{a, nil, b}
	rs.ReportLeak(LeakDetected{Owner: "x"})
	assert.Len(t, a.leaks, 1)
	assert.Len(t, b.leaks, 1)
}
