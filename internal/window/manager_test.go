package window

import (
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/widget"
)

const frame = 50 * time.Millisecond

type testEnv struct {
	t        *testing.T
	core     *app.Core
	widgets  *widget.Table
	mgr      *Manager
	cosmetic []*CosmeticError
	cues     []string
}

type fakeSounds struct {
	env *testEnv
	err error
}

func (s *fakeSounds) Play(cue string) error {
	s.env.cues = append(s.env.cues, cue)
	return s.err
}

// newEnv builds a manager whose slide-in and fade take two frames and
// slide-out is missing.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	core := app.NewCore(app.Options{})
	core.Bind()

	lib := transition.NewLibrary(fstest.MapFS{
		"slide-in.toml": {Data: []byte("duration = \"100ms\"\neasing = \"linear\"\ndistance = 100.0\nsound = \"swish\"\n")},
		"fade.toml":     {Data: []byte("duration = \"100ms\"\neasing = \"linear\"\n")},
	}, "", nil)
	require.NoError(t, lib.Load())

	env := &testEnv{t: t, core: core, widgets: widget.NewTable(core, nil, nil)}
	env.mgr = NewManager(core, env.widgets, lib, Options{
		Sounds:            &fakeSounds{env: env},
		OnCosmeticFailure: func(e *CosmeticError) { env.cosmetic = append(env.cosmetic, e) },
	})
	return env
}

func (e *testEnv) window(name string, opts ...Option) *Window {
	e.t.Helper()
	root, err := e.widgets.CreateRoot(widget.KindContainer, widget.Config{Label: name})
	require.NoError(e.t, err)
	_, err = e.widgets.Create(widget.KindButton, root, widget.Config{Text: name})
	require.NoError(e.t, err)
	return New(name, root, opts...)
}

func (e *testEnv) tick(n int) {
	e.t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(e.t, e.core.Tick(frame))
	}
}

func (e *testEnv) names() []string {
	var out []string
	for _, w := range e.mgr.Windows() {
		out = append(out, w.Name())
	}
	return out
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "destroyed", Destroyed.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestManager_PushTransitionsToActive(t *testing.T) {
	env := newEnv(t)

	login := env.window("login", WithTransition(transition.SlideIn))
	require.NoError(t, env.mgr.Push(login))

	assert.Equal(t, Pending, login.State())
	assert.Nil(t, env.mgr.Active())
	off, err := login.Root().Offset()
	require.NoError(t, err)
	assert.InDelta(t, 100, off.X, 1e-9, "starts off-screen")

	env.tick(1)
	assert.Equal(t, Pending, login.State())
	assert.InDelta(t, 0.5, login.Progress(), 1e-9)

	env.tick(1)
	assert.Equal(t, Active, login.State())
	assert.Same(t, login, env.mgr.Active())
	off, _ = login.Root().Offset()
	assert.InDelta(t, 0, off.X, 1e-9)

	assert.Equal(t, []string{"swish"}, env.cues)
	assert.Empty(t, env.cosmetic)
}

func TestManager_LoginSettingsScenario(t *testing.T) {
	env := newEnv(t)

	login := env.window("login", WithTransition(transition.Fade))
	settings := env.window("settings", WithTransition(transition.Fade))

	require.NoError(t, env.mgr.Push(login))
	env.tick(2)
	require.NoError(t, env.mgr.Push(settings))
	assert.Equal(t, Suspended, login.State())
	env.tick(2)
	assert.Equal(t, Active, settings.State())

	require.NoError(t, env.mgr.Pop())
	assert.Equal(t, []string{"login"}, env.names())
	assert.Equal(t, Closing, settings.State())
	assert.Equal(t, Active, login.State())

	env.tick(2)
	assert.Equal(t, Destroyed, settings.State())
	assert.False(t, settings.Root().Alive())
	assert.True(t, login.Root().Alive())
	assert.Equal(t, Active, login.State())
	assert.Empty(t, env.mgr.Closing())
}

func TestManager_PopBaselineIsNoop(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.mgr.Pop(), "empty stack")
	assert.Equal(t, 0, env.mgr.Depth())

	only := env.window("only")
	require.NoError(t, env.mgr.Push(only))
	require.NoError(t, env.mgr.Pop())
	env.tick(1)
	assert.Equal(t, 1, env.mgr.Depth())
	assert.Equal(t, Active, only.State())
	assert.True(t, only.Root().Alive())
}

func TestManager_DepthNeverNegative(t *testing.T) {
	env := newEnv(t)

	ops := []string{"pop", "push", "pop", "pop", "push", "push", "pop", "push", "pop", "pop", "pop"}
	for i, op := range ops {
		switch op {
		case "push":
			require.NoError(t, env.mgr.Push(env.window("w", WithTransition(transition.Fade))))
		case "pop":
			require.NoError(t, env.mgr.Pop())
		}
		assert.GreaterOrEqual(t, env.mgr.Depth(), 0, "after op %d", i)
		env.tick(1)
	}
	assert.Equal(t, 1, env.mgr.Depth())
}

func TestManager_ReplaceNeverEmpty(t *testing.T) {
	env := newEnv(t)

	minDepth := 99
	env.core.OnTick(func(time.Duration) {
		minDepth = min(minDepth, env.mgr.Depth())
	})

	menu := env.window("menu", WithTransition(transition.SlideIn))
	require.NoError(t, env.mgr.Replace(menu), "replace on empty stack pushes")
	env.tick(2)

	game := env.window("game", WithTransition(transition.SlideIn))
	require.NoError(t, env.mgr.Replace(game))
	assert.Equal(t, 1, env.mgr.Depth())
	assert.Equal(t, Closing, menu.State())

	env.tick(1)
	// Both halves of the combined transition are at the same point.
	inOff, _ := game.Root().Offset()
	assert.InDelta(t, 50, inOff.X, 1e-9)

	env.tick(1)
	assert.Equal(t, Active, game.State())
	assert.Equal(t, Destroyed, menu.State())
	assert.Equal(t, 1, minDepth)
	assert.Equal(t, []string{"game"}, env.names())
}

func TestManager_ReplaceMatchesPopPush(t *testing.T) {
	a := newEnv(t)
	require.NoError(t, a.mgr.Push(a.window("base")))
	require.NoError(t, a.mgr.Push(a.window("top")))
	require.NoError(t, a.mgr.Replace(a.window("next")))
	a.tick(3)

	b := newEnv(t)
	require.NoError(t, b.mgr.Push(b.window("base")))
	require.NoError(t, b.mgr.Push(b.window("top")))
	require.NoError(t, b.mgr.Pop())
	require.NoError(t, b.mgr.Push(b.window("next")))
	b.tick(3)

	assert.Equal(t, b.names(), a.names())
	assert.Equal(t, b.widgets.Count(), a.widgets.Count())
}

func TestManager_MissingAssetStillNavigates(t *testing.T) {
	env := newEnv(t)

	// slide-out is not in the library; its reverse is used for popping.
	w1 := env.window("one")
	w2 := env.window("two", WithTransition(transition.SlideOut))
	require.NoError(t, env.mgr.Push(w1))
	assert.Equal(t, Active, w1.State(), "no transition activates at once")

	require.NoError(t, env.mgr.Push(w2))
	assert.Equal(t, Active, w2.State())
	require.Len(t, env.cosmetic, 1)
	assert.ErrorIs(t, env.cosmetic[0], transition.ErrTransitionAsset)
	assert.Equal(t, "two", env.cosmetic[0].Window)

	require.NoError(t, env.mgr.Pop())
	env.tick(2)
	assert.Equal(t, Destroyed, w2.State())
	assert.Len(t, env.cosmetic, 1, "popping plays slide-in reversed")
}

func TestManager_FailingSoundIsCosmetic(t *testing.T) {
	env := newEnv(t)
	env.mgr.sounds = &fakeSounds{env: env, err: errors.New("no device")}

	w := env.window("w", WithTransition(transition.SlideIn))
	require.NoError(t, env.mgr.Push(w))
	env.tick(2)

	assert.Equal(t, Active, w.State())
	require.Len(t, env.cosmetic, 1)
	assert.Equal(t, "push_window", env.cosmetic[0].Op)
}

func TestManager_InterruptedPushFiresOnce(t *testing.T) {
	env := newEnv(t)

	activations := 0
	first := env.window("first", WithTransition(transition.SlideIn), OnActivated(func() { activations++ }))
	second := env.window("second", WithTransition(transition.SlideIn))

	require.NoError(t, env.mgr.Push(first))
	env.tick(1)
	require.NoError(t, env.mgr.Push(second))

	assert.Equal(t, 1, activations, "forced to Active once")
	assert.Equal(t, Suspended, first.State())
	off, _ := first.Root().Offset()
	assert.InDelta(t, 0, off.X, 1e-9, "interrupted effect jumps to its end")

	env.tick(4)
	assert.Equal(t, 1, activations)

	require.NoError(t, env.mgr.Pop())
	assert.Equal(t, 2, activations, "activated again when uncovered")
}

func TestManager_InterruptedPopDestroysOnce(t *testing.T) {
	env := newEnv(t)

	destroyed := map[string]int{}
	mk := func(name string) *Window {
		return env.window(name, WithTransition(transition.Fade), OnDestroyed(func() { destroyed[name]++ }))
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	for _, w := range []*Window{a, b, c} {
		require.NoError(t, env.mgr.Push(w))
	}
	env.tick(2)

	require.NoError(t, env.mgr.Pop())
	env.tick(1)
	assert.Equal(t, Closing, c.State())

	require.NoError(t, env.mgr.Pop())
	env.tick(3)

	assert.Equal(t, Destroyed, c.State())
	assert.Equal(t, Destroyed, b.State())
	assert.Equal(t, map[string]int{"b": 1, "c": 1}, destroyed)
	assert.Equal(t, []string{"a"}, env.names())
}

func TestManager_Back(t *testing.T) {
	t.Run("handler consumes", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, env.mgr.Push(env.window("base")))
		calls := 0
		require.NoError(t, env.mgr.Push(env.window("top", WithOnBack(func() bool { calls++; return true }))))

		require.NoError(t, env.mgr.Back())
		assert.Equal(t, 1, calls)
		assert.Equal(t, 2, env.mgr.Depth())
	})

	t.Run("unhandled pops", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, env.mgr.Push(env.window("base")))
		require.NoError(t, env.mgr.Push(env.window("top", WithOnBack(func() bool { return false }))))

		require.NoError(t, env.mgr.Back())
		assert.Equal(t, []string{"base"}, env.names())
	})

	t.Run("ignored while transitioning", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, env.mgr.Push(env.window("base")))
		require.NoError(t, env.mgr.Push(env.window("top", WithTransition(transition.Fade))))

		require.NoError(t, env.mgr.Back())
		assert.Equal(t, 2, env.mgr.Depth())
	})

	t.Run("bottom window restores back state", func(t *testing.T) {
		env := newEnv(t)
		var restore RestoreFunc
		restore = func() (*Window, error) {
			return env.window("main-menu", WithRestore(restore)), nil
		}

		menu, err := restore()
		require.NoError(t, err)
		require.NoError(t, env.mgr.Push(menu))
		inbox := env.window("inbox", WithRestore(func() (*Window, error) { return env.window("inbox"), nil }))
		require.NoError(t, env.mgr.Replace(inbox))
		settings := env.window("settings")
		require.NoError(t, env.mgr.Replace(settings))
		env.tick(1)

		require.NotNil(t, settings.BackState())
		assert.Equal(t, "inbox", settings.BackState().Name)
		assert.Equal(t, 2, settings.BackState().Depth())

		require.NoError(t, env.mgr.Back())
		env.tick(1)
		assert.Equal(t, []string{"inbox"}, env.names())
		assert.Equal(t, Destroyed, settings.State())

		require.NoError(t, env.mgr.Back())
		env.tick(1)
		assert.Equal(t, []string{"main-menu"}, env.names())

		require.NoError(t, env.mgr.Back())
		assert.Equal(t, []string{"main-menu"}, env.names(), "end of the chain")
	})
}

func TestManager_TeardownTopFirst(t *testing.T) {
	env := newEnv(t)

	var order []string
	mk := func(name string, opts ...Option) *Window {
		opts = append(opts, OnDestroyed(func() { order = append(order, name) }))
		return env.window(name, opts...)
	}
	game := mk("game")
	menu := mk("menu", WithModal(true), WithTransition(transition.Fade))
	require.NoError(t, env.mgr.Push(game))
	require.NoError(t, env.mgr.Push(menu))
	env.tick(2)
	require.Equal(t, Suspended, game.State())
	require.Equal(t, Active, menu.State())

	var observed []string
	env.mgr.OnWindowDestroyed(func(w *Window) { observed = append(observed, w.Name()) })

	require.NoError(t, env.mgr.Teardown())
	assert.Equal(t, []string{"menu", "game"}, order)
	assert.Equal(t, order, observed)
	assert.Equal(t, 0, env.mgr.Depth())
	assert.Equal(t, 0, env.widgets.Count())

	env.tick(1)
	assert.Equal(t, []string{"menu", "game"}, order, "no double destroy")
}

func TestManager_TeardownIncludesClosing(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.mgr.Push(env.window("base")))
	top := env.window("top", WithTransition(transition.Fade))
	require.NoError(t, env.mgr.Push(top))
	env.tick(2)
	require.NoError(t, env.mgr.Pop())
	require.Equal(t, Closing, top.State())

	require.NoError(t, env.mgr.Teardown())
	assert.Equal(t, Destroyed, top.State())
	assert.Empty(t, env.mgr.Closing())
	env.tick(2)
}

func TestManager_Errors(t *testing.T) {
	env := newEnv(t)

	w := env.window("w")
	require.NoError(t, env.mgr.Push(w))
	assert.ErrorIs(t, env.mgr.Push(w), ErrAlreadyShown)

	dead := env.window("dead")
	require.NoError(t, dead.Root().Destroy())
	assert.ErrorIs(t, env.mgr.Push(dead), widget.ErrStaleReference)
	assert.ErrorIs(t, env.mgr.Replace(dead), widget.ErrStaleReference)

	errs := make(chan error, 4)
	other := env.window("other")
	go func() {
		errs <- env.mgr.Push(other)
		errs <- env.mgr.Pop()
		errs <- env.mgr.Back()
		errs <- env.mgr.Teardown()
	}()
	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, <-errs, app.ErrWrongThread)
	}
	assert.Equal(t, 1, env.mgr.Depth())
}

func TestManager_RootOwnedOnce(t *testing.T) {
	env := newEnv(t)
	base := env.window("base")
	require.NoError(t, env.mgr.Push(base))
	env.tick(1)
	children, err := base.Root().Children()
	require.NoError(t, err)
	require.Len(t, children, 1)
	button := children[0]

	tests := []struct {
		name string
		root widget.Handle
	}{
		{"shared root", base.Root()},
		{"borrowed child", button},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.name, tt.root)
			assert.ErrorIs(t, env.mgr.Push(w), ErrAlreadyOwned)
			assert.ErrorIs(t, env.mgr.Replace(w), ErrAlreadyOwned)
			assert.Equal(t, Pending, w.State())
			assert.Zero(t, w.ID())
		})
	}

	// A root that was made a child of another tree is not a root.
	outer, err := env.widgets.CreateRoot(widget.KindContainer, widget.Config{})
	require.NoError(t, err)
	inner, err := env.widgets.Create(widget.KindContainer, outer, widget.Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, env.mgr.Push(New("inner", inner)), ErrAlreadyOwned)

	// Rejections leave the stack intact: popping the last real push
	// never touches base's widgets.
	require.NoError(t, env.mgr.Push(env.window("top")))
	env.tick(2)
	require.NoError(t, env.mgr.Pop())
	env.tick(4)
	assert.Equal(t, 1, env.mgr.Depth())
	assert.Equal(t, Active, base.State())
	assert.True(t, base.Root().Alive())
	assert.True(t, button.Alive())
	children, err = base.Root().Children()
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestManager_SnapshotAndClose(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.mgr.Push(env.window("base")))
	require.NoError(t, env.mgr.Push(env.window("top", WithTransition(transition.Fade), WithModal(true))))

	snap := env.mgr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "active", snap[0].State)
	assert.Equal(t, "pending", snap[1].State)
	assert.True(t, snap[1].Modal)
	assert.Equal(t, "fade", snap[1].Transition)
	assert.NotZero(t, snap[1].ID)

	env.mgr.Close()
	env.tick(5)
	assert.Equal(t, Pending, env.mgr.Top().State(), "closed manager no longer advances")
}

func TestManager_RestoreBackState(t *testing.T) {
	t.Run("skips back handler", func(t *testing.T) {
		env := newEnv(t)
		handled := 0
		menu := env.window("main-menu", WithRestore(func() (*Window, error) { return env.window("main-menu"), nil }))
		require.NoError(t, env.mgr.Push(menu))
		settings := env.window("settings", WithOnBack(func() bool { handled++; return true }))
		require.NoError(t, env.mgr.Replace(settings))
		env.tick(1)

		require.NoError(t, env.mgr.RestoreBackState())
		env.tick(1)
		assert.Zero(t, handled)
		assert.Equal(t, []string{"main-menu"}, env.names())
	})

	t.Run("nothing to restore", func(t *testing.T) {
		env := newEnv(t)
		assert.ErrorIs(t, env.mgr.RestoreBackState(), ErrNoBackState)
		require.NoError(t, env.mgr.Push(env.window("alone")))
		assert.ErrorIs(t, env.mgr.RestoreBackState(), ErrNoBackState)
	})

	t.Run("auxiliary flag carries over", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, env.mgr.Push(env.window("store")))
		w := env.window("account", WithBackState(&BackState{
			Name:      "settings",
			Auxiliary: true,
			Restore:   func() (*Window, error) { return env.window("settings"), nil },
		}))
		require.NoError(t, env.mgr.Replace(w))

		require.NoError(t, env.mgr.RestoreBackState())
		top := env.mgr.Top()
		assert.Equal(t, "settings", top.Name())
		assert.True(t, top.Auxiliary())
		assert.Nil(t, top.BackState())
	})
}

func TestManager_TopLevelRecordsNoBackState(t *testing.T) {
	env := newEnv(t)
	menu := env.window("main-menu", WithRestore(func() (*Window, error) { return env.window("main-menu"), nil }))
	require.NoError(t, env.mgr.Push(menu))

	w := env.window("game", WithTopLevel())
	require.NoError(t, env.mgr.Replace(w))
	assert.Nil(t, w.BackState())

	w.SetBackState(&BackState{Name: "x"})
	assert.Equal(t, 1, w.BackState().Depth())
}
