package uiv1

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/layout"
	"github.com/jmylchreest/uiv1/internal/store"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

const frame = 50 * time.Millisecond

type recorder struct {
	leaks []cleanup.LeakDetected
}

func (r *recorder) ReportLeak(l cleanup.LeakDetected) {
	r.leaks = append(r.leaks, l)
}

type env struct {
	t    *testing.T
	core *app.Core
	rec  *recorder
	logs *bytes.Buffer
	s    *Subsystem
}

func newEnv(t *testing.T, cfg *config.Config) *env {
	t.Helper()
	core := app.NewCore(app.Options{})
	core.Bind()
	core.MarkReady()

	e := &env{t: t, core: core, rec: &recorder{}, logs: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(e.logs, nil))
	widgets := widget.NewTable(core, nil, logger)
	windows := window.NewManager(core, widgets, nil, window.Options{Logger: logger})
	v := cleanup.New(core, cleanup.Options{Logger: logger, Reporter: e.rec})
	v.Attach(windows)

	e.s = New(core, windows, v, Options{
		Logger: logger,
		Config: cfg,
		Getenv: func(string) string { return "" },
	})
	return e
}

func (e *env) window(name string, opts ...window.Option) *window.Window {
	e.t.Helper()
	root, err := e.s.Widgets().CreateRoot(widget.KindContainer, widget.Config{Label: name})
	require.NoError(e.t, err)
	return window.New(name, root, opts...)
}

// factory returns a CreateFunc whose windows can be restored by back
// navigation.
func (e *env) factory(name string) CreateFunc {
	var create CreateFunc
	create = func(opts ...window.Option) (*window.Window, error) {
		all := append([]window.Option{
			window.WithRestore(func() (*window.Window, error) { return create() }),
		}, opts...)
		return e.window(name, all...), nil
	}
	return create
}

func (e *env) tick(n int) {
	e.t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(e.t, e.core.Tick(frame))
	}
}

func (e *env) names() []string {
	var out []string
	for _, w := range e.s.Windows().Windows() {
		out = append(out, w.Name())
	}
	return out
}

func TestResolveScale(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        string
		want       Scale
		wantLog    bool
	}{
		{"explicit small", "small", "large", ScaleSmall, false},
		{"explicit large", "large", "", ScaleLarge, false},
		{"auto uses env", "auto", "small", ScaleSmall, false},
		{"empty uses env", "", "large", ScaleLarge, false},
		{"auto without env", "auto", "", ScaleMedium, false},
		{"invalid env", "auto", "huge", ScaleMedium, true},
		{"invalid config", "tiny", "", ScaleMedium, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			got := ResolveScale(tt.configured, func(key string) string {
				assert.Equal(t, ScaleEnv, key)
				return tt.env
			}, logger)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLog, bytes.Contains(buf.Bytes(), []byte("invalid ui scale")))
		})
	}
}

func TestRootElement_Names(t *testing.T) {
	all := RootElements()
	require.Len(t, all, 17)
	assert.Equal(t, "menu_button", MenuButton.String())
	assert.Equal(t, "chest_slot_4", ChestSlot4.String())

	for _, e := range all {
		got, err := ParseRootElement(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := ParseRootElement("jukebox")
	assert.Error(t, err)
}

func TestNew_BeforeReadyWarns(t *testing.T) {
	core := app.NewCore(app.Options{})
	core.Bind()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	windows := window.NewManager(core, widget.NewTable(core, nil, nil), nil, window.Options{})

	s := New(core, windows, nil, Options{Logger: logger})
	require.NotNil(t, s)
	assert.Contains(t, buf.String(), "before the app core is ready")
	assert.NoError(t, s.ShowWindow(windowOn(t, s, "main")))
}

func windowOn(t *testing.T, s *Subsystem, name string) *window.Window {
	t.Helper()
	root, err := s.Widgets().CreateRoot(widget.KindContainer, widget.Config{Label: name})
	require.NoError(t, err)
	return window.New(name, root)
}

func TestNew_DefaultTransitionFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transitions.Default = "slide-in"
	assert.Equal(t, transition.SlideIn, newEnv(t, cfg).s.defaultTransition)

	cfg.Transitions.Default = "wobble"
	e := newEnv(t, cfg)
	assert.Equal(t, transition.None, e.s.defaultTransition)
	assert.Contains(t, e.logs.String(), "invalid default transition")
}

func TestSubsystem_Navigation(t *testing.T) {
	e := newEnv(t, nil)

	require.NoError(t, e.s.ShowWindow(e.window("main")))
	require.NoError(t, e.s.ShowWindow(e.window("settings")))
	assert.Equal(t, []string{"main", "settings"}, e.names())

	require.NoError(t, e.s.ReplaceWindow(e.window("audio")))
	assert.Equal(t, []string{"main", "audio"}, e.names())

	require.NoError(t, e.s.DismissCurrent())
	e.tick(1)
	assert.Equal(t, []string{"main"}, e.names())

	// The bottom window stays.
	require.NoError(t, e.s.DismissCurrent())
	require.NoError(t, e.s.Back())
	assert.Equal(t, []string{"main"}, e.names())
}

func TestSubsystem_Focus(t *testing.T) {
	e := newEnv(t, nil)

	base := e.window("base")
	top := e.window("top")
	require.NoError(t, e.s.ShowWindow(base))
	require.NoError(t, e.s.ShowWindow(top))

	inTop, err := e.s.CreateWidget(widget.KindButton, top.Root(), widget.Config{Text: "ok"})
	require.NoError(t, err)
	inBase, err := e.s.CreateWidget(widget.KindButton, base.Root(), widget.Config{Text: "hidden"})
	require.NoError(t, err)

	assert.ErrorIs(t, e.s.SetFocus(inBase), ErrNotInActiveWindow)

	require.NoError(t, e.s.SetFocus(inTop))
	got, ok := e.s.FocusedWidget()
	require.True(t, ok)
	assert.Equal(t, inTop.Ref(), got.Ref())
	assert.Equal(t, inTop.String(), e.s.Snapshot().Focused)

	require.NoError(t, e.s.DismissCurrent())
	e.tick(1)
	require.False(t, inTop.Alive())

	_, ok = e.s.FocusedWidget()
	assert.False(t, ok, "focus on a destroyed widget must clear")
	assert.Empty(t, e.s.Snapshot().Focused)

	var stale *widget.StaleReferenceError
	assert.True(t, errors.As(e.s.SetFocus(inTop), &stale))

	require.NoError(t, e.s.SetFocus(inBase))
	require.NoError(t, e.s.SetFocus(widget.Handle{}))
	_, ok = e.s.FocusedWidget()
	assert.False(t, ok)
}

func TestSubsystem_CreateWidgetDeadParent(t *testing.T) {
	e := newEnv(t, nil)
	w := e.window("w")
	require.NoError(t, w.Root().Destroy())

	_, err := e.s.CreateWidget(widget.KindText, w.Root(), widget.Config{})
	assert.ErrorIs(t, err, widget.ErrInvalidParent)
}

func TestSubsystem_Overlays(t *testing.T) {
	e := newEnv(t, nil)

	require.NoError(t, e.s.SetPartyIconVisible(true))
	require.NoError(t, e.s.SetPartyWindowOpen(true))
	require.NoError(t, e.s.SetOnlineScoreUI(true))
	assert.Equal(t, Overlays{PartyIcon: true, PartyWindow: true, OnlineScore: true}, e.s.Overlays())

	require.NoError(t, e.s.SetPartyWindowOpen(false))
	assert.False(t, e.s.Snapshot().Overlays.PartyWindow)
}

func TestSubsystem_InputLock(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.s.ShowWindow(e.window("main")))
	require.NoError(t, e.s.ShowWindow(e.window("settings")))

	pressed := 0
	require.NoError(t, e.s.SetRootUICall(SettingsButton, func() { pressed++ }))

	require.NoError(t, e.s.LockAllInput())
	require.NoError(t, e.s.LockAllInput())
	assert.True(t, e.s.InputLocked())

	require.NoError(t, e.s.Back())
	assert.Equal(t, 2, e.s.Windows().Depth(), "back ignored while locked")
	assert.ErrorIs(t, e.s.PressRootUI(SettingsButton), ErrInputLocked)

	require.NoError(t, e.s.UnlockAllInput())
	assert.True(t, e.s.InputLocked())
	require.NoError(t, e.s.UnlockAllInput())
	require.NoError(t, e.s.UnlockAllInput())
	assert.False(t, e.s.InputLocked())
	assert.Contains(t, e.logs.String(), "without a matching lock")

	require.NoError(t, e.s.PressRootUI(SettingsButton))
	assert.Equal(t, 1, pressed)
	require.NoError(t, e.s.Back())
	assert.Equal(t, 1, e.s.Windows().Depth())
}

func TestSubsystem_RootUICalls(t *testing.T) {
	e := newEnv(t, nil)

	assert.ErrorIs(t, e.s.PressRootUI(InboxButton), ErrNoRootCall)

	var got []RootElement
	for _, el := range []RootElement{InboxButton, StoreButton} {
		require.NoError(t, e.s.SetRootUICall(el, func() { got = append(got, el) }))
	}
	require.NoError(t, e.s.PressRootUI(StoreButton))
	require.NoError(t, e.s.PressRootUI(InboxButton))
	assert.Equal(t, []RootElement{StoreButton, InboxButton}, got)

	require.NoError(t, e.s.SetRootUICall(StoreButton, nil))
	assert.ErrorIs(t, e.s.PressRootUI(StoreButton), ErrNoRootCall)
}

func TestSubsystem_BuildWindow(t *testing.T) {
	e := newEnv(t, nil)

	played := 0
	w, built, err := e.s.BuildWindow("main-menu", map[string]func(){
		"play": func() { played++ },
	})
	require.NoError(t, err)
	assert.Equal(t, "main-menu", w.Name())
	assert.Equal(t, transition.Fade, w.Transition())

	require.NoError(t, e.s.ShowWindow(w))
	play, ok := built.Get("play")
	require.True(t, ok)
	require.NoError(t, play.Activate())
	assert.Equal(t, 1, played)

	confirm, _, err := e.s.BuildWindow("confirm", nil, window.WithModal(false))
	require.NoError(t, err)
	assert.False(t, confirm.Modal())

	_, _, err = e.s.BuildWindow("no-such-layout", nil)
	assert.Error(t, err)
}

func TestSubsystem_WindowStates(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.s.ShowWindow(e.window("game")))
	require.NoError(t, e.s.ShowWindow(e.window("menu", window.WithModal(true))))

	require.NoError(t, e.s.SetWindowState("settings", map[string]string{"tab": "audio"}))
	assert.Equal(t, "audio", e.s.WindowState("settings")["tab"])

	st := e.s.UIState("menu")
	assert.Equal(t, "menu", st.Mode)
	assert.Equal(t, "medium", st.Scale)
	require.Len(t, st.Stack, 2)
	assert.Equal(t, "game", st.Stack[0].Name)
	assert.Equal(t, "suspended", st.Stack[0].State)
	assert.True(t, st.Stack[1].Modal)
	assert.Equal(t, "menu", st.Top())

	// The saved state is a copy.
	st.WindowStates["settings"]["tab"] = "video"
	assert.Equal(t, "audio", e.s.WindowState("settings")["tab"])

	fresh := newEnv(t, nil)
	require.NoError(t, fresh.s.RestoreWindowStates(st))
	assert.Equal(t, "video", fresh.s.WindowState("settings")["tab"])

	require.NoError(t, e.s.SetWindowState("settings", nil))
	assert.Nil(t, e.s.WindowState("settings"))
}

func TestSubsystem_AuxiliaryNav(t *testing.T) {
	t.Run("opens then toggles closed", func(t *testing.T) {
		e := newEnv(t, nil)
		main, err := e.factory("main")()
		require.NoError(t, err)
		require.NoError(t, e.s.ShowWindow(main))

		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		e.tick(1)
		top := e.s.Windows().Top()
		assert.Equal(t, "inbox", top.Name())
		assert.True(t, top.Auxiliary())
		require.NotNil(t, top.BackState())
		assert.Equal(t, "main", top.BackState().Name)

		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		e.tick(1)
		assert.Equal(t, []string{"main"}, e.names())
	})

	t.Run("sibling auxiliary keeps the origin", func(t *testing.T) {
		e := newEnv(t, nil)
		main, _ := e.factory("main")()
		require.NoError(t, e.s.ShowWindow(main))
		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		require.NoError(t, e.s.AuxiliaryNav("store", e.factory("store")))
		e.tick(1)

		top := e.s.Windows().Top()
		assert.Equal(t, "store", top.Name())
		require.Equal(t, 1, top.BackState().Depth())
		assert.Equal(t, "main", top.BackState().Name)

		require.NoError(t, e.s.Back())
		e.tick(1)
		assert.Equal(t, []string{"main"}, e.names())
	})

	t.Run("returns to auxiliary in history", func(t *testing.T) {
		e := newEnv(t, nil)
		main, _ := e.factory("main")()
		require.NoError(t, e.s.ShowWindow(main))
		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))

		settings, _ := e.factory("settings")()
		require.NoError(t, e.s.ReplaceWindow(settings))
		e.tick(1)
		require.Equal(t, 2, settings.BackState().Depth())

		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		e.tick(1)
		top := e.s.Windows().Top()
		assert.Equal(t, "inbox", top.Name())
		assert.True(t, top.Auxiliary())
		require.NotNil(t, top.BackState())
		assert.Equal(t, "main", top.BackState().Name)
	})

	t.Run("replaces other auxiliary in history", func(t *testing.T) {
		e := newEnv(t, nil)
		main, _ := e.factory("main")()
		require.NoError(t, e.s.ShowWindow(main))
		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		settings, _ := e.factory("settings")()
		require.NoError(t, e.s.ReplaceWindow(settings))

		require.NoError(t, e.s.AuxiliaryNav("store", e.factory("store")))
		e.tick(1)
		top := e.s.Windows().Top()
		assert.Equal(t, "store", top.Name())
		require.Equal(t, 1, top.BackState().Depth())
		assert.Equal(t, "main", top.BackState().Name)
	})

	t.Run("auxiliary from a top-level origin records nothing", func(t *testing.T) {
		e := newEnv(t, nil)
		require.NoError(t, e.s.ShowWindow(e.window("main")))
		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		require.NoError(t, e.s.AuxiliaryNav("store", e.factory("store")))
		e.tick(1)
		top := e.s.Windows().Top()
		assert.Equal(t, "store", top.Name())
		assert.Nil(t, top.BackState())
	})

	t.Run("empty stack pushes", func(t *testing.T) {
		e := newEnv(t, nil)
		require.NoError(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")))
		assert.Equal(t, []string{"inbox"}, e.names())
	})

	t.Run("locked input", func(t *testing.T) {
		e := newEnv(t, nil)
		require.NoError(t, e.s.LockAllInput())
		assert.ErrorIs(t, e.s.AuxiliaryNav("inbox", e.factory("inbox")), ErrInputLocked)
	})
}

func TestSubsystem_UpkeepReportsLeaks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cleanup.UpkeepInterval = config.Duration(100 * time.Millisecond)
	e := newEnv(t, cfg)
	require.NoError(t, e.s.Start())
	require.NoError(t, e.s.Start())

	other := e.window("other")
	first := e.window("first")
	require.NoError(t, e.s.ShowWindow(other))
	require.NoError(t, e.s.ShowWindow(first))

	kept, err := e.s.CreateWidget(widget.KindButton, other.Root(), widget.Config{})
	require.NoError(t, err)
	owner := &struct{ h widget.Handle }{h: kept}
	require.NoError(t, CleanupCheck(e.s, owner, first, kept))

	require.NoError(t, e.s.DismissCurrent())
	e.tick(3)

	require.Len(t, e.rec.leaks, 1)
	assert.Equal(t, "first", e.rec.leaks[0].Window)
	assert.Equal(t, kept.Ref(), e.rec.leaks[0].Handle)
	leaks, err := e.s.Check()
	require.NoError(t, err)
	assert.Empty(t, leaks, "already reported")
	assert.Equal(t, 1, e.s.Snapshot().Leaks)
}

func TestSubsystem_AppModeTeardown(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.s.Start())

	var destroyed []string
	onDestroyed := func(name string) window.Option {
		return window.OnDestroyed(func() { destroyed = append(destroyed, name) })
	}
	game := e.window("game", onDestroyed("game"))
	menu := e.window("menu", window.WithModal(true), onDestroyed("menu"))
	require.NoError(t, e.s.ShowWindow(game))
	require.NoError(t, e.s.ShowWindow(menu))
	require.Equal(t, window.Active, menu.State())
	require.Equal(t, window.Suspended, game.State())

	btn, err := e.s.CreateWidget(widget.KindButton, menu.Root(), widget.Config{})
	require.NoError(t, err)
	require.NoError(t, e.s.SetFocus(btn))
	require.NoError(t, e.s.SetPartyIconVisible(true))
	require.NoError(t, e.s.LockAllInput())

	require.NoError(t, e.s.Teardown())

	assert.Equal(t, []string{"menu", "game"}, destroyed)
	assert.Equal(t, window.Destroyed, menu.State())
	assert.Equal(t, window.Destroyed, game.State())
	assert.Equal(t, 0, e.s.Windows().Depth())
	assert.False(t, btn.Alive())
	assert.Equal(t, 0, e.s.Widgets().Count())
	_, ok := e.s.FocusedWidget()
	assert.False(t, ok)
	assert.Equal(t, Overlays{}, e.s.Overlays())
	assert.False(t, e.s.InputLocked())
	assert.True(t, e.s.TornDown())

	assert.ErrorIs(t, e.s.ShowWindow(e.window("late")), ErrTornDown)
	assert.ErrorIs(t, e.s.Back(), ErrTornDown)
	assert.ErrorIs(t, e.s.LockAllInput(), ErrTornDown)
	assert.ErrorIs(t, e.s.SetWindowState("settings", nil), ErrTornDown)
	assert.NoError(t, e.s.Teardown())
	e.tick(100)
}

func TestSubsystem_WrongThread(t *testing.T) {
	e := newEnv(t, nil)
	w := e.window("w")
	require.NoError(t, e.s.SetWindowState("settings", map[string]string{"tab": "audio"}))

	tests := []struct {
		name string
		call func() error
	}{
		{"show_window", func() error { return e.s.ShowWindow(w) }},
		{"lock_all_input", e.s.LockAllInput},
		{"unlock_all_input", e.s.UnlockAllInput},
		{"set_root_ui_call", func() error { return e.s.SetRootUICall(InboxButton, func() {}) }},
		{"set_window_state", func() error { return e.s.SetWindowState("settings", nil) }},
		{"restore_window_states", func() error {
			return e.s.RestoreWindowStates(&store.UIState{WindowStates: map[string]map[string]string{"x": {}}})
		}},
		{"set_layouts", func() error { return e.s.SetLayouts(layout.NewLoader("")) }},
		{"cleanup_check", func() error {
			_, err := e.s.Check()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errCh := make(chan error, 1)
			go func() { errCh <- tt.call() }()
			assert.ErrorIs(t, <-errCh, app.ErrWrongThread)
		})
	}

	// Nothing changed from the other goroutine.
	assert.False(t, e.s.InputLocked())
	assert.Equal(t, "audio", e.s.WindowState("settings")["tab"])
	assert.Nil(t, e.s.WindowState("x"))
	assert.ErrorIs(t, e.s.PressRootUI(InboxButton), ErrNoRootCall)
	assert.Equal(t, 0, e.s.Windows().Depth())
}
