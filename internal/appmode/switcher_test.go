package appmode

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/store"
	"github.com/jmylchreest/uiv1/internal/uiv1"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

type recorder struct {
	leaks []cleanup.LeakDetected
}

func (r *recorder) ReportLeak(l cleanup.LeakDetected) {
	r.leaks = append(r.leaks, l)
}

type env struct {
	t       *testing.T
	core    *app.Core
	windows *window.Manager
	rec     *recorder
	built   []*uiv1.Subsystem
}

func newEnv(t *testing.T) *env {
	t.Helper()
	core := app.NewCore(app.Options{})
	core.Bind()
	core.MarkReady()
	e := &env{
		t:       t,
		core:    core,
		windows: window.NewManager(core, widget.NewTable(core, nil, nil), nil, window.Options{}),
		rec:     &recorder{},
	}
	return e
}

func (e *env) factory() Factory {
	v := cleanup.New(e.core, cleanup.Options{Reporter: e.rec})
	v.Attach(e.windows)
	return func() *uiv1.Subsystem {
		ui := uiv1.New(e.core, e.windows, v, uiv1.Options{Getenv: func(string) string { return "" }})
		e.built = append(e.built, ui)
		return ui
	}
}

func (e *env) tick(n int) {
	e.t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(e.t, e.core.Tick(50*time.Millisecond))
	}
}

// stackMode pushes one window per name, bottom first.
type stackMode struct {
	name        string
	windows     []string
	state       map[string]string
	err         error
	destroyed   *[]string
	activated   int
	deactivated int
	restored    map[string]string
}

func (m *stackMode) Name() string { return m.name }

func (m *stackMode) OnActivate(ui *uiv1.Subsystem) error {
	m.activated++
	m.restored = ui.WindowState("prefs")
	for _, name := range m.windows {
		root, err := ui.Widgets().CreateRoot(widget.KindContainer, widget.Config{Label: name})
		if err != nil {
			return err
		}
		opts := []window.Option{}
		if m.destroyed != nil {
			opts = append(opts, window.OnDestroyed(func() { *m.destroyed = append(*m.destroyed, name) }))
		}
		if err := ui.ShowWindow(window.New(name, root, opts...)); err != nil {
			return err
		}
	}
	if m.state != nil {
		if err := ui.SetWindowState("prefs", m.state); err != nil {
			return err
		}
	}
	return m.err
}

func (m *stackMode) OnDeactivate(*uiv1.Subsystem) {
	m.deactivated++
}

func TestSwitcher_TearsDownTopFirst(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "ui-state.yaml")

	var destroyed []string
	var switched []string
	sw := NewSwitcher(e.core, e.factory(), Options{
		StatePath: path,
		OnSwitch:  func(m Mode, _ *uiv1.Subsystem) { switched = append(switched, m.Name()) },
	})

	// The menu sits above the suspended game.
	menu := &stackMode{name: "menu", windows: []string{"game", "menu"}, destroyed: &destroyed}
	other := &stackMode{name: "lobby", windows: []string{"lobby"}}

	require.NoError(t, sw.Switch(menu))
	first := sw.UI()
	require.Equal(t, 2, e.windows.Depth())
	assert.Equal(t, window.Active, e.windows.Top().State())

	require.NoError(t, sw.Switch(other))

	assert.Equal(t, []string{"menu", "game"}, destroyed)
	assert.True(t, first.TornDown())
	assert.Equal(t, 1, menu.deactivated)
	assert.Equal(t, other, sw.Current())
	assert.NotSame(t, first, sw.UI())
	assert.Equal(t, []string{"menu", "lobby"}, switched)
	require.Equal(t, 1, e.windows.Depth())
	assert.Equal(t, "lobby", e.windows.Top().Name())

	saved, err := store.LoadUIState(path)
	require.NoError(t, err)
	assert.Equal(t, "menu", saved.Mode)
	require.Len(t, saved.Stack, 2)
	assert.Equal(t, "game", saved.Stack[0].Name)
	assert.Equal(t, "suspended", saved.Stack[0].State)
	assert.Equal(t, "active", saved.Stack[1].State)
}

func TestSwitcher_RestoresWindowStates(t *testing.T) {
	e := newEnv(t)
	sw := NewSwitcher(e.core, e.factory(), Options{})

	menu := &stackMode{name: "menu", windows: []string{"menu"}, state: map[string]string{"tab": "audio"}}
	game := &stackMode{name: "game", windows: []string{"hud"}}

	require.NoError(t, sw.Switch(menu))
	assert.Nil(t, menu.restored)
	require.NoError(t, sw.Switch(game))
	assert.Nil(t, game.restored)

	menu.state = nil
	require.NoError(t, sw.Switch(menu))
	assert.Equal(t, map[string]string{"tab": "audio"}, menu.restored)

	st, ok := sw.Saved("game")
	require.True(t, ok)
	assert.Equal(t, "hud", st.Top())
}

func TestSwitcher_LoadsStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui-state.yaml")
	st := store.DefaultUIState()
	st.Mode = "menu"
	st.WindowStates["prefs"] = map[string]string{"volume": "7"}
	require.NoError(t, store.SaveUIState(path, st))

	e := newEnv(t)
	sw := NewSwitcher(e.core, e.factory(), Options{StatePath: path})

	game := &stackMode{name: "game", windows: []string{"hud"}}
	require.NoError(t, sw.Switch(game))
	assert.Nil(t, game.restored, "state file belongs to another mode")

	e2 := newEnv(t)
	sw2 := NewSwitcher(e2.core, e2.factory(), Options{StatePath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, sw2.Switch(&stackMode{name: "menu", windows: []string{"m"}}))

	e3 := newEnv(t)
	sw3 := NewSwitcher(e3.core, e3.factory(), Options{StatePath: path})
	menu := &stackMode{name: "menu", windows: []string{"m"}}
	require.NoError(t, sw3.Switch(menu))
	assert.Equal(t, "7", menu.restored["volume"])
}

func TestSwitcher_FailedActivation(t *testing.T) {
	e := newEnv(t)
	sw := NewSwitcher(e.core, e.factory(), Options{})

	boom := errors.New("boom")
	bad := &stackMode{name: "bad", windows: []string{"a", "b"}, err: boom}
	err := sw.Switch(bad)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, sw.Current())
	assert.Nil(t, sw.UI())
	assert.Equal(t, 0, e.windows.Depth())
	require.Len(t, e.built, 1)
	assert.True(t, e.built[0].TornDown())

	assert.Error(t, sw.Switch(nil))
}

func TestSwitcher_Shutdown(t *testing.T) {
	e := newEnv(t)
	sw := NewSwitcher(e.core, e.factory(), Options{})
	m := &stackMode{name: "menu", windows: []string{"menu"}}

	require.NoError(t, sw.Shutdown())
	require.NoError(t, sw.Switch(m))
	require.NoError(t, sw.Shutdown())
	assert.Nil(t, sw.Current())
	assert.Equal(t, 1, m.deactivated)
	assert.Equal(t, 0, e.windows.Depth())
	require.NoError(t, sw.Shutdown())
	e.tick(1)

	errCh := make(chan error, 1)
	go func() { errCh <- sw.Switch(m) }()
	assert.ErrorIs(t, <-errCh, app.ErrWrongThread)
}
