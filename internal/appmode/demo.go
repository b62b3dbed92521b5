package appmode

import (
	"log/slog"
	"strconv"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/layout"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/uiv1"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

// Mode names used by the demo.
const (
	MenuName = "menu"
	GameName = "game"
)

var settingsToggles = []string{"sound", "music", "tips"}

// screen is the object built around a window's widgets; it is registered
// with the cleanup verifier.
type screen struct {
	name    string
	widgets []widget.Handle
}

// Demo is a small two-mode app: a main menu with auxiliary inbox and
// settings windows, and a game HUD that can return to the menu.
type Demo struct {
	core     *app.Core
	switcher *Switcher
	logger   *slog.Logger
	quit     func()

	Menu *Menu
	Game *Game
}

// NewDemo wires the demo modes to switcher. quit runs when the menu's quit
// button is pressed.
func NewDemo(core *app.Core, switcher *Switcher, quit func(), logger *slog.Logger) *Demo {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Demo{core: core, switcher: switcher, logger: logger, quit: quit}
	d.Menu = &Menu{demo: d}
	d.Game = &Game{demo: d}
	return d
}

// Request switches to m on the next tick, so widget callbacks never tear
// down the window they belong to while it runs. Input on the current UI is
// locked until the switch runs.
func (d *Demo) Request(m Mode) {
	ui := d.switcher.UI()
	if ui != nil {
		if err := ui.LockAllInput(); err != nil {
			d.logger.Warn("input lock failed", "mode", m.Name(), "error", err)
			ui = nil
		}
	}
	d.core.PushCall(func() {
		err := d.switcher.Switch(m)
		// A torn down subsystem drops its locks with it.
		if ui != nil && !ui.TornDown() {
			if uerr := ui.UnlockAllInput(); uerr != nil {
				d.logger.Warn("input unlock failed", "error", uerr)
			}
		}
		if err != nil {
			d.logger.Error("app mode switch failed", "mode", m.Name(), "error", err)
		}
	})
}

func (d *Demo) back(ui *uiv1.Subsystem) func() {
	return func() {
		if err := ui.Back(); err != nil {
			d.logger.Warn("back failed", "error", err)
		}
	}
}

// auxiliary returns a restorable CreateFunc for a toolbar window built from
// the named layout.
func (d *Demo) auxiliary(ui *uiv1.Subsystem, name string) uiv1.CreateFunc {
	var create uiv1.CreateFunc
	create = func(opts ...window.Option) (*window.Window, error) {
		var built *layout.Built
		actions := map[string]func(){"back": d.back(ui)}
		if name == "settings" {
			actions["back"] = func() {
				if err := saveToggles(ui, built); err != nil {
					d.logger.Warn("saving settings failed", "error", err)
				}
				d.back(ui)()
			}
		}

		all := append([]window.Option{
			window.WithRestore(func() (*window.Window, error) { return create() }),
		}, opts...)
		w, b, err := ui.BuildWindow(name, actions, all...)
		if err != nil {
			return nil, err
		}
		built = b
		if name == "settings" {
			loadToggles(ui, built)
		}
		if err := uiv1.CleanupCheck(ui, &screen{name: name, widgets: built.Handles()}, w, built.Handles()...); err != nil {
			return nil, err
		}
		return w, nil
	}
	return create
}

func (d *Demo) nav(ui *uiv1.Subsystem, name string) func() {
	return func() {
		if err := ui.AuxiliaryNav(name, d.auxiliary(ui, name)); err != nil {
			d.logger.Warn("auxiliary navigation failed", "window", name, "error", err)
		}
	}
}

func loadToggles(ui *uiv1.Subsystem, built *layout.Built) {
	state := ui.WindowState("settings")
	for _, id := range settingsToggles {
		v, ok := state[id]
		if !ok {
			continue
		}
		h, found := built.Get(id)
		if !found {
			continue
		}
		checked, _ := strconv.ParseBool(v)
		_ = h.SetChecked(checked)
	}
}

func saveToggles(ui *uiv1.Subsystem, built *layout.Built) error {
	if built == nil {
		return nil
	}
	state := make(map[string]string, len(settingsToggles))
	for _, id := range settingsToggles {
		h, ok := built.Get(id)
		if !ok {
			continue
		}
		if checked, err := h.Checked(); err == nil {
			state[id] = strconv.FormatBool(checked)
		}
	}
	return ui.SetWindowState("settings", state)
}

// Menu is the main menu mode.
type Menu struct {
	demo *Demo
}

func (m *Menu) Name() string { return MenuName }

func (m *Menu) OnActivate(ui *uiv1.Subsystem) error {
	d := m.demo
	var create uiv1.CreateFunc
	create = func(opts ...window.Option) (*window.Window, error) {
		all := append([]window.Option{
			window.WithRestore(func() (*window.Window, error) { return create() }),
		}, opts...)
		w, built, err := ui.BuildWindow("main-menu", map[string]func(){
			"play":     func() { d.Request(d.Game) },
			"settings": d.nav(ui, "settings"),
			"inbox":    d.nav(ui, "inbox"),
			"quit": func() {
				if d.quit != nil {
					d.quit()
				}
			},
		}, all...)
		if err != nil {
			return nil, err
		}
		if err := uiv1.CleanupCheck(ui, &screen{name: "main-menu", widgets: built.Handles()}, w, built.Handles()...); err != nil {
			return nil, err
		}
		return w, nil
	}

	w, err := create()
	if err != nil {
		return err
	}
	if err := ui.ShowWindow(w); err != nil {
		return err
	}

	if err := ui.SetRootUICall(uiv1.InboxButton, d.nav(ui, "inbox")); err != nil {
		return err
	}
	if err := ui.SetRootUICall(uiv1.SettingsButton, d.nav(ui, "settings")); err != nil {
		return err
	}
	return ui.SetPartyIconVisible(true)
}

func (m *Menu) OnDeactivate(ui *uiv1.Subsystem) {
	m.demo.logger.Debug("leaving menu", "windows", ui.Windows().Depth())
}

// Game is the in-game mode: a HUD with a menu button that confirms before
// returning to the main menu.
type Game struct {
	demo  *Demo
	score int
}

func (g *Game) Name() string { return GameName }

func (g *Game) OnActivate(ui *uiv1.Subsystem) error {
	root, err := ui.Widgets().CreateRoot(widget.KindContainer, widget.Config{Label: "hud"})
	if err != nil {
		return err
	}
	hud := window.New("hud", root, window.WithTransition(transition.Fade), window.WithOnBack(func() bool {
		g.confirmQuit(ui)
		return true
	}))

	col, err := ui.CreateWidget(widget.KindColumn, root, widget.Config{})
	if err != nil {
		return err
	}
	score, err := ui.CreateWidget(widget.KindText, col, widget.Config{Text: g.scoreText()})
	if err != nil {
		return err
	}
	menu, err := ui.CreateWidget(widget.KindButton, col, widget.Config{
		Text:       "Menu",
		OnActivate: func() { g.confirmQuit(ui) },
	})
	if err != nil {
		return err
	}

	if err := ui.ShowWindow(hud); err != nil {
		return err
	}
	if err := uiv1.CleanupCheck(ui, &screen{name: "hud", widgets: []widget.Handle{score, menu}}, hud, score, menu); err != nil {
		return err
	}

	if err := ui.SetRootUICall(uiv1.MenuButton, func() { g.confirmQuit(ui) }); err != nil {
		return err
	}
	err = ui.SetRootUICall(uiv1.TrophyMeter, func() {
		g.score++
		_ = score.SetText(g.scoreText())
	})
	if err != nil {
		return err
	}
	return ui.SetOnlineScoreUI(true)
}

func (g *Game) OnDeactivate(ui *uiv1.Subsystem) {
	g.demo.logger.Debug("leaving game", "score", g.score)
}

func (g *Game) scoreText() string {
	return "Score: " + strconv.Itoa(g.score)
}

func (g *Game) confirmQuit(ui *uiv1.Subsystem) {
	d := g.demo
	if top := ui.Windows().Top(); top != nil && top.Name() == "confirm" {
		return
	}
	w, _, err := ui.BuildWindow("confirm", map[string]func(){
		"cancel": func() { _ = ui.DismissCurrent() },
		"ok":     func() { d.Request(d.Menu) },
	})
	if err != nil {
		d.logger.Warn("confirm window failed", "error", err)
		return
	}
	if err := ui.ShowWindow(w); err != nil {
		d.logger.Warn("confirm window failed", "error", err)
	}
}
