// Package uiv1 is the per-app-mode UI subsystem: it owns the window stack,
// the focused widget, overlay flags and the cleanup verifier's upkeep, and
// exposes them to app-mode code.
package uiv1

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/layout"
	"github.com/jmylchreest/uiv1/internal/store"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

var (
	// ErrTornDown is returned by every call made after Teardown.
	ErrTornDown = errors.New("ui subsystem torn down")
	// ErrNotInActiveWindow is returned when focusing a widget outside the
	// active window.
	ErrNotInActiveWindow = errors.New("widget not in active window")
	// ErrInputLocked is returned for navigation attempted while input is
	// locked.
	ErrInputLocked = errors.New("input locked")
	// ErrNoRootCall is returned when a root element has no call set.
	ErrNoRootCall = errors.New("no root ui call")
)

// Options configures a Subsystem.
type Options struct {
	Logger  *slog.Logger
	Config  *config.Config
	Layouts *layout.Loader
	// Getenv reads the environment; os.Getenv when nil.
	Getenv func(string) string
	// DefaultTransition is used by BuildWindow when the template names
	// none. It overrides the configured default when set.
	DefaultTransition transition.Kind
}

// Overlays are the flags for UI drawn above the window stack.
type Overlays struct {
	PartyIcon   bool `yaml:"party_icon" json:"party_icon"`
	PartyWindow bool `yaml:"party_window" json:"party_window"`
	OnlineScore bool `yaml:"online_score" json:"online_score"`
}

// Snapshot is a read-only view of the subsystem.
type Snapshot struct {
	Mode       string        `yaml:"mode,omitempty" json:"mode,omitempty"`
	Scale      string        `yaml:"scale" json:"scale"`
	Windows    []window.Info `yaml:"windows" json:"windows"`
	Focused    string        `yaml:"focused,omitempty" json:"focused,omitempty"`
	Overlays   Overlays      `yaml:"overlays" json:"overlays"`
	InputLocks int           `yaml:"input_locks" json:"input_locks"`
	Widgets    int           `yaml:"widgets" json:"widgets"`
	Pending    int           `yaml:"pending_checks" json:"pending_checks"`
	Leaks      int           `yaml:"leaks" json:"leaks"`
	AppTime    time.Duration `yaml:"app_time" json:"app_time"`
}

// Subsystem is the UI state of one app mode. All methods must be called on
// the logic thread.
type Subsystem struct {
	core     *app.Core
	widgets  *widget.Table
	windows  *window.Manager
	verifier *cleanup.Verifier
	layouts  *layout.Loader
	logger   *slog.Logger

	scale             Scale
	upkeepInterval    time.Duration
	defaultTransition transition.Kind

	upkeep     *app.Timer
	focused    widget.Ref
	overlays   Overlays
	inputLocks int
	rootCalls  map[RootElement]func()
	states     map[string]map[string]string
	tornDown   bool
}

// New creates a subsystem over an existing window manager and verifier.
// Creating it before the core is ready logs a warning and proceeds.
func New(core *app.Core, windows *window.Manager, verifier *cleanup.Verifier, opts Options) *Subsystem {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	layouts := opts.Layouts
	if layouts == nil {
		layouts = layout.NewLoader("")
	}

	if !core.Ready() {
		logger.Warn("ui subsystem created before the app core is ready")
	}

	def := opts.DefaultTransition
	if def == transition.None && cfg.Transitions.Default != "" {
		k, err := transition.ParseKind(cfg.Transitions.Default)
		if err != nil {
			logger.Warn("invalid default transition", "value", cfg.Transitions.Default, "error", err)
		} else {
			def = k
		}
	}

	interval := cfg.Cleanup.UpkeepInterval.Duration()
	if interval <= 0 {
		interval = config.DefaultUpkeepInterval
	}

	return &Subsystem{
		core:              core,
		widgets:           windows.Widgets(),
		windows:           windows,
		verifier:          verifier,
		layouts:           layouts,
		logger:            logger,
		scale:             ResolveScale(cfg.UI.Scale, getenv, logger),
		upkeepInterval:    interval,
		defaultTransition: def,
		rootCalls:         make(map[RootElement]func()),
		states:            make(map[string]map[string]string),
	}
}

func (s *Subsystem) check(op string) error {
	if err := s.core.CheckThread(op); err != nil {
		return err
	}
	if s.tornDown {
		return fmt.Errorf("%s: %w", op, ErrTornDown)
	}
	return nil
}

// Start begins the periodic upkeep: a cleanup check pass and focus
// revalidation.
func (s *Subsystem) Start() error {
	if err := s.check("start"); err != nil {
		return err
	}
	if s.upkeep != nil {
		return nil
	}
	t, err := s.core.NewTimer(s.upkeepInterval, s.runUpkeep, true)
	if err != nil {
		return err
	}
	s.upkeep = t
	s.logger.Debug("started ui upkeep", "interval", s.upkeepInterval)
	return nil
}

func (s *Subsystem) runUpkeep() {
	if s.tornDown {
		return
	}
	s.FocusedWidget()
	if s.verifier != nil {
		if _, err := s.verifier.Upkeep(); err != nil {
			s.logger.Error("upkeep check failed", "error", err)
		}
	}
}

// Scale returns the resolved UI scale.
func (s *Subsystem) Scale() Scale { return s.scale }

// Windows returns the window manager.
func (s *Subsystem) Windows() *window.Manager { return s.windows }

// Widgets returns the widget table.
func (s *Subsystem) Widgets() *widget.Table { return s.widgets }

// Verifier returns the cleanup verifier, which may be nil.
func (s *Subsystem) Verifier() *cleanup.Verifier { return s.verifier }

// TornDown reports whether Teardown has run.
func (s *Subsystem) TornDown() bool { return s.tornDown }

// ShowWindow pushes w onto the stack.
func (s *Subsystem) ShowWindow(w *window.Window) error {
	if err := s.check("show_window"); err != nil {
		return err
	}
	return s.windows.Push(w)
}

// ReplaceWindow replaces the top window with w.
func (s *Subsystem) ReplaceWindow(w *window.Window) error {
	if err := s.check("replace_window"); err != nil {
		return err
	}
	return s.windows.Replace(w)
}

// DismissCurrent pops the top window. The bottom window stays.
func (s *Subsystem) DismissCurrent() error {
	if err := s.check("dismiss_current"); err != nil {
		return err
	}
	return s.windows.Pop()
}

// Back performs back navigation. It is ignored while input is locked.
func (s *Subsystem) Back() error {
	if err := s.check("back"); err != nil {
		return err
	}
	if s.inputLocks > 0 {
		s.logger.Debug("back ignored: input locked", "locks", s.inputLocks)
		return nil
	}
	return s.windows.Back()
}

// CreateFunc builds a window with the given options applied.
type CreateFunc func(opts ...window.Option) (*window.Window, error)

// AuxiliaryNav opens the auxiliary window name, the kind of window a
// toolbar button opens. If one is already in the back history, navigation
// returns to it; if a different auxiliary window is in the history, the new
// one takes its place; pressing the button of the current auxiliary window
// closes it.
func (s *Subsystem) AuxiliaryNav(name string, create CreateFunc) error {
	if err := s.check("auxiliary_nav"); err != nil {
		return err
	}
	if s.inputLocks > 0 {
		return fmt.Errorf("auxiliary nav %s: %w", name, ErrInputLocked)
	}

	cur := s.windows.Top()
	if cur == nil {
		w, err := create(window.WithAuxiliary(true))
		if err != nil {
			return err
		}
		return s.windows.Push(w)
	}

	var match, other *window.BackState
	for bs := cur.BackState(); bs != nil; bs = bs.Parent {
		if !bs.Auxiliary {
			continue
		}
		if bs.Name == name {
			match = bs
		} else {
			other = bs
		}
	}

	switch {
	case match != nil:
		cur.SetBackState(match)
		return s.windows.RestoreBackState()

	case other != nil:
		return s.replaceAuxiliary(create, other.Parent)

	case cur.Auxiliary() && cur.Name() == name:
		if err := s.windows.RestoreBackState(); err != nil && !errors.Is(err, window.ErrNoBackState) {
			return err
		}
		return nil

	case cur.Auxiliary():
		return s.replaceAuxiliary(create, cur.BackState())
	}

	w, err := create(window.WithAuxiliary(true))
	if err != nil {
		return err
	}
	return s.windows.Replace(w)
}

func (s *Subsystem) replaceAuxiliary(create CreateFunc, back *window.BackState) error {
	opts := []window.Option{window.WithAuxiliary(true)}
	if back != nil {
		opts = append(opts, window.WithBackState(back))
	} else {
		opts = append(opts, window.WithTopLevel())
	}
	w, err := create(opts...)
	if err != nil {
		return err
	}
	return s.windows.Replace(w)
}

// CreateWidget creates a widget under parent.
func (s *Subsystem) CreateWidget(kind widget.Kind, parent widget.Handle, cfg widget.Config) (widget.Handle, error) {
	if err := s.check("create_widget"); err != nil {
		return widget.Handle{}, err
	}
	return s.widgets.Create(kind, parent, cfg)
}

// SetLayouts replaces the template loader used by BuildWindow. Windows
// already built keep their widgets.
func (s *Subsystem) SetLayouts(l *layout.Loader) error {
	if err := s.check("set_layouts"); err != nil {
		return err
	}
	if l == nil {
		return errors.New("set layouts: nil loader")
	}
	s.layouts = l
	return nil
}

// BuildWindow materialises the layout template name into a new window.
// The template's transition and modality apply unless opts override them.
func (s *Subsystem) BuildWindow(name string, actions map[string]func(), opts ...window.Option) (*window.Window, *layout.Built, error) {
	if err := s.check("build_window"); err != nil {
		return nil, nil, err
	}
	tmpl, err := s.layouts.Load(name)
	if err != nil {
		return nil, nil, err
	}

	kind := s.defaultTransition
	if tmpl.Transition != "" {
		k, err := transition.ParseKind(tmpl.Transition)
		if err != nil {
			s.logger.Warn("template transition ignored", "template", name, "error", err)
		} else {
			kind = k
		}
	}

	built, err := layout.Build(s.widgets, tmpl, actions)
	if err != nil {
		return nil, nil, err
	}

	all := append([]window.Option{
		window.WithTransition(kind),
		window.WithModal(tmpl.Modal),
	}, opts...)
	return window.New(tmpl.Name, built.Root, all...), built, nil
}

// SetFocus focuses h, which must be alive and inside the active window. A
// zero handle clears the focus.
func (s *Subsystem) SetFocus(h widget.Handle) error {
	if err := s.check("set_focus"); err != nil {
		return err
	}
	if h.IsZero() {
		s.focused = widget.Ref{}
		return nil
	}
	if !h.Alive() {
		return &widget.StaleReferenceError{Op: "set_focus", Ref: h.Ref(), Kind: h.Kind()}
	}
	active := s.windows.Active()
	if active == nil || !active.Contains(h) {
		return fmt.Errorf("focus %s%s: %w", h.Kind(), h.Ref(), ErrNotInActiveWindow)
	}
	s.focused = h.Ref()
	return nil
}

// FocusedWidget returns the focused widget. A focus whose widget has died
// is cleared and reported as absent.
func (s *Subsystem) FocusedWidget() (widget.Handle, bool) {
	if s.focused.IsZero() {
		return widget.Handle{}, false
	}
	h, ok := s.widgets.Resolve(s.focused)
	if !ok {
		s.logger.Debug("cleared stale focus", "ref", s.focused.String())
		s.focused = widget.Ref{}
		return widget.Handle{}, false
	}
	return h, true
}

// Overlays returns the overlay flags.
func (s *Subsystem) Overlays() Overlays { return s.overlays }

// SetPartyIconVisible shows or hides the party icon.
func (s *Subsystem) SetPartyIconVisible(visible bool) error {
	if err := s.check("set_party_icon_visible"); err != nil {
		return err
	}
	s.overlays.PartyIcon = visible
	return nil
}

// SetPartyWindowOpen records whether the party window is open.
func (s *Subsystem) SetPartyWindowOpen(open bool) error {
	if err := s.check("set_party_window_open"); err != nil {
		return err
	}
	s.overlays.PartyWindow = open
	return nil
}

// SetOnlineScoreUI shows or hides the online score UI.
func (s *Subsystem) SetOnlineScoreUI(visible bool) error {
	if err := s.check("set_online_score_ui"); err != nil {
		return err
	}
	s.overlays.OnlineScore = visible
	return nil
}

// LockAllInput adds an input lock. Locks nest.
func (s *Subsystem) LockAllInput() error {
	if err := s.check("lock_all_input"); err != nil {
		return err
	}
	s.inputLocks++
	return nil
}

// UnlockAllInput releases one input lock.
func (s *Subsystem) UnlockAllInput() error {
	if err := s.check("unlock_all_input"); err != nil {
		return err
	}
	if s.inputLocks == 0 {
		s.logger.Warn("unlock_all_input without a matching lock")
		return nil
	}
	s.inputLocks--
	return nil
}

// InputLocked reports whether any input lock is held.
func (s *Subsystem) InputLocked() bool { return s.inputLocks > 0 }

// SetRootUICall sets the call run when e is pressed. A nil fn clears it.
func (s *Subsystem) SetRootUICall(e RootElement, fn func()) error {
	if err := s.check("set_root_ui_call"); err != nil {
		return err
	}
	if fn == nil {
		delete(s.rootCalls, e)
		return nil
	}
	s.rootCalls[e] = fn
	return nil
}

// PressRootUI runs the call set for e.
func (s *Subsystem) PressRootUI(e RootElement) error {
	if err := s.check("press_root_ui"); err != nil {
		return err
	}
	if s.inputLocks > 0 {
		return fmt.Errorf("press %s: %w", e, ErrInputLocked)
	}
	fn, ok := s.rootCalls[e]
	if !ok {
		return fmt.Errorf("press %s: %w", e, ErrNoRootCall)
	}
	fn()
	return nil
}

// WindowState returns the saved state for a window type.
func (s *Subsystem) WindowState(name string) map[string]string {
	return s.states[name]
}

// SetWindowState saves state for a window type, replacing what was there.
func (s *Subsystem) SetWindowState(name string, state map[string]string) error {
	if err := s.check("set_window_state"); err != nil {
		return err
	}
	if state == nil {
		delete(s.states, name)
		return nil
	}
	s.states[name] = state
	return nil
}

// CleanupCheck registers owner, built around handles of w, with the
// verifier.
func CleanupCheck[T any](s *Subsystem, owner *T, w *window.Window, handles ...widget.Handle) error {
	if err := s.check("cleanup_check"); err != nil {
		return err
	}
	if s.verifier == nil {
		return nil
	}
	return cleanup.Register(s.verifier, owner, w, handles...)
}

// Check runs an explicit cleanup check pass.
func (s *Subsystem) Check() ([]cleanup.LeakDetected, error) {
	if err := s.check("cleanup_check"); err != nil {
		return nil, err
	}
	if s.verifier == nil {
		return nil, nil
	}
	return s.verifier.Check()
}

// Snapshot returns a read-only view of the subsystem.
func (s *Subsystem) Snapshot() Snapshot {
	snap := Snapshot{
		Scale:      s.scale.String(),
		Windows:    s.windows.Snapshot(),
		Overlays:   s.overlays,
		InputLocks: s.inputLocks,
		Widgets:    s.widgets.Count(),
		AppTime:    s.core.AppTime(),
	}
	if h, ok := s.FocusedWidget(); ok {
		snap.Focused = h.String()
	}
	if s.verifier != nil {
		snap.Pending = s.verifier.Pending()
		snap.Leaks = s.verifier.Reported()
	}
	return snap
}

// UIState captures what an app mode saves on deactivation.
func (s *Subsystem) UIState(mode string) *store.UIState {
	st := store.DefaultUIState()
	st.Mode = mode
	st.SavedAt = time.Now()
	st.Scale = s.scale.String()
	for _, w := range s.windows.Windows() {
		st.Stack = append(st.Stack, store.WindowRecord{
			Name:      w.Name(),
			State:     w.State().String(),
			Modal:     w.Modal(),
			Auxiliary: w.Auxiliary(),
		})
	}
	if top := s.windows.Top(); top != nil {
		for bs := top.BackState(); bs != nil; bs = bs.Parent {
			st.BackStates = append(st.BackStates, bs.Name)
		}
	}
	for name, state := range s.states {
		cp := make(map[string]string, len(state))
		for k, v := range state {
			cp[k] = v
		}
		st.WindowStates[name] = cp
	}
	return st
}

// RestoreWindowStates loads the per-window-type states from a saved state.
func (s *Subsystem) RestoreWindowStates(st *store.UIState) error {
	if err := s.check("restore_window_states"); err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	for name, state := range st.WindowStates {
		cp := make(map[string]string, len(state))
		for k, v := range state {
			cp[k] = v
		}
		s.states[name] = cp
	}
	return nil
}

// Teardown destroys every window top-first regardless of modality, stops
// the upkeep and clears focus, overlays, root calls and locks. Every later
// call fails with ErrTornDown. Tearing down twice is a no-op.
func (s *Subsystem) Teardown() error {
	if err := s.core.CheckThread("ui_teardown"); err != nil {
		return err
	}
	if s.tornDown {
		return nil
	}
	if s.upkeep != nil {
		s.upkeep.Stop()
		s.upkeep = nil
	}
	if err := s.windows.Teardown(); err != nil {
		return err
	}
	s.focused = widget.Ref{}
	s.overlays = Overlays{}
	s.inputLocks = 0
	clear(s.rootCalls)
	s.tornDown = true
	s.logger.Debug("tore down ui subsystem")
	return nil
}
