// Package appmode switches between app modes. Each mode gets a fresh UI
// subsystem; the previous one is torn down and its UI state saved.
package appmode

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/store"
	"github.com/jmylchreest/uiv1/internal/uiv1"
)

// Mode is one app mode, such as the main menu or a running game.
type Mode interface {
	Name() string
	// OnActivate builds the mode's UI on a fresh subsystem.
	OnActivate(ui *uiv1.Subsystem) error
	// OnDeactivate runs before the subsystem is torn down.
	OnDeactivate(ui *uiv1.Subsystem)
}

// Factory creates the subsystem for a newly activated mode.
type Factory func() *uiv1.Subsystem

// Options configures a Switcher.
type Options struct {
	Logger *slog.Logger
	// StatePath is where UI state is saved on deactivation. Empty keeps it
	// in memory only.
	StatePath string
	// OnSwitch is called after each successful activation.
	OnSwitch func(Mode, *uiv1.Subsystem)
}

// Switcher owns the active mode and its subsystem. All methods must be
// called on the logic thread.
type Switcher struct {
	core      *app.Core
	build     Factory
	logger    *slog.Logger
	statePath string
	onSwitch  func(Mode, *uiv1.Subsystem)

	current Mode
	ui      *uiv1.Subsystem
	saved   map[string]*store.UIState
}

// NewSwitcher creates a switcher with no active mode.
func NewSwitcher(core *app.Core, build Factory, opts Options) *Switcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{
		core:      core,
		build:     build,
		logger:    logger,
		statePath: opts.StatePath,
		onSwitch:  opts.OnSwitch,
		saved:     make(map[string]*store.UIState),
	}
}

// Current returns the active mode, or nil.
func (s *Switcher) Current() Mode { return s.current }

// UI returns the active subsystem, or nil.
func (s *Switcher) UI() *uiv1.Subsystem { return s.ui }

// Saved returns the last UI state saved by the named mode.
func (s *Switcher) Saved(mode string) (*store.UIState, bool) {
	st, ok := s.saved[mode]
	return st, ok
}

// Switch deactivates the current mode, tears its UI down top-first and
// activates m on a fresh subsystem. If m fails to activate its partial UI
// is torn down and no mode is active.
func (s *Switcher) Switch(m Mode) error {
	if err := s.core.CheckThread("switch_app_mode"); err != nil {
		return err
	}
	if m == nil {
		return errors.New("switch app mode: nil mode")
	}
	if err := s.deactivate(); err != nil {
		return err
	}

	ui := s.build()
	if err := ui.RestoreWindowStates(s.state(m.Name())); err != nil {
		return fmt.Errorf("restore %s: %w", m.Name(), err)
	}
	if err := ui.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.Name(), err)
	}
	if err := m.OnActivate(ui); err != nil {
		if terr := ui.Teardown(); terr != nil {
			s.logger.Error("teardown after failed activation", "mode", m.Name(), "error", terr)
		}
		return fmt.Errorf("activate %s: %w", m.Name(), err)
	}

	s.current = m
	s.ui = ui
	s.logger.Debug("activated app mode", "mode", m.Name(), "scale", ui.Scale().String())
	if s.onSwitch != nil {
		s.onSwitch(m, ui)
	}
	return nil
}

// Shutdown deactivates the current mode, leaving none active.
func (s *Switcher) Shutdown() error {
	if err := s.core.CheckThread("shutdown_app_mode"); err != nil {
		return err
	}
	return s.deactivate()
}

func (s *Switcher) deactivate() error {
	if s.current == nil {
		return nil
	}
	mode, ui := s.current, s.ui
	s.current, s.ui = nil, nil

	mode.OnDeactivate(ui)
	st := ui.UIState(mode.Name())
	s.saved[mode.Name()] = st
	if s.statePath != "" {
		if err := store.SaveUIState(s.statePath, st); err != nil {
			s.logger.Warn("failed to save ui state", "mode", mode.Name(), "error", err)
		}
	}

	if err := ui.Teardown(); err != nil {
		return fmt.Errorf("deactivate %s: %w", mode.Name(), err)
	}
	s.logger.Debug("deactivated app mode", "mode", mode.Name(), "windows", len(st.Stack))
	return nil
}

// state returns the saved state for mode, falling back to the state file
// when it was saved by the same mode.
func (s *Switcher) state(mode string) *store.UIState {
	if st, ok := s.saved[mode]; ok {
		return st
	}
	if s.statePath == "" {
		return nil
	}
	st, err := store.LoadUIState(s.statePath)
	if err != nil {
		s.logger.Warn("failed to load ui state", "path", s.statePath, "error", err)
	}
	if st == nil || st.Mode != mode {
		return nil
	}
	return st
}
