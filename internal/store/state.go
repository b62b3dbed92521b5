package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentStateVersion is the current version of the UI state schema.
const CurrentStateVersion = 1

// WindowRecord describes one window of a saved stack.
type WindowRecord struct {
	Name      string `yaml:"name"`
	State     string `yaml:"state"`
	Modal     bool   `yaml:"modal,omitempty"`
	Auxiliary bool   `yaml:"auxiliary,omitempty"`
}

// UIState is the UI state an app mode saves when it is deactivated, so the
// next activation can pick up where it left off.
type UIState struct {
	SchemaVersion int            `yaml:"schema_version"`
	Mode          string         `yaml:"mode"`
	SavedAt       time.Time      `yaml:"saved_at"`
	Scale         string         `yaml:"scale,omitempty"`
	Stack         []WindowRecord `yaml:"stack,omitempty"`
	// BackStates is the back-navigation chain of the top window, nearest
	// first.
	BackStates   []string                     `yaml:"back_states,omitempty"`
	WindowStates map[string]map[string]string `yaml:"window_states,omitempty"`
}

// stateFileMutex protects concurrent access to state files.
var stateFileMutex sync.RWMutex

// DefaultUIState returns an empty UIState.
func DefaultUIState() *UIState {
	return &UIState{
		SchemaVersion: CurrentStateVersion,
		WindowStates:  make(map[string]map[string]string),
	}
}

// Top returns the name of the top window, or "".
func (s *UIState) Top() string {
	if len(s.Stack) == 0 {
		return ""
	}
	return s.Stack[len(s.Stack)-1].Name
}

// LoadUIState loads the UI state from path. A missing or corrupt file yields
// the default state; corruption is reported alongside it.
func LoadUIState(path string) (*UIState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultUIState(), nil
		}
		return nil, err
	}

	var state UIState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return DefaultUIState(), fmt.Errorf("parse %s: %w", path, err)
	}
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateVersion
	}
	if state.WindowStates == nil {
		state.WindowStates = make(map[string]map[string]string)
	}
	return &state, nil
}

// SaveUIState writes the UI state to path atomically.
func SaveUIState(path string, state *UIState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateVersion
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
