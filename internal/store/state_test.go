package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUIState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "uistate.yaml")

	state, err := LoadUIState(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentStateVersion, state.SchemaVersion)
	assert.Empty(t, state.Top())

	state.Mode = "menu"
	state.SavedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state.Scale = "large"
	state.Stack = []WindowRecord{
		{Name: "main-menu", State: "suspended"},
		{Name: "settings", State: "active", Auxiliary: true},
	}
	state.BackStates = []string{"inbox"}
	state.WindowStates["settings"] = map[string]string{"tab": "audio"}
	require.NoError(t, SaveUIState(path, state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mode: menu")

	loaded, err := LoadUIState(path)
	require.NoError(t, err)
	assert.True(t, state.SavedAt.Equal(loaded.SavedAt))
	loaded.SavedAt = state.SavedAt
	assert.Equal(t, state, loaded)
	assert.Equal(t, "settings", loaded.Top())
}

func TestUIState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uistate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unterminated"), 0600))

	state, err := LoadUIState(path)
	assert.Error(t, err)
	require.NotNil(t, state)
	assert.Empty(t, state.Mode)
}
