package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmbeddedTheme(t *testing.T) {
	tests := []struct {
		name     string
		contains []string
	}{
		{"default", []string{"@import \"_widgets.css\"", ".uiv1-window", "@window_bg_color"}},
		{"dark", []string{".uiv1-modal", "#1e1e2e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			css, found := GetEmbeddedTheme(tt.name)
			require.True(t, found)
			for _, s := range tt.contains {
				assert.Contains(t, css, s)
			}
		})
	}
}

func TestGetEmbeddedTheme_NotFound(t *testing.T) {
	css, found := GetEmbeddedTheme("nonexistent")
	assert.False(t, found)
	assert.Empty(t, css)
}

func TestGetEmbeddedPartial(t *testing.T) {
	for _, name := range []string{"_widgets.css", "widgets", "_widgets"} {
		t.Run(name, func(t *testing.T) {
			css, found := GetEmbeddedPartial(name)
			require.True(t, found)
			assert.Contains(t, css, ".uiv1-button")
		})
	}
}

func TestListEmbeddedThemes(t *testing.T) {
	themes := ListEmbeddedThemes()
	assert.ElementsMatch(t, BundledThemes, themes)
	for _, name := range themes {
		assert.NotEqual(t, '_', rune(name[0]), "partials are not themes")
	}
}

func TestIsEmbeddedTheme(t *testing.T) {
	assert.True(t, IsEmbeddedTheme("default"))
	assert.False(t, IsEmbeddedTheme("nonexistent"))
}
