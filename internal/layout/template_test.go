package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/widget"
)

func TestParseTemplateString(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantErr       bool
		checkTemplate func(t *testing.T, tmpl *Template)
	}{
		{
			name: "window with column and buttons",
			input: `<window name="login" transition="slide-in" width="300px" height="200">
				<column id="form">
					<text id="title" text="Login" />
					<button id="go" text="Go" action="go" />
				</column>
			</window>`,
			checkTemplate: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, "login", tmpl.Name)
				assert.Equal(t, "slide-in", tmpl.Transition)
				assert.Equal(t, 300.0, tmpl.Width)
				assert.Equal(t, 200.0, tmpl.Height)
				assert.False(t, tmpl.Modal)

				require.Len(t, tmpl.Elements, 1)
				col := tmpl.Elements[0]
				assert.Equal(t, widget.KindColumn, col.Kind)
				assert.Equal(t, "form", col.ID)
				require.Len(t, col.Children, 2)
				assert.Equal(t, widget.KindText, col.Children[0].Kind)
				assert.Equal(t, "Login", col.Children[0].Attributes["text"])
				assert.Equal(t, "go", col.Children[1].Attributes["action"])
				assert.Equal(t, 4, tmpl.Count())
			},
		},
		{
			name:  "modal flag",
			input: `<window modal="true"></window>`,
			checkTemplate: func(t *testing.T, tmpl *Template) {
				assert.True(t, tmpl.Modal)
				assert.Empty(t, tmpl.Elements)
				assert.Equal(t, 1, tmpl.Count())
			},
		},
		{
			name:    "unknown element",
			input:   `<window><slider /></window>`,
			wantErr: true,
		},
		{
			name:    "wrong root",
			input:   `<popup><body /></popup>`,
			wantErr: true,
		},
		{
			name:    "leaf with children",
			input:   `<window><button><text /></button></window>`,
			wantErr: true,
		},
		{
			name:    "duplicate ids",
			input:   `<window><text id="a" /><row><text id="a" /></row></window>`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   ``,
			wantErr: true,
		},
		{
			name:    "malformed xml",
			input:   `<window><row></window>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplateString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.checkTemplate != nil {
				tt.checkTemplate(t, tmpl)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    widget.Color
		wantErr bool
	}{
		{"#ffffff", widget.Color{R: 1, G: 1, B: 1, A: 1}, false},
		{"#000", widget.Color{A: 1}, false},
		{"#ff000080", widget.Color{R: 1, A: 128.0 / 255}, false},
		{"red", widget.Color{}, true},
		{"#12345", widget.Color{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.R, got.R, 1e-9)
			assert.InDelta(t, tt.want.G, got.G, 1e-9)
			assert.InDelta(t, tt.want.B, got.B, 1e-9)
			assert.InDelta(t, tt.want.A, got.A, 1e-9)
		})
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	names := ListEmbeddedTemplates()
	assert.ElementsMatch(t, []string{"confirm", "inbox", "main-menu", "settings"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			tmpl, ok := GetEmbeddedTemplate(name)
			require.True(t, ok)
			assert.Equal(t, name, tmpl.Name)
			assert.NotEmpty(t, tmpl.Elements)
		})
	}

	confirm, ok := GetEmbeddedTemplate("confirm")
	require.True(t, ok)
	assert.True(t, confirm.Modal)
}

func TestLoader_UserOverride(t *testing.T) {
	dir := t.TempDir()
	custom := `<window transition="none"><text id="hello" text="Hi" /></window>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.xml"), []byte(custom), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.xml"), []byte(custom), 0644))

	loader := NewLoader(dir)

	tmpl, err := loader.Load("settings")
	require.NoError(t, err)
	assert.Equal(t, "settings", tmpl.Name)
	assert.Equal(t, "none", tmpl.Transition)

	tmpl, err = loader.Load("inbox")
	require.NoError(t, err)
	assert.Equal(t, "inbox", tmpl.Name)

	_, err = loader.Load("missing")
	assert.Error(t, err)

	names := loader.Names()
	assert.Contains(t, names, "extra")
	assert.Contains(t, names, "main-menu")
	count := 0
	for _, n := range names {
		if n == "settings" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func newTable(t *testing.T) (*widget.Table, *widget.Headless) {
	t.Helper()
	core := app.NewCore(app.Options{})
	core.Bind()
	backend := widget.NewHeadless()
	return widget.NewTable(core, backend, nil), backend
}

func TestBuild(t *testing.T) {
	tbl, _ := newTable(t)
	tmpl, ok := GetEmbeddedTemplate("settings")
	require.True(t, ok)

	backPressed := false
	built, err := Build(tbl, tmpl, map[string]func(){"back": func() { backPressed = true }})
	require.NoError(t, err)

	assert.Equal(t, tmpl.Count(), tbl.Count())
	assert.True(t, built.Root.Alive())

	label, err := built.Root.Label()
	require.NoError(t, err)
	assert.Equal(t, "settings", label)

	sound, ok := built.Get("sound")
	require.True(t, ok)
	checked, err := sound.Checked()
	require.NoError(t, err)
	assert.True(t, checked)

	back, ok := built.Get("back")
	require.True(t, ok)
	require.NoError(t, back.Activate())
	assert.True(t, backPressed)

	for _, h := range built.Handles() {
		assert.True(t, built.Root.Contains(h), h.String())
	}

	require.NoError(t, built.Root.Destroy())
	assert.Equal(t, 0, tbl.Count())
	assert.False(t, sound.Alive())
}

func TestBuild_FailureDestroysPartialTree(t *testing.T) {
	tests := []struct {
		name  string
		input string
		setup func(b *widget.Headless)
	}{
		{
			name:  "unknown action",
			input: `<window><column><text /><button action="nope" /></column></window>`,
		},
		{
			name:  "bad attribute",
			input: `<window><column><text /><text width="wide" /></column></window>`,
		},
		{
			name:  "backend refuses",
			input: `<window><column><text /><image texture="x" /></column></window>`,
			setup: func(b *widget.Headless) {
				b.FailRealize = func(k widget.Kind) bool { return k == widget.KindImage }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, backend := newTable(t)
			if tt.setup != nil {
				tt.setup(backend)
			}
			tmpl, err := ParseTemplateString(tt.input)
			require.NoError(t, err)

			_, err = Build(tbl, tmpl, nil)
			assert.Error(t, err)
			assert.Equal(t, 0, tbl.Count())
			assert.Equal(t, 0, backend.Live())
		})
	}
}
