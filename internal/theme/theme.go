package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// importRegex matches @import "file.css"; or @import 'file.css'; or @import url("file.css");
var importRegex = regexp.MustCompile(`@import\s+(?:url\s*\(\s*)?["']([^"']+)["']\s*\)?;?`)

// Theme is a resolved stylesheet.
type Theme struct {
	Name    string    // Theme name (without .css extension)
	Path    string    // CSS file on disk (empty for bundled themes)
	CSS     string    // Content with imports inlined
	ModTime time.Time // Last modification time of Path
	Bundled bool      // Loaded from the embedded themes
}

// NewTheme loads a CSS file, inlining its @import statements.
func NewTheme(name, path string) (*Theme, error) {
	css, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &Theme{
		Name:    name,
		Path:    path,
		CSS:     ProcessImports(string(css), filepath.Dir(path), nil),
		ModTime: info.ModTime(),
	}, nil
}

// NewBundledTheme returns an embedded theme with its imports inlined.
func NewBundledTheme(name string) (*Theme, bool) {
	css, found := GetEmbeddedTheme(name)
	if !found {
		return nil, false
	}
	return &Theme{
		Name:    name,
		CSS:     ProcessImports(css, "", nil),
		Bundled: true,
	}, true
}

// ErrThemeNotFound is returned by Resolve when neither the user directory
// nor the bundled themes contain the name.
var ErrThemeNotFound = errors.New("theme not found")

// Resolve finds a theme by name: a .css file in dir wins over a bundled
// theme of the same name. An empty name selects the default theme.
func Resolve(name, dir string) (*Theme, error) {
	if name == "" {
		name = DefaultThemeName
	}

	var userErr error
	if dir != "" {
		path := filepath.Join(dir, name+".css")
		if _, err := os.Stat(path); err == nil {
			t, err := NewTheme(name, path)
			if err == nil {
				return t, nil
			}
			userErr = err
		}
	}

	if t, ok := NewBundledTheme(name); ok {
		return t, nil
	}
	if userErr != nil {
		return nil, fmt.Errorf("load theme %q: %w", name, userErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrThemeNotFound, name)
}

// ProcessImports resolves and inlines @import statements in CSS.
// Imports are resolved relative to baseDir; seen prevents cycles.
func ProcessImports(css string, baseDir string, seen map[string]bool) string {
	if seen == nil {
		seen = make(map[string]bool)
	}

	return importRegex.ReplaceAllStringFunc(css, func(match string) string {
		submatch := importRegex.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		importPath := submatch[1]

		fullPath := importPath
		if !filepath.IsAbs(importPath) {
			fullPath = filepath.Join(baseDir, importPath)
		}

		if seen[fullPath] {
			return "/* circular import prevented: " + importPath + " */"
		}
		seen[fullPath] = true

		importedCSS, err := os.ReadFile(fullPath)
		if err != nil {
			baseName := filepath.Base(importPath)
			if strings.HasPrefix(baseName, "_") {
				if embedded, found := GetEmbeddedPartial(baseName); found {
					return "/* imported (embedded): " + importPath + " */\n" + embedded
				}
			}
			if embedded, found := GetEmbeddedTheme(strings.TrimSuffix(baseName, ".css")); found {
				return "/* imported (embedded): " + importPath + " */\n" + ProcessImports(embedded, "", seen)
			}
			return "/* import failed: " + importPath + " - " + err.Error() + " */"
		}

		processed := ProcessImports(string(importedCSS), filepath.Dir(fullPath), seen)
		return "/* imported: " + importPath + " */\n" + processed
	})
}

// Reload re-reads the theme from disk and reports whether the CSS
// changed. Bundled themes never change.
func (t *Theme) Reload() (bool, error) {
	if t.Bundled || t.Path == "" {
		return false, nil
	}

	info, err := os.Stat(t.Path)
	if err != nil {
		return false, err
	}
	css, err := os.ReadFile(t.Path)
	if err != nil {
		return false, err
	}

	processed := ProcessImports(string(css), filepath.Dir(t.Path), nil)
	changed := processed != t.CSS
	t.CSS = processed
	t.ModTime = info.ModTime()
	return changed, nil
}

// Info describes an available theme.
type Info struct {
	Name    string `yaml:"name" json:"name"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Default bool   `yaml:"default" json:"default"`
	Bundled bool   `yaml:"bundled" json:"bundled"`
}

// ListAvailable lists bundled themes followed by user themes in dir. A user
// theme overriding a bundled one is reported once, with its path.
func ListAvailable(dir string) ([]Info, error) {
	var themes []Info
	index := make(map[string]int)

	for _, name := range ListEmbeddedThemes() {
		index[name] = len(themes)
		themes = append(themes, Info{
			Name:    name,
			Default: name == DefaultThemeName,
			Bundled: true,
		})
	}

	if dir == "" {
		return themes, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return themes, nil
		}
		return themes, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".css" || strings.HasPrefix(name, "_") {
			continue
		}
		themeName := strings.TrimSuffix(name, ".css")
		path := filepath.Join(dir, name)
		if i, ok := index[themeName]; ok {
			themes[i].Path = path
			continue
		}
		index[themeName] = len(themes)
		themes = append(themes, Info{Name: themeName, Path: path})
	}
	return themes, nil
}
