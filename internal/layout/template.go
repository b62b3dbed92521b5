// Package layout parses XML window templates and builds them into widget
// trees.
package layout

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/uiv1/internal/widget"
)

// Template is a parsed window layout.
type Template struct {
	// Name is the window name; it defaults to the template file name.
	Name string
	// Transition is the transition name requested by the template, if any.
	Transition string
	Modal      bool
	Width      float64
	Height     float64
	Elements   []Element
}

// Element is one widget in a template.
type Element struct {
	Kind       widget.Kind
	ID         string
	Attributes map[string]string
	Children   []Element
}

// ParseTemplate parses an XML layout template from a reader. The root
// element must be <window>; every nested element names a widget kind.
func ParseTemplate(r io.Reader) (*Template, error) {
	decoder := xml.NewDecoder(r)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("template has no <window> element")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "window" {
			return nil, fmt.Errorf("root element must be <window>, got <%s>", se.Name.Local)
		}

		tmpl := &Template{}
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "name":
				tmpl.Name = attr.Value
			case "transition":
				tmpl.Transition = attr.Value
			case "modal":
				tmpl.Modal = attr.Value == "true"
			case "width":
				if v, err := parseUnits(attr.Value); err == nil {
					tmpl.Width = v
				}
			case "height":
				if v, err := parseUnits(attr.Value); err == nil {
					tmpl.Height = v
				}
			}
		}

		elements, err := parseElements(decoder, "window")
		if err != nil {
			return nil, err
		}
		tmpl.Elements = elements
		if err := tmpl.checkIDs(); err != nil {
			return nil, err
		}
		return tmpl, nil
	}
}

// parseUnits parses a size value such as "300" or "300px".
func parseUnits(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	return strconv.ParseFloat(s, 64)
}

// parseElements parses child elements until the parent's end tag.
func parseElements(decoder *xml.Decoder, parent string) ([]Element, error) {
	var elements []Element

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return elements, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read element: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			kind, err := widget.ParseKind(name)
			if err != nil {
				return nil, fmt.Errorf("unknown element type: %s", name)
			}

			elem := Element{
				Kind:       kind,
				Attributes: make(map[string]string),
			}
			for _, attr := range t.Attr {
				if attr.Name.Local == "id" {
					elem.ID = attr.Value
					continue
				}
				elem.Attributes[attr.Name.Local] = attr.Value
			}

			children, err := parseElements(decoder, name)
			if err != nil {
				return nil, err
			}
			if len(children) > 0 && !kind.IsContainer() {
				return nil, fmt.Errorf("<%s> cannot contain children", name)
			}
			elem.Children = children
			elements = append(elements, elem)

		case xml.CharData:
			// Text content is only meaningful on leaf kinds and is read via
			// the text attribute; stray whitespace is ignored.
			if strings.TrimSpace(string(t)) != "" && parent == "window" {
				return nil, fmt.Errorf("unexpected text inside <window>")
			}

		case xml.EndElement:
			return elements, nil
		}
	}
}

func (t *Template) checkIDs() error {
	seen := make(map[string]bool)
	var walk func([]Element) error
	walk = func(elems []Element) error {
		for _, e := range elems {
			if e.ID != "" {
				if seen[e.ID] {
					return fmt.Errorf("duplicate element id %q", e.ID)
				}
				seen[e.ID] = true
			}
			if err := walk(e.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Elements)
}

// Count returns the number of widgets the template builds, root included.
func (t *Template) Count() int {
	var count func([]Element) int
	count = func(elems []Element) int {
		n := len(elems)
		for _, e := range elems {
			n += count(e.Children)
		}
		return n
	}
	return 1 + count(t.Elements)
}

// ParseTemplateString parses a template from a string.
func ParseTemplateString(s string) (*Template, error) {
	return ParseTemplate(strings.NewReader(s))
}

// LoadTemplate loads a template from file. The window name defaults to the
// file name without extension.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	tmpl, err := ParseTemplate(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if tmpl.Name == "" {
		tmpl.Name = strings.TrimSuffix(filepath.Base(path), ".xml")
	}
	return tmpl, nil
}

// Loader resolves templates from a user directory, then the embedded set.
type Loader struct {
	templatesDir string
}

// NewLoader creates a new template loader.
func NewLoader(templatesDir string) *Loader {
	return &Loader{templatesDir: templatesDir}
}

// Load loads a layout template by name.
func (l *Loader) Load(name string) (*Template, error) {
	if l.templatesDir != "" {
		path := filepath.Join(l.templatesDir, name+".xml")
		if _, err := os.Stat(path); err == nil {
			return LoadTemplate(path)
		}
	}

	if tmpl, ok := GetEmbeddedTemplate(name); ok {
		return tmpl, nil
	}
	return nil, fmt.Errorf("layout template not found: %s", name)
}

// Names lists every template name available to the loader, user templates
// first.
func (l *Loader) Names() []string {
	seen := make(map[string]bool)
	var names []string

	if l.templatesDir != "" {
		entries, err := os.ReadDir(l.templatesDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
					continue
				}
				name := strings.TrimSuffix(e.Name(), ".xml")
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for _, name := range ListEmbeddedTemplates() {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}
