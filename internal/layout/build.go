package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/uiv1/internal/widget"
)

// Built is a materialised template.
type Built struct {
	Root widget.Handle
	// IDs maps element ids to their widgets.
	IDs map[string]widget.Handle
}

// Get returns the widget with the given element id.
func (b *Built) Get(id string) (widget.Handle, bool) {
	h, ok := b.IDs[id]
	return h, ok
}

// Handles returns every widget with an id, in no particular order.
func (b *Built) Handles() []widget.Handle {
	out := make([]widget.Handle, 0, len(b.IDs))
	for _, h := range b.IDs {
		out = append(out, h)
	}
	return out
}

// Build creates the template's widget tree. Elements with an action
// attribute are wired to the matching entry in actions. If any widget fails
// to build, the partial tree is destroyed and the error returned.
func Build(tbl *widget.Table, tmpl *Template, actions map[string]func()) (*Built, error) {
	root, err := tbl.CreateRoot(widget.KindContainer, widget.Config{
		Label: tmpl.Name,
		Size:  widget.Vec2{X: tmpl.Width, Y: tmpl.Height},
		Modal: tmpl.Modal,
	})
	if err != nil {
		return nil, err
	}

	b := &Built{Root: root, IDs: make(map[string]widget.Handle)}
	if err := b.build(tbl, root, tmpl.Elements, actions); err != nil {
		_ = root.Destroy()
		return nil, fmt.Errorf("build %s: %w", tmpl.Name, err)
	}
	return b, nil
}

func (b *Built) build(tbl *widget.Table, parent widget.Handle, elems []Element, actions map[string]func()) error {
	for _, e := range elems {
		cfg, err := elementConfig(e, actions)
		if err != nil {
			return err
		}
		h, err := tbl.Create(e.Kind, parent, cfg)
		if err != nil {
			return err
		}
		if e.ID != "" {
			b.IDs[e.ID] = h
		}
		if err := b.build(tbl, h, e.Children, actions); err != nil {
			return err
		}
	}
	return nil
}

func elementConfig(e Element, actions map[string]func()) (widget.Config, error) {
	cfg := widget.Config{Label: e.ID}
	a := e.Attributes

	cfg.Text = a["text"]
	cfg.Texture = a["texture"]
	cfg.Checked = a["checked"] == "true"
	cfg.Hidden = a["hidden"] == "true"

	var err error
	if cfg.Size.X, err = attrFloat(a, "width"); err != nil {
		return cfg, err
	}
	if cfg.Size.Y, err = attrFloat(a, "height"); err != nil {
		return cfg, err
	}
	if cfg.Position.X, err = attrFloat(a, "x"); err != nil {
		return cfg, err
	}
	if cfg.Position.Y, err = attrFloat(a, "y"); err != nil {
		return cfg, err
	}
	if cfg.Scale, err = attrFloat(a, "scale"); err != nil {
		return cfg, err
	}
	if s, ok := a["color"]; ok {
		if cfg.Color, err = ParseColor(s); err != nil {
			return cfg, err
		}
	}
	if name, ok := a["action"]; ok {
		fn, found := actions[name]
		if !found {
			return cfg, fmt.Errorf("element %q: unknown action %q", e.ID, name)
		}
		cfg.OnActivate = fn
	}
	return cfg, nil
}

func attrFloat(a map[string]string, key string) (float64, error) {
	s, ok := a[key]
	if !ok {
		return 0, nil
	}
	v, err := parseUnits(s)
	if err != nil {
		return 0, fmt.Errorf("attribute %s=%q: %w", key, s, err)
	}
	return v, nil
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (widget.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return widget.Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return widget.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return widget.Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, nil
}
