package gtkengine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jmylchreest/uiv1/internal/widget"
)

// style holds the properties rendered through CSS rather than widget
// calls.
type style struct {
	offset widget.Vec2
	scale  float64
	color  *widget.Color
}

func (s style) empty() bool {
	return s.offset == (widget.Vec2{}) && (s.scale == 0 || s.scale == 1) && s.color == nil
}

// widgetName is the CSS id given to a native widget.
func widgetName(ref widget.Ref) string {
	return fmt.Sprintf("uiv1-%d-%d", ref.ID, ref.Gen)
}

// kindClass is the CSS class for every widget of a kind.
func kindClass(k widget.Kind) string {
	return "uiv1-" + k.String()
}

func rgba(c widget.Color) string {
	clamp := func(v float64) float64 { return min(max(v, 0), 1) }
	return fmt.Sprintf("rgba(%d, %d, %d, %.3f)",
		int(clamp(c.R)*255+0.5), int(clamp(c.G)*255+0.5), int(clamp(c.B)*255+0.5), clamp(c.A))
}

// rule renders one widget's CSS rule, or "" when it has nothing to say.
func rule(name string, s style) string {
	if s.empty() {
		return ""
	}

	var decls []string
	var transforms []string
	if s.offset != (widget.Vec2{}) {
		transforms = append(transforms, fmt.Sprintf("translate(%.1fpx, %.1fpx)", s.offset.X, s.offset.Y))
	}
	if s.scale != 0 && s.scale != 1 {
		transforms = append(transforms, fmt.Sprintf("scale(%.3f)", s.scale))
	}
	if len(transforms) > 0 {
		decls = append(decls, "transform: "+strings.Join(transforms, " ")+";")
	}
	if s.color != nil {
		decls = append(decls, "color: "+rgba(*s.color)+";")
	}
	return "#" + name + " { " + strings.Join(decls, " ") + " }"
}

// stylesheet renders every non-empty rule, ordered by widget name so
// output is stable.
func stylesheet(styles map[string]style) string {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(styles)) {
		if r := rule(name, styles[name]); r != "" {
			b.WriteString(r)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
