package gtkengine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/uiv1/internal/widget"
)

var (
	// ErrNotNative is returned when Apply is given an object this engine
	// did not create.
	ErrNotNative = errors.New("not a gtk engine node")

	// ErrReleased is returned by Apply on a released node.
	ErrReleased = errors.New("node already released")
)

// node is the native object returned by Realize.
type node struct {
	ref    widget.Ref
	kind   widget.Kind
	parent *node
	widget gtk.Widgetter

	window *gtk.Window // roots only
	fixed  *gtk.Fixed  // container
	box    *gtk.Box    // row, column and scroll content
	check  *gtk.CheckButton

	position widget.Vec2
	released bool
}

// Engine is a widget.Backend creating GTK4 widgets. All calls must happen
// on the GTK main thread, which is also the logic thread.
type Engine struct {
	app    *gtk.Application
	logger *slog.Logger
	table  *widget.Table

	styles   map[string]style
	provider *gtk.CSSProvider
	flushing bool
	syncing  bool

	onBack func()
}

var _ widget.Backend = (*Engine)(nil)

// New creates an engine whose windows belong to app.
func New(app *gtk.Application, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		app:      app,
		logger:   logger,
		styles:   make(map[string]style),
		provider: gtk.NewCSSProvider(),
	}
}

// Start installs the engine's generated stylesheet on the default display.
func (e *Engine) Start() error {
	display := gdk.DisplayGetDefault()
	if display == nil {
		return errors.New("no display available")
	}
	gtk.StyleContextAddProviderForDisplay(display, e.provider, gtk.STYLE_PROVIDER_PRIORITY_USER)
	e.logger.Info("gtk engine started", "color_scheme", colorSchemeClass())
	return nil
}

// Bind routes native input (clicks, toggles) to handles in tbl.
func (e *Engine) Bind(tbl *widget.Table) {
	e.table = tbl
}

// OnBack sets the function run when Escape is pressed in any window.
func (e *Engine) OnBack(fn func()) {
	e.onBack = fn
}

func (e *Engine) Realize(ref widget.Ref, kind widget.Kind, parent any, cfg widget.Config) (any, error) {
	n := &node{ref: ref, kind: kind, position: cfg.Position}

	switch kind {
	case widget.KindButton:
		btn := gtk.NewButtonWithLabel(cfg.Text)
		if cfg.Texture != "" {
			btn.SetIconName(cfg.Texture)
		}
		btn.ConnectClicked(func() { e.activate(ref) })
		n.widget = btn
	case widget.KindText:
		lbl := gtk.NewLabel(cfg.Text)
		lbl.SetXAlign(0)
		lbl.SetWrap(true)
		n.widget = lbl
	case widget.KindCheckbox:
		n.check = gtk.NewCheckButtonWithLabel(cfg.Text)
		n.check.SetActive(cfg.Checked)
		n.check.ConnectToggled(func() { e.toggled(n) })
		n.widget = n.check
	case widget.KindImage:
		img := gtk.NewImage()
		setTexture(img, cfg.Texture)
		n.widget = img
	case widget.KindContainer:
		n.fixed = gtk.NewFixed()
		n.widget = n.fixed
	case widget.KindRow:
		n.box = gtk.NewBox(gtk.OrientationHorizontal, 6)
		n.widget = n.box
	case widget.KindColumn:
		n.box = gtk.NewBox(gtk.OrientationVertical, 6)
		n.widget = n.box
	case widget.KindScroll:
		sw := gtk.NewScrolledWindow()
		n.box = gtk.NewBox(gtk.OrientationVertical, 0)
		sw.SetChild(n.box)
		n.widget = sw
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}

	base := gtk.BaseWidget(n.widget)
	base.SetName(widgetName(ref))
	base.AddCSSClass(kindClass(kind))
	if cfg.Label != "" {
		base.AddCSSClass("uiv1-id-" + sanitizeClassName(cfg.Label))
	}
	applySize(base, cfg.Size)
	if cfg.Opacity > 0 && cfg.Opacity < 1 {
		base.SetOpacity(cfg.Opacity)
	}
	if cfg.Hidden {
		base.SetVisible(false)
	}
	if cfg.Color != (widget.Color{}) || (cfg.Scale != 0 && cfg.Scale != 1) {
		c := cfg.Color
		e.setStyle(ref, func(s *style) {
			if c != (widget.Color{}) {
				s.color = &c
			}
			s.scale = cfg.Scale
		})
	}

	if p, ok := parent.(*node); ok && p != nil {
		n.parent = p
		p.attach(n)
		return n, nil
	}

	e.realizeWindow(n, cfg)
	return n, nil
}

// realizeWindow wraps a root in its own layer-shell window.
func (e *Engine) realizeWindow(n *node, cfg widget.Config) {
	w := gtk.NewWindow()
	if e.app != nil {
		w.SetApplication(e.app)
	}
	w.SetDecorated(false)
	w.SetResizable(false)
	if cfg.Size.X > 0 && cfg.Size.Y > 0 {
		w.SetDefaultSize(int(cfg.Size.X), int(cfg.Size.Y))
	}
	w.AddCSSClass("uiv1-window")
	w.AddCSSClass(colorSchemeClass())
	if cfg.Modal {
		w.AddCSSClass("uiv1-modal")
	}
	initSurface(w, cfg.Modal)

	keys := gtk.NewEventControllerKey()
	keys.ConnectKeyPressed(func(keyval, _ uint, _ gdk.ModifierType) bool {
		if keyval == gdk.KEY_Escape && e.onBack != nil {
			e.onBack()
			return true
		}
		return false
	})
	w.AddController(keys)

	w.SetChild(n.widget)
	n.window = w
	if !cfg.Hidden {
		w.Present()
	}
	e.logger.Debug("realized window", "ref", n.ref.String(), "label", cfg.Label, "modal", cfg.Modal)
}

func (e *Engine) Apply(native any, prop widget.Prop, value any) error {
	n, ok := native.(*node)
	if !ok {
		return ErrNotNative
	}
	if n.released {
		return ErrReleased
	}
	base := gtk.BaseWidget(n.widget)

	switch prop {
	case widget.PropText:
		text, _ := value.(string)
		switch w := n.widget.(type) {
		case *gtk.Button:
			w.SetLabel(text)
		case *gtk.Label:
			w.SetText(text)
		case *gtk.CheckButton:
			w.SetLabel(text)
		}
	case widget.PropSize:
		size, _ := value.(widget.Vec2)
		applySize(base, size)
	case widget.PropPosition:
		n.position, _ = value.(widget.Vec2)
		n.place()
	case widget.PropOpacity:
		opacity, _ := value.(float64)
		base.SetOpacity(opacity)
	case widget.PropVisible:
		visible, _ := value.(bool)
		if n.window != nil {
			n.window.SetVisible(visible)
		} else {
			base.SetVisible(visible)
		}
	case widget.PropChecked:
		checked, _ := value.(bool)
		if n.check != nil && n.check.Active() != checked {
			e.syncing = true
			n.check.SetActive(checked)
			e.syncing = false
		}
	case widget.PropTexture:
		texture, _ := value.(string)
		switch w := n.widget.(type) {
		case *gtk.Image:
			setTexture(w, texture)
		case *gtk.Button:
			w.SetIconName(texture)
		}
	case widget.PropOffset:
		off, _ := value.(widget.Vec2)
		e.setStyle(n.ref, func(s *style) { s.offset = off })
	case widget.PropScale:
		scale, _ := value.(float64)
		e.setStyle(n.ref, func(s *style) { s.scale = scale })
	case widget.PropColor:
		c, _ := value.(widget.Color)
		e.setStyle(n.ref, func(s *style) { s.color = &c })
	default:
		return fmt.Errorf("unsupported property %s", prop)
	}
	return nil
}

func (e *Engine) Release(native any) {
	n, ok := native.(*node)
	if !ok || n.released {
		return
	}
	n.released = true

	if _, styled := e.styles[widgetName(n.ref)]; styled {
		delete(e.styles, widgetName(n.ref))
		e.scheduleFlush()
	}

	if n.window != nil {
		n.window.Destroy()
		n.window = nil
		return
	}
	if n.parent != nil && !n.parent.released {
		n.parent.detach(n)
	}
}

func (e *Engine) activate(ref widget.Ref) {
	if e.table == nil {
		return
	}
	h, ok := e.table.Resolve(ref)
	if !ok {
		return
	}
	if err := h.Activate(); err != nil {
		e.logger.Warn("activate failed", "ref", ref.String(), "error", err)
	}
}

// toggled mirrors a user toggle into the widget table, then activates.
func (e *Engine) toggled(n *node) {
	if e.syncing || e.table == nil || n.released {
		return
	}
	h, ok := e.table.Resolve(n.ref)
	if !ok {
		return
	}
	if err := h.SetChecked(n.check.Active()); err != nil {
		e.logger.Warn("toggle failed", "ref", n.ref.String(), "error", err)
		return
	}
	e.activate(n.ref)
}

func (e *Engine) setStyle(ref widget.Ref, fn func(*style)) {
	name := widgetName(ref)
	s := e.styles[name]
	fn(&s)
	if s.empty() {
		delete(e.styles, name)
	} else {
		e.styles[name] = s
	}
	e.scheduleFlush()
}

// scheduleFlush regenerates the stylesheet once per main loop iteration,
// however many properties changed.
func (e *Engine) scheduleFlush() {
	if e.flushing {
		return
	}
	e.flushing = true
	glib.IdleAdd(func() {
		e.flushing = false
		e.provider.LoadFromString(stylesheet(e.styles))
	})
}

// attach adds child to n's native container.
func (n *node) attach(child *node) {
	switch {
	case n.fixed != nil:
		n.fixed.Put(child.widget, child.position.X, child.position.Y)
	case n.box != nil:
		n.box.Append(child.widget)
	}
	if n.fixed == nil {
		child.place()
	}
}

func (n *node) detach(child *node) {
	switch {
	case n.fixed != nil:
		n.fixed.Remove(child.widget)
	case n.box != nil:
		n.box.Remove(child.widget)
	}
}

// place applies the node's position: absolute inside a container,
// margins inside rows and columns.
func (n *node) place() {
	if n.parent != nil && n.parent.fixed != nil {
		n.parent.fixed.Move(n.widget, n.position.X, n.position.Y)
		return
	}
	base := gtk.BaseWidget(n.widget)
	base.SetMarginStart(int(n.position.X))
	base.SetMarginTop(int(n.position.Y))
}

func applySize(w *gtk.Widget, size widget.Vec2) {
	width, height := -1, -1
	if size.X > 0 {
		width = int(size.X)
	}
	if size.Y > 0 {
		height = int(size.Y)
	}
	w.SetSizeRequest(width, height)
}

// setTexture loads a texture by file path or icon name.
func setTexture(img *gtk.Image, texture string) {
	switch {
	case texture == "":
		img.Clear()
	case strings.ContainsRune(texture, '/'):
		img.SetFromFile(texture)
	default:
		img.SetFromIconName(texture)
	}
}

// sanitizeClassName converts a string to a valid CSS class name.
func sanitizeClassName(name string) string {
	var result strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			result.WriteRune(r)
			prevHyphen = false
		case r == '-' || r == '_' || r == ' ' || r == '.' || r == '/':
			if !prevHyphen && result.Len() > 0 {
				result.WriteRune('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimSuffix(result.String(), "-")
}
