package widget

import "fmt"

// Handle is a non-owning reference to a widget. Handles are small values;
// copies refer to the same widget. The zero Handle refers to nothing.
type Handle struct {
	table *Table
	ref   Ref
	kind  Kind
}

// Ref returns the weak reference backing the handle.
func (h Handle) Ref() Ref { return h.ref }

// Kind returns the widget kind. It stays readable after destruction.
func (h Handle) Kind() Kind { return h.kind }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.table == nil || h.ref.IsZero() }

// Alive reports whether the native widget still exists.
func (h Handle) Alive() bool {
	return h.table != nil && h.table.Alive(h.ref)
}

func (h Handle) String() string {
	return h.kind.String() + h.ref.String()
}

func (h Handle) stale(op string) error {
	return &StaleReferenceError{Op: op, Ref: h.ref, Kind: h.kind}
}

// get resolves the slot for a read.
func (h Handle) get(op string) (*slot, error) {
	if h.table == nil {
		return nil, h.stale(op)
	}
	s := h.table.lookup(h.ref)
	if s == nil {
		return nil, h.stale(op)
	}
	return s, nil
}

// mutate resolves the slot for a write of prop: thread, liveness and kind
// support are checked in that order.
func (h Handle) mutate(op string, prop Prop) (*slot, error) {
	if h.table != nil {
		if err := h.table.checkThread(op); err != nil {
			return nil, err
		}
	}
	s, err := h.get(op)
	if err != nil {
		return nil, err
	}
	if !s.kind.Supports(prop) {
		return nil, fmt.Errorf("%s on %s: %w %s", op, h, ErrUnsupportedProp, prop)
	}
	return s, nil
}

func (h Handle) apply(op string, s *slot, prop Prop, value any) error {
	if s.native == nil {
		return nil
	}
	if err := h.table.backend.Apply(s.native, prop, value); err != nil {
		return &BackendError{Op: op, Cause: err}
	}
	return nil
}

func (h Handle) read(op string, prop Prop) (*slot, error) {
	s, err := h.get(op)
	if err != nil {
		return nil, err
	}
	if !s.kind.Supports(prop) {
		return nil, fmt.Errorf("%s on %s: %w %s", op, h, ErrUnsupportedProp, prop)
	}
	return s, nil
}

// Label returns the widget's debug label.
func (h Handle) Label() (string, error) {
	s, err := h.get("label")
	if err != nil {
		return "", err
	}
	return s.label, nil
}

// Text returns the displayed text.
func (h Handle) Text() (string, error) {
	s, err := h.read("get_text", PropText)
	if err != nil {
		return "", err
	}
	return s.props.text, nil
}

// SetText changes the displayed text.
func (h Handle) SetText(text string) error {
	s, err := h.mutate("set_text", PropText)
	if err != nil {
		return err
	}
	s.props.text = text
	return h.apply("set_text", s, PropText, text)
}

// Size returns the widget size.
func (h Handle) Size() (Vec2, error) {
	s, err := h.read("get_size", PropSize)
	if err != nil {
		return Vec2{}, err
	}
	return s.props.size, nil
}

// SetSize changes the widget size.
func (h Handle) SetSize(size Vec2) error {
	s, err := h.mutate("set_size", PropSize)
	if err != nil {
		return err
	}
	s.props.size = size
	return h.apply("set_size", s, PropSize, size)
}

// Position returns the widget position within its parent.
func (h Handle) Position() (Vec2, error) {
	s, err := h.read("get_position", PropPosition)
	if err != nil {
		return Vec2{}, err
	}
	return s.props.position, nil
}

// SetPosition moves the widget within its parent.
func (h Handle) SetPosition(pos Vec2) error {
	s, err := h.mutate("set_position", PropPosition)
	if err != nil {
		return err
	}
	s.props.position = pos
	return h.apply("set_position", s, PropPosition, pos)
}

// Color returns the widget color.
func (h Handle) Color() (Color, error) {
	s, err := h.read("get_color", PropColor)
	if err != nil {
		return Color{}, err
	}
	return s.props.color, nil
}

// SetColor changes the widget color.
func (h Handle) SetColor(c Color) error {
	s, err := h.mutate("set_color", PropColor)
	if err != nil {
		return err
	}
	s.props.color = c
	return h.apply("set_color", s, PropColor, c)
}

// Scale returns the widget scale factor.
func (h Handle) Scale() (float64, error) {
	s, err := h.read("get_scale", PropScale)
	if err != nil {
		return 0, err
	}
	return s.props.scale, nil
}

// SetScale changes the widget scale factor.
func (h Handle) SetScale(scale float64) error {
	s, err := h.mutate("set_scale", PropScale)
	if err != nil {
		return err
	}
	s.props.scale = scale
	return h.apply("set_scale", s, PropScale, scale)
}

// Opacity returns the widget opacity.
func (h Handle) Opacity() (float64, error) {
	s, err := h.read("get_opacity", PropOpacity)
	if err != nil {
		return 0, err
	}
	return s.props.opacity, nil
}

// SetOpacity changes the widget opacity, clamped to [0,1].
func (h Handle) SetOpacity(opacity float64) error {
	s, err := h.mutate("set_opacity", PropOpacity)
	if err != nil {
		return err
	}
	opacity = min(max(opacity, 0), 1)
	s.props.opacity = opacity
	return h.apply("set_opacity", s, PropOpacity, opacity)
}

// Offset returns the transient draw offset used by transitions.
func (h Handle) Offset() (Vec2, error) {
	s, err := h.read("get_offset", PropOffset)
	if err != nil {
		return Vec2{}, err
	}
	return s.props.offset, nil
}

// SetOffset changes the transient draw offset.
func (h Handle) SetOffset(off Vec2) error {
	s, err := h.mutate("set_offset", PropOffset)
	if err != nil {
		return err
	}
	s.props.offset = off
	return h.apply("set_offset", s, PropOffset, off)
}

// Checked returns the checkbox state.
func (h Handle) Checked() (bool, error) {
	s, err := h.read("get_checked", PropChecked)
	if err != nil {
		return false, err
	}
	return s.props.checked, nil
}

// SetChecked changes the checkbox state.
func (h Handle) SetChecked(checked bool) error {
	s, err := h.mutate("set_checked", PropChecked)
	if err != nil {
		return err
	}
	s.props.checked = checked
	return h.apply("set_checked", s, PropChecked, checked)
}

// Texture returns the texture name.
func (h Handle) Texture() (string, error) {
	s, err := h.read("get_texture", PropTexture)
	if err != nil {
		return "", err
	}
	return s.props.texture, nil
}

// SetTexture changes the texture name.
func (h Handle) SetTexture(name string) error {
	s, err := h.mutate("set_texture", PropTexture)
	if err != nil {
		return err
	}
	s.props.texture = name
	return h.apply("set_texture", s, PropTexture, name)
}

// Visible reports whether the widget is shown.
func (h Handle) Visible() (bool, error) {
	s, err := h.read("get_visible", PropVisible)
	if err != nil {
		return false, err
	}
	return s.props.visible, nil
}

// SetVisible shows or hides the widget.
func (h Handle) SetVisible(visible bool) error {
	s, err := h.mutate("set_visible", PropVisible)
	if err != nil {
		return err
	}
	s.props.visible = visible
	return h.apply("set_visible", s, PropVisible, visible)
}

// Children returns the live children in creation order.
func (h Handle) Children() ([]Handle, error) {
	s, err := h.get("children")
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(s.children))
	for _, c := range s.children {
		if ch, ok := h.table.Resolve(c); ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Parent returns the parent widget. The zero Handle is returned for roots.
func (h Handle) Parent() (Handle, error) {
	s, err := h.get("parent")
	if err != nil {
		return Handle{}, err
	}
	p, _ := h.table.Resolve(s.parent)
	return p, nil
}

// Contains reports whether other is h or one of its live descendants.
func (h Handle) Contains(other Handle) bool {
	if h.table == nil || other.table != h.table {
		return false
	}
	r := other.ref
	for !r.IsZero() {
		if r == h.ref {
			return h.Alive()
		}
		s := h.table.lookup(r)
		if s == nil {
			return false
		}
		r = s.parent
	}
	return false
}

// Activate runs the widget's activation callback, as a press would.
func (h Handle) Activate() error {
	if h.table != nil {
		if err := h.table.checkThread("activate"); err != nil {
			return err
		}
	}
	s, err := h.get("activate")
	if err != nil {
		return err
	}
	if fn := s.onAct; fn != nil {
		fn()
	}
	return nil
}

// Destroy destroys the widget and its subtree. See Table.Destroy.
func (h Handle) Destroy() error {
	if h.table == nil {
		return nil
	}
	return h.table.Destroy(h)
}
