package widget

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/uiv1/internal/app"
)

// Ref is a weak reference to a widget: a slot id plus the generation the
// slot had when the widget was created. A ref whose generation no longer
// matches resolves to nothing.
type Ref struct {
	ID  uint32 `yaml:"id" json:"id"`
	Gen uint32 `yaml:"gen" json:"gen"`
}

// IsZero reports whether r refers to no widget.
func (r Ref) IsZero() bool {
	return r.ID == 0
}

func (r Ref) String() string {
	return fmt.Sprintf("#%d.%d", r.ID, r.Gen)
}

// state holds the last applied value of every property.
type state struct {
	text     string
	size     Vec2
	position Vec2
	color    Color
	scale    float64
	opacity  float64
	offset   Vec2
	checked  bool
	visible  bool
	texture  string
}

type slot struct {
	gen      uint32
	used     bool
	alive    bool
	kind     Kind
	label    string
	parent   Ref
	children []Ref
	native   any
	props    state
	onAct    func()
}

// Table owns every live widget and its native object.
type Table struct {
	core    *app.Core
	backend Backend
	logger  *slog.Logger

	// slots[0] is never used so that the zero Ref is always invalid.
	slots []slot
	free  []uint32
	live  int
}

// NewTable creates a widget table. A nil backend selects the headless one.
func NewTable(core *app.Core, backend Backend, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = NewHeadless()
	}
	return &Table{
		core:    core,
		backend: backend,
		logger:  logger,
		slots:   make([]slot, 1, 64),
	}
}

// Core returns the application core the table is bound to.
func (t *Table) Core() *app.Core {
	return t.core
}

// Backend returns the native engine.
func (t *Table) Backend() Backend {
	return t.backend
}

// Count returns the number of live widgets.
func (t *Table) Count() int {
	return t.live
}

func (t *Table) checkThread(op string) error {
	if t.core == nil {
		return nil
	}
	return t.core.CheckThread(op)
}

// lookup returns the slot for r if it is alive and of the same generation.
func (t *Table) lookup(r Ref) *slot {
	if r.ID == 0 || int(r.ID) >= len(t.slots) {
		return nil
	}
	s := &t.slots[r.ID]
	if !s.used || !s.alive || s.gen != r.Gen {
		return nil
	}
	return s
}

// Alive reports whether r still names a live widget.
func (t *Table) Alive(r Ref) bool {
	return t.lookup(r) != nil
}

// Resolve turns a weak reference back into a handle. ok is false when the
// widget has been destroyed.
func (t *Table) Resolve(r Ref) (Handle, bool) {
	s := t.lookup(r)
	if s == nil {
		return Handle{}, false
	}
	return Handle{table: t, ref: r, kind: s.kind}, true
}

// CreateRoot creates a parentless widget, typically a window root.
func (t *Table) CreateRoot(kind Kind, cfg Config) (Handle, error) {
	if err := t.checkThread("create"); err != nil {
		return Handle{}, err
	}
	return t.create(kind, Ref{}, nil, cfg)
}

// Create creates a widget inside parent. The parent must be alive and of a
// container kind.
func (t *Table) Create(kind Kind, parent Handle, cfg Config) (Handle, error) {
	if err := t.checkThread("create"); err != nil {
		return Handle{}, err
	}
	if parent.IsZero() {
		return Handle{}, &InvalidParentError{Reason: "no parent given"}
	}
	if parent.table != t {
		return Handle{}, &InvalidParentError{Parent: parent.ref, Kind: parent.kind, Reason: "parent belongs to another table"}
	}
	ps := t.lookup(parent.ref)
	if ps == nil {
		return Handle{}, &InvalidParentError{Parent: parent.ref, Kind: parent.kind, Reason: "parent is destroyed"}
	}
	if !ps.kind.IsContainer() {
		return Handle{}, &InvalidParentError{Parent: parent.ref, Kind: ps.kind, Reason: "parent is not a container"}
	}
	return t.create(kind, parent.ref, ps.native, cfg)
}

func (t *Table) create(kind Kind, parent Ref, parentNative any, cfg Config) (Handle, error) {
	if kind >= kindCount {
		return Handle{}, fmt.Errorf("create: unknown widget kind %d", kind)
	}

	id := t.allocate()
	ref := Ref{ID: id, Gen: t.slots[id].gen}

	native, err := t.backend.Realize(ref, kind, parentNative, cfg)
	if err != nil {
		t.free = append(t.free, id)
		return Handle{}, &BackendError{Op: "realize " + kind.String(), Cause: err}
	}

	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	opacity := cfg.Opacity
	if opacity == 0 {
		opacity = 1
	}
	color := cfg.Color
	if color == (Color{}) {
		color = White
	}

	t.slots[id] = slot{
		gen:    ref.Gen,
		used:   true,
		alive:  true,
		kind:   kind,
		label:  cfg.Label,
		parent: parent,
		native: native,
		onAct:  cfg.OnActivate,
		props: state{
			text:     cfg.Text,
			size:     cfg.Size,
			position: cfg.Position,
			color:    color,
			scale:    scale,
			opacity:  opacity,
			checked:  cfg.Checked,
			visible:  !cfg.Hidden,
			texture:  cfg.Texture,
		},
	}
	if !parent.IsZero() {
		p := &t.slots[parent.ID]
		p.children = append(p.children, ref)
	}
	t.live++

	return Handle{table: t, ref: ref, kind: kind}, nil
}

func (t *Table) allocate() uint32 {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		return id
	}
	t.slots = append(t.slots, slot{gen: 1})
	return uint32(len(t.slots) - 1)
}

// Destroy destroys the widget and its whole subtree. Destroying a dead
// handle is a no-op.
//
// Every widget in the subtree is marked dead in pre-order before any native
// object is released; native objects are then released in post-order so no
// child outlives its parent's resources.
func (t *Table) Destroy(h Handle) error {
	if err := t.checkThread("destroy"); err != nil {
		return err
	}
	if h.table != t || t.lookup(h.ref) == nil {
		return nil
	}

	var release []uint32
	t.invalidate(h.ref.ID, &release)

	if p := t.lookup(t.slots[h.ref.ID].parent); p != nil {
		for i, c := range p.children {
			if c == h.ref {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}

	for _, id := range release {
		s := &t.slots[id]
		if s.native != nil {
			t.backend.Release(s.native)
		}
		gen := s.gen + 1
		if gen == 0 {
			gen = 1
		}
		t.slots[id] = slot{gen: gen}
		t.free = append(t.free, id)
		t.live--
	}

	t.logger.Debug("destroyed widget subtree",
		"root", h.String(),
		"count", len(release),
	)
	return nil
}

// invalidate flips alive before visiting children and appends ids to
// release after them.
func (t *Table) invalidate(id uint32, release *[]uint32) {
	s := &t.slots[id]
	s.alive = false
	for _, c := range s.children {
		if int(c.ID) < len(t.slots) && t.slots[c.ID].used && t.slots[c.ID].alive && t.slots[c.ID].gen == c.Gen {
			t.invalidate(c.ID, release)
		}
	}
	*release = append(*release, id)
}

// Node is a read-only description of a widget subtree.
type Node struct {
	Ref      Ref    `yaml:"ref" json:"ref"`
	Kind     string `yaml:"kind" json:"kind"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
	Visible  bool   `yaml:"visible" json:"visible"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// Tree describes the live subtree rooted at h.
func (t *Table) Tree(h Handle) (Node, error) {
	s := t.lookup(h.ref)
	if s == nil || h.table != t {
		return Node{}, h.stale("tree")
	}
	return t.describe(h.ref, s), nil
}

func (t *Table) describe(r Ref, s *slot) Node {
	n := Node{
		Ref:     r,
		Kind:    s.kind.String(),
		Label:   s.label,
		Text:    s.props.text,
		Visible: s.props.visible,
	}
	for _, c := range s.children {
		if cs := t.lookup(c); cs != nil {
			n.Children = append(n.Children, t.describe(c, cs))
		}
	}
	return n
}
