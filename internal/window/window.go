// Package window implements the window stack: windows owning widget
// subtrees, navigation between them and the transitions played on the way.
package window

import (
	"fmt"

	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/widget"
)

// State is a window's lifecycle state.
type State uint8

const (
	Pending State = iota
	Active
	Suspended
	Closing
	Destroyed
)

var stateNames = [...]string{
	Pending:   "pending",
	Active:    "active",
	Suspended: "suspended",
	Closing:   "closing",
	Destroyed: "destroyed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// RestoreFunc recreates a window for back navigation.
type RestoreFunc func() (*Window, error)

// BackState describes where back navigation from the bottom window leads.
type BackState struct {
	Name      string
	Auxiliary bool
	Restore   RestoreFunc
	Parent    *BackState
}

// Depth returns the length of the back-state chain.
func (b *BackState) Depth() int {
	n := 0
	for s := b; s != nil; s = s.Parent {
		n++
	}
	return n
}

// Window is a logical screen owning its root widget and everything below.
type Window struct {
	id         uint64
	name       string
	root       widget.Handle
	transition transition.Kind
	modal      bool
	auxiliary  bool
	topLevel   bool
	onBack     func() bool
	restore    RestoreFunc

	onActivated []func()
	onDestroyed []func()

	state     State
	effect    *transition.Effect
	managed   bool
	scheduled bool
	backState *BackState
}

// Option configures a Window.
type Option func(*Window)

// WithTransition sets the entry transition; popping plays its reverse.
func WithTransition(k transition.Kind) Option {
	return func(w *Window) { w.transition = k }
}

// WithModal marks the window as modal.
func WithModal(modal bool) Option {
	return func(w *Window) { w.modal = modal }
}

// WithAuxiliary marks the window as auxiliary: opened from a toolbar
// rather than through normal navigation.
func WithAuxiliary(aux bool) Option {
	return func(w *Window) { w.auxiliary = aux }
}

// WithTopLevel marks the window as top level: replacing into it records no
// back-state.
func WithTopLevel() Option {
	return func(w *Window) { w.topLevel = true }
}

// WithOnBack sets the back handler. It returns true if it handled the
// request; otherwise the window is popped.
func WithOnBack(fn func() bool) Option {
	return func(w *Window) { w.onBack = fn }
}

// WithRestore lets the window be recreated by back navigation after it was
// replaced.
func WithRestore(fn RestoreFunc) Option {
	return func(w *Window) { w.restore = fn }
}

// WithBackState sets where back navigation leads once nothing is below.
func WithBackState(b *BackState) Option {
	return func(w *Window) { w.backState = b }
}

// OnActivated registers fn to run each time the window becomes active.
func OnActivated(fn func()) Option {
	return func(w *Window) { w.onActivated = append(w.onActivated, fn) }
}

// OnDestroyed registers fn to run once when the window is destroyed.
func OnDestroyed(fn func()) Option {
	return func(w *Window) { w.onDestroyed = append(w.onDestroyed, fn) }
}

// New creates a window around an existing root widget. The window takes
// ownership of the root's subtree.
func New(name string, root widget.Handle, opts ...Option) *Window {
	w := &Window{
		name:  name,
		root:  root,
		state: Pending,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the manager-assigned id, or 0 before the window is shown.
func (w *Window) ID() uint64 { return w.id }

// Name returns the window name.
func (w *Window) Name() string { return w.name }

// Root returns the root widget.
func (w *Window) Root() widget.Handle { return w.root }

// Transition returns the entry transition.
func (w *Window) Transition() transition.Kind { return w.transition }

// Modal reports whether the window is modal.
func (w *Window) Modal() bool { return w.modal }

// Auxiliary reports whether the window is auxiliary.
func (w *Window) Auxiliary() bool { return w.auxiliary }

// State returns the lifecycle state.
func (w *Window) State() State { return w.state }

// BackState returns where back navigation from this window leads when it
// is the bottom window.
func (w *Window) BackState() *BackState { return w.backState }

// SetBackState replaces where back navigation from this window leads.
func (w *Window) SetBackState(b *BackState) { w.backState = b }

// Contains reports whether h belongs to this window's subtree.
func (w *Window) Contains(h widget.Handle) bool {
	return w.state != Destroyed && w.root.Contains(h)
}

// Progress returns the running transition's progress, or 1 if none runs.
func (w *Window) Progress() float64 {
	if w.effect == nil {
		return 1
	}
	return w.effect.Progress()
}

func (w *Window) String() string {
	return fmt.Sprintf("%s[%d]", w.name, w.id)
}

// Info is a read-only snapshot of a window.
type Info struct {
	ID         uint64     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	State      string     `yaml:"state" json:"state"`
	Transition string     `yaml:"transition" json:"transition"`
	Modal      bool       `yaml:"modal" json:"modal"`
	Auxiliary  bool       `yaml:"auxiliary,omitempty" json:"auxiliary,omitempty"`
	Progress   float64    `yaml:"progress" json:"progress"`
	Root       widget.Ref `yaml:"root" json:"root"`
	BackDepth  int        `yaml:"back_depth,omitempty" json:"back_depth,omitempty"`
}

// Info returns a snapshot of the window.
func (w *Window) Info() Info {
	return Info{
		ID:         w.id,
		Name:       w.name,
		State:      w.state.String(),
		Transition: w.transition.String(),
		Modal:      w.modal,
		Auxiliary:  w.auxiliary,
		Progress:   w.Progress(),
		Root:       w.root.Ref(),
		BackDepth:  w.backState.Depth(),
	}
}
