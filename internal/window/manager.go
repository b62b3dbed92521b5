package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/widget"
)

var (
	// ErrAlreadyShown is returned when a window is pushed twice.
	ErrAlreadyShown = errors.New("window already shown")
	// ErrNoBackState is returned when a window has nowhere to go back to.
	ErrNoBackState = errors.New("no back-state")
	// ErrAlreadyOwned is returned when a window's root belongs to, or
	// contains, another window's widgets.
	ErrAlreadyOwned = errors.New("widget subtree already owned by a window")
)

// Assets resolves transition kinds to assets.
type Assets interface {
	Lookup(k transition.Kind) (transition.Asset, error)
}

// Sounds plays transition sound cues.
type Sounds interface {
	Play(cue string) error
}

// CosmeticError wraps a failure that was downgraded to a warning.
type CosmeticError struct {
	Op     string
	Window string
	Cause  error
}

func (e *CosmeticError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Window, e.Cause)
}

func (e *CosmeticError) Unwrap() error {
	return e.Cause
}

// Options configures a Manager.
type Options struct {
	Logger *slog.Logger
	Sounds Sounds
	Tracer trace.Tracer
	// OnCosmeticFailure is called for every downgraded failure.
	OnCosmeticFailure func(*CosmeticError)
}

// Manager owns the window stack. All methods must be called on the logic
// thread.
type Manager struct {
	core    *app.Core
	widgets *widget.Table
	assets  Assets
	sounds  Sounds
	tracer  trace.Tracer
	logger  *slog.Logger

	onCosmetic func(*CosmeticError)
	observers  []func(*Window)

	// stack[len-1] is the top. closing holds popped windows still playing
	// their exit transition.
	stack   []*Window
	closing []*Window

	nextID     uint64
	removeTick func()
}

// NewManager creates a window manager and hooks it into the core's tick.
func NewManager(core *app.Core, widgets *widget.Table, assets Assets, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	m := &Manager{
		core:       core,
		widgets:    widgets,
		assets:     assets,
		sounds:     opts.Sounds,
		tracer:     tracer,
		logger:     logger,
		onCosmetic: opts.OnCosmeticFailure,
	}
	m.removeTick = core.OnTick(m.advance)
	return m
}

// Close unhooks the manager from the core. It does not touch the windows;
// call Teardown first.
func (m *Manager) Close() {
	if m.removeTick != nil {
		m.removeTick()
		m.removeTick = nil
	}
}

// Widgets returns the widget table the windows are built from.
func (m *Manager) Widgets() *widget.Table {
	return m.widgets
}

// OnWindowDestroyed registers fn to run after any window is destroyed.
func (m *Manager) OnWindowDestroyed(fn func(*Window)) {
	m.observers = append(m.observers, fn)
}

// Depth returns the number of windows on the stack.
func (m *Manager) Depth() int {
	return len(m.stack)
}

// Top returns the top window, or nil if the stack is empty.
func (m *Manager) Top() *Window {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// Active returns the interactive window, or nil while the top window is
// still transitioning in.
func (m *Manager) Active() *Window {
	if top := m.Top(); top != nil && top.state == Active {
		return top
	}
	return nil
}

// Windows returns the stack from bottom to top.
func (m *Manager) Windows() []*Window {
	out := make([]*Window, len(m.stack))
	copy(out, m.stack)
	return out
}

// Closing returns the windows still playing their exit transition.
func (m *Manager) Closing() []*Window {
	out := make([]*Window, len(m.closing))
	copy(out, m.closing)
	return out
}

// Snapshot describes the stack from bottom to top, followed by closing
// windows.
func (m *Manager) Snapshot() []Info {
	out := make([]Info, 0, len(m.stack)+len(m.closing))
	for _, w := range m.stack {
		out = append(out, w.Info())
	}
	for _, w := range m.closing {
		out = append(out, w.Info())
	}
	return out
}

func (m *Manager) span(op string, w *Window) trace.Span {
	_, span := m.tracer.Start(context.Background(), "window."+op,
		trace.WithAttributes(
			attribute.String("window.name", w.name),
			attribute.Int("stack.depth", len(m.stack)),
		),
	)
	return span
}

func (m *Manager) admit(op string, w *Window) error {
	if err := m.core.CheckThread(op); err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("%s: nil window", op)
	}
	if w.managed || w.state != Pending {
		return fmt.Errorf("%s %s: %w", op, w.name, ErrAlreadyShown)
	}
	if !w.root.Alive() {
		return fmt.Errorf("%s %s: root: %w", op, w.name, widget.ErrStaleReference)
	}
	if err := m.checkOwnership(w); err != nil {
		return fmt.Errorf("%s %s: %w", op, w.name, err)
	}
	m.nextID++
	w.id = m.nextID
	w.managed = true
	return nil
}

// checkOwnership rejects a root that is not a tree root or that overlaps
// the subtree of a window on the stack or still closing.
func (m *Manager) checkOwnership(w *Window) error {
	parent, err := w.root.Parent()
	if err != nil {
		return err
	}
	if !parent.IsZero() {
		return fmt.Errorf("root %s is a child of %s: %w", w.root, parent, ErrAlreadyOwned)
	}
	for _, list := range [][]*Window{m.stack, m.closing} {
		for _, o := range list {
			if o.root.Contains(w.root) || w.root.Contains(o.root) {
				return fmt.Errorf("root %s overlaps window %s: %w", w.root, o, ErrAlreadyOwned)
			}
		}
	}
	return nil
}

// Push shows w on top of the stack. The previous top is suspended; w is
// pending until its entry transition finishes.
func (m *Manager) Push(w *Window) error {
	if err := m.admit("push_window", w); err != nil {
		return err
	}
	span := m.span("push", w)
	defer span.End()

	m.settle()
	if prev := m.Top(); prev != nil {
		m.suspend(prev)
	}
	m.stack = append(m.stack, w)
	m.enter(w, m.startEffect("push_window", w, w.transition, transition.In))

	m.logger.Debug("pushed window", "window", w.String(), "depth", len(m.stack))
	return nil
}

// Pop closes the top window and activates the one below. With one or no
// window on the stack it does nothing: the bottom window is the baseline.
func (m *Manager) Pop() error {
	if err := m.core.CheckThread("pop_window"); err != nil {
		return err
	}
	if len(m.stack) <= 1 {
		return nil
	}

	top := m.stack[len(m.stack)-1]
	span := m.span("pop", top)
	defer span.End()

	m.settle()
	m.stack = m.stack[:len(m.stack)-1]
	m.close(top, m.startEffect("pop_window", top, top.transition.Reverse(), transition.Out))
	m.activate(m.Top())

	m.logger.Debug("popped window", "window", top.String(), "depth", len(m.stack))
	return nil
}

// Replace swaps the top window for w in one step with a single combined
// transition. On an empty stack it behaves like Push. If the outgoing
// window can be restored, w remembers it for back navigation.
func (m *Manager) Replace(w *Window) error {
	return m.replace(w, true)
}

func (m *Manager) replace(w *Window, recordBack bool) error {
	if len(m.stack) == 0 {
		return m.Push(w)
	}
	if err := m.admit("replace_window", w); err != nil {
		return err
	}
	span := m.span("replace", w)
	defer span.End()

	m.settle()
	old := m.stack[len(m.stack)-1]
	if recordBack && !w.topLevel && old.restore != nil && w.backState == nil {
		w.backState = &BackState{
			Name:      old.name,
			Auxiliary: old.auxiliary,
			Restore:   old.restore,
			Parent:    old.backState,
		}
	}
	m.stack[len(m.stack)-1] = w

	asset, ok := m.lookup("replace_window", w, w.transition)
	if ok {
		m.playCue("replace_window", w, asset)
	}
	m.close(old, m.effect(w.transition, transition.Out, asset, old, ok))
	m.enter(w, m.effect(w.transition, transition.In, asset, w, ok))

	m.logger.Debug("replaced window", "old", old.String(), "new", w.String())
	return nil
}

// Back performs back navigation on the active window: its handler runs
// first; if unhandled the window is popped, and if it is the bottom window
// its back-state is restored in its place.
func (m *Manager) Back() error {
	if err := m.core.CheckThread("back"); err != nil {
		return err
	}
	top := m.Active()
	if top == nil {
		m.logger.Debug("back ignored: no active window")
		return nil
	}
	if top.onBack != nil && top.onBack() {
		return nil
	}
	if len(m.stack) > 1 {
		return m.Pop()
	}
	if err := m.RestoreBackState(); err != nil && !errors.Is(err, ErrNoBackState) {
		return err
	}
	return nil
}

// RestoreBackState replaces the top window with the window its back-state
// describes, skipping any back handler. The restored window inherits the
// rest of the chain.
func (m *Manager) RestoreBackState() error {
	if err := m.core.CheckThread("restore_back_state"); err != nil {
		return err
	}
	top := m.Top()
	if top == nil {
		return fmt.Errorf("restore back-state: %w", ErrNoBackState)
	}
	bs := top.backState
	if bs == nil || bs.Restore == nil {
		return fmt.Errorf("restore back-state %s: %w", top.name, ErrNoBackState)
	}
	w, err := bs.Restore()
	if err != nil {
		return fmt.Errorf("restore %s: %w", bs.Name, err)
	}
	if w.backState == nil {
		w.backState = bs.Parent
	}
	if bs.Auxiliary {
		w.auxiliary = true
	}
	return m.replace(w, false)
}

// Teardown destroys every window immediately, top first, including those
// still closing. The stack is empty afterwards.
func (m *Manager) Teardown() error {
	if err := m.core.CheckThread("teardown"); err != nil {
		return err
	}

	closing := m.closing
	m.closing = nil
	for i := len(closing) - 1; i >= 0; i-- {
		m.destroy(closing[i])
	}

	stack := m.stack
	m.stack = nil
	for i := len(stack) - 1; i >= 0; i-- {
		m.destroy(stack[i])
	}

	m.logger.Debug("tore down window stack", "windows", len(stack)+len(closing))
	return nil
}

// settle forces every running transition to its end state. Callbacks for
// the interrupted phase fire here and never again.
func (m *Manager) settle() {
	for _, w := range m.stack {
		if w.state == Pending && w.effect != nil {
			m.finishEffect("interrupt", w)
			m.activate(w)
		}
	}
	for _, w := range m.closing {
		if w.effect != nil {
			m.finishEffect("interrupt", w)
			m.scheduleDestroy(w)
		}
	}
}

func (m *Manager) finishEffect(op string, w *Window) {
	e := w.effect
	w.effect = nil
	if err := e.Finish(); err != nil {
		m.cosmetic(op, w, err)
	}
}

// advance moves every running transition forward. Called once per tick.
func (m *Manager) advance(dt time.Duration) {
	for _, w := range m.stack {
		if w.state != Pending || w.effect == nil {
			continue
		}
		if m.step(w, dt) {
			m.activate(w)
		}
	}
	for _, w := range m.closing {
		if w.effect == nil {
			continue
		}
		if m.step(w, dt) {
			m.scheduleDestroy(w)
		}
	}
}

func (m *Manager) step(w *Window, dt time.Duration) bool {
	done, err := w.effect.Advance(dt)
	if err != nil {
		m.cosmetic("transition", w, err)
		done = true
	}
	if done {
		w.effect = nil
	}
	return done
}

func (m *Manager) lookup(op string, w *Window, k transition.Kind) (transition.Asset, bool) {
	if !k.Animated() || m.assets == nil {
		return transition.Asset{}, false
	}
	asset, err := m.assets.Lookup(k)
	if err != nil {
		m.cosmetic(op, w, err)
		return transition.Asset{}, false
	}
	return asset, true
}

func (m *Manager) playCue(op string, w *Window, asset transition.Asset) {
	if m.sounds == nil || asset.Sound == "" {
		return
	}
	if err := m.sounds.Play(asset.Sound); err != nil {
		m.cosmetic(op, w, err)
	}
}

// startEffect looks up the asset for k and creates the effect, or returns
// nil if the transition cannot be played.
func (m *Manager) startEffect(op string, w *Window, k transition.Kind, dir transition.Direction) *transition.Effect {
	asset, ok := m.lookup(op, w, k)
	if ok {
		m.playCue(op, w, asset)
	}
	return m.effect(k, dir, asset, w, ok)
}

func (m *Manager) effect(k transition.Kind, dir transition.Direction, asset transition.Asset, w *Window, ok bool) *transition.Effect {
	if !ok {
		return nil
	}
	e := transition.NewEffect(k, dir, asset, w.root)
	// Apply the first frame so the window never shows at rest.
	if _, err := e.Advance(0); err != nil {
		m.cosmetic("transition", w, err)
		return nil
	}
	if e.Done() {
		return nil
	}
	return e
}

// enter puts a newly stacked window into Pending with its entry effect, or
// straight into Active if there is nothing to play.
func (m *Manager) enter(w *Window, e *transition.Effect) {
	w.state = Pending
	w.effect = e
	if e == nil {
		m.activate(w)
	}
}

// close moves a window off the stack into Closing.
func (m *Manager) close(w *Window, e *transition.Effect) {
	w.state = Closing
	w.effect = e
	m.closing = append(m.closing, w)
	if e == nil {
		m.scheduleDestroy(w)
	}
}

func (m *Manager) suspend(w *Window) {
	if w.state == Pending && w.effect != nil {
		m.finishEffect("interrupt", w)
	}
	if w.state == Active || w.state == Pending {
		w.state = Suspended
		m.logger.Debug("suspended window", "window", w.String())
	}
}

func (m *Manager) activate(w *Window) {
	if w == nil || w.state == Active || w.state == Destroyed {
		return
	}
	w.state = Active
	m.logger.Debug("activated window", "window", w.String())
	for _, fn := range w.onActivated {
		fn()
	}
}

// scheduleDestroy destroys w at the end of the current frame.
func (m *Manager) scheduleDestroy(w *Window) {
	if w.scheduled {
		return
	}
	w.scheduled = true
	err := m.core.AddCleanFrameCallback(func() {
		m.removeClosing(w)
		m.destroy(w)
	})
	if err != nil {
		m.logger.Error("failed to schedule window destruction", "window", w.String(), "error", err)
		m.removeClosing(w)
		m.destroy(w)
	}
}

func (m *Manager) removeClosing(w *Window) {
	for i, c := range m.closing {
		if c == w {
			m.closing = append(m.closing[:i], m.closing[i+1:]...)
			return
		}
	}
}

// destroy releases the window's subtree. Destroying twice is a no-op.
func (m *Manager) destroy(w *Window) {
	if w.state == Destroyed {
		return
	}
	w.effect = nil
	if err := w.root.Destroy(); err != nil {
		m.logger.Error("failed to destroy window root", "window", w.String(), "error", err)
	}
	w.state = Destroyed
	m.logger.Debug("destroyed window", "window", w.String())

	for _, fn := range w.onDestroyed {
		fn()
	}
	for _, fn := range m.observers {
		fn(w)
	}
}

func (m *Manager) cosmetic(op string, w *Window, err error) {
	ce := &CosmeticError{Op: op, Window: w.name, Cause: err}
	m.logger.Warn("cosmetic failure", "op", op, "window", w.String(), "error", err)
	if m.onCosmetic != nil {
		m.onCosmetic(ce)
	}
}
