// Package cleanup verifies that objects built around a window's widgets let
// go of them once the window is destroyed.
//
// Screen code registers every object that captures widget handles. After
// the owning window is destroyed, a check pass reports each registered
// handle that is still alive, and optionally each owner object that is
// still reachable, as a LeakDetected diagnostic. Nothing here ever aborts
// the running application.
package cleanup

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"weak"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

// Policy controls when check passes run.
type Policy string

const (
	// PolicyUpkeep checks on every upkeep timer tick.
	PolicyUpkeep Policy = "upkeep"
	// PolicyOnDemand checks only when Check is called explicitly.
	PolicyOnDemand Policy = "on-demand"
	// PolicyOff disables checking entirely.
	PolicyOff Policy = "off"
)

// ParsePolicy converts a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyUpkeep, PolicyOnDemand, PolicyOff:
		return p, nil
	case "":
		return PolicyUpkeep, nil
	}
	return "", fmt.Errorf("unknown cleanup policy %q", s)
}

// ErrLeakDetected is the sentinel wrapped by every LeakDetected.
var ErrLeakDetected = errors.New("leak detected")

// LeakDetected describes one reference that outlived its window.
type LeakDetected struct {
	Owner    string     `json:"owner" yaml:"owner"`
	Window   string     `json:"window" yaml:"window"`
	WindowID uint64     `json:"window_id" yaml:"window_id"`
	Handle   widget.Ref `json:"handle" yaml:"handle"`
	// Kind is the widget kind, or "owner" when the owner object itself
	// is still reachable.
	Kind         string        `json:"kind" yaml:"kind"`
	RegisteredAt time.Duration `json:"registered_at" yaml:"registered_at"`
	DetectedAt   time.Duration `json:"detected_at" yaml:"detected_at"`
}

// OwnerKind is the Kind reported when the owner object leaked.
const OwnerKind = "owner"

func (l LeakDetected) Error() string {
	if l.Kind == OwnerKind {
		return fmt.Sprintf("%s: %s still reachable after window %s was destroyed",
			ErrLeakDetected.Error(), l.Owner, l.Window)
	}
	return fmt.Sprintf("%s: %s holds live %s%s after window %s was destroyed",
		ErrLeakDetected.Error(), l.Owner, l.Kind, l.Handle, l.Window)
}

func (l LeakDetected) Unwrap() error {
	return ErrLeakDetected
}

// Reporter receives every leak found by a check pass.
type Reporter interface {
	ReportLeak(LeakDetected)
}

// Reporters fans a leak out to several reporters.
type Reporters []Reporter

func (rs Reporters) ReportLeak(l LeakDetected) {
	for _, r := range rs {
		if r != nil {
			r.ReportLeak(l)
		}
	}
}

type entry struct {
	owner        string
	reachable    func() bool
	window       *window.Window
	handles      []widget.Handle
	registeredAt time.Duration

	destroyedAt time.Duration
	destroySeen bool
	handlesDone bool
}

// Options configures a Verifier.
type Options struct {
	Logger   *slog.Logger
	Policy   Policy
	Reporter Reporter
	// OwnerGrace enables owner reachability checks: an owner still
	// reachable this long after its window was destroyed is reported.
	// Zero disables them.
	OwnerGrace time.Duration
}

// Verifier tracks registered owners. All methods must be called on the
// logic thread.
type Verifier struct {
	core       *app.Core
	logger     *slog.Logger
	policy     Policy
	reporter   Reporter
	ownerGrace time.Duration

	entries  []*entry
	seq      uint64
	reported int
}

// New creates a verifier.
func New(core *app.Core, opts Options) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyUpkeep
	}
	return &Verifier{
		core:       core,
		logger:     logger,
		policy:     policy,
		reporter:   opts.Reporter,
		ownerGrace: opts.OwnerGrace,
	}
}

// Policy returns the check policy.
func (v *Verifier) Policy() Policy {
	return v.policy
}

// SetReporter replaces the leak reporter.
func (v *Verifier) SetReporter(r Reporter) {
	v.reporter = r
}

// Attach records window destruction times from m, used for the owner grace
// period.
func (v *Verifier) Attach(m *window.Manager) {
	m.OnWindowDestroyed(func(w *window.Window) {
		now := v.core.AppTime()
		for _, e := range v.entries {
			if e.window == w && !e.destroySeen {
				e.destroySeen = true
				e.destroyedAt = now
			}
		}
	})
}

// Register records that owner was built around handles belonging to w.
// The owner is held weakly.
func Register[T any](v *Verifier, owner *T, w *window.Window, handles ...widget.Handle) error {
	if err := v.core.CheckThread("cleanup_register"); err != nil {
		return err
	}
	if owner == nil {
		return errors.New("cleanup register: nil owner")
	}
	if w == nil {
		return errors.New("cleanup register: nil window")
	}
	if v.policy == PolicyOff {
		return nil
	}

	v.seq++
	wp := weak.Make(owner)
	e := &entry{
		owner:        fmt.Sprintf("%T#%d", owner, v.seq),
		reachable:    func() bool { return wp.Value() != nil },
		window:       w,
		handles:      append([]widget.Handle(nil), handles...),
		registeredAt: v.core.AppTime(),
	}
	v.entries = append(v.entries, e)

	v.logger.Debug("registered cleanup check",
		"owner", e.owner,
		"window", w.String(),
		"handles", len(handles),
	)
	return nil
}

// Pending returns the number of entries not yet validated.
func (v *Verifier) Pending() int {
	return len(v.entries)
}

// Reported returns the number of leaks reported so far.
func (v *Verifier) Reported() int {
	return v.reported
}

// Upkeep runs a check pass if the policy is PolicyUpkeep.
func (v *Verifier) Upkeep() ([]LeakDetected, error) {
	if v.policy != PolicyUpkeep {
		return nil, nil
	}
	return v.Check()
}

// Check validates every entry whose window has been destroyed, reports
// leaks and drops validated entries. Entries for live windows are kept.
// Running it twice without new registrations reports nothing new.
func (v *Verifier) Check() ([]LeakDetected, error) {
	if err := v.core.CheckThread("cleanup_check"); err != nil {
		return nil, err
	}
	if v.policy == PolicyOff {
		return nil, nil
	}

	now := v.core.AppTime()
	var leaks []LeakDetected
	kept := v.entries[:0]

	for _, e := range v.entries {
		if e.window.State() != window.Destroyed {
			kept = append(kept, e)
			continue
		}
		if !e.destroySeen {
			e.destroySeen = true
			e.destroyedAt = now
		}

		if !e.handlesDone {
			e.handlesDone = true
			for _, h := range e.handles {
				if h.Alive() {
					leaks = append(leaks, v.leak(e, h.Ref(), h.Kind().String(), now))
				}
			}
		}

		if v.ownerGrace > 0 {
			if now-e.destroyedAt < v.ownerGrace {
				kept = append(kept, e)
				continue
			}
			if e.reachable() {
				leaks = append(leaks, v.leak(e, widget.Ref{}, OwnerKind, now))
			}
		}
	}
	clear(v.entries[len(kept):])
	v.entries = kept

	for _, l := range leaks {
		v.logger.Warn("cleanup check failed",
			"owner", l.Owner,
			"window", l.Window,
			"kind", l.Kind,
			"handle", l.Handle.String(),
		)
		if v.reporter != nil {
			v.reporter.ReportLeak(l)
		}
	}
	v.reported += len(leaks)
	return leaks, nil
}

func (v *Verifier) leak(e *entry, ref widget.Ref, kind string, now time.Duration) LeakDetected {
	return LeakDetected{
		Owner:        e.owner,
		Window:       e.window.Name(),
		WindowID:     e.window.ID(),
		Handle:       ref,
		Kind:         kind,
		RegisteredAt: e.registeredAt,
		DetectedAt:   now,
	}
}
