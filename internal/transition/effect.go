package transition

import (
	"errors"
	"time"

	"github.com/jmylchreest/uiv1/internal/widget"
)

// Direction is whether an effect brings a window in or takes it out.
type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Effect plays one transition on a widget. It is advanced by the window
// manager once per tick and never blocks.
type Effect struct {
	kind    Kind
	dir     Direction
	asset   Asset
	target  widget.Handle
	elapsed time.Duration
	done    bool
}

// NewEffect creates an effect for target. A None kind or zero-duration
// asset produces an effect that completes on the first Advance.
func NewEffect(kind Kind, dir Direction, asset Asset, target widget.Handle) *Effect {
	return &Effect{kind: kind, dir: dir, asset: asset, target: target}
}

// Kind returns the transition kind.
func (e *Effect) Kind() Kind { return e.kind }

// Direction returns whether the effect is an entry or exit.
func (e *Effect) Direction() Direction { return e.dir }

// Done reports whether the effect reached its end.
func (e *Effect) Done() bool { return e.done }

// Progress returns linear progress in [0,1].
func (e *Effect) Progress() float64 {
	if e.done {
		return 1
	}
	d := e.asset.Duration.Duration()
	if d <= 0 {
		return 1
	}
	return min(float64(e.elapsed)/float64(d), 1)
}

// Advance moves the effect forward by dt and applies the resulting visual
// state. It returns true once the effect has finished. A target destroyed
// mid-effect finishes the effect without error.
func (e *Effect) Advance(dt time.Duration) (bool, error) {
	if e.done {
		return true, nil
	}
	e.elapsed += dt
	p := e.Progress()
	if err := e.apply(p); err != nil {
		if errors.Is(err, widget.ErrStaleReference) {
			e.done = true
			return true, nil
		}
		return false, err
	}
	if p >= 1 {
		e.done = true
	}
	return e.done, nil
}

// Finish jumps straight to the end state.
func (e *Effect) Finish() error {
	if e.done {
		return nil
	}
	e.done = true
	err := e.apply(1)
	if errors.Is(err, widget.ErrStaleReference) {
		return nil
	}
	return err
}

// apply sets the target's offset and opacity for linear progress p.
func (e *Effect) apply(p float64) error {
	if e.target.IsZero() || !e.kind.Animated() {
		return nil
	}
	eased := e.asset.Ease(p)

	switch e.kind {
	case SlideIn, SlideOut:
		sign := 1.0
		if e.kind == SlideOut {
			sign = -1
		}
		var x float64
		if e.dir == In {
			x = sign * e.asset.Distance * (1 - eased)
		} else {
			x = -sign * e.asset.Distance * eased
		}
		return e.target.SetOffset(widget.Vec2{X: x})
	case Fade:
		opacity := eased
		if e.dir == Out {
			opacity = 1 - eased
		}
		return e.target.SetOpacity(opacity)
	}
	return nil
}
