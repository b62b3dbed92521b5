// Package transition provides window transition effects: the bundled and
// user-supplied assets that describe them, and the per-tick state machine
// that plays them on a widget.
package transition

import "fmt"

// Kind is a window transition effect.
type Kind uint8

const (
	None Kind = iota
	SlideIn
	SlideOut
	Fade
)

var kindNames = map[Kind]string{
	None:     "none",
	SlideIn:  "slide-in",
	SlideOut: "slide-out",
	Fade:     "fade",
}

// String returns the asset name of the transition.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("transition(%d)", uint8(k))
}

// ParseKind converts a transition name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown transition %q", s)
}

// Reverse returns the transition that undoes k, used when a window pushed
// with k is popped.
func (k Kind) Reverse() Kind {
	switch k {
	case SlideIn:
		return SlideOut
	case SlideOut:
		return SlideIn
	default:
		return k
	}
}

// Animated reports whether the transition needs an asset.
func (k Kind) Animated() bool {
	return k != None
}
