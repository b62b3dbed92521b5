package transition

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/uiv1/internal/config"
)

// ErrTransitionAsset is returned when a transition asset is missing or invalid.
var ErrTransitionAsset = errors.New("transition asset unavailable")

// TransitionAssetError reports a cosmetic failure to load a transition.
type TransitionAssetError struct {
	Kind  Kind
	Path  string
	Cause error
}

func (e *TransitionAssetError) Error() string {
	msg := fmt.Sprintf("%s %q", ErrTransitionAsset.Error(), e.Kind.String())
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransitionAssetError) Unwrap() error {
	return ErrTransitionAsset
}

// Easing names accepted in assets.
const (
	EaseLinear    = "linear"
	EaseIn        = "ease-in"
	EaseOut       = "ease-out"
	EaseInOut     = "ease-in-out"
	maxAssetDelay = 10 * time.Second
)

var easings = map[string]func(float64) float64{
	EaseLinear: func(p float64) float64 { return p },
	EaseIn:     func(p float64) float64 { return p * p * p },
	EaseOut:    func(p float64) float64 { return 1 - math.Pow(1-p, 3) },
	EaseInOut: func(p float64) float64 {
		if p < 0.5 {
			return 4 * p * p * p
		}
		return 1 - math.Pow(-2*p+2, 3)/2
	},
}

// Asset describes how a transition is played.
type Asset struct {
	Duration config.Duration `toml:"duration"`
	Easing   string          `toml:"easing"`
	// Distance is the slide distance in UI units; ignored by fades.
	Distance float64 `toml:"distance"`
	// Sound is the audio cue played when the transition starts.
	Sound string `toml:"sound"`

	// Source is where the asset was loaded from.
	Source string `toml:"-"`
}

// ParseAsset decodes and validates a TOML asset.
func ParseAsset(data []byte) (Asset, error) {
	var a Asset
	if err := toml.Unmarshal(data, &a); err != nil {
		return Asset{}, err
	}
	if a.Easing == "" {
		a.Easing = EaseOut
	}
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// Validate checks that the asset can be played.
func (a Asset) Validate() error {
	d := a.Duration.Duration()
	if d <= 0 || d > maxAssetDelay {
		return fmt.Errorf("duration must be between 0 and %s, got %s", maxAssetDelay, d)
	}
	if _, ok := easings[a.Easing]; !ok {
		return fmt.Errorf("unknown easing %q", a.Easing)
	}
	if a.Distance < 0 {
		return fmt.Errorf("distance must not be negative, got %g", a.Distance)
	}
	return nil
}

// Ease maps linear progress in [0,1] through the asset's easing curve.
func (a Asset) Ease(p float64) float64 {
	p = min(max(p, 0), 1)
	if fn, ok := easings[a.Easing]; ok {
		return fn(p)
	}
	return p
}
