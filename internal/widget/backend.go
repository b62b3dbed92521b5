package widget

// Vec2 is a 2D size, position or offset in UI units.
type Vec2 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Color is an RGBA color with components in [0,1].
type Color struct {
	R float64 `yaml:"r" json:"r"`
	G float64 `yaml:"g" json:"g"`
	B float64 `yaml:"b" json:"b"`
	A float64 `yaml:"a" json:"a"`
}

// White is the default widget color.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// Config is the creation record passed to the native engine.
type Config struct {
	// Label is a debug name shown in diagnostics.
	Label    string
	Text     string
	Size     Vec2
	Position Vec2
	Color    Color
	Scale    float64
	Opacity  float64
	Checked  bool
	Texture  string
	Hidden   bool

	// Modal is a hint for roots: engines may raise a modal surface above
	// other windows.
	Modal bool

	// OnActivate runs on the logic thread when the widget is activated.
	OnActivate func()
}

// Backend is the native widget engine. All calls happen on the logic thread.
type Backend interface {
	// Realize creates the native object for a widget. parent is the native
	// object returned for the parent widget, or nil for roots.
	Realize(ref Ref, kind Kind, parent any, cfg Config) (any, error)

	// Apply pushes a property change to a native object.
	Apply(native any, prop Prop, value any) error

	// Release frees a native object. Children are always released before
	// their parent.
	Release(native any)
}
