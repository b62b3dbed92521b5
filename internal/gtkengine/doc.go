// Package gtkengine implements widget.Backend on GTK4. Window roots become
// layer-shell surfaces; modal roots sit on the overlay layer and grab the
// keyboard. Offsets, scale and color are pushed through a generated
// stylesheet so transitions don't rebuild widgets.
package gtkengine
