package gtkengine

import (
	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// surface describes how a root window is placed on the layer shell.
type surface struct {
	layer    layershell.LayerShellLayer
	keyboard layershell.LayerShellKeyboardMode
}

func surfaceFor(modal bool) surface {
	if modal {
		return surface{
			layer:    layershell.LayerShellLayerOverlay,
			keyboard: layershell.LayerShellKeyboardModeExclusive,
		}
	}
	return surface{
		layer:    layershell.LayerShellLayerTop,
		keyboard: layershell.LayerShellKeyboardModeOnDemand,
	}
}

// initSurface turns window into a centred layer-shell surface. With no
// anchors set the compositor centres it on the output.
func initSurface(window *gtk.Window, modal bool) {
	s := surfaceFor(modal)
	layershell.InitForWindow(window)
	layershell.SetNamespace(window, "uiv1")
	layershell.SetLayer(window, s.layer)
	layershell.SetKeyboardMode(window, s.keyboard)
	layershell.SetExclusiveZone(window, 0)
	for _, edge := range []layershell.LayerShellEdge{
		layershell.LayerShellEdgeTop,
		layershell.LayerShellEdgeBottom,
		layershell.LayerShellEdgeLeft,
		layershell.LayerShellEdgeRight,
	} {
		layershell.SetAnchor(window, edge, false)
	}
}

// colorSchemeClass returns "dark" or "light" from the libadwaita style
// manager.
func colorSchemeClass() string {
	if adw.StyleManagerGetDefault().Dark() {
		return "dark"
	}
	return "light"
}
