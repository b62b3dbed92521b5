package dbus

import (
	"github.com/jmylchreest/uiv1/internal/cleanup"
)

const (
	// DBusInterface is the debug interface name.
	DBusInterface = "io.github.jmylchreest.uiv1.Debug"
	// DBusPath is the debug object path.
	DBusPath = "/io/github/jmylchreest/uiv1/Debug"
	// DBusBusName is the bus name to claim.
	DBusBusName = "io.github.jmylchreest.uiv1"
)

// LeakInfo is a leak as sent over the bus. Signature (ssstss).
type LeakInfo struct {
	Owner    string
	Window   string
	Kind     string
	WindowID uint64
	Handle   string
	Message  string
}

// NewLeakInfo converts a detected leak.
func NewLeakInfo(l cleanup.LeakDetected) LeakInfo {
	info := LeakInfo{
		Owner:    l.Owner,
		Window:   l.Window,
		Kind:     l.Kind,
		WindowID: l.WindowID,
		Message:  l.Error(),
	}
	if !l.Handle.IsZero() {
		info.Handle = l.Handle.String()
	}
	return info
}

// LeakInfos converts a slice of leaks. It never returns nil so the bus
// always sends an array.
func LeakInfos(leaks []cleanup.LeakDetected) []LeakInfo {
	out := make([]LeakInfo, 0, len(leaks))
	for _, l := range leaks {
		out = append(out, NewLeakInfo(l))
	}
	return out
}

// ServerInfo contains information about the debug service.
type ServerInfo struct {
	Name    string // "uiv1d"
	Vendor  string // "uiv1"
	Version string // Build version
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:    "uiv1d",
		Vendor:  "uiv1",
		Version: "0.0.1",
	}
}
