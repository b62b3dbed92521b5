// Package daemon provides the main orchestration for uiv1d.
// It coordinates the app core, the widget table, the window manager,
// the cleanup verifier, the report log, sound cues, the debug bus service
// and configuration hot-reload.
package daemon
