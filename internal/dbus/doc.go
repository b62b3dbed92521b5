// Package dbus exports the uiv1 debug service on the session bus. It lets
// tools inspect the live window stack, run cleanup checks and drive back
// navigation. Every call is marshalled onto the logic goroutine.
package dbus
