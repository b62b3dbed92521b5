package dbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/uiv1"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

func errText(e *dbus.Error) string {
	if e == nil {
		return ""
	}
	return fmt.Sprint(e.Body...)
}

// runCore ticks core on its own goroutine until the test ends.
func runCore(t *testing.T, core *app.Core) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = core.Run(ctx, time.Millisecond)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// onLogic runs fn on the logic goroutine and waits for it.
func onLogic(t *testing.T, core *app.Core, fn func() error) {
	t.Helper()
	errCh := make(chan error, 1)
	core.PushCall(func() { errCh <- fn() })
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("logic goroutine did not run")
	}
}

func newServer(t *testing.T) *Server {
	t.Helper()
	core := app.NewCore(app.Options{})
	runCore(t, core)

	var ui *uiv1.Subsystem
	onLogic(t, core, func() error {
		core.MarkReady()
		windows := window.NewManager(core, widget.NewTable(core, nil, nil), nil, window.Options{})
		v := cleanup.New(core, cleanup.Options{})
		v.Attach(windows)
		ui = uiv1.New(core, windows, v, uiv1.Options{Getenv: func(string) string { return "" }})

		mk := func(name string) (*window.Window, error) {
			root, err := ui.Widgets().CreateRoot(widget.KindContainer, widget.Config{Label: name})
			if err != nil {
				return nil, err
			}
			return window.New(name, root), nil
		}
		other, err := mk("other")
		if err != nil {
			return err
		}
		first, err := mk("first")
		if err != nil {
			return err
		}
		if err := ui.ShowWindow(other); err != nil {
			return err
		}
		if err := ui.ShowWindow(first); err != nil {
			return err
		}
		kept, err := ui.CreateWidget(widget.KindButton, other.Root(), widget.Config{})
		if err != nil {
			return err
		}
		if err := uiv1.CleanupCheck(ui, &struct{}{}, first, kept); err != nil {
			return err
		}
		err = ui.SetRootUICall(uiv1.InboxButton, func() {
			if w, err := mk("inbox"); err == nil {
				_ = ui.ShowWindow(w)
			}
		})
		if err != nil {
			return err
		}
		return ui.DismissCurrent()
	})

	return NewServer(core, func() *uiv1.Subsystem { return ui }, Options{
		Mode: func() string { return "menu" },
	})
}

func TestServer_Methods(t *testing.T) {
	srv := newServer(t)

	name, vendor, _, derr := srv.GetServerInformation()
	require.Nil(t, derr)
	assert.Equal(t, "uiv1d", name)
	assert.Equal(t, "uiv1", vendor)

	stack, derr := srv.Stack()
	require.Nil(t, derr)
	assert.Equal(t, []string{"other"}, stack)

	snap, derr := srv.Snapshot()
	require.Nil(t, derr)
	assert.Contains(t, snap, "mode: menu")
	assert.Contains(t, snap, "name: other")
	assert.Contains(t, snap, "scale: medium")

	leaks, derr := srv.Check()
	require.Nil(t, derr)
	require.Len(t, leaks, 1)
	assert.Equal(t, "first", leaks[0].Window)
	assert.Equal(t, "button", leaks[0].Kind)
	assert.Contains(t, leaks[0].Message, "leak detected")

	leaks, derr = srv.Check()
	require.Nil(t, derr)
	assert.Empty(t, leaks)
	assert.NotNil(t, leaks)

	require.Nil(t, srv.Press("inbox_button"))
	stack, _ = srv.Stack()
	assert.Equal(t, []string{"other", "inbox"}, stack)

	require.Nil(t, srv.Back())
	stack, _ = srv.Stack()
	assert.Equal(t, []string{"other"}, stack)

	assert.Contains(t, errText(srv.Press("jukebox")), "unknown root ui element")
	assert.Contains(t, errText(srv.Press("store_button")), uiv1.ErrNoRootCall.Error())
}

func TestServer_NoSubsystem(t *testing.T) {
	core := app.NewCore(app.Options{})
	runCore(t, core)
	srv := NewServer(core, func() *uiv1.Subsystem { return nil }, Options{})

	_, derr := srv.Snapshot()
	assert.Contains(t, errText(derr), ErrNoSubsystem.Error())
	assert.Contains(t, errText(srv.Back()), ErrNoSubsystem.Error())
}

func TestServer_Timeout(t *testing.T) {
	core := app.NewCore(app.Options{})
	srv := NewServer(core, func() *uiv1.Subsystem { return nil }, Options{Timeout: 20 * time.Millisecond})

	_, derr := srv.Stack()
	assert.Contains(t, errText(derr), ErrTimeout.Error())
}

func TestServer_ReportLeakWithoutBus(t *testing.T) {
	srv := NewServer(app.NewCore(app.Options{}), nil, Options{})
	srv.ReportLeak(cleanup.LeakDetected{Owner: "o", Window: "w", Kind: "text"})
	assert.NoError(t, srv.Stop())
}

func TestIntrospection(t *testing.T) {
	node := introspection()
	assert.Equal(t, DBusPath, node.Name)
	require.Len(t, node.Interfaces, 2)
	iface := node.Interfaces[1]
	assert.Equal(t, DBusInterface, iface.Name)

	var methods []string
	for _, m := range iface.Methods {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"GetServerInformation", "Snapshot", "Stack", "Check", "Back", "Press"}, methods)
	require.Len(t, iface.Signals, 1)
	assert.Equal(t, "LeakDetected", iface.Signals[0].Name)
	assert.Len(t, iface.Signals[0].Args, 6)
}
