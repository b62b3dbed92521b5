package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/uiv1"
)

var (
	// ErrNoSubsystem is returned when no app mode is active.
	ErrNoSubsystem = errors.New("no active ui subsystem")
	// ErrTimeout is returned when the logic goroutine does not run a call
	// in time.
	ErrTimeout = errors.New("logic thread did not respond")
)

// DefaultTimeout bounds how long a bus call waits for the logic goroutine.
const DefaultTimeout = 2 * time.Second

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	// Mode names the active app mode for snapshots.
	Mode    func() string
	Timeout time.Duration
}

// Server implements the debug interface. Exported methods are called by
// godbus on its own goroutines.
type Server struct {
	core    *app.Core
	ui      func() *uiv1.Subsystem
	mode    func() string
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	conn       *dbus.Conn
	serverInfo ServerInfo
	running    bool
}

var _ cleanup.Reporter = (*Server)(nil)

// NewServer creates a debug server. ui returns the active subsystem and is
// only called on the logic goroutine.
func NewServer(core *app.Core, ui func() *uiv1.Subsystem, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		core:       core,
		ui:         ui,
		mode:       opts.Mode,
		timeout:    timeout,
		logger:     logger,
		serverInfo: DefaultServerInfo(),
	}
}

// SetServerInfo sets the information returned by GetServerInformation.
func (s *Server) SetServerInfo(info ServerInfo) {
	s.serverInfo = info
}

// Start connects to the session bus and exports the debug service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}
	if err := conn.Export(introspect.NewIntrospectable(introspection()), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", DBusBusName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus debug server started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// SessionBus is shared; leave it open.
		s.conn = nil
	}

	s.logger.Info("D-Bus debug server stopped")
	return nil
}

// call runs fn with the active subsystem on the logic goroutine and waits
// for it.
func (s *Server) call(op string, fn func(ui *uiv1.Subsystem) error) error {
	done := make(chan error, 1)
	s.core.PushCall(func() {
		ui := s.ui()
		if ui == nil || ui.TornDown() {
			done <- ErrNoSubsystem
			return
		}
		done <- fn(ui)
	})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
}

func busError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.MakeFailedError(err)
}

// GetServerInformation returns information about the debug server.
// D-Bus method: GetServerInformation() -> (sss)
func (s *Server) GetServerInformation() (string, string, string, *dbus.Error) {
	s.logger.Debug("GetServerInformation called")
	return s.serverInfo.Name, s.serverInfo.Vendor, s.serverInfo.Version, nil
}

// Snapshot returns the subsystem state as a YAML document.
// D-Bus method: Snapshot() -> s
func (s *Server) Snapshot() (string, *dbus.Error) {
	s.logger.Debug("Snapshot called")
	var snap uiv1.Snapshot
	err := s.call("snapshot", func(ui *uiv1.Subsystem) error {
		snap = ui.Snapshot()
		if s.mode != nil {
			snap.Mode = s.mode()
		}
		return nil
	})
	if err != nil {
		return "", busError(err)
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return "", busError(err)
	}
	return string(data), nil
}

// Stack returns the window names, bottom first.
// D-Bus method: Stack() -> as
func (s *Server) Stack() ([]string, *dbus.Error) {
	s.logger.Debug("Stack called")
	names := []string{}
	err := s.call("stack", func(ui *uiv1.Subsystem) error {
		for _, w := range ui.Windows().Windows() {
			names = append(names, w.Name())
		}
		return nil
	})
	if err != nil {
		return nil, busError(err)
	}
	return names, nil
}

// Check runs a cleanup check pass and returns the leaks it found.
// D-Bus method: Check() -> a(ssstss)
func (s *Server) Check() ([]LeakInfo, *dbus.Error) {
	s.logger.Debug("Check called")
	var leaks []cleanup.LeakDetected
	err := s.call("check", func(ui *uiv1.Subsystem) error {
		var err error
		leaks, err = ui.Check()
		return err
	})
	if err != nil {
		return nil, busError(err)
	}
	return LeakInfos(leaks), nil
}

// Back performs back navigation on the active window.
// D-Bus method: Back() -> nothing
func (s *Server) Back() *dbus.Error {
	s.logger.Debug("Back called")
	return busError(s.call("back", func(ui *uiv1.Subsystem) error {
		return ui.Back()
	}))
}

// Press presses a root UI element by name, e.g. "inbox_button".
// D-Bus method: Press(s) -> nothing
func (s *Server) Press(element string) *dbus.Error {
	s.logger.Debug("Press called", "element", element)
	e, err := uiv1.ParseRootElement(element)
	if err != nil {
		return busError(err)
	}
	return busError(s.call("press", func(ui *uiv1.Subsystem) error {
		return ui.PressRootUI(e)
	}))
}

// ReportLeak emits the LeakDetected signal while the server is running.
func (s *Server) ReportLeak(l cleanup.LeakDetected) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.emitLeakDetected(conn, NewLeakInfo(l)); err != nil {
		s.logger.Warn("failed to emit LeakDetected signal", "error", err)
	}
}

func (s *Server) emitLeakDetected(conn *dbus.Conn, info LeakInfo) error {
	err := conn.Emit(DBusPath, DBusInterface+".LeakDetected",
		info.Owner, info.Window, info.Kind, info.WindowID, info.Handle, info.Message)
	if err != nil {
		return fmt.Errorf("failed to emit LeakDetected signal: %w", err)
	}
	s.logger.Debug("emitted LeakDetected signal", "owner", info.Owner, "window", info.Window)
	return nil
}

func introspection() *introspect.Node {
	return &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: debugMethods(),
				Signals: debugSignals(),
			},
		},
	}
}

// debugMethods returns the D-Bus method introspection data.
func debugMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "GetServerInformation",
			Args: []introspect.Arg{
				{Name: "name", Type: "s", Direction: "out"},
				{Name: "vendor", Type: "s", Direction: "out"},
				{Name: "version", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Snapshot",
			Args: []introspect.Arg{
				{Name: "yaml", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Stack",
			Args: []introspect.Arg{
				{Name: "windows", Type: "as", Direction: "out"},
			},
		},
		{
			Name: "Check",
			Args: []introspect.Arg{
				{Name: "leaks", Type: "a(ssstss)", Direction: "out"},
			},
		},
		{Name: "Back"},
		{
			Name: "Press",
			Args: []introspect.Arg{
				{Name: "element", Type: "s", Direction: "in"},
			},
		},
	}
}

// debugSignals returns the D-Bus signal introspection data.
func debugSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "LeakDetected",
			Args: []introspect.Arg{
				{Name: "owner", Type: "s"},
				{Name: "window", Type: "s"},
				{Name: "kind", Type: "s"},
				{Name: "window_id", Type: "t"},
				{Name: "handle", Type: "s"},
				{Name: "message", Type: "s"},
			},
		},
	}
}
