package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls the debug service of a running daemon.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Connect connects to the session bus.
func Connect() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, DBusPath),
	}
}

func (c *Client) method(name string) string {
	return DBusInterface + "." + name
}

// Running reports whether a daemon owns the bus name.
func (c *Client) Running() bool {
	var owner string
	err := c.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, DBusBusName).Store(&owner)
	return err == nil && owner != ""
}

// ServerInfo returns the daemon's server information.
func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := c.obj.CallWithContext(ctx, c.method("GetServerInformation"), 0).
		Store(&info.Name, &info.Vendor, &info.Version)
	return info, err
}

// Snapshot returns the daemon's subsystem snapshot as YAML.
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	var out string
	err := c.obj.CallWithContext(ctx, c.method("Snapshot"), 0).Store(&out)
	return out, err
}

// Stack returns the window names, bottom first.
func (c *Client) Stack(ctx context.Context) ([]string, error) {
	var out []string
	err := c.obj.CallWithContext(ctx, c.method("Stack"), 0).Store(&out)
	return out, err
}

// Check runs a cleanup check pass in the daemon.
func (c *Client) Check(ctx context.Context) ([]LeakInfo, error) {
	var out []LeakInfo
	err := c.obj.CallWithContext(ctx, c.method("Check"), 0).Store(&out)
	return out, err
}

// Back performs back navigation in the daemon.
func (c *Client) Back(ctx context.Context) error {
	return c.obj.CallWithContext(ctx, c.method("Back"), 0).Err
}

// Press presses a root UI element in the daemon.
func (c *Client) Press(ctx context.Context, element string) error {
	return c.obj.CallWithContext(ctx, c.method("Press"), 0, element).Err
}

// WatchLeaks calls fn for every LeakDetected signal until ctx is done.
func (c *Client) WatchLeaks(ctx context.Context, fn func(LeakInfo)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchMember("LeakDetected"),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}
	defer func() { _ = c.conn.RemoveMatchSignal(opts...) }()

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			if sig.Name != DBusInterface+".LeakDetected" {
				continue
			}
			if info, ok := parseLeakSignal(sig.Body); ok {
				fn(info)
			}
		}
	}
}

// parseLeakSignal decodes the LeakDetected signal body.
func parseLeakSignal(body []any) (LeakInfo, bool) {
	if len(body) != 6 {
		return LeakInfo{}, false
	}
	var info LeakInfo
	var ok [6]bool
	info.Owner, ok[0] = body[0].(string)
	info.Window, ok[1] = body[1].(string)
	info.Kind, ok[2] = body[2].(string)
	info.WindowID, ok[3] = body[3].(uint64)
	info.Handle, ok[4] = body[4].(string)
	info.Message, ok[5] = body[5].(string)
	for _, v := range ok {
		if !v {
			return LeakInfo{}, false
		}
	}
	return info, true
}
