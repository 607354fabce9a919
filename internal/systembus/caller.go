package systembus

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// Caller performs method calls against the UPower service.
type Caller interface {
	Call(ctx context.Context, path dbus.ObjectPath, method string, out any, args ...any) error
	Close() error
}

type connCaller struct {
	conn *dbus.Conn
}

func (c *connCaller) Call(ctx context.Context, path dbus.ObjectPath, method string, out any, args ...any) error {
	return c.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...).Store(out)
}

func (c *connCaller) Close() error {
	return c.conn.Close()
}
