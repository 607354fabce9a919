package systembus

import (
	"context"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/power"
	"github.com/godbus/dbus/v5"
)

const (
	busName     = "org.freedesktop.UPower"
	rootPath    = dbus.ObjectPath("/org/freedesktop/UPower")
	rootIface   = "org.freedesktop.UPower"
	deviceIface = "org.freedesktop.UPower.Device"

	enumerateMethod = rootIface + ".EnumerateDevices"
	propertyMethod  = "org.freedesktop.DBus.Properties.Get"

	propVersion    = "DaemonVersion"
	propType       = "Type"
	propPercentage = "Percentage"
	propState      = "State"
	propOnline     = "Online"
)

// Source reads power devices from the UPower daemon over the system bus.
type Source struct {
	caller  Caller
	timeout time.Duration
	logger  logger.Logger
}

var _ power.Source = (*Source)(nil)

// Connect opens a system bus connection. The caller owns the returned
// Source and must Close it.
func Connect(timeout time.Duration) (*Source, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrConnectFailed, err)
	}

	return New(&connCaller{conn: conn}, timeout), nil
}

func New(caller Caller, timeout time.Duration) *Source {
	return &Source{
		caller:  caller,
		timeout: timeout,
		logger:  logger.Component("systembus"),
	}
}

func (s *Source) Close() error {
	return s.caller.Close()
}

func (s *Source) Version(ctx context.Context) (string, error) {
	v, err := s.property(ctx, rootPath, rootIface, propVersion)
	if err != nil {
		return "", err
	}

	version, err := asString(v)
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", errors.New().New(ErrNoVersion)
	}

	return version, nil
}

// Devices enumerates UPower devices. A device whose Type cannot be read
// is classified from its object path instead.
func (s *Source) Devices(ctx context.Context) ([]power.Device, error) {
	var paths []dbus.ObjectPath
	if err := s.call(ctx, rootPath, enumerateMethod, &paths); err != nil {
		return nil, err
	}

	devices := make([]power.Device, 0, len(paths))
	for _, p := range paths {
		id := string(p)
		kind := power.Classify(id)

		v, err := s.property(ctx, p, deviceIface, propType)
		if err == nil {
			var t uint32
			if t, err = asUint32(v); err == nil {
				kind = kindFromType(t)
			}
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("device", id).Msg("Failed to read device type, using object path")
		}

		devices = append(devices, power.Device{ID: id, Kind: kind})
	}

	return devices, nil
}

func (s *Source) BatteryLoad(ctx context.Context, id string) (int, error) {
	v, err := s.property(ctx, dbus.ObjectPath(id), deviceIface, propPercentage)
	if err != nil {
		return 0, err
	}

	return asPercent(v)
}

func (s *Source) Charging(ctx context.Context, id string) (bool, error) {
	v, err := s.property(ctx, dbus.ObjectPath(id), deviceIface, propState)
	if err != nil {
		return false, err
	}

	state, err := asUint32(v)
	if err != nil {
		return false, err
	}

	return state == stateCharging, nil
}

func (s *Source) Supplying(ctx context.Context, id string) (bool, error) {
	v, err := s.property(ctx, dbus.ObjectPath(id), deviceIface, propOnline)
	if err != nil {
		return false, err
	}

	return asBool(v)
}

func (s *Source) property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.call(ctx, path, propertyMethod, &v, iface, name)

	return v, err
}

func (s *Source) call(ctx context.Context, path dbus.ObjectPath, method string, out any, args ...any) error {
	errFactory := errors.New()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.caller.Call(ctx, path, method, out, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errFactory.Wrap(ErrQueryTimeout, err)
		}
		return errFactory.WithData(ErrCallFailed, struct {
			Path   string
			Method string
			Error  string
		}{
			Path:   string(path),
			Method: method,
			Error:  err.Error(),
		})
	}

	return nil
}
