package power

import "context"

// Source is the device information capability the monitor depends on.
// Every call may block on the OS for a noticeable time.
type Source interface {
	// Version probes the backend once at startup. An error or an empty
	// version means the backend is unusable.
	Version(ctx context.Context) (string, error)

	// Devices enumerates the power devices known to the backend.
	Devices(ctx context.Context) ([]Device, error)

	// BatteryLoad returns the raw charge percentage of a battery. Absent or
	// unparseable data yields 0 together with an error.
	BatteryLoad(ctx context.Context, id string) (int, error)

	// Charging reports whether a battery is charging; false on error.
	Charging(ctx context.Context, id string) (bool, error)

	// Supplying reports whether a line power device is online; false on error.
	Supplying(ctx context.Context, id string) (bool, error)
}

// Domain types
type (
	Kind int

	Device struct {
		ID   string
		Kind Kind
	}
)

const (
	KindOther Kind = iota
	KindBattery
	KindLinePower
)

func (k Kind) String() string {
	switch k {
	case KindBattery:
		return "battery"
	case KindLinePower:
		return "line-power"
	default:
		return "other"
	}
}
