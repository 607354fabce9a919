package bus

import "fmt"

// Kind identifies a message variant for routing.
type Kind int

const (
	KindAny Kind = iota
	KindBatteryLoad
	KindSupplying
	KindCharging
	KindShutdownRequest
)

func (k Kind) String() string {
	switch k {
	case KindBatteryLoad:
		return "battery_load"
	case KindSupplying:
		return "supplying"
	case KindCharging:
		return "charging"
	case KindShutdownRequest:
		return "shutdown_request"
	default:
		return "any"
	}
}

// Message is the closed set of payloads carried by the bus. Only the
// variants declared in this package implement it.
type Message interface {
	Kind() Kind
	isMessage()
}

type (
	// BatteryLoad is the charge percentage of one battery device.
	BatteryLoad struct {
		Device  string
		Percent int
	}

	// Supplying reports AC presence on one line power device.
	Supplying struct {
		Device string
		Value  bool
	}

	// Charging reports whether one battery device is charging.
	Charging struct {
		Device string
		Value  bool
	}

	// ShutdownRequest asks the root orchestrator to tear the process down.
	ShutdownRequest struct {
		Reason string
	}
)

func (BatteryLoad) Kind() Kind     { return KindBatteryLoad }
func (Supplying) Kind() Kind       { return KindSupplying }
func (Charging) Kind() Kind        { return KindCharging }
func (ShutdownRequest) Kind() Kind { return KindShutdownRequest }

func (BatteryLoad) isMessage()     {}
func (Supplying) isMessage()       {}
func (Charging) isMessage()        {}
func (ShutdownRequest) isMessage() {}

// Notification is an immutable envelope around a Message. Target is empty
// for broadcasts.
type Notification struct {
	Source  string
	Target  string
	Message Message
}

// Kind returns the payload kind, or KindAny for an empty notification.
func (n Notification) Kind() Kind {
	if n.Message == nil {
		return KindAny
	}

	return n.Message.Kind()
}

func (n Notification) String() string {
	switch m := n.Message.(type) {
	case BatteryLoad:
		return fmt.Sprintf("%s %s=%d%%", n.Source, m.Device, m.Percent)
	case Supplying:
		return fmt.Sprintf("%s %s supplying=%t", n.Source, m.Device, m.Value)
	case Charging:
		return fmt.Sprintf("%s %s charging=%t", n.Source, m.Device, m.Value)
	case ShutdownRequest:
		return fmt.Sprintf("%s shutdown: %s", n.Source, m.Reason)
	default:
		return n.Source + " <empty>"
	}
}
