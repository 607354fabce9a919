package metrics

import "time"

// Collector receives instrumentation from the monitor, the bus, and the
// warning consumer.
type Collector interface {
	ObserveQuery(poller string, d time.Duration, err error)
	ObserveCycle(poller string, d time.Duration)
	SetDevices(kind string, n int)
	SetBatteryLoad(device string, percent int)
	SetFlag(flag, device string, value bool)
	IncOutOfRange(device string)
	IncDropped(subscriber string)
	IncWarning(level string)
	// Addr is the bound HTTP address, empty when nothing is served.
	Addr() string
	Close() error
}

// Flag names accepted by SetFlag
const (
	FlagSupplying = "supplying"
	FlagCharging  = "charging"
)
