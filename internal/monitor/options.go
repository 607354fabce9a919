package monitor

import (
	"time"

	"codeberg.org/mutker/powerwatch/internal/metrics"
)

const (
	DefaultID = "power-monitor"

	DefaultDiscoveryInterval = 60 * time.Second
	DefaultBatteryInterval   = 10 * time.Second
	DefaultChargeInterval    = 5 * time.Second
)

// Intervals holds the sleep between cycles of each poller.
type Intervals struct {
	Discovery time.Duration
	Battery   time.Duration
	Charge    time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Discovery: DefaultDiscoveryInterval,
		Battery:   DefaultBatteryInterval,
		Charge:    DefaultChargeInterval,
	}
}

type Option func(*Module)

func WithIntervals(iv Intervals) Option {
	return func(m *Module) {
		m.intervals = iv
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(m *Module) {
		if c != nil {
			m.metrics = c
		}
	}
}

// WithID sets the bus identity used as notification source and as the
// target address for requests.
func WithID(id string) Option {
	return func(m *Module) {
		m.id = id
	}
}

// WithInboxBuffer sizes the targeted request subscriber.
func WithInboxBuffer(n int) Option {
	return func(m *Module) {
		m.inboxBuffer = n
	}
}
