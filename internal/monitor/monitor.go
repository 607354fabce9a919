package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/powerwatch/internal/bus"
	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/metrics"
	"codeberg.org/mutker/powerwatch/internal/poller"
	"codeberg.org/mutker/powerwatch/internal/power"
)

const (
	pollerDiscovery = "discovery"
	pollerBattery   = "battery"
	pollerCharge    = "charge"
)

// Describer is implemented by sources that can dump the raw properties of
// a device.
type Describer interface {
	Describe(ctx context.Context, id string) (map[string]string, error)
}

// Module owns the device snapshot and the discovery, battery, and
// charge/supply pollers, and publishes their readings on the bus.
type Module struct {
	id          string
	bus         *bus.Bus
	source      power.Source
	metrics     metrics.Collector
	intervals   Intervals
	inboxBuffer int
	logger      logger.Logger

	snapshots power.SnapshotStore
	pollers   []*poller.Poller
	inbox     *bus.Subscriber

	running      atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func New(b *bus.Bus, source power.Source, opts ...Option) *Module {
	m := &Module{
		id:          DefaultID,
		bus:         b,
		source:      source,
		metrics:     metrics.Noop(),
		intervals:   DefaultIntervals(),
		inboxBuffer: bus.DefaultBuffer,
		logger:      logger.Component("monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Module) ID() string {
	return m.id
}

func (m *Module) Running() bool {
	return m.running.Load()
}

// Snapshot returns the device list of the last completed discovery.
func (m *Module) Snapshot() *power.Snapshot {
	return m.snapshots.Load()
}

// Start probes the source and, when it answers, takes the initial device
// snapshot and launches the pollers. When the source is unusable a
// ShutdownRequest is published, nothing is started, and false is returned.
func (m *Module) Start(ctx context.Context) bool {
	errFactory := errors.New()

	version, err := m.source.Version(ctx)
	if err == nil && version == "" {
		err = errFactory.New(ErrSourceUnavailable)
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("Power source unavailable, requesting shutdown")
		m.publish(bus.ShutdownRequest{Reason: "power source unavailable: " + err.Error()})
		return false
	}
	m.logger.Info().Str("version", version).Msg("Power source available")

	ctx, m.cancel = context.WithCancel(ctx)

	m.discover(ctx)

	m.pollers = []*poller.Poller{
		// The initial snapshot was just taken.
		poller.New(pollerDiscovery, m.intervals.Discovery, m.discover,
			poller.WithInitialDelay(m.intervals.Discovery)),
		poller.New(pollerBattery, m.intervals.Battery, m.pollBattery),
		poller.New(pollerCharge, m.intervals.Charge, m.pollCharge),
	}
	for _, p := range m.pollers {
		if err := p.Start(ctx); err != nil {
			m.logger.Error().Err(err).Str("poller", p.Name()).Msg("Failed to start poller, requesting shutdown")
			m.stopPollers()
			m.cancel()
			m.publish(bus.ShutdownRequest{Reason: "poller " + p.Name() + " failed to start"})
			return false
		}
	}

	m.inbox = bus.NewSubscriber(m.id, m.inboxBuffer)
	m.bus.Register(m.inbox, bus.Targeted())
	m.wg.Add(1)
	go m.serve(ctx)

	m.running.Store(true)
	m.logger.Info().
		Dur("discovery", m.intervals.Discovery).
		Dur("battery", m.intervals.Battery).
		Dur("charge", m.intervals.Charge).
		Int("devices", m.Snapshot().Len()).
		Msg("Power monitor started")

	return true
}

// Shutdown stops the pollers and leaves the bus. Only the first call has
// an effect.
func (m *Module) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.running.Store(false)
		m.stopPollers()

		if m.inbox != nil {
			m.bus.Unregister(m.inbox)
		}
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()

		m.logger.Info().Msg("Power monitor stopped")
	})
}

func (m *Module) stopPollers() {
	for _, p := range m.pollers {
		p.Stop()
	}
	for _, p := range m.pollers {
		p.Wait()
	}
}

// serve drains requests addressed to the module. No request kinds are
// handled yet.
func (m *Module) serve(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-m.inbox.C():
			m.logger.Debug().Str("from", n.Source).Stringer("kind", n.Kind()).Msg("Ignoring unsupported request")
		}
	}
}

func (m *Module) publish(msg bus.Message) {
	m.bus.Publish(bus.Notification{Source: m.id, Message: msg})
}
