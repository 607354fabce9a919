package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/powerwatch/internal/bus"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/metrics"
	"codeberg.org/mutker/powerwatch/internal/power"
)

// discover replaces the device snapshot. A failed enumeration keeps the
// previous snapshot; before the first success it stores an empty one.
func (m *Module) discover(ctx context.Context) {
	start := time.Now()
	defer func() { m.metrics.ObserveCycle(pollerDiscovery, time.Since(start)) }()

	devices, err := m.source.Devices(context.WithoutCancel(ctx))
	m.metrics.ObserveQuery(pollerDiscovery, time.Since(start), err)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Device discovery failed")
		if m.snapshots.Load() != nil {
			return
		}
		devices = nil
	}

	prev := m.snapshots.Load()
	snap := m.snapshots.Store(devices)

	for _, kind := range []power.Kind{power.KindBattery, power.KindLinePower, power.KindOther} {
		m.metrics.SetDevices(kind.String(), len(snap.OfKind(kind)))
	}

	m.logChanges(ctx, prev, snap)
}

func (m *Module) logChanges(ctx context.Context, prev, next *power.Snapshot) {
	known := make(map[string]struct{}, prev.Len())
	if prev != nil {
		for _, d := range prev.Devices {
			known[d.ID] = struct{}{}
		}
	}

	// Describe costs a query per device and only feeds debug output.
	var describer Describer
	if logger.DebugEnabled() {
		describer, _ = m.source.(Describer)
	}
	for _, d := range next.Devices {
		if _, ok := known[d.ID]; ok {
			delete(known, d.ID)
			continue
		}
		m.logger.Info().Str("device", d.ID).Stringer("kind", d.Kind).Msg("Device discovered")

		if describer == nil || d.Kind == power.KindOther || ctx.Err() != nil {
			continue
		}
		details, err := describer.Describe(ctx, d.ID)
		if err != nil {
			m.logger.Debug().Err(err).Str("device", d.ID).Msg("Failed to describe device")
			continue
		}
		event := m.logger.Debug().Str("device", d.ID)
		for k, v := range details {
			event = event.Str(k, v)
		}
		event.Msg("Device details")
	}

	for id := range known {
		m.logger.Info().Str("device", id).Msg("Device removed")
	}

	m.logger.Debug().
		Uint64("generation", next.Generation).
		Int("devices", next.Len()).
		Msg("Device snapshot updated")
}

// pollBattery publishes one BatteryLoad per battery in the current
// snapshot. Unreadable values are published as 0; out-of-range values are
// clamped. A started query is not interrupted by ctx, its result is
// published, and no further device is queried once ctx is done.
func (m *Module) pollBattery(ctx context.Context) {
	start := time.Now()
	defer func() { m.metrics.ObserveCycle(pollerBattery, time.Since(start)) }()

	for _, d := range m.Snapshot().OfKind(power.KindBattery) {
		if ctx.Err() != nil {
			return
		}

		t := time.Now()
		percent, err := m.source.BatteryLoad(context.WithoutCancel(ctx), d.ID)
		m.metrics.ObserveQuery(pollerBattery, time.Since(t), err)
		if err != nil {
			m.logger.Warn().Err(err).Str("device", d.ID).Msg("Battery load query failed")
			percent = 0
		}

		clamped, err := power.ClampPercent(percent)
		if err != nil {
			m.logger.Warn().Err(err).Str("device", d.ID).Int("percent", percent).Msg("Battery load out of range, clamped")
			m.metrics.IncOutOfRange(d.ID)
		}

		m.publish(bus.BatteryLoad{Device: d.ID, Percent: clamped})
		m.metrics.SetBatteryLoad(d.ID, clamped)
	}
}

// pollCharge publishes Supplying for line power devices, then Charging
// for batteries. Failed queries publish false.
func (m *Module) pollCharge(ctx context.Context) {
	start := time.Now()
	defer func() { m.metrics.ObserveCycle(pollerCharge, time.Since(start)) }()

	snap := m.Snapshot()

	for _, d := range snap.OfKind(power.KindLinePower) {
		if ctx.Err() != nil {
			return
		}
		value := m.queryFlag(ctx, d.ID, metrics.FlagSupplying, m.source.Supplying)
		m.publish(bus.Supplying{Device: d.ID, Value: value})
	}

	for _, d := range snap.OfKind(power.KindBattery) {
		if ctx.Err() != nil {
			return
		}
		value := m.queryFlag(ctx, d.ID, metrics.FlagCharging, m.source.Charging)
		m.publish(bus.Charging{Device: d.ID, Value: value})
	}
}

// queryFlag runs query to completion even if ctx is cancelled meanwhile.
func (m *Module) queryFlag(
	ctx context.Context,
	id, flag string,
	query func(context.Context, string) (bool, error),
) bool {
	t := time.Now()
	value, err := query(context.WithoutCancel(ctx), id)
	m.metrics.ObserveQuery(pollerCharge, time.Since(t), err)
	if err != nil {
		m.logger.Warn().Err(err).Str("device", id).Str("flag", flag).Msg("Power flag query failed")
		value = false
	}

	m.metrics.SetFlag(flag, id, value)

	return value
}
