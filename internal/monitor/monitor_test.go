package monitor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/powerwatch/internal/bus"
	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/metrics"
	"codeberg.org/mutker/powerwatch/internal/monitor"
	"codeberg.org/mutker/powerwatch/internal/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bat0 = "/org/freedesktop/UPower/devices/battery_BAT0"
	bat1 = "/org/freedesktop/UPower/devices/battery_BAT1"
	ac   = "/org/freedesktop/UPower/devices/line_power_AC"
	ac2  = "/org/freedesktop/UPower/devices/line_power_AC2"
)

var errQuery = errors.New().New(errors.ErrOperationFailed)

type mockSource struct {
	mu         sync.Mutex
	version    string
	versionErr error
	devices    []power.Device
	devicesErr error
	load       int
	loadErr    error
	charging   bool
	supplying  bool
	// failing devices return errQuery from every per-device query
	failing map[string]bool
	// entered and release hold BatteryLoad open until release is closed
	entered chan struct{}
	release chan struct{}

	queries      atomic.Int64
	devicesCalls atomic.Int64
}

func newMock() *mockSource {
	return &mockSource{
		version:   "0.99.17",
		devices:   []power.Device{{ID: bat0, Kind: power.KindBattery}, {ID: ac, Kind: power.KindLinePower}},
		load:      55,
		charging:  true,
		supplying: true,
	}
}

func (s *mockSource) set(fn func(*mockSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *mockSource) Version(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.versionErr
}

func (s *mockSource) Devices(context.Context) ([]power.Device, error) {
	s.devicesCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devicesErr != nil {
		return nil, s.devicesErr
	}
	return append([]power.Device(nil), s.devices...), nil
}

func (s *mockSource) BatteryLoad(_ context.Context, id string) (int, error) {
	s.queries.Add(1)
	s.hold()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[id] {
		return 0, errQuery
	}
	return s.load, s.loadErr
}

func (s *mockSource) Charging(_ context.Context, id string) (bool, error) {
	s.queries.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[id] {
		return true, errQuery
	}
	return s.charging, nil
}

func (s *mockSource) Supplying(_ context.Context, id string) (bool, error) {
	s.queries.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[id] {
		return true, errQuery
	}
	return s.supplying, nil
}

func (s *mockSource) hold() {
	s.mu.Lock()
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if release == nil {
		return
	}
	select {
	case entered <- struct{}{}:
	default:
	}
	<-release
}

type countingCollector struct {
	metrics.Collector
	outOfRange atomic.Int64
}

func (c *countingCollector) IncOutOfRange(string) {
	c.outOfRange.Add(1)
}

func fast() monitor.Option {
	return monitor.WithIntervals(monitor.Intervals{
		Discovery: time.Hour,
		Battery:   10 * time.Millisecond,
		Charge:    10 * time.Millisecond,
	})
}

// waitFor reads from sub until match returns true or the deadline passes.
func waitFor(t *testing.T, sub *bus.Subscriber, match func(bus.Message) bool) bus.Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-sub.C():
			if match(n.Message) {
				return n
			}
		case <-deadline:
			require.FailNow(t, "notification not observed")
		}
	}
}

func TestEndToEnd(t *testing.T) {
	b := bus.New()
	sub := bus.NewSubscriber("test", 256)
	b.Register(sub, bus.All())

	m := monitor.New(b, newMock(), fast())
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()
	assert.True(t, m.Running())

	var gotLoad, gotCharging, gotSupplying bool
	waitFor(t, sub, func(msg bus.Message) bool {
		switch v := msg.(type) {
		case bus.BatteryLoad:
			gotLoad = gotLoad || (v.Device == bat0 && v.Percent == 55)
		case bus.Charging:
			gotCharging = gotCharging || (v.Device == bat0 && v.Value)
		case bus.Supplying:
			gotSupplying = gotSupplying || (v.Device == ac && v.Value)
		}
		return gotLoad && gotCharging && gotSupplying
	})
}

func TestNotificationSource(t *testing.T) {
	b := bus.New()
	sub := bus.NewSubscriber("test", 64)
	b.Register(sub, bus.OfKind(bus.KindBatteryLoad))

	m := monitor.New(b, newMock(), fast(), monitor.WithID("laptop"))
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	n := waitFor(t, sub, func(bus.Message) bool { return true })
	assert.Equal(t, "laptop", n.Source)
	assert.Empty(t, n.Target)
	assert.Equal(t, "laptop", m.ID())
}

func TestUnavailableSource(t *testing.T) {
	for name, mutate := range map[string]func(*mockSource){
		"error":         func(s *mockSource) { s.versionErr = errQuery },
		"empty version": func(s *mockSource) { s.version = "" },
	} {
		t.Run(name, func(t *testing.T) {
			src := newMock()
			src.set(mutate)

			b := bus.New()
			sub := bus.NewSubscriber("root", 8)
			b.Register(sub, bus.OfKind(bus.KindShutdownRequest))

			m := monitor.New(b, src, fast())
			assert.False(t, m.Start(context.Background()))
			assert.False(t, m.Running())

			n := waitFor(t, sub, func(bus.Message) bool { return true })
			assert.IsType(t, bus.ShutdownRequest{}, n.Message)

			time.Sleep(30 * time.Millisecond)
			assert.Zero(t, src.devicesCalls.Load())
			assert.Zero(t, src.queries.Load())
			assert.Nil(t, m.Snapshot())
			assert.Equal(t, 1, b.Subscribers())

			m.Shutdown()
		})
	}
}

func TestInitialSnapshotBeforePollers(t *testing.T) {
	src := newMock()
	m := monitor.New(bus.New(), src, fast())
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, []power.Device{{ID: bat0, Kind: power.KindBattery}}, snap.OfKind(power.KindBattery))
	assert.Equal(t, int64(1), src.devicesCalls.Load())
}

func TestMalformedPercentPublishesZero(t *testing.T) {
	src := newMock()
	src.set(func(s *mockSource) {
		s.load = 0
		s.loadErr = errors.New().WithData(errors.ErrOperationFailed, "N/A")
	})

	b := bus.New()
	sub := bus.NewSubscriber("test", 64)
	b.Register(sub, bus.OfKind(bus.KindBatteryLoad))

	m := monitor.New(b, src, fast())
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	n := waitFor(t, sub, func(bus.Message) bool { return true })
	assert.Equal(t, bus.BatteryLoad{Device: bat0, Percent: 0}, n.Message)
}

func TestFailedDeviceDoesNotAbortCycle(t *testing.T) {
	src := newMock()
	src.set(func(s *mockSource) {
		s.devices = []power.Device{
			{ID: bat0, Kind: power.KindBattery},
			{ID: bat1, Kind: power.KindBattery},
			{ID: ac, Kind: power.KindLinePower},
			{ID: ac2, Kind: power.KindLinePower},
		}
		s.load = 77
		s.failing = map[string]bool{bat0: true, ac: true}
	})

	b := bus.New()
	loads := bus.NewSubscriber("loads", 64)
	charging := bus.NewSubscriber("charging", 64)
	supplying := bus.NewSubscriber("supplying", 64)
	b.Register(loads, bus.OfKind(bus.KindBatteryLoad))
	b.Register(charging, bus.OfKind(bus.KindCharging))
	b.Register(supplying, bus.OfKind(bus.KindSupplying))

	m := monitor.New(b, src, fast())
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	next := func(bus.Message) bool { return true }

	assert.Equal(t, bus.BatteryLoad{Device: bat0, Percent: 0}, waitFor(t, loads, next).Message)
	assert.Equal(t, bus.BatteryLoad{Device: bat1, Percent: 77}, waitFor(t, loads, next).Message)

	assert.Equal(t, bus.Charging{Device: bat0, Value: false}, waitFor(t, charging, next).Message)
	assert.Equal(t, bus.Charging{Device: bat1, Value: true}, waitFor(t, charging, next).Message)

	assert.Equal(t, bus.Supplying{Device: ac, Value: false}, waitFor(t, supplying, next).Message)
	assert.Equal(t, bus.Supplying{Device: ac2, Value: true}, waitFor(t, supplying, next).Message)
}

func TestOutOfRangeIsClampedAndCounted(t *testing.T) {
	src := newMock()
	src.set(func(s *mockSource) { s.load = 130 })
	collector := &countingCollector{Collector: metrics.Noop()}

	b := bus.New()
	sub := bus.NewSubscriber("test", 64)
	b.Register(sub, bus.OfKind(bus.KindBatteryLoad))

	m := monitor.New(b, src, fast(), monitor.WithMetrics(collector))
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	n := waitFor(t, sub, func(bus.Message) bool { return true })
	assert.Equal(t, bus.BatteryLoad{Device: bat0, Percent: 100}, n.Message)
	assert.Positive(t, collector.outOfRange.Load())
}

func TestSteadyStateReadingIsIdempotent(t *testing.T) {
	for _, p := range []int{0, 1, 42, 99, 100} {
		src := newMock()
		src.set(func(s *mockSource) { s.load = p })

		b := bus.New()
		sub := bus.NewSubscriber("test", 64)
		b.Register(sub, bus.OfKind(bus.KindBatteryLoad))

		m := monitor.New(b, src, fast())
		require.True(t, m.Start(context.Background()))

		first := waitFor(t, sub, func(bus.Message) bool { return true })
		second := waitFor(t, sub, func(bus.Message) bool { return true })
		m.Shutdown()

		assert.Equal(t, first, second)
	}
}

func TestEnumerationOrderWithinCycle(t *testing.T) {
	src := newMock()
	src.set(func(s *mockSource) {
		s.devices = []power.Device{
			{ID: bat0, Kind: power.KindBattery},
			{ID: bat1, Kind: power.KindBattery},
		}
	})

	b := bus.New()
	sub := bus.NewSubscriber("test", 256)
	b.Register(sub, bus.OfKind(bus.KindCharging))

	m := monitor.New(b, src, fast())
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	first := waitFor(t, sub, func(bus.Message) bool { return true })
	second := waitFor(t, sub, func(bus.Message) bool { return true })
	assert.Equal(t, bat0, first.Message.(bus.Charging).Device)
	assert.Equal(t, bat1, second.Message.(bus.Charging).Device)
}

func TestDiscoveryFailureKeepsSnapshot(t *testing.T) {
	src := newMock()
	m := monitor.New(bus.New(), src, monitor.WithIntervals(monitor.Intervals{
		Discovery: 5 * time.Millisecond,
		Battery:   time.Hour,
		Charge:    time.Hour,
	}))
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	src.set(func(s *mockSource) { s.devicesErr = errQuery })
	require.Eventually(t, func() bool { return src.devicesCalls.Load() >= 4 }, 2*time.Second, time.Millisecond)

	assert.Equal(t, 2, m.Snapshot().Len())
}

func TestDiscoveryReplacesSnapshot(t *testing.T) {
	src := newMock()
	m := monitor.New(bus.New(), src, monitor.WithIntervals(monitor.Intervals{
		Discovery: 5 * time.Millisecond,
		Battery:   time.Hour,
		Charge:    time.Hour,
	}))
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	src.set(func(s *mockSource) { s.devices = []power.Device{{ID: ac, Kind: power.KindLinePower}} })
	require.Eventually(t, func() bool { return m.Snapshot().Len() == 1 }, 2*time.Second, time.Millisecond)

	assert.Empty(t, m.Snapshot().OfKind(power.KindBattery))
	assert.Greater(t, m.Snapshot().Generation, uint64(1))
}

func TestNoQueryAfterShutdown(t *testing.T) {
	src := newMock()
	b := bus.New()
	m := monitor.New(b, src, fast())
	require.True(t, m.Start(context.Background()))
	assert.Equal(t, 1, b.Subscribers())

	require.Eventually(t, func() bool { return src.queries.Load() >= 3 }, 2*time.Second, time.Millisecond)

	m.Shutdown()
	assert.False(t, m.Running())
	assert.Zero(t, b.Subscribers())

	after := src.queries.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, src.queries.Load())
}

func TestInFlightQueryCompletesOnShutdown(t *testing.T) {
	src := newMock()
	src.set(func(s *mockSource) {
		s.entered = make(chan struct{}, 1)
		s.release = make(chan struct{})
	})

	b := bus.New()
	sub := bus.NewSubscriber("test", 64)
	b.Register(sub, bus.OfKind(bus.KindBatteryLoad))

	m := monitor.New(b, src, monitor.WithIntervals(monitor.Intervals{
		Discovery: time.Hour,
		Battery:   10 * time.Millisecond,
		Charge:    time.Hour,
	}))
	require.True(t, m.Start(context.Background()))

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "battery query not started")
	}

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		require.FailNow(t, "shutdown returned while a query was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	queries := src.queries.Load()
	close(src.release)
	<-done

	n := waitFor(t, sub, func(bus.Message) bool { return true })
	assert.Equal(t, bus.BatteryLoad{Device: bat0, Percent: 55}, n.Message)
	assert.Equal(t, queries, src.queries.Load())
}

func TestTargetedRequestsAreDrained(t *testing.T) {
	var dropped atomic.Int64
	b := bus.New(bus.WithDropHook(func(id string, _ bus.Notification) {
		if id == monitor.DefaultID {
			dropped.Add(1)
		}
	}))
	m := monitor.New(b, newMock(), fast(), monitor.WithInboxBuffer(1))
	require.True(t, m.Start(context.Background()))
	defer m.Shutdown()

	for i := 0; i < 5; i++ {
		b.Publish(bus.Notification{Source: "ui", Target: m.ID(), Message: bus.ShutdownRequest{Reason: "noop"}})
		time.Sleep(5 * time.Millisecond)
	}
	assert.Zero(t, dropped.Load())
	assert.True(t, m.Running())
}

type describingSource struct {
	*mockSource
	described atomic.Int64
}

func (s *describingSource) Describe(context.Context, string) (map[string]string, error) {
	s.described.Add(1)
	return map[string]string{"vendor": "ACME"}, nil
}

func TestDescribeOnlyWithDebugLogging(t *testing.T) {
	defer logger.SetLogLevel(logger.InfoLevel)

	for _, tt := range []struct {
		level logger.LogLevel
		want  int64
	}{
		{logger.InfoLevel, 0},
		{logger.DebugLevel, 2},
	} {
		logger.SetLogLevel(tt.level)

		src := &describingSource{mockSource: newMock()}
		m := monitor.New(bus.New(), src, monitor.WithIntervals(monitor.Intervals{
			Discovery: time.Hour,
			Battery:   time.Hour,
			Charge:    time.Hour,
		}))
		require.True(t, m.Start(context.Background()))
		m.Shutdown()

		assert.Equal(t, tt.want, src.described.Load())
	}
}
