package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"codeberg.org/mutker/powerwatch/internal/bus"
	"codeberg.org/mutker/powerwatch/internal/config"
	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/metrics"
	"codeberg.org/mutker/powerwatch/internal/monitor"
	"codeberg.org/mutker/powerwatch/internal/pid"
	"codeberg.org/mutker/powerwatch/internal/power"
	"codeberg.org/mutker/powerwatch/internal/systembus"
	"codeberg.org/mutker/powerwatch/internal/upower"
	"codeberg.org/mutker/powerwatch/internal/warning"
	"github.com/shirou/gopsutil/v4/host"
)

const rootID = "root"

type hook struct {
	name string
	fn   func() error
}

type Option func(*App)

// WithSource replaces the configured power backend.
func WithSource(src power.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// App wires the bus, the power monitor, and its consumers, and tears them
// down in reverse order.
type App struct {
	cfg      *config.Config
	bus      *bus.Bus
	source   power.Source
	metrics  metrics.Collector
	monitor  *monitor.Module
	warnings *warning.Consumer
	root     *bus.Subscriber
	hooks    []hook
}

// New creates an application instance. Resources acquired before a
// failure are released.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.setup(); err != nil {
		a.runHooks()
		return nil, err
	}

	return a, nil
}

func (a *App) setup() error {
	errFactory := errors.New()

	if a.cfg.PIDFile != "" {
		pidFile := pid.New(a.cfg.PIDFile)
		if err := pidFile.Acquire(); err != nil {
			return err
		}
		a.addHook("pid", pidFile.Release)
	}

	collector, err := metrics.NewService(metrics.Config{
		Enabled: a.cfg.Metrics.Enabled,
		Listen:  a.cfg.Metrics.Listen,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}
	a.metrics = collector
	a.addHook("metrics", collector.Close)

	a.bus = bus.New(bus.WithDropHook(func(id string, n bus.Notification) {
		collector.IncDropped(id)
		logger.Debug().Str("subscriber", id).Str("notification", n.String()).Msg("Subscriber buffer full, notification dropped")
	}))

	if a.source == nil {
		if err := a.initSource(); err != nil {
			return err
		}
	}

	a.monitor = monitor.New(a.bus, a.source,
		monitor.WithIntervals(monitor.Intervals{
			Discovery: a.cfg.DiscoveryInterval,
			Battery:   a.cfg.BatteryInterval,
			Charge:    a.cfg.ChargeInterval,
		}),
		monitor.WithMetrics(collector),
		monitor.WithInboxBuffer(a.cfg.SubscriberBuffer),
	)

	warnOpts := []warning.Option{
		warning.WithMetrics(collector),
		warning.WithNotifier(warning.NewLogNotifier()),
	}
	if a.cfg.Warning.NotifyCommand != "" {
		warnOpts = append(warnOpts, warning.WithNotifier(warning.NewCommandNotifier(a.cfg.Warning.NotifyCommand)))
	}
	a.warnings, err = warning.NewConsumer(a.bus, warning.Config{
		Early:  a.cfg.Warning.Early,
		Urgent: a.cfg.Warning.Urgent,
		Buffer: a.cfg.SubscriberBuffer,
	}, warnOpts...)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.root = bus.NewSubscriber(rootID, a.cfg.SubscriberBuffer)
	a.bus.Register(a.root, bus.OfKind(bus.KindShutdownRequest))

	return nil
}

func (a *App) initSource() error {
	switch a.cfg.Source {
	case config.SourceDBus:
		src, err := systembus.Connect(a.cfg.QueryTimeout)
		if err != nil {
			return err
		}
		a.source = src
		a.addHook("systembus", src.Close)
	default:
		runner := upower.NewExecRunner(a.cfg.UpowerCommand, a.cfg.QueryTimeout, upower.BreakerConfig{
			MaxFailures: a.cfg.Breaker.MaxFailures,
			OpenTimeout: a.cfg.Breaker.OpenTimeout,
		})
		a.source = upower.New(runner)
	}

	logger.Debug().Str("source", a.cfg.Source).Msg("Power source selected")

	return nil
}

// Run starts the modules and blocks until a signal, ctx cancellation, or
// a ShutdownRequest, then runs every shutdown hook. A ShutdownRequest is
// reported as an error.
func (a *App) Run(ctx context.Context) error {
	errFactory := errors.New()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logHost(ctx)

	a.warnings.Start(ctx)
	a.addHook("warning", func() error {
		a.warnings.Shutdown()
		return nil
	})

	a.monitor.Start(ctx)
	a.addHook("monitor", func() error {
		a.monitor.Shutdown()
		return nil
	})

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Received termination signal")
	case n := <-a.root.C():
		reason := ""
		if req, ok := n.Message.(bus.ShutdownRequest); ok {
			reason = req.Reason
		}
		logger.Warn().Str("from", n.Source).Str("reason", reason).Msg("Shutdown requested")
		runErr = errFactory.WithData(errors.ErrShutdownRequest, reason)
	}

	a.bus.Unregister(a.root)
	a.runHooks()
	logger.Info().Msg("Exiting...")

	return runErr
}

// Bus exposes the notification bus to in-process consumers.
func (a *App) Bus() *bus.Bus {
	return a.bus
}

// DumpState logs the current device snapshot and bus state.
func (a *App) DumpState() {
	snap := a.monitor.Snapshot()
	logger.Info().
		Bool("running", a.monitor.Running()).
		Int("devices", snap.Len()).
		Int("subscribers", a.bus.Subscribers()).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("Application state")

	if snap == nil {
		return
	}
	for _, d := range snap.Devices {
		logger.Info().Str("device", d.ID).Stringer("kind", d.Kind).Uint64("generation", snap.Generation).Msg("Device")
	}
}

func (a *App) addHook(name string, fn func() error) {
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// runHooks runs shutdown hooks in reverse registration order.
func (a *App) runHooks() {
	for i := len(a.hooks) - 1; i >= 0; i-- {
		h := a.hooks[i]
		if err := h.fn(); err != nil {
			logger.Error().Err(err).Str("hook", h.name).Msg("Shutdown hook failed")
		}
	}
	a.hooks = nil
}

func logHost(ctx context.Context) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read host information")
		return
	}

	logger.Info().
		Str("hostname", info.Hostname).
		Str("platform", info.Platform).
		Str("platform_version", info.PlatformVersion).
		Str("kernel", info.KernelVersion).
		Msg("Starting powerwatch")
}
