package metrics

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace       = "powerwatch"
	shutdownTimeout = 5 * time.Second
)

type service struct {
	cfg      Config
	registry *prometheus.Registry

	queries      *prometheus.CounterVec
	queryErrors  *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	cycleLatency *prometheus.HistogramVec
	devices      *prometheus.GaugeVec
	batteryLoad  *prometheus.GaugeVec
	flags        *prometheus.GaugeVec
	outOfRange   *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	warnings     *prometheus.CounterVec

	server    *http.Server
	listener  net.Listener
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		logger.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	s := newService(cfg)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, errFactory.Wrap(ErrListenFailed, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           newHandler(s.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	logger.Info().
		Str("addr", listener.Addr().String()).
		Msg("Metrics service initialized successfully")

	return s, nil
}

// newService builds the registry and instruments without serving them.
func newService(cfg Config) *service {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &service{
		cfg:      cfg,
		registry: reg,
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Device queries issued, by poller",
		}, []string{"poller"}),
		queryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Device queries that failed, by poller",
		}, []string{"poller"}),
		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of a single device query",
			Buckets:   prometheus.DefBuckets,
		}, []string{"poller"}),
		cycleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full poll cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"poller"}),
		devices: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices in the current snapshot, by kind",
		}, []string{"kind"}),
		batteryLoad: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_load_percent",
			Help:      "Last published battery load",
		}, []string{"device"}),
		flags: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_flag",
			Help:      "Last published supplying/charging flag (1 = true)",
		}, []string{"flag", "device"}),
		outOfRange: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "percent_out_of_range_total",
			Help:      "Battery readings clamped into 0..100",
		}, []string{"device"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_dropped_total",
			Help:      "Notifications dropped because a subscriber buffer was full",
		}, []string{"subscriber"}),
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battery_warnings_total",
			Help:      "Low battery warnings raised, by level",
		}, []string{"level"}),
	}
}

func (s *service) ObserveQuery(poller string, d time.Duration, err error) {
	s.queries.WithLabelValues(poller).Inc()
	s.queryLatency.WithLabelValues(poller).Observe(d.Seconds())
	if err != nil {
		s.queryErrors.WithLabelValues(poller).Inc()
	}
}

func (s *service) ObserveCycle(poller string, d time.Duration) {
	s.cycleLatency.WithLabelValues(poller).Observe(d.Seconds())
}

func (s *service) SetDevices(kind string, n int) {
	s.devices.WithLabelValues(kind).Set(float64(n))
}

func (s *service) SetBatteryLoad(device string, percent int) {
	s.batteryLoad.WithLabelValues(device).Set(float64(percent))
}

func (s *service) SetFlag(flag, device string, value bool) {
	s.flags.WithLabelValues(flag, device).Set(float64(boolToInt(value)))
}

func (s *service) IncOutOfRange(device string) {
	s.outOfRange.WithLabelValues(device).Inc()
}

func (s *service) IncDropped(subscriber string) {
	s.dropped.WithLabelValues(subscriber).Inc()
}

func (s *service) IncWarning(level string) {
	s.warnings.WithLabelValues(level).Inc()
}

func (s *service) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

func (s *service) Close() error {
	errFactory := errors.New()

	var err error
	s.closeOnce.Do(func() {
		if s.server == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = errFactory.Wrap(ErrServiceShutdown, shutdownErr)
		}
		s.wg.Wait()
	})

	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// No-op implementation
func (*noopCollector) ObserveQuery(string, time.Duration, error) {}
func (*noopCollector) ObserveCycle(string, time.Duration)        {}
func (*noopCollector) SetDevices(string, int)                    {}
func (*noopCollector) SetBatteryLoad(string, int)                {}
func (*noopCollector) SetFlag(string, string, bool)              {}
func (*noopCollector) IncOutOfRange(string)                      {}
func (*noopCollector) IncDropped(string)                         {}
func (*noopCollector) IncWarning(string)                         {}
func (*noopCollector) Addr() string                              { return "" }
func (*noopCollector) Close() error                              { return nil }

// Noop returns a collector that discards everything.
func Noop() Collector {
	return &noopCollector{}
}
