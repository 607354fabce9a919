package warning

import (
	"context"
	"sync"

	"codeberg.org/mutker/powerwatch/internal/bus"
	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/metrics"
)

const (
	DefaultEarly  = 20
	DefaultUrgent = 5

	subscriberID = "battery-warning"
)

type Config struct {
	Early  int
	Urgent int
	Buffer int
}

func DefaultConfig() Config {
	return Config{
		Early:  DefaultEarly,
		Urgent: DefaultUrgent,
		Buffer: bus.DefaultBuffer,
	}
}

func (c Config) Validate() error {
	if c.Urgent < 0 || c.Early > 100 || c.Urgent >= c.Early {
		return errors.New().WithData(ErrInvalidThreshold, c)
	}

	return nil
}

type Option func(*Consumer)

// WithNotifier adds a notifier. Without any, warnings go to the log.
func WithNotifier(n Notifier) Option {
	return func(c *Consumer) {
		c.notifiers = append(c.notifiers, n)
	}
}

func WithMetrics(m metrics.Collector) Option {
	return func(c *Consumer) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Consumer turns BatteryLoad notifications into early and urgent low
// battery warnings. Warnings are not raised while the device reports
// charging.
type Consumer struct {
	bus       *bus.Bus
	sub       *bus.Subscriber
	early     *Detector
	urgent    *Detector
	charging  map[string]bool
	notifiers []Notifier
	metrics   metrics.Collector
	logger    logger.Logger

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewConsumer(b *bus.Bus, cfg Config, opts ...Option) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		bus:      b,
		sub:      bus.NewSubscriber(subscriberID, cfg.Buffer),
		early:    NewDetector(cfg.Early),
		urgent:   NewDetector(cfg.Urgent),
		charging: make(map[string]bool),
		metrics:  metrics.Noop(),
		logger:   logger.Component("warning"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.notifiers) == 0 {
		c.notifiers = []Notifier{NewLogNotifier()}
	}

	return c, nil
}

func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.bus.Register(c.sub, bus.OfKind(bus.KindBatteryLoad))
	c.bus.Register(c.sub, bus.OfKind(bus.KindCharging))

	c.wg.Add(1)
	go c.run(ctx)

	c.logger.Debug().
		Int("early", c.early.Threshold()).
		Int("urgent", c.urgent.Threshold()).
		Msg("Battery warnings enabled")
}

func (c *Consumer) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.bus.Unregister(c.sub)
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.sub.C():
			c.handle(ctx, n)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, n bus.Notification) {
	switch m := n.Message.(type) {
	case bus.Charging:
		c.charging[m.Device] = m.Value
	case bus.BatteryLoad:
		w, ok := c.observe(m.Device, m.Percent)
		if !ok || c.charging[m.Device] {
			return
		}
		c.notify(ctx, w)
	}
}

// observe feeds both detectors. A drop through both thresholds at once
// yields only the urgent warning.
func (c *Consumer) observe(device string, percent int) (Warning, bool) {
	early := c.early.Observe(device, percent)
	urgent := c.urgent.Observe(device, percent)

	switch {
	case urgent:
		return Warning{Device: device, Percent: percent, Level: LevelUrgent}, true
	case early:
		return Warning{Device: device, Percent: percent, Level: LevelEarly}, true
	default:
		return Warning{}, false
	}
}

func (c *Consumer) notify(ctx context.Context, w Warning) {
	c.metrics.IncWarning(w.Level.String())

	for _, n := range c.notifiers {
		if err := n.Notify(ctx, w); err != nil {
			c.logger.Error().Err(err).Str("device", w.Device).Msg("Failed to deliver battery warning")
		}
	}
}
