package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
)

type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CycleFunc performs one query cycle. It must handle its own per-device
// failures; ctx is cancelled once Stop has been called.
type CycleFunc func(ctx context.Context)

type Option func(*Poller)

// WithLogger overrides the component logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Poller) {
		p.logger = log
	}
}

// WithTimer replaces the sleep source, mostly for tests.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(p *Poller) {
		p.after = after
	}
}

// WithInitialDelay postpones the first cycle. By default the first cycle
// runs as soon as the poller starts.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Poller) {
		p.delay = d
	}
}

// Poller runs a CycleFunc, sleeps for its interval, and repeats until
// stopped. It never overlaps itself, and the sleep is not compensated for
// the time the cycle took.
type Poller struct {
	name     string
	interval time.Duration
	cycle    CycleFunc
	logger   logger.Logger
	after    func(time.Duration) <-chan time.Time
	delay    time.Duration

	state  atomic.Int32
	cycles atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(name string, interval time.Duration, cycle CycleFunc, opts ...Option) *Poller {
	p := &Poller{
		name:     name,
		interval: interval,
		cycle:    cycle,
		logger:   logger.Component("poller." + name),
		after:    time.After,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Poller) Name() string {
	return p.name
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

// Cycles returns the number of completed query cycles.
func (p *Poller) Cycles() uint64 {
	return p.cycles.Load()
}

// Start spawns the loop. A poller can be started once.
func (p *Poller) Start(ctx context.Context) error {
	errFactory := errors.New()

	if p.interval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, p.interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return errFactory.WithData(ErrAlreadyStarted, p.name)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Debug().Dur("interval", p.interval).Msg("Poller started")

	return nil
}

// Stop requests the loop to exit. A running cycle is allowed to finish;
// no new cycle begins afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.CompareAndSwap(int32(Idle), int32(Stopped)) {
		close(p.done)
		return
	}

	if p.state.CompareAndSwap(int32(Running), int32(Stopping)) && p.cancel != nil {
		p.cancel()
	}
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the loop has exited.
func (p *Poller) Wait() {
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer func() {
		p.state.Store(int32(Stopped))
		close(p.done)
		p.logger.Debug().Uint64("cycles", p.cycles.Load()).Msg("Poller stopped")
	}()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-p.after(p.delay):
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		p.runCycle(ctx)
		p.cycles.Add(1)

		select {
		case <-ctx.Done():
			return
		case <-p.after(p.interval):
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New().WithData(ErrCyclePanicked, r)
			p.logger.ErrorWithCode(err).Msg("Poll cycle panicked")
		}
	}()

	p.cycle(ctx)
}
