package upower

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"github.com/sony/gobreaker"
)

// Runner executes the upower tool and returns its stdout lines.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]string, error)
}

// BreakerConfig controls when repeated command failures stop spawning
// new processes for a while.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type execRunner struct {
	command string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewExecRunner runs command through os/exec. A zero timeout disables the
// per-query deadline.
func NewExecRunner(command string, timeout time.Duration, bc BreakerConfig) Runner {
	maxFailures := bc.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	return &execRunner{
		command: command,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        command,
			MaxRequests: 1,
			Timeout:     bc.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
		}),
	}
}

func (r *execRunner) Run(ctx context.Context, args ...string) ([]string, error) {
	errFactory := errors.New()

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.exec(ctx, args)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errFactory.Wrap(ErrCircuitOpen, err)
		}
		return nil, err
	}

	return out.([]string), nil
}

func (r *execRunner) exec(ctx context.Context, args []string) ([]string, error) {
	errFactory := errors.New()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	//nolint:gosec // G204: command comes from local configuration
	cmd := exec.CommandContext(ctx, r.command, args...)
	stdout, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errFactory.Wrap(ErrQueryTimeout, err)
		}
		return nil, errFactory.WithData(ErrCommandFailed, struct {
			Args  []string
			Error string
		}{
			Args:  args,
			Error: err.Error(),
		})
	}

	return splitLines(stdout), nil
}

func splitLines(b []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines
}
