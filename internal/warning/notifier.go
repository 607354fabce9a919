package warning

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
)

type Level int

const (
	LevelEarly Level = iota
	LevelUrgent
)

func (l Level) String() string {
	if l == LevelUrgent {
		return "urgent"
	}

	return "early"
}

// Warning describes one low battery event.
type Warning struct {
	Device  string
	Percent int
	Level   Level
}

func (w Warning) Summary() string {
	if w.Level == LevelUrgent {
		return "Battery critically low"
	}

	return "Battery low"
}

func (w Warning) Body() string {
	return fmt.Sprintf("%s is at %d%%", w.Device, w.Percent)
}

// Notifier delivers warnings to the user.
type Notifier interface {
	Notify(ctx context.Context, w Warning) error
}

type logNotifier struct {
	logger logger.Logger
}

// NewLogNotifier writes warnings to the log.
func NewLogNotifier() Notifier {
	return &logNotifier{logger: logger.Component("warning")}
}

func (n *logNotifier) Notify(_ context.Context, w Warning) error {
	n.logger.Warn().
		Str("device", w.Device).
		Int("percent", w.Percent).
		Str("level", w.Level.String()).
		Msg(w.Summary())

	return nil
}

const commandTimeout = 10 * time.Second

type commandNotifier struct {
	command string
}

// NewCommandNotifier runs command with the summary and body as its two
// arguments, e.g. notify-send.
func NewCommandNotifier(command string) Notifier {
	return &commandNotifier{command: command}
}

func (n *commandNotifier) Notify(ctx context.Context, w Warning) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	//nolint:gosec // G204: command comes from local configuration
	cmd := exec.CommandContext(ctx, n.command, w.Summary(), w.Body())
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.New().WithData(ErrNotifyFailed, struct {
			Command string
			Output  string
			Error   string
		}{
			Command: n.command,
			Output:  string(out),
			Error:   err.Error(),
		})
	}

	return nil
}
