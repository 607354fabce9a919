package upower

import (
	"context"
	"strings"

	"codeberg.org/mutker/powerwatch/internal/logger"
	"codeberg.org/mutker/powerwatch/internal/power"
)

const (
	versionArg = "-v"
	devicesArg = "-e"
	detailsArg = "-i"
)

// Source reads power devices through the upower command line tool.
type Source struct {
	runner Runner
	logger logger.Logger
}

var _ power.Source = (*Source)(nil)

func New(runner Runner) *Source {
	return &Source{
		runner: runner,
		logger: logger.Component("upower"),
	}
}

func (s *Source) Version(ctx context.Context) (string, error) {
	lines, err := s.runner.Run(ctx, versionArg)
	if err != nil {
		return "", err
	}

	return parseVersion(lines)
}

func (s *Source) Devices(ctx context.Context) ([]power.Device, error) {
	lines, err := s.runner.Run(ctx, devicesArg)
	if err != nil {
		return nil, err
	}

	devices := make([]power.Device, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		devices = append(devices, power.Device{ID: id, Kind: power.Classify(id)})
	}

	return devices, nil
}

// BatteryLoad returns 0 with an error when the percentage is absent or
// unparseable.
func (s *Source) BatteryLoad(ctx context.Context, id string) (int, error) {
	details, err := s.details(ctx, id)
	if err != nil {
		return 0, err
	}

	raw, err := lookup(details, percentageKey)
	if err != nil {
		return 0, err
	}

	return parsePercentage(raw)
}

func (s *Source) Charging(ctx context.Context, id string) (bool, error) {
	details, err := s.details(ctx, id)
	if err != nil {
		return false, err
	}

	state, err := lookup(details, stateKey)
	if err != nil {
		return false, err
	}

	return state == chargingValue, nil
}

func (s *Source) Supplying(ctx context.Context, id string) (bool, error) {
	details, err := s.details(ctx, id)
	if err != nil {
		return false, err
	}

	online, err := lookup(details, onlineKey)
	if err != nil {
		return false, err
	}

	return online == onlineValue, nil
}

// Describe returns the raw key/value details of a device.
func (s *Source) Describe(ctx context.Context, id string) (map[string]string, error) {
	return s.details(ctx, id)
}

func (s *Source) details(ctx context.Context, id string) (map[string]string, error) {
	lines, err := s.runner.Run(ctx, detailsArg, id)
	if err != nil {
		return nil, err
	}

	details := parseDetails(lines)
	s.logger.Debug().Str("device", id).Int("keys", len(details)).Msg("Device details read")

	return details, nil
}
