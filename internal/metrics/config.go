package metrics

import (
	"net"

	"codeberg.org/mutker/powerwatch/internal/errors"
)

const (
	defaultListen = "127.0.0.1:9121"

	// Requests per second and burst for the HTTP endpoints
	defaultRateLimit = 10
	defaultRateBurst = 20
)

type Config struct {
	Enabled bool
	Listen  string
}

func DefaultConfig() Config {
	return Config{
		Listen:  defaultListen,
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the listen address if metrics is enabled
	if !c.Enabled {
		return nil
	}
	if c.Listen == "" {
		return errFactory.New(ErrInvalidListen)
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errFactory.WithData(ErrInvalidListen, c.Listen)
	}

	return nil
}
