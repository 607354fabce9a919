package monitor

import "codeberg.org/mutker/powerwatch/internal/power"

const (
	ErrSourceUnavailable = power.ErrSourceUnavailable
)
