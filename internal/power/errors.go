package power

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrSourceUnavailable = errors.ErrorCode("power_source_unavailable")
	ErrPercentOutOfRange = errors.ErrorCode("power_percent_out_of_range")
)
