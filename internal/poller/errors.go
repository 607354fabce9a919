package poller

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrAlreadyStarted  = errors.ErrorCode("poller_already_started")
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrCyclePanicked   = errors.ErrorCode("poller_cycle_panicked")
)
