package warning

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrNotifyFailed     = errors.ErrorCode("warning_notify_failed")
	ErrInvalidThreshold = errors.ErrorCode("warning_invalid_threshold")
)
