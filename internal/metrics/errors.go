package metrics

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidListen = errors.ErrorCode("metrics_invalid_listen")

	// Service Errors
	ErrServiceShutdown = errors.ErrCloseMetrics
	ErrListenFailed    = errors.ErrorCode("metrics_listen_failed")
)
