package config

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrReadConfig    = errors.ErrReadConfig
	ErrBindFlags     = errors.ErrBindFlags
)
