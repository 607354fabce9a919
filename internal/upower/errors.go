package upower

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrCommandFailed = errors.ErrorCode("upower_command_failed")
	ErrCommandOutput = errors.ErrorCode("upower_empty_output")
	ErrParseFailed   = errors.ErrorCode("upower_parse_failed")
	ErrKeyNotFound   = errors.ErrorCode("upower_key_not_found")
	ErrCircuitOpen   = errors.ErrorCode("upower_circuit_open")
	ErrQueryTimeout  = errors.ErrTimeout
)
