package systembus

import "codeberg.org/mutker/powerwatch/internal/errors"

const (
	ErrConnectFailed  = errors.ErrorCode("systembus_connect_failed")
	ErrCallFailed     = errors.ErrorCode("systembus_call_failed")
	ErrUnexpectedType = errors.ErrorCode("systembus_unexpected_type")
	ErrNoVersion      = errors.ErrorCode("systembus_no_version")
	ErrQueryTimeout   = errors.ErrTimeout
)
