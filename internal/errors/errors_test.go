package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryMessages(t *testing.T) {
	f := errors.New()

	err := f.New(errors.ErrTimeout)
	assert.Equal(t, errors.ErrTimeout, err.Code())
	assert.Equal(t, "Operation timed out", err.Error())

	wrapped := f.Wrap(errors.ErrOperationFailed, fmt.Errorf("exit status 1"))
	assert.Equal(t, "Operation failed: exit status 1", wrapped.Error())

	custom := f.WithMessage(errors.ErrInvalidConfig, "bad interval")
	assert.Equal(t, "bad interval", custom.Error())

	withData := f.WithData(errors.ErrInvalidArgument, "percent out of range")
	assert.Equal(t, "Invalid argument provided: percent out of range", withData.Error())
	assert.Equal(t, "percent out of range", withData.GetData())
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("upower_parse_failed"))
	assert.Equal(t, "upower_parse_failed", err.Error())
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := errors.New().New(errors.ErrTimeout)
	outer := errors.New().Wrap(errors.ErrOperationFailed, inner)
	plain := fmt.Errorf("query: %w", outer)

	assert.True(t, errors.HasCode(plain, errors.ErrTimeout))
	assert.True(t, errors.HasCode(plain, errors.ErrOperationFailed))
	assert.False(t, errors.HasCode(plain, errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))

	var target errors.Error
	require.True(t, errors.As(plain, &target))
	assert.Equal(t, errors.ErrOperationFailed, target.Code())
}
