package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryMessages(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid log level", f.New(errors.ErrInvalidLogLevel).Error())
	assert.Equal(t, "custom_code", f.New(errors.ErrorCode("custom_code")).Error())
	assert.Equal(t, "Initialization failed: boom", f.Wrap(errors.ErrInitFailed, stderrors.New("boom")).Error())
	assert.Equal(t, "Invalid argument provided: 42", f.WithData(errors.ErrInvalidArgument, 42).Error())
	assert.Equal(t, "nope", f.WithMessage(errors.ErrShutdownFailed, "nope").Error())
}

func TestHasCodeWalksChain(t *testing.T) {
	f := errors.New()
	inner := f.WithData(errors.ErrPrecondition, "ipmitool")
	outer := fmt.Errorf("startup: %w", f.Wrap(errors.ErrInitFailed, inner))

	assert.True(t, errors.HasCode(outer, errors.ErrInitFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrPrecondition))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestDataOf(t *testing.T) {
	f := errors.New()
	err := fmt.Errorf("wrapped: %w", f.WithData(errors.ErrInvalidArgument, []string{"a"}))

	require.Equal(t, []string{"a"}, errors.DataOf(err))
	assert.Nil(t, errors.DataOf(stderrors.New("plain")))
}

func TestWithMessageKeepsCode(t *testing.T) {
	e := errors.New().New(errors.ErrTimeout).WithMessage("sensor read timed out")

	assert.Equal(t, errors.ErrTimeout, e.Code())
	assert.Equal(t, "sensor read timed out", e.Error())
}
