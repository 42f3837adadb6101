package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErr(t *testing.T) {
	err := Registration.Printf("period %d", 0)
	assert.Equal(t, "REGISTRATION,period 0", err.Error())
	assert.True(t, errors.Is(err, Registration))
	assert.False(t, errors.Is(err, UnknownHandle))
	assert.EqualValues(t, ErrCode_Registration, err.Code())
}

func TestWrap(t *testing.T) {
	err := Registration.Printf("arm").Wrap(io.ErrClosedPipe)
	assert.True(t, errors.Is(err, Registration))
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
	assert.Equal(t, "REGISTRATION,arm: io: read/write on closed pipe", err.Error())

	wrapped := WrapError(io.EOF)
	assert.True(t, errors.Is(wrapped, Unknown))
	assert.True(t, errors.Is(wrapped, io.EOF))
	assert.Nil(t, WrapError(nil))
	assert.Same(t, err, WrapError(err))
}
