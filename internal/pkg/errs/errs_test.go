package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrMessageContentTooLong, 5000)
	assert.Equal(t, ErrMessageContentTooLong, err.Code)
	assert.Equal(t, "Message is too long (max 5000 bytes).", err.Message)
	assert.Equal(t, http.StatusOK, err.Status, "socket-only errors default to 200")

	notFound := NewError(ErrGuestNotFound)
	assert.Equal(t, http.StatusNotFound, notFound.Status)

	unknown := NewError(999999)
	assert.Equal(t, ErrUnknown, unknown.Code)
}

func TestNewError_DoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrUnsupportedEvent, "first")
	second := NewError(ErrUnsupportedEvent, "second")
	assert.Equal(t, "Unsupported event: second", second.Message)
}

func TestFromAndIs(t *testing.T) {
	assert.Nil(t, From(nil))

	wrapped := fmt.Errorf("dispatch: %w", NewError(ErrRateLimitExceeded))
	custom := From(wrapped)
	require.NotNil(t, custom)
	assert.Equal(t, ErrRateLimitExceeded, custom.Code)
	assert.ErrorIs(t, wrapped, NewError(ErrRateLimitExceeded))
	assert.NotErrorIs(t, wrapped, NewError(ErrMessageEmpty))

	foreign := From(errors.New("boom"))
	assert.Equal(t, ErrUnknown, foreign.Code)
	assert.Equal(t, http.StatusInternalServerError, foreign.Status)
}
