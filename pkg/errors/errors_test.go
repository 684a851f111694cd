package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := ErrNotFound.WithInternal(inner)

	require.Equal(t, "Resource not found: boom", err.Error())
	require.ErrorIs(t, err, inner)
}

func TestFromErrorPassesThroughAppErrors(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", ErrInvalidTransition)
	require.Equal(t, ErrInvalidTransition, FromError(wrapped))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(stderrors.New("disk full"))
	require.Equal(t, ErrInternalServer.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
}

func TestExternalServiceError(t *testing.T) {
	inner := stderrors.New("dial tcp: i/o timeout")
	err := NewExternal("assistant", ExternalTimeout, inner)

	require.True(t, IsExternal(err))
	require.True(t, IsExternal(fmt.Errorf("classify: %w", err)))
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "assistant")
	require.False(t, IsExternal(stderrors.New("plain")))
}

func TestMalformedSourceEvent(t *testing.T) {
	err := NewMalformed("email has no message id")
	require.True(t, IsMalformed(err))
	require.True(t, IsMalformed(fmt.Errorf("normalize: %w", err)))
	require.False(t, IsMalformed(ErrNotFound))
}
