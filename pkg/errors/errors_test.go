package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := New("STORE_DOWN", "store unreachable", http.StatusServiceUnavailable)
	wrapped := base.WithInternal(errors.New("dial tcp: refused"))

	require.Equal(t, "store unreachable: dial tcp: refused", wrapped.Error())
	require.Equal(t, base.Code, wrapped.Code)
}

func TestAppErrorIsMatchesByCode(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("accept invitation: %w", ErrUnavailable.WithInternal(cause))

	require.ErrorIs(t, err, ErrUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, cause)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrForbidden)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.EqualError(t, generic.Internal, "boom")
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("email is malformed")
	require.Equal(t, ErrBadRequest.Code, err.Code)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "email is malformed", err.Message)
}
