package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	require.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	require.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	require.Equal(t, http.StatusUnauthorized, KindUnauthorized.HTTPStatus())
	require.Equal(t, http.StatusForbidden, KindForbidden.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, KindInvalidRequest.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestWrappedKind(t *testing.T) {
	err := fmt.Errorf("create order: %w", NotFound("product %s not found", "abc"))
	require.True(t, Is(err, KindNotFound))
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, "product abc not found", Message(err))
}

func TestUnknownErrorIsInternal(t *testing.T) {
	err := errors.New("socket closed")
	require.Equal(t, KindInternal, KindOf(err))
	require.Equal(t, "internal server error", Message(err))
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause, "could not save order")
	require.ErrorIs(t, err, cause)
	require.Equal(t, "could not save order: boom", err.Error())
}
