package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_PreservesCauseChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to save membership")

	require.Error(t, err)
	assert.True(t, HasCode(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilCauseIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestHasCode_OuterCodeWins(t *testing.T) {
	inner := New(CodeNotFound, "membership not found")
	outer := Wrap(inner, CodeConflict, "save lost the race")

	assert.True(t, HasCode(outer, CodeConflict))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestCodeOf_UncodedDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeInvariantViolation, http.StatusUnprocessableEntity},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToHTTPStatus(New(tc.code, "x")), string(tc.code))
	}
}
