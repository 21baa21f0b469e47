package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{code: CodeValidation, status: http.StatusBadRequest},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodePaymentNotSucceeded, status: http.StatusBadRequest},
		{code: CodeDependency, status: http.StatusInternalServerError},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, MetadataFor(tt.code).HTTPStatus, "code %s", tt.code)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	wrapped := Dependency(cause, "failed to insert booking")

	assert.True(t, stdErrors.Is(wrapped, cause))
	assert.Equal(t, CodeDependency, wrapped.Code())
	assert.Equal(t, "failed to insert booking: connection refused", wrapped.PublicMessage())
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("booking not found"))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, CodeNotFound, typed.Code())
	assert.True(t, IsCode(err, CodeNotFound))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Nil(t, As(nil))
}
