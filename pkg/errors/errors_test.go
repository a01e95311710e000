package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrInternal, ErrServiceUnavail, ErrRateLimited,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("redis connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "redis connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "UNAUTHORIZED", Message: "authentication failed"}
	assert.Equal(t, "UNAUTHORIZED: authentication failed", appErr.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("session", "7"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("payload header is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"validation", Validation("header validation failed", map[string][]string{"host": {"is required"}}), "VALIDATION_ERROR", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("invalid or expired token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("insufficient permissions"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"unavailable", Unavailable("session store unavailable", errors.New("dial tcp")), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"bad gateway", BadGateway("upstream service unavailable", errors.New("connection refused")), "BAD_GATEWAY", http.StatusBadGateway, ErrServiceUnavail},
		{"rate limited", TooManyRequests("too many requests"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestValidation_CarriesDetails(t *testing.T) {
	details := map[string][]string{"authorization": {"is required"}}
	err := Validation("header validation failed", details)
	assert.Equal(t, details, err.Details)
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := Unavailable("session store unavailable", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestInternal(t *testing.T) {
	cause := errors.New("cipher: bad block")
	err := Internal(cause)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.True(t, errors.Is(err, cause))
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("decode: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("verify: %w", ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("role: %w", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("limit: %w", ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("redis: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrUnauthorized, "bearer strategy")
	assert.Equal(t, "bearer strategy: unauthorized", err.Error())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
