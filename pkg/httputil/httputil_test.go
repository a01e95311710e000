package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Success: true, Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"key": "value"}, body["data"])
}

func TestWriteError_AppErrorShape(t *testing.T) {
	ew := NewErrorWriter(testLogger(), false)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ew.now = func() time.Time { return fixed }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	ew.WriteError(rec, req, apperrors.Unauthorized("invalid or expired token"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
	assert.Equal(t, "invalid or expired token", resp.Message)
	assert.Nil(t, resp.Errors)
	assert.True(t, fixed.Equal(resp.Timestamp))
}

func TestWriteError_ValidationDetails(t *testing.T) {
	ew := NewErrorWriter(testLogger(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ew.WriteError(rec, req, apperrors.Validation("unexpected headers", []string{"x-evil"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, []any{"x-evil"}, resp.Errors)
}

func TestWriteError_WrappedSentinel(t *testing.T) {
	ew := NewErrorWriter(testLogger(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ew.WriteError(rec, req, fmt.Errorf("lookup: %w", apperrors.ErrUnauthorized))

	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication failed", resp.Message)
}

func TestWriteError_InternalHiddenOutsideLocal(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	ew := NewErrorWriter(l, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ew.WriteError(rec, req, errors.New("cipher: corrupt padding"))

	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "an internal error occurred", resp.Message)
	assert.Contains(t, buf.String(), "cipher: corrupt padding")
	assert.Contains(t, buf.String(), "stack")
}

func TestWriteError_InternalExposedInLocal(t *testing.T) {
	ew := NewErrorWriter(testLogger(), true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ew.WriteError(rec, req, apperrors.Internal(errors.New("cipher: corrupt padding")))

	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Message, "cipher: corrupt padding")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	ew := NewErrorWriter(testLogger(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-abc"))

	ew.WriteError(rec, req, apperrors.InvalidInput("payload header is required"))

	resp := decodeError(t, rec)
	assert.Equal(t, "req-abc", resp.RequestID)
	assert.Equal(t, "payload header is required", resp.Message)
}

func TestErrorResponse_OmitsEmptyOptionalFields(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{StatusCode: 401, Code: "UNAUTHORIZED", Message: "x"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "errors")
	assert.NotContains(t, raw, "requestId")
	assert.Contains(t, raw, "timestamp")
	assert.Equal(t, false, raw["success"])
}
