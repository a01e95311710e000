package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
)

// remoteError is the error envelope returned by another gateway deployment.
type remoteError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Errors     any    `json:"errors,omitempty"`
}

// ParseResponseError consumes a non-2xx response and maps it to an AppError,
// keeping the remote code and message when the body is a gateway error
// envelope. The body is closed.
func ParseResponseError(resp *http.Response, remote string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", remote, resp.StatusCode, err)
	}

	var re remoteError
	if json.Unmarshal(body, &re) != nil || re.Code == "" {
		return fmt.Errorf("%s returned status %d: %s", remote, resp.StatusCode, string(body))
	}

	msg := fmt.Sprintf("%s: %s", remote, re.Message)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		if re.Errors != nil {
			return apperrors.Validation(msg, re.Errors)
		}
		return apperrors.InvalidInput(msg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusTooManyRequests:
		return apperrors.TooManyRequests(msg)
	case http.StatusServiceUnavailable:
		return apperrors.Unavailable(msg, fmt.Errorf("%s: %s", remote, re.Code))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s server error (%d/%s): %s", remote, resp.StatusCode, re.Code, re.Message)
	}
	return &apperrors.AppError{Code: re.Code, Message: msg, Status: resp.StatusCode}
}
