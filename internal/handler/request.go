package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/utafrali/EcommerceGo/authgateway/internal/headers"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/validator"
)

const maxBodyBytes = 1 << 20

// decode reads and validates a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			return apperrors.Validation("invalid request body", ve.Fields())
		}
		return apperrors.InvalidInput("invalid request body")
	}
	return nil
}

// device returns the device id and platform from the validated headers.
func device(ctx context.Context) (string, string) {
	switch h := headers.FromContext(ctx).(type) {
	case *headers.Login:
		return h.DeviceID, h.Platform
	case *headers.Public:
		return h.DeviceID, h.Platform
	case *headers.Guest:
		return h.DeviceID, h.Platform
	case *headers.Authenticated:
		return h.DeviceID, h.Platform
	}
	return "", ""
}
