package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/EcommerceGo/authgateway/internal/signature"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
)

// SignatureVerifier checks callback signatures.
type SignatureVerifier interface {
	Verify(payload any, sig string) bool
}

// PaymentEvents publishes verified payment callbacks.
type PaymentEvents interface {
	PublishPaymentCallbackVerified(ctx context.Context, orderNumber, method string) error
}

// PaymentService verifies payment gateway callbacks.
type PaymentService struct {
	verifier SignatureVerifier
	events   PaymentEvents
	logger   *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(verifier SignatureVerifier, events PaymentEvents, logger *slog.Logger) *PaymentService {
	return &PaymentService{verifier: verifier, events: events, logger: logger}
}

// HandleCallback verifies sig over the order number and hands the verified
// callback to the order pipeline. A publish failure is returned so that the
// payment gateway retries the callback.
func (s *PaymentService) HandleCallback(ctx context.Context, orderNumber, sig, method string) error {
	if orderNumber == "" {
		return apperrors.InvalidInput("merchantOrderId is required")
	}
	if sig == "" {
		return apperrors.InvalidInput("sig is required")
	}

	if !s.verifier.Verify(signature.OrderPayload{OrderNumber: orderNumber}, sig) {
		s.logger.WarnContext(ctx, "payment callback signature mismatch",
			slog.String("order_number", orderNumber),
		)
		return apperrors.Unauthorized("invalid signature")
	}

	if err := s.events.PublishPaymentCallbackVerified(ctx, orderNumber, method); err != nil {
		return apperrors.Unavailable("order pipeline unavailable", err)
	}

	s.logger.InfoContext(ctx, "payment callback verified",
		slog.String("order_number", orderNumber),
	)
	return nil
}
