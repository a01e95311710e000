package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	pkgkafka "github.com/utafrali/EcommerceGo/authgateway/pkg/kafka"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
)

// Event types published by the gateway.
const (
	TypeUserLoggedIn               = "user.logged_in"
	TypeUserLoggedOut              = "user.logged_out"
	TypeUserPasswordResetRequested = "user.password_reset_requested"
	TypeUserPasswordReset          = "user.password_reset"
	TypePaymentCallbackVerified    = "payment.callback_verified"
)

const (
	AggregateTypeUser  = "user"
	AggregateTypeOrder = "order"
)

// MetaClientIP carries the caller's resolved address on every event.
const MetaClientIP = "client_ip"

// UserLoggedInData is the payload for user.logged_in.
type UserLoggedInData struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	DeviceID string `json:"device_id,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// UserData is the payload for user.logged_out and user.password_reset.
type UserData struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// PasswordResetRequestedData is consumed by the notification service, which
// delivers the OTP to the phone number.
type PasswordResetRequestedData struct {
	UserID int64  `json:"user_id"`
	Phone  string `json:"phone"`
	OTP    string `json:"otp"`
}

// PaymentCallbackData is the payload for payment.callback_verified.
type PaymentCallbackData struct {
	OrderNumber string `json:"order_number"`
	Method      string `json:"method"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes gateway events.
type Producer struct {
	kafka        Publisher
	authTopic    string
	paymentTopic string
	logger       *slog.Logger
}

// NewProducer creates a Producer writing auth events to authTopic and
// payment events to paymentTopic.
func NewProducer(kafka Publisher, authTopic, paymentTopic string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:        kafka,
		authTopic:    authTopic,
		paymentTopic: paymentTopic,
		logger:       logger,
	}
}

// PublishLoggedIn publishes user.logged_in.
func (p *Producer) PublishLoggedIn(ctx context.Context, rec *domain.SessionRecord) error {
	data := UserLoggedInData{
		UserID:   rec.ID,
		Role:     rec.Role.String(),
		DeviceID: rec.DeviceID,
		Platform: rec.Platform,
	}
	return p.publish(ctx, p.authTopic, TypeUserLoggedIn, userAggregate(rec.Subject()), data)
}

// PublishLoggedOut publishes user.logged_out.
func (p *Producer) PublishLoggedOut(ctx context.Context, id *domain.Identity) error {
	data := UserData{UserID: id.ID, Role: id.Role.String()}
	return p.publish(ctx, p.authTopic, TypeUserLoggedOut, userAggregate(id.Subject()), data)
}

// PublishPasswordResetRequested publishes user.password_reset_requested.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, u *domain.User, otp string) error {
	data := PasswordResetRequestedData{UserID: u.ID, Phone: u.Phone, OTP: otp}
	return p.publish(ctx, p.authTopic, TypeUserPasswordResetRequested, userAggregate(strconv.FormatInt(u.ID, 10)), data)
}

// PublishPasswordReset publishes user.password_reset.
func (p *Producer) PublishPasswordReset(ctx context.Context, u *domain.User) error {
	data := UserData{UserID: u.ID, Role: u.Role.String()}
	return p.publish(ctx, p.authTopic, TypeUserPasswordReset, userAggregate(strconv.FormatInt(u.ID, 10)), data)
}

// PublishPaymentCallbackVerified publishes payment.callback_verified.
func (p *Producer) PublishPaymentCallbackVerified(ctx context.Context, orderNumber, method string) error {
	data := PaymentCallbackData{OrderNumber: orderNumber, Method: method}
	agg := pkgkafka.Aggregate{Type: AggregateTypeOrder, ID: orderNumber}
	return p.publish(ctx, p.paymentTopic, TypePaymentCallbackVerified, agg, data)
}

func userAggregate(id string) pkgkafka.Aggregate {
	return pkgkafka.Aggregate{Type: AggregateTypeUser, ID: id}
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, agg pkgkafka.Aggregate, data any) error {
	ev, err := pkgkafka.NewEvent(ctx, eventType, agg, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	ev.WithMetadata(MetaClientIP, logger.ClientIPFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", agg.ID),
	)
	return nil
}
