package guard

import (
	"context"
	"log/slog"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
)

type contextKey struct{}

// WithIdentity attaches id to ctx and enriches the request-scoped logger with
// the caller's id and role.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, id)
	ctx = logger.WithIdentity(ctx, id.Subject(), id.Role.String())
	l := logger.FromContext(ctx).With(
		slog.String("user_id", id.Subject()),
		slog.String("role", id.Role.String()),
	)
	return logger.NewContext(ctx, l)
}

// IdentityFromContext returns the identity attached by the guard.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*domain.Identity)
	return id, ok && id != nil
}
