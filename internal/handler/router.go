package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/authgateway/internal/config"
	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	"github.com/utafrali/EcommerceGo/authgateway/internal/gateway"
	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	"github.com/utafrali/EcommerceGo/authgateway/internal/headers"
	gwmiddleware "github.com/utafrali/EcommerceGo/authgateway/internal/middleware"
	"github.com/utafrali/EcommerceGo/authgateway/internal/proxy"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/health"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
	pkgmiddleware "github.com/utafrali/EcommerceGo/authgateway/pkg/middleware"
)

const serviceName = "auth-gateway"

// Backend names registered with the service proxy.
const (
	BackendCatalog  = "catalog"
	BackendOrder    = "order"
	BackendSettings = "settings"
	BackendAdmin    = "admin"
)

// RouterDeps are the collaborators NewRouter mounts.
type RouterDeps struct {
	Config   *config.Config
	Guard    *guard.Dispatcher
	Gateway  *gateway.Gateway
	Auth     *AuthHandler
	Payments *PaymentHandler
	Sync     *SyncHandler
	Proxy    *proxy.ServiceProxy
	Health   *health.Handler
	Errors   *httputil.ErrorWriter
	Logger   *slog.Logger

	// ClientIPs keys the rate limiter. Nil trusts no proxy headers.
	ClientIPs *gwmiddleware.ClientIPResolver
}

// NewRouter creates a chi router with the global middleware stack, health
// and metrics endpoints, the gateway-owned endpoints and the proxied backend
// routes, each behind its guard policy. ctx bounds background work such as
// rate limiter eviction.
func NewRouter(ctx context.Context, d RouterDeps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	// Global middleware stack (applied in order).
	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAge:         cfg.CORSMaxAge,
		Environment:    cfg.Environment,
	}))
	r.Use(gwmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, d.ClientIPs, d.Errors, d.Logger))
	r.Use(pkgmiddleware.Recovery(d.Logger, d.Errors))
	r.Use(chimw.Timeout(cfg.ProxyTimeout))
	r.Use(pkgmiddleware.RequestLogging(d.Logger))
	r.Use(pkgmiddleware.PrometheusMetrics(serviceName))
	r.Use(pkgmiddleware.Tracing(serviceName))
	r.Use(pkgmiddleware.RequestLogger(d.Logger))

	// Health check endpoints (no auth required).
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())

	// Metrics endpoint with IP allowlist protection.
	r.With(metricsIPAllowlist(cfg.MetricsAllowedCIDRs, d.Errors, d.Logger)).
		Handle("/metrics", promhttp.Handler())

	gw := d.Gateway
	signed := gateway.Route{Strategy: guard.StrategySignedPayload}
	bearer := gateway.Route{Strategy: guard.StrategyBearer}
	guest := gateway.Route{Strategy: guard.StrategyGuestEither}
	admin := gateway.Route{Guard: d.Guard.RequireRoles(domain.RoleAdmin)}

	r.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints owned by the gateway.
		r.Route("/auth", func(r chi.Router) {
			r.With(gw.Protect(gateway.Route{
				Strategy: guard.StrategySignedPayload,
				Headers:  headers.SchemaLogin,
			})).Post("/login", d.Auth.Login)
			r.With(gw.Protect(signed)).Post("/refresh", d.Auth.Refresh)
			r.With(gw.Protect(signed)).Post("/forgot-password", d.Auth.ForgotPassword)
			r.With(gw.Protect(signed)).Post("/verify-otp", d.Auth.VerifyOTP)
			r.With(gw.Protect(signed)).Post("/reset-password", d.Auth.ResetPassword)
			r.With(gw.Protect(bearer)).Post("/logout", d.Auth.Logout)
			r.With(gw.Protect(bearer)).Get("/me", d.Auth.Me)
		})

		// Payment gateway callback, authenticated by its own signature.
		r.Group(func(r chi.Router) {
			r.Use(gw.Protect(gateway.Route{NoGuard: true}))
			r.Get("/payments/callback", d.Payments.Callback)
			r.Post("/payments/callback", d.Payments.Callback)
		})

		// Admin-triggered push to the peer deployment.
		r.With(gw.Protect(admin)).Post("/admin/sync/{resource}", d.Sync.Sync)

		// Proxied backends.
		mount(r, "/catalog", gw.Protect(guest), d.Proxy.Handler(BackendCatalog))
		mount(r, "/orders", gw.Protect(bearer), d.Proxy.Handler(BackendOrder))
		mount(r, "/settings", gw.Protect(signed), d.Proxy.Handler(BackendSettings))
		mount(r, "/admin", gw.Protect(admin), d.Proxy.Handler(BackendAdmin))

		// Sync pushed by the peer deployment, signed with our key material.
		mount(r, "/sync", gw.Protect(signed), d.Proxy.Handler(BackendAdmin))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		d.Errors.WriteError(w, r, &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: "route not found",
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		})
	})

	return r
}

// mount serves prefix and everything below it through mw and h.
func mount(r chi.Router, prefix string, mw func(http.Handler) http.Handler, h http.Handler) {
	protected := mw(h)
	r.Handle(prefix, protected)
	r.Handle(prefix+"/*", protected)
}

// metricsIPAllowlist returns middleware that restricts access to requests
// from IPs within the configured CIDR ranges.
func metricsIPAllowlist(cidrs []string, ew *httputil.ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("invalid metrics CIDR, skipping", slog.String("cidr", cidr), slog.String("error", err.Error()))
			continue
		}
		nets = append(nets, ipNet)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ip := net.ParseIP(host)

			allowed := false
			if ip != nil {
				for _, n := range nets {
					if n.Contains(ip) {
						allowed = true
						break
					}
				}
			}

			if !allowed {
				logger.Warn("metrics access denied", slog.String("ip", host))
				ew.WriteError(w, r, apperrors.Forbidden("metrics endpoint is restricted"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
