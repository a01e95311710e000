package proxy

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	pkghttputil "github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
)

// Identity headers set on proxied requests. Client-supplied copies are
// always removed first.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderUserPhone = "X-User-Phone"
)

// ServiceProxy manages reverse proxies to backend services.
type ServiceProxy struct {
	routes map[string]*httputil.ReverseProxy
	ew     *pkghttputil.ErrorWriter
	logger *slog.Logger
}

// NewServiceProxy creates a reverse proxy for each named backend URL.
// Backends with an unparsable URL are logged and skipped.
func NewServiceProxy(backends map[string]string, timeout time.Duration, ew *pkghttputil.ErrorWriter, logger *slog.Logger) *ServiceProxy {
	sp := &ServiceProxy{
		routes: make(map[string]*httputil.ReverseProxy),
		ew:     ew,
		logger: logger,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	for name, rawURL := range backends {
		target, err := url.Parse(rawURL)
		if err != nil || target.Host == "" {
			logger.Error("invalid service URL",
				slog.String("service", name),
				slog.String("url", rawURL),
			)
			continue
		}

		sp.routes[name] = &httputil.ReverseProxy{
			Rewrite:      rewrite(target),
			Transport:    transport,
			ErrorHandler: sp.errorHandler(name),
		}

		logger.Info("registered service proxy",
			slog.String("service", name),
			slog.String("target", rawURL),
		)
	}

	return sp
}

// Handler returns an http.Handler that proxies requests to the named backend.
func (sp *ServiceProxy) Handler(serviceName string) http.Handler {
	proxy, ok := sp.routes[serviceName]
	if !ok {
		sp.logger.Error("no proxy registered for service", slog.String("service", serviceName))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sp.ew.WriteError(w, r, apperrors.BadGateway("service not configured", nil))
		})
	}
	return proxy
}

func rewrite(target *url.URL) func(*httputil.ProxyRequest) {
	return func(pr *httputil.ProxyRequest) {
		pr.SetURL(target)
		pr.SetXForwarded()
		pr.Out.Host = target.Host

		pr.Out.Header.Del(HeaderUserID)
		pr.Out.Header.Del(HeaderUserRole)
		pr.Out.Header.Del(HeaderUserPhone)
		if id, ok := guard.IdentityFromContext(pr.In.Context()); ok {
			pr.Out.Header.Set(HeaderUserID, id.Subject())
			pr.Out.Header.Set(HeaderUserRole, id.Role.String())
			if id.Phone != "" {
				pr.Out.Header.Set(HeaderUserPhone, id.Phone)
			}
		}

		otel.GetTextMapPropagator().Inject(pr.In.Context(), propagation.HeaderCarrier(pr.Out.Header))
	}
}

// errorHandler logs the failure and writes the gateway error shape.
func (sp *ServiceProxy) errorHandler(serviceName string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		sp.logger.ErrorContext(r.Context(), "proxy error",
			slog.String("service", serviceName),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		sp.ew.WriteError(w, r, apperrors.BadGateway("upstream service unavailable", err))
	}
}
