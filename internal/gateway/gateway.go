// Package gateway composes the guard and header validation into per-route
// middleware.
package gateway

import (
	"net/http"

	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	"github.com/utafrali/EcommerceGo/authgateway/internal/headers"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
)

// Route is the declarative policy of one route.
type Route struct {
	// NoGuard lets every request through without authentication.
	NoGuard bool
	// Guard replaces Strategy when set.
	Guard *guard.Override
	// Strategy is the default authentication mode.
	Strategy guard.Strategy
	// Headers binds a header schema explicitly; the zero value derives it
	// from Strategy.
	Headers headers.Schema
}

// Policy returns the guard classification of the route.
func (rt Route) Policy() guard.Policy {
	return guard.Policy{NoGuard: rt.NoGuard, Override: rt.Guard, Strategy: rt.Strategy}
}

// Gateway holds the collaborators shared by every protected route.
type Gateway struct {
	guard   *guard.Dispatcher
	headers *headers.Stage
	errors  *httputil.ErrorWriter
}

// New creates a Gateway.
func New(d *guard.Dispatcher, s *headers.Stage, ew *httputil.ErrorWriter) *Gateway {
	return &Gateway{guard: d, headers: s, errors: ew}
}

// Protect returns middleware enforcing rt. The guard runs first; on success
// the identity is attached, then headers are validated and attached. Any
// failure is written once and stops the chain.
func (g *Gateway) Protect(rt Route) func(http.Handler) http.Handler {
	policy := rt.Policy()
	schema := headers.Select(rt.Headers, rt.Strategy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := g.guard.Authorize(r, policy)
			if err != nil {
				g.errors.WriteError(w, r, err)
				return
			}

			id := decision.Identity
			if decision.Outcome == guard.OutcomeDeferred {
				id, err = policy.Override.Authorize(r)
				if err != nil {
					g.errors.WriteError(w, r, err)
					return
				}
			}

			ctx := r.Context()
			if id != nil {
				ctx = guard.WithIdentity(ctx, id)
			}

			if !g.headers.Excluded(r.URL.Path) {
				v, err := g.headers.Validate(r, schema)
				if err != nil {
					g.errors.WriteError(w, r.WithContext(ctx), err)
					return
				}
				ctx = headers.WithHeaders(ctx, v)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
