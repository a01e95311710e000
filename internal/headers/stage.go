// Package headers validates request headers against a per-route schema and
// rejects headers that no schema or allow-list entry accounts for.
package headers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/validator"
)

// allowed are header names accepted on every route in addition to the
// schema's own fields.
var allowed = map[string]struct{}{
	"accept":            {},
	"cache-control":     {},
	"connection":        {},
	"content-length":    {},
	"cookie":            {},
	"user-agent":        {},
	"origin":            {},
	"referer":           {},
	"x-correlation-id":  {},
	"x-request-id":      {},
	"x-real-ip":         {},
	"forwarded":         {},
	"traceparent":       {},
	"tracestate":        {},
	"baggage":           {},
	"pragma":            {},
	"if-none-match":     {},
	"if-modified-since": {},
	"priority":          {},
	"dnt":               {},
}

var allowedPrefixes = []string{"accept-", "x-forwarded-", "sec-"}

// DefaultExcludedPaths skip header validation entirely.
var DefaultExcludedPaths = []string{
	"/health/live",
	"/health/ready",
	"/metrics",
	"/api/v1/payments/callback",
}

// schemaFields caches the header names each schema declares.
var schemaFields = map[Schema]map[string]struct{}{
	SchemaPublic:        fieldNames(reflect.TypeOf(Public{})),
	SchemaGuest:         fieldNames(reflect.TypeOf(Guest{})),
	SchemaAuthenticated: fieldNames(reflect.TypeOf(Authenticated{})),
	SchemaLogin:         fieldNames(reflect.TypeOf(Login{})),
}

// Stage is the header validation step run after the guard.
type Stage struct {
	excluded map[string]struct{}

	// payloadOptional tolerates a missing payload header, matching the
	// guard's local-environment bypass.
	payloadOptional bool
}

// Option configures a Stage.
type Option func(*Stage)

// WithExcludedPaths replaces the default excluded paths.
func WithExcludedPaths(paths ...string) Option {
	return func(s *Stage) {
		s.excluded = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			s.excluded[p] = struct{}{}
		}
	}
}

// WithPayloadOptional tolerates a missing payload header on schemas that
// require it.
func WithPayloadOptional() Option {
	return func(s *Stage) { s.payloadOptional = true }
}

// NewStage creates a Stage.
func NewStage(opts ...Option) *Stage {
	s := &Stage{}
	WithExcludedPaths(DefaultExcludedPaths...)(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Excluded reports whether path skips header validation.
func (s *Stage) Excluded(path string) bool {
	_, ok := s.excluded[path]
	return ok
}

// Validate binds r's headers into schema's struct and validates them. All
// violations, including unknown headers, are returned together as a single
// 400 VALIDATION_ERROR keyed by lower-cased header name.
func (s *Stage) Validate(r *http.Request, schema Schema) (any, error) {
	if schema == SchemaDefault {
		schema = SchemaAuthenticated
	}
	v := schema.newValue()
	bind(reflect.ValueOf(v).Elem(), r)

	violations := map[string][]string{}

	if err := validator.Validate(v); err != nil {
		var ve *validator.ValidationError
		if !errors.As(err, &ve) {
			return nil, apperrors.Internal(err)
		}
		for name, msgs := range ve.Fields() {
			if s.payloadOptional && name == "payload" && r.Header.Get("Payload") == "" {
				continue
			}
			violations[name] = msgs
		}
	}

	for _, name := range unknown(r.Header, schemaFields[schema]) {
		violations[name] = append(violations[name], "is not allowed")
	}

	if len(violations) > 0 {
		return nil, apperrors.Validation("invalid request headers", violations)
	}
	return v, nil
}

func unknown(h http.Header, declared map[string]struct{}) []string {
	var out []string
	for k := range h {
		name := strings.ToLower(k)
		if _, ok := declared[name]; ok {
			continue
		}
		if _, ok := allowed[name]; ok {
			continue
		}
		if hasAllowedPrefix(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func hasAllowedPrefix(name string) bool {
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// bind copies header values into every string field tagged with header,
// descending into embedded structs. net/http moves Host out of the header
// map, so it is read from r.Host.
func bind(v reflect.Value, r *http.Request) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			bind(v.Field(i), r)
			continue
		}
		name := f.Tag.Get("header")
		if name == "" || name == "-" || f.Type.Kind() != reflect.String {
			continue
		}
		if name == "host" {
			v.Field(i).SetString(r.Host)
			continue
		}
		v.Field(i).SetString(r.Header.Get(name))
	}
}

func fieldNames(t reflect.Type) map[string]struct{} {
	names := map[string]struct{}{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			for n := range fieldNames(f.Type) {
				names[n] = struct{}{}
			}
			continue
		}
		if name := f.Tag.Get("header"); name != "" && name != "-" {
			names[name] = struct{}{}
		}
	}
	return names
}

type contextKey struct{}

// WithHeaders attaches the validated header struct to ctx.
func WithHeaders(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the validated header struct, if any.
func FromContext(ctx context.Context) any {
	return ctx.Value(contextKey{})
}

// As returns the validated headers as *T when the route bound that schema.
func As[T any](ctx context.Context) (*T, bool) {
	v, ok := FromContext(ctx).(*T)
	return v, ok
}
