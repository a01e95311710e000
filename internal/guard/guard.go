// Package guard decides whether a request may proceed and which identity it
// carries.
package guard

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	"github.com/utafrali/EcommerceGo/authgateway/internal/session"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/tracing"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderPayload       = "Payload"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccessToken(tok string) (*domain.Identity, error)
}

// SessionReader reads the active session for (role, id).
type SessionReader interface {
	Get(ctx context.Context, role domain.Role, id string) (*domain.SessionRecord, error)
}

// Decrypter opens signed payload proofs.
type Decrypter interface {
	Decrypt(cipherText string) (string, error)
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Tokens        TokenVerifier
	Sessions      SessionReader
	Cipher        Decrypter
	SharedSecret  string
	LookupTimeout time.Duration

	// SkipSignedPayload lets every signed-payload check pass. Only set in
	// the local environment.
	SkipSignedPayload bool
	Logger            *slog.Logger
}

// Decision is a successful guard result.
type Decision struct {
	Outcome  Outcome
	Identity *domain.Identity
}

// Dispatcher runs the guard strategies.
type Dispatcher struct {
	cfg Config
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Dispatcher{cfg: cfg}
}

// Authorize evaluates p against r. Errors are *apperrors.AppError values and
// are returned unchanged from the strategy that produced them.
func (d *Dispatcher) Authorize(r *http.Request, p Policy) (Decision, error) {
	switch {
	case p.NoGuard:
		observe("none", OutcomeBypass.String())
		return Decision{Outcome: OutcomeBypass}, nil
	case p.Override != nil:
		observe(p.Override.Name, OutcomeDeferred.String())
		return Decision{Outcome: OutcomeDeferred}, nil
	}

	id, err := d.run(r, p.Strategy)
	if err != nil {
		observe(p.Strategy.String(), outcomeLabel(err))
		return Decision{}, err
	}
	observe(p.Strategy.String(), OutcomeAllowed.String())
	return Decision{Outcome: OutcomeAllowed, Identity: id}, nil
}

func (d *Dispatcher) run(r *http.Request, s Strategy) (*domain.Identity, error) {
	switch s {
	case StrategyBearer:
		return d.bearer(r)
	case StrategySignedPayload:
		return nil, d.signedPayload(r)
	case StrategyGuestEither:
		return d.guestEither(r)
	default:
		return nil, apperrors.Internal(errors.New("guard: unknown strategy " + s.String()))
	}
}

// RequireRoles is an override that runs the bearer strategy and then checks
// the caller's role.
func (d *Dispatcher) RequireRoles(roles ...domain.Role) *Override {
	return &Override{
		Name: "require_roles",
		Authorize: func(r *http.Request) (*domain.Identity, error) {
			id, err := d.bearer(r)
			if err == nil && !slices.Contains(roles, id.Role) {
				err = apperrors.Forbidden("insufficient permissions")
			}
			if err != nil {
				observe("require_roles", outcomeLabel(err))
				return nil, err
			}
			observe("require_roles", OutcomeAllowed.String())
			return id, nil
		},
	}
}

func (d *Dispatcher) bearer(r *http.Request) (*domain.Identity, error) {
	raw := r.Header.Get(HeaderAuthorization)
	if raw == "" {
		return nil, apperrors.InvalidInput("authorization header is required")
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	tok = strings.TrimSpace(tok)
	if !ok || !strings.EqualFold(scheme, "bearer") || tok == "" {
		return nil, apperrors.InvalidInput("authorization header must use the Bearer scheme")
	}

	id, err := d.cfg.Tokens.VerifyAccessToken(tok)
	if err != nil {
		logger.FromContext(r.Context()).Debug("access token rejected", slog.String("error", err.Error()))
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	rec, err := d.lookup(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.Unauthorized("authentication failed")
		}
		return nil, apperrors.Unavailable("session store unavailable", err)
	}
	if subtle.ConstantTimeCompare([]byte(rec.AccessToken), []byte(tok)) != 1 {
		logger.FromContext(r.Context()).Info("superseded access token presented",
			slog.String("user_id", id.Subject()),
			slog.String("role", id.Role.String()),
		)
		return nil, apperrors.Unauthorized("authentication failed")
	}
	return id, nil
}

func (d *Dispatcher) lookup(ctx context.Context, id *domain.Identity) (rec *domain.SessionRecord, err error) {
	if d.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.LookupTimeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "guard.session_lookup")
	defer func() {
		if errors.Is(err, session.ErrNotFound) {
			tracing.End(span, nil)
			return
		}
		tracing.End(span, err)
	}()

	return d.cfg.Sessions.Get(ctx, id.Role, id.Subject())
}

func (d *Dispatcher) signedPayload(r *http.Request) error {
	if d.cfg.SkipSignedPayload {
		return nil
	}
	raw := r.Header.Get(HeaderPayload)
	if raw == "" {
		return apperrors.InvalidInput("payload header is required")
	}

	plain, err := d.cfg.Cipher.Decrypt(raw)
	if err != nil {
		return apperrors.InvalidInput("invalid payload")
	}
	want := r.URL.Path + r.Method + d.cfg.SharedSecret
	if subtle.ConstantTimeCompare([]byte(plain), []byte(want)) != 1 {
		return apperrors.InvalidInput("invalid payload")
	}
	return nil
}

func (d *Dispatcher) guestEither(r *http.Request) (*domain.Identity, error) {
	hasPayload := r.Header.Get(HeaderPayload) != ""
	hasAuth := r.Header.Get(HeaderAuthorization) != ""

	switch {
	case hasPayload && !hasAuth:
		return nil, d.signedPayload(r)
	case hasAuth && !hasPayload:
		return d.bearer(r)
	default:
		return nil, apperrors.Unauthorized("exactly one of payload or authorization is required")
	}
}

func outcomeLabel(err error) string {
	switch apperrors.HTTPStatus(err) {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}
