package guard

import (
	"net/http"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
)

// Strategy is the authentication mode a route runs when it has no override.
// The set is closed; Authorize switches over it exhaustively.
type Strategy int

const (
	// StrategyBearer requires a valid access token that matches the stored
	// session for its (role, id).
	StrategyBearer Strategy = iota
	// StrategySignedPayload requires an encrypted proof of path, method and
	// shared secret in the payload header. Carries no identity.
	StrategySignedPayload
	// StrategyGuestEither accepts exactly one of payload or authorization and
	// runs the matching strategy.
	StrategyGuestEither
)

func (s Strategy) String() string {
	switch s {
	case StrategyBearer:
		return "bearer"
	case StrategySignedPayload:
		return "signed_payload"
	case StrategyGuestEither:
		return "guest_either"
	default:
		return "unknown"
	}
}

// Override replaces the default strategy for a route. It returns the caller
// identity, or nil for anonymous access, or a typed error.
type Override struct {
	Name      string
	Authorize func(r *http.Request) (*domain.Identity, error)
}

// Policy is the guard classification of one route.
type Policy struct {
	NoGuard  bool
	Override *Override
	Strategy Strategy
}

// Outcome describes how a request got through the guard.
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeBypass
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBypass:
		return "bypass"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "allowed"
	}
}
