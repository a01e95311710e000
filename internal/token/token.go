// Package token issues and verifies the HS256 access and refresh tokens.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
)

const (
	issuer = "auth-gateway"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// expiry, malformed input, wrong token type or unknown role.
var ErrInvalidToken = errors.New("invalid or expired token")

// Config holds the signing secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// claims is the JWT body. Identity fields sit next to the registered claims.
type claims struct {
	ID    int64  `json:"id"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *claims) identity() (*domain.Identity, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return nil, err
	}
	if c.ID <= 0 {
		return nil, errors.New("missing subject id")
	}
	return &domain.Identity{ID: c.ID, Phone: c.Phone, Email: c.Email, Role: role}, nil
}

// Inspection is the result of InspectExpiredRefreshToken. Error is set for
// tokens that cannot be trusted at all; Expired is set when the token is
// authentic but past its expiry.
type Inspection struct {
	Expired  bool
	Error    bool
	Identity *domain.Identity
}

// Service issues and verifies tokens.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewService creates a token service.
func NewService(cfg Config) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueAccessToken signs a short-lived access token for id.
func (s *Service) IssueAccessToken(id domain.Identity) (string, error) {
	tok, err := s.issue(id, typeAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return tok, nil
}

// IssueRefreshToken signs a long-lived refresh token for id.
func (s *Service) IssueRefreshToken(id domain.Identity) (string, error) {
	tok, err := s.issue(id, typeRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return tok, nil
}

// AccessTTL is the lifetime given to access tokens.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

func (s *Service) issue(id domain.Identity, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	c := &claims{
		ID:    id.ID,
		Phone: id.Phone,
		Email: id.Email,
		Role:  string(id.Role),
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// VerifyAccessToken validates tok and returns the identity it carries.
func (s *Service) VerifyAccessToken(tok string) (*domain.Identity, error) {
	return s.verify(tok, typeAccess, s.accessSecret)
}

// VerifyRefreshToken validates tok against the refresh secret.
func (s *Service) VerifyRefreshToken(tok string) (*domain.Identity, error) {
	return s.verify(tok, typeRefresh, s.refreshSecret)
}

func (s *Service) verify(tok, typ string, secret []byte) (*domain.Identity, error) {
	c, err := s.parse(tok, secret, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Type != typ {
		return nil, fmt.Errorf("%w: token type %q", ErrInvalidToken, c.Type)
	}
	id, err := c.identity()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}

// InspectExpiredRefreshToken tells an expired-but-authentic refresh token
// apart from one that is forged or undecodable. Only the signature, token
// type and claims shape are checked before expiry is considered.
func (s *Service) InspectExpiredRefreshToken(tok string) Inspection {
	c, err := s.parse(tok, s.refreshSecret, jwt.WithoutClaimsValidation())
	if err != nil || c.Type != typeRefresh || c.ExpiresAt == nil {
		return Inspection{Error: true}
	}
	id, err := c.identity()
	if err != nil {
		return Inspection{Error: true}
	}

	if !s.now().Before(c.ExpiresAt.Time) {
		return Inspection{Expired: true, Identity: id}
	}
	return Inspection{Identity: id}
}

func (s *Service) parse(tok string, secret []byte, opts ...jwt.ParserOption) (*claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var c claims
	t, err := jwt.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return &c, nil
}
