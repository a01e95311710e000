package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	"github.com/utafrali/EcommerceGo/authgateway/internal/identity"
	"github.com/utafrali/EcommerceGo/authgateway/internal/session"
	"github.com/utafrali/EcommerceGo/authgateway/internal/token"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
)

const (
	minPasswordLength = 8
	otpDigits         = 6

	defaultMaxOTPAttempts = 5
)

// SessionStore is the session store as the auth flows use it.
type SessionStore interface {
	Get(ctx context.Context, role domain.Role, id string) (*domain.SessionRecord, error)
	Set(ctx context.Context, role domain.Role, id string, rec *domain.SessionRecord, ttl time.Duration) error
	Delete(ctx context.Context, role domain.Role, id string) error
	SetResetToken(ctx context.Context, key, value string, ttl time.Duration) error
	GetResetToken(ctx context.Context, key string) (string, error)
	DeleteResetToken(ctx context.Context, key string) error
	IncrResetAttempts(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// AuthEvents publishes auth lifecycle events.
type AuthEvents interface {
	PublishLoggedIn(ctx context.Context, rec *domain.SessionRecord) error
	PublishLoggedOut(ctx context.Context, id *domain.Identity) error
	PublishPasswordResetRequested(ctx context.Context, u *domain.User, otp string) error
	PublishPasswordReset(ctx context.Context, u *domain.User) error
}

// Cipher wraps refresh tokens handed to clients.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipherText string) (string, error)
}

// AuthConfig holds the auth flow settings.
type AuthConfig struct {
	SessionTTL time.Duration
	ResetTTL   time.Duration
	BcryptCost int

	// MaxOTPAttempts is how many wrong codes a reset key survives.
	MaxOTPAttempts int

	// TolerateSessionWriteErrors logs and ignores a failed session write
	// instead of failing the login. Only set in the local environment.
	TolerateSessionWriteErrors bool
}

// AuthService implements the gateway-owned auth endpoints.
type AuthService struct {
	users    identity.Repository
	sessions SessionStore
	tokens   *token.Service
	cipher   Cipher
	events   AuthEvents
	cfg      AuthConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users identity.Repository,
	sessions SessionStore,
	tokens *token.Service,
	cipher Cipher,
	events AuthEvents,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MaxOTPAttempts <= 0 {
		cfg.MaxOTPAttempts = defaultMaxOTPAttempts
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cipher:   cipher,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginInput holds the parameters for login.
type LoginInput struct {
	Phone    string
	Password string
	DeviceID string
	Platform string
}

// RefreshInput holds the parameters for a token refresh.
type RefreshInput struct {
	RefreshToken string
	DeviceID     string
	Platform     string
}

// TokenPair is returned by login and refresh. RefreshToken is encrypted.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the login response body.
type LoginResult struct {
	TokenPair
	User domain.Identity `json:"user"`
}

// Login authenticates by phone and password and opens a new session,
// replacing any session the account already had.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Phone == "" {
		return nil, apperrors.InvalidInput("phone is required")
	}
	if in.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByPhone(ctx, in.Phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid phone or password")
		}
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	if !user.Active {
		return nil, apperrors.Unauthorized("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid phone or password")
	}

	id := user.Identity()
	pair, rec, err := s.openSession(ctx, id, in.DeviceID, in.Platform)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishLoggedIn(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_in event",
			slog.Int64("user_id", id.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", id.ID),
		slog.String("role", id.Role.String()),
		slog.String("platform", in.Platform),
	)

	return &LoginResult{TokenPair: *pair, User: id}, nil
}

// Refresh exchanges an encrypted refresh token for a new pair. A refresh
// token that is authentic but expired is still honoured while its session
// exists; anything else is rejected.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, error) {
	if in.RefreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}
	invalid := apperrors.Unauthorized("invalid or expired refresh token")

	raw, err := s.cipher.Decrypt(in.RefreshToken)
	if err != nil {
		return nil, invalid
	}

	claimed, err := s.tokens.VerifyRefreshToken(raw)
	if err != nil {
		insp := s.tokens.InspectExpiredRefreshToken(raw)
		if insp.Error || !insp.Expired {
			return nil, invalid
		}
		if _, err := s.sessions.Get(ctx, insp.Identity.Role, insp.Identity.Subject()); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, invalid
			}
			return nil, apperrors.Unavailable("session store unavailable", err)
		}
		claimed = insp.Identity
		s.logger.InfoContext(ctx, "re-issuing expired refresh token",
			slog.Int64("user_id", claimed.ID),
		)
	}

	user, err := s.users.GetByID(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}
	if !user.Active || user.Role != claimed.Role {
		return nil, invalid
	}

	pair, _, err := s.openSession(ctx, user.Identity(), in.DeviceID, in.Platform)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens refreshed", slog.Int64("user_id", user.ID))
	return pair, nil
}

// Logout closes the caller's session, revoking its access token.
func (s *AuthService) Logout(ctx context.Context, id *domain.Identity) error {
	if err := s.sessions.Delete(ctx, id.Role, id.Subject()); err != nil {
		return apperrors.Unavailable("session store unavailable", err)
	}
	if err := s.events.PublishLoggedOut(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_out event",
			slog.Int64("user_id", id.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ForgotPassword starts a reset: an OTP is stored under a fresh reset key
// and handed to the notification service. Only the key is returned. Unknown
// phone numbers get a key that nothing is stored under, so the response
// does not reveal whether the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, phone string) (string, error) {
	if phone == "" {
		return "", apperrors.InvalidInput("phone is required")
	}

	key, err := s.newResetKey()
	if err != nil {
		return "", apperrors.Internal(err)
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown phone")
			return key, nil
		}
		return "", fmt.Errorf("get user by phone: %w", err)
	}
	if !user.Active {
		return key, nil
	}

	otp, err := newOTP()
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if err := s.sessions.SetResetToken(ctx, key, otpValue(user.ID, otp), s.cfg.ResetTTL); err != nil {
		return "", apperrors.Unavailable("session store unavailable", err)
	}

	if err := s.events.PublishPasswordResetRequested(ctx, user, otp); err != nil {
		// Without the event the user never receives the code.
		_ = s.sessions.DeleteResetToken(ctx, key)
		return "", apperrors.Unavailable("notification service unavailable", err)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.Int64("user_id", user.ID))
	return key, nil
}

// VerifyOTP checks otp against the reset key from ForgotPassword. On success
// the key is consumed and a second key, bound to the user, is returned for
// ResetPassword. After MaxOTPAttempts wrong codes the key is dropped.
func (s *AuthService) VerifyOTP(ctx context.Context, key, otp string) (string, error) {
	if key == "" || otp == "" {
		return "", apperrors.InvalidInput("reset key and otp are required")
	}
	invalid := apperrors.Unauthorized("invalid or expired reset code")

	v, err := s.sessions.GetResetToken(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", invalid
		}
		return "", apperrors.Unavailable("session store unavailable", err)
	}
	userID, want, ok := parseOTPValue(v)
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(otp)) != 1 {
		if err := s.recordFailedOTP(ctx, key); err != nil {
			return "", err
		}
		return "", invalid
	}

	if err := s.sessions.DeleteResetToken(ctx, key); err != nil {
		return "", apperrors.Unavailable("session store unavailable", err)
	}

	next, err := s.newResetKey()
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if err := s.sessions.SetResetToken(ctx, next, strconv.FormatInt(userID, 10), s.cfg.ResetTTL); err != nil {
		return "", apperrors.Unavailable("session store unavailable", err)
	}
	return next, nil
}

func (s *AuthService) recordFailedOTP(ctx context.Context, key string) error {
	n, err := s.sessions.IncrResetAttempts(ctx, key, s.cfg.ResetTTL)
	if err != nil {
		return apperrors.Unavailable("session store unavailable", err)
	}
	if n < int64(s.cfg.MaxOTPAttempts) {
		return nil
	}
	s.logger.WarnContext(ctx, "reset key dropped after too many wrong codes",
		slog.Int64("attempts", n),
	)
	if err := s.sessions.DeleteResetToken(ctx, key); err != nil {
		return apperrors.Unavailable("session store unavailable", err)
	}
	return nil
}

// ResetPassword sets a new password for the user bound to key, then drops
// the key and the user's session.
func (s *AuthService) ResetPassword(ctx context.Context, key, newPassword string) error {
	if key == "" {
		return apperrors.InvalidInput("reset key is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	invalid := apperrors.Unauthorized("invalid or expired reset key")

	v, err := s.sessions.GetResetToken(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return invalid
		}
		return apperrors.Unavailable("session store unavailable", err)
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return invalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return invalid
		}
		return fmt.Errorf("get user for password reset: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.sessions.DeleteResetToken(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete reset key", slog.String("error", err.Error()))
	}
	if err := s.sessions.Delete(ctx, user.Role, strconv.FormatInt(user.ID, 10)); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop session after password reset",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.PublishPasswordReset(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed", slog.Int64("user_id", user.ID))
	return nil
}

// openSession issues a token pair for id and writes it as the active
// session, replacing the previous one.
func (s *AuthService) openSession(ctx context.Context, id domain.Identity, deviceID, platform string) (*TokenPair, *domain.SessionRecord, error) {
	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	wrapped, err := s.cipher.Encrypt(refresh)
	if err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("encrypt refresh token: %w", err))
	}

	rec := &domain.SessionRecord{
		Identity:    id,
		AccessToken: access,
		IssuedAt:    s.now().UTC(),
		DeviceID:    deviceID,
		Platform:    platform,
	}
	if err := s.sessions.Set(ctx, id.Role, id.Subject(), rec, s.cfg.SessionTTL); err != nil {
		if !s.cfg.TolerateSessionWriteErrors {
			return nil, nil, apperrors.Unavailable("session store unavailable", err)
		}
		s.logger.WarnContext(ctx, "session write failed, continuing",
			slog.Int64("user_id", id.ID),
			slog.String("error", err.Error()),
		)
	}

	return &TokenPair{AccessToken: access, RefreshToken: wrapped}, rec, nil
}

func (s *AuthService) newResetKey() (string, error) {
	id, err := ulid.New(ulid.Timestamp(s.now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate reset key: %w", err)
	}
	return id.String(), nil
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// otpValue is what a first-stage reset key stores: "<user id>:<otp>".
func otpValue(userID int64, otp string) string {
	return strconv.FormatInt(userID, 10) + ":" + otp
}

func parseOTPValue(v string) (int64, string, bool) {
	idPart, otp, ok := strings.Cut(v, ":")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, otp, true
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
