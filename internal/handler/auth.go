package handler

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	"github.com/utafrali/EcommerceGo/authgateway/internal/service"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
)

// AuthHandler serves the gateway-owned auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	errors  *httputil.ErrorWriter
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, ew *httputil.ErrorWriter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, errors: ew, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON body for login.
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshRequest is the JSON body for a token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ForgotPasswordRequest is the JSON body that starts a password reset.
type ForgotPasswordRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

// VerifyOTPRequest is the JSON body for OTP verification.
type VerifyOTPRequest struct {
	Key string `json:"key" validate:"required,ulid"`
	OTP string `json:"otp" validate:"required,len=6,digits"`
}

// ResetPasswordRequest is the JSON body that completes a password reset.
type ResetPasswordRequest struct {
	Key         string `json:"key" validate:"required,ulid"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// resetKeyResponse carries the opaque key for the next reset step.
type resetKeyResponse struct {
	Key string `json:"key"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Handlers ---

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	deviceID, platform := device(r.Context())
	res, err := h.service.Login(r.Context(), service.LoginInput{
		Phone:    req.Phone,
		Password: req.Password,
		DeviceID: deviceID,
		Platform: platform,
	})
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	deviceID, platform := device(r.Context())
	pair, err := h.service.Refresh(r.Context(), service.RefreshInput{
		RefreshToken: req.RefreshToken,
		DeviceID:     deviceID,
		Platform:     platform,
	})
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, pair)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := guard.IdentityFromContext(r.Context())
	if !ok {
		h.errors.WriteError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	if err := h.service.Logout(r.Context(), id); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := guard.IdentityFromContext(r.Context())
	if !ok {
		h.errors.WriteError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}
	httputil.WriteData(w, http.StatusOK, id)
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	key, err := h.service.ForgotPassword(r.Context(), req.Phone)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusAccepted, resetKeyResponse{Key: key})
}

// VerifyOTP handles POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	key, err := h.service.VerifyOTP(r.Context(), req.Key, req.OTP)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, resetKeyResponse{Key: key})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Key, req.NewPassword); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "password updated"})
}
