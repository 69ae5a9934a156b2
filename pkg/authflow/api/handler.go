package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/voyatra/auth-service/pkg/authflow"
	"github.com/voyatra/auth-service/pkg/device"
	"github.com/voyatra/auth-service/pkg/errs"
)

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	service *authflow.Service
	jwtAuth *jwtauth.JWTAuth
}

// NewHandler creates the auth HTTP handler. jwtAuth must verify with
// the same secret the token minter signs with.
func NewHandler(service *authflow.Service, jwtAuth *jwtauth.JWTAuth) *Handler {
	return &Handler{service: service, jwtAuth: jwtAuth}
}

// Routes returns the full auth router: public endpoints plus a
// JWT-protected group.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/verify-email", h.VerifyEmail)
	r.Post("/verify-2fa", h.Verify2FA)
	r.Post("/token/refresh", h.RefreshToken)
	r.Post("/logout", h.Logout)
	r.Post("/password/forgot", h.RequestPasswordReset)
	r.Post("/password/reset", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.jwtAuth))
		r.Use(jwtauth.Authenticator(h.jwtAuth))

		r.Post("/logout-all", h.LogoutAll)
		r.Post("/password/change", h.ChangePassword)
		r.Post("/2fa/enable", h.Enable2FA)
		r.Post("/2fa/disable", h.Disable2FA)
		r.Get("/sessions", h.ListSessions)
		r.Delete("/sessions/{sessionID}", h.RevokeSession)
		r.Get("/devices", h.ListTrustedDevices)
		r.Delete("/devices/{deviceID}", h.RemoveTrustedDevice)
	})

	return r
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	meta := requestMeta(r)
	result := h.service.Register(r.Context(), authflow.RegisterRequest{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Fingerprint: meta.Fingerprint,
	})
	h.renderLoginResult(w, r, result, http.StatusCreated)
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	meta := requestMeta(r)
	meta.Email = req.Email
	meta.Password = req.Password
	meta.TrustDevice = req.TrustDevice

	result := h.service.Login(r.Context(), meta)
	h.renderLoginResult(w, r, result, http.StatusOK)
}

// VerifyEmail handles POST /verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	result := h.service.VerifyEmail(r.Context(), req.Email, req.Code, requestMeta(r))
	h.renderLoginResult(w, r, result, http.StatusOK)
}

// Verify2FA handles POST /verify-2fa.
func (h *Handler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req Verify2FARequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	meta := requestMeta(r)
	meta.TrustDevice = req.TrustDevice

	result := h.service.Verify2FA(r.Context(), req.UserID, req.Code, meta)
	h.renderLoginResult(w, r, result, http.StatusOK)
}

// RefreshToken handles POST /token/refresh.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	access, expiry, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, AccessTokenResponse{AccessToken: access, AccessExpiresAt: expiry})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "logged out")
}

// LogoutAll handles POST /logout-all.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	if _, err := h.service.LogoutAll(r.Context(), userID); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "all sessions revoked")
}

// RequestPasswordReset handles POST /password/forgot. The answer never
// reveals whether the email exists.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.Error("Password reset request failed", "err", err)
	}
	renderMessage(w, r, "if the account exists, a reset code has been sent")
}

// ResetPassword handles POST /password/reset.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "password has been reset")
}

// ChangePassword handles POST /password/change.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "password has been changed")
}

// Enable2FA handles POST /2fa/enable.
func (h *Handler) Enable2FA(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var req Enable2FARequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r)
		return
	}

	enrollment, err := h.service.Enable2FA(r.Context(), userID, req.Method)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var resp Enable2FAResponse
	if err := copier.Copy(&resp, &enrollment); err != nil {
		renderError(w, r, errs.Internal(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// Disable2FA handles POST /2fa/disable.
func (h *Handler) Disable2FA(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Disable2FA(r.Context(), userID); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "two-factor authentication disabled")
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	infos, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := make([]SessionResponse, 0, len(infos))
	if err := copier.Copy(&resp, &infos); err != nil {
		renderError(w, r, errs.Internal(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// RevokeSession handles DELETE /sessions/{sessionID}.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.RevokeSession(r.Context(), userID, sessionID); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "session revoked")
}

// ListTrustedDevices handles GET /devices.
func (h *Handler) ListTrustedDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	devices, err := h.service.ListTrustedDevices(r.Context(), userID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := make([]TrustedDeviceResponse, 0, len(devices))
	if err := copier.Copy(&resp, &devices); err != nil {
		renderError(w, r, errs.Internal(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// RemoveTrustedDevice handles DELETE /devices/{deviceID}.
func (h *Handler) RemoveTrustedDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		renderBadRequest(w, r)
		return
	}

	if err := h.service.RemoveTrustedDevice(r.Context(), userID, deviceID); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, "trusted device removed")
}

// authenticatedUser pulls the user ID out of the verified JWT.
func (h *Handler) authenticatedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		renderError(w, r, errs.New(errs.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		renderError(w, r, errs.New(errs.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

// requestMeta captures device and network metadata from the request.
func requestMeta(r *http.Request) authflow.LoginRequest {
	data := device.ExtractFingerprintDataFromRequest(r)
	summary := device.Summarize(data.UserAgent)
	return authflow.LoginRequest{
		IPAddress:   data.IPAddress,
		UserAgent:   data.UserAgent,
		Fingerprint: string(device.NewFingerprint(data)),
		DeviceName:  summary.Name,
	}
}

func (h *Handler) renderLoginResult(w http.ResponseWriter, r *http.Request, result authflow.LoginResult, successStatus int) {
	if result.Err != nil {
		renderError(w, r, result.Err)
		return
	}

	if result.Status == authflow.StatusTwoFactorRequired {
		message := "a verification code is required to finish signing in"
		if result.Suspicious {
			message = "unusual activity detected, a verification code is required"
		}
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, TwoFactorPendingResponse{
			Status:          string(result.Status),
			UserID:          result.UserID,
			TwoFactorMethod: result.TwoFactorMethod,
			Suspicious:      result.Suspicious,
			Message:         message,
		})
		return
	}

	var profile ProfileResponse
	if err := copier.Copy(&profile, &result.Profile); err != nil {
		renderError(w, r, errs.Internal(err))
		return
	}

	render.Status(r, successStatus)
	render.JSON(w, r, TokenResponse{
		AccessToken:     result.Tokens.AccessToken,
		AccessExpiresAt: result.Tokens.AccessExpiresAt,
		RefreshToken:    result.Tokens.RefreshSecret,
		Profile:         profile,
	})
}

func renderMessage(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: message})
}

func renderBadRequest(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{
		Code:    "BAD_REQUEST",
		Message: "invalid request body",
	})
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.GetCode(err)

	message := "something went wrong"
	var flowErr *errs.Error
	if errors.As(err, &flowErr) && code != errs.CodeInternal {
		message = flowErr.Message
	}
	if code == errs.CodeInternal {
		// The cause stays in the log, never in the response.
		slog.Error("Request failed", "err", err)
	}

	render.Status(r, errs.MapCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{
		Code:    string(code),
		Message: message,
		Details: errs.GetDetails(err),
	})
}
