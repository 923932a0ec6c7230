package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegis-auth/aegis/internal/platform/httpx"
	"github.com/aegis-auth/aegis/internal/shared"
	"github.com/aegis-auth/aegis/internal/users"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
	// The refresh cookie is scoped to the refresh endpoint so it is not
	// replayed on every request.
	refreshPath = "/auth/refresh"
)

// Observer counts auth operation outcomes. Satisfied by
// observability.Metrics; nil disables recording.
type Observer interface {
	ObserveAuth(operation, result string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validator  *validator.Validate
	observer   Observer
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewHandler constructs a Handler instance. secure controls the cookie
// Secure attribute and should be true outside development.
func NewHandler(logger *slog.Logger, service *Service, observer Observer, secure bool, accessTTL, refreshTTL time.Duration) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		validator:  validator.New(),
		observer:   observer,
		secure:     secure,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// observe records the outcome of a service call. Validation rejects are
// not counted; only attempts that reached the service are.
func (h *Handler) observe(operation string, err error) {
	if h.observer == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	h.observer.ObserveAuth(operation, result)
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Get("/refresh", h.handleRefresh)
	r.Get("/email/verify/{code}", h.handleVerifyEmail)
	r.Post("/password/forgot", h.handleForgotPassword)
	r.Get("/password/reset/{code}", h.handleCheckResetCode)
	r.Post("/password/reset", h.handleResetPassword)
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required"`
	Password         string `json:"password" validate:"required,min=6"`
}

type sessionResponse struct {
	User         users.SafeUser `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return shared.NewError(shared.CodeValidation, http.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(target); err != nil {
		return shared.NewError(shared.CodeValidation, http.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, r.UserAgent())
	h.observe("register", err)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	h.setAuthCookies(w, result.AccessToken, result.RefreshToken)
	httpx.JSON(w, http.StatusCreated, sessionResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	h.observe("login", err)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	h.setAuthCookies(w, result.AccessToken, result.RefreshToken)
	httpx.JSON(w, http.StatusOK, sessionResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(accessCookie); err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	h.clearAuthCookies(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil {
		httpx.RespondError(w, shared.ErrInvalidRefreshToken("Missing refresh token"))
		return
	}

	accessToken, newRefreshToken, err := h.service.RefreshTokens(r.Context(), cookie.Value)
	h.observe("refresh", err)
	if err != nil {
		if appErr, ok := shared.AsError(err); ok && appErr.Code == shared.CodeInvalidRefreshToken {
			h.clearAuthCookies(w)
		}
		httpx.RespondError(w, err)
		return
	}

	h.setCookie(w, accessCookie, accessToken, "/", h.accessTTL)
	if newRefreshToken != "" {
		h.setCookie(w, refreshCookie, newRefreshToken, refreshPath, h.refreshTTL)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Access token refreshed", "accessToken": accessToken})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		httpx.RespondError(w, shared.ErrUnprocessableCode("Invalid verification code"))
		return
	}
	if _, err := h.service.VerifyEmail(r.Context(), code); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Email was successfully verified"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Always the same answer; see Service.RequestPasswordReset.
	h.service.RequestPasswordReset(r.Context(), req.Email)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password reset email sent"})
}

func (h *Handler) handleCheckResetCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.CheckResetCode(r.Context(), code); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Link is valid"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.VerificationCode, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Every session was revoked; make the client drop its tokens too.
	h.clearAuthCookies(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password was reset successfully"})
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	h.setCookie(w, accessCookie, accessToken, "/", h.accessTTL)
	h.setCookie(w, refreshCookie, refreshToken, refreshPath, h.refreshTTL)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value, path string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: accessCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteStrictMode})
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: refreshPath, MaxAge: -1, HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteStrictMode})
}
