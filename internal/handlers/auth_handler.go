package handlers

import (
	"net/http"

	"github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	resp, err := h.auth.Register(r.Context(), req, clientIP(r))
	if err != nil {
		writeError(w, "Register", err, "Failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, "Login", err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	resp, err := h.auth.LoginWithGoogle(r.Context(), req)
	if err != nil {
		writeError(w, "LoginWithGoogle", err, "Google sign-in failed")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
}

// PasswordReset answers the same way whether or not the email has an account.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, "PasswordReset", err, "Failed to send password reset email")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{
		"message": "If an account exists for that email, a reset link is on its way",
	}))
}

func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(sess.Payload()))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.SessionFrom(r.Context())); err != nil {
		writeError(w, "Logout", err, "Logout failed")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.SessionPayload{State: string(services.SessionSignedOut)}))
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), middleware.SessionFrom(r.Context()), req); err != nil {
		writeError(w, "ChangePassword", err, "Failed to change password")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Password updated"}))
}
