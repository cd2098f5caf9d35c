package models

import (
	"strings"

	"github.com/giftlist/backend/internal/validation"
)

// Identity is the identity provider's view of a signed-in user.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Label is the participant identifier captured when joining a group.
func (i *Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// AuthTokens are returned to the client after a password or federated sign-in.
type AuthTokens struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	RecaptchaToken  string `json:"recaptchaToken,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type AuthResponse struct {
	Tokens  AuthTokens     `json:"tokens"`
	Session SessionPayload `json:"session"`
}

// SessionPayload is the serialized session context handed to clients.
type SessionPayload struct {
	State      string      `json:"state"`
	IsLogged   bool        `json:"isLogged"`
	HasAccess  bool        `json:"hasAccess"`
	IsAdmin    bool        `json:"isAdmin"`
	User       *Identity   `json:"user"`
	UserDetail *UserDetail `json:"userDetail,omitempty"`
}

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	r.Email = strings.TrimSpace(r.Email)
	if !validation.ValidateEmail(r.Email) {
		errors["email"] = "Please enter a valid email"
	}
	if !validation.ValidatePassword(r.Password) {
		errors["password"] = "Password must be at least 6 characters"
	}
	if !validation.ValidatePasswordConfirmation(r.Password, r.ConfirmPassword) {
		errors["confirmPassword"] = "Passwords do not match"
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	r.Email = strings.TrimSpace(r.Email)
	if !validation.ValidateEmail(r.Email) {
		errors["email"] = "Please enter a valid email"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *GoogleLoginRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.IDToken) == "" {
		errors["idToken"] = "Google ID token is required"
	}
	return errors
}

func (r *PasswordResetRequest) Validate() map[string]string {
	errors := make(map[string]string)
	r.Email = strings.TrimSpace(r.Email)
	if !validation.ValidateEmail(r.Email) {
		errors["email"] = "Please enter a valid email"
	}
	return errors
}

func (r *ChangePasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.ValidatePassword(r.Password) {
		errors["password"] = "Password must be at least 6 characters"
	}
	if !validation.ValidatePasswordConfirmation(r.Password, r.ConfirmPassword) {
		errors["confirmPassword"] = "Passwords do not match"
	}

	return errors
}
