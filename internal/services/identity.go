package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/giftlist/backend/internal/models"
)

// IdentityProvider is the external account system: sign-up and sign-in,
// token verification, password and profile changes.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error)
	SignIn(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*models.Identity, *models.AuthTokens, error)
	VerifyToken(ctx context.Context, idToken string) (*models.Identity, error)
	GetIdentity(ctx context.Context, uid string) (*models.Identity, error)
	UpdatePassword(ctx context.Context, uid, password string) error
	// UpdateProfile changes only the non-nil fields and returns the result.
	UpdateProfile(ctx context.Context, uid string, displayName, photoURL *string) (*models.Identity, error)
	// PasswordResetLink returns a reset link the caller delivers itself.
	PasswordResetLink(ctx context.Context, email string) (string, error)
	// SendPasswordReset has the provider deliver its own reset email.
	SendPasswordReset(ctx context.Context, email string) error
	RevokeSessions(ctx context.Context, uid string) error
}

const identityToolkitEndpoint = "https://identitytoolkit.googleapis.com/v1"

// FirebaseIdentity uses the Admin SDK for privileged calls and the Identity
// Toolkit REST API for the password and Google sign-in flows, which the Admin
// SDK does not offer.
type FirebaseIdentity struct {
	auth       *auth.Client
	APIKey     string
	Endpoint   string
	RequestURI string
	HTTPClient *http.Client
}

var _ IdentityProvider = (*FirebaseIdentity)(nil)

func NewFirebaseIdentity(client *auth.Client, apiKey string) *FirebaseIdentity {
	return &FirebaseIdentity{
		auth:       client,
		APIKey:     strings.TrimSpace(apiKey),
		Endpoint:   identityToolkitEndpoint,
		RequestURI: "http://localhost",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type toolkitAuthResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
}

type toolkitErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// toolkitError maps Identity Toolkit error codes onto service errors.
func toolkitError(status int, message string) error {
	code := message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}
	switch code {
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_EMAIL":
		return ErrInvalidCredentials
	case "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN", "TOKEN_EXPIRED":
		return ErrInvalidToken
	}
	return fmt.Errorf("identity toolkit http %d: %s", status, message)
}

func (f *FirebaseIdentity) call(ctx context.Context, method string, body any, out any) error {
	if f.APIKey == "" {
		return fmt.Errorf("missing FIREBASE_API_KEY")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", f.Endpoint, method, url.QueryEscape(f.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e toolkitErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return fmt.Errorf("identity toolkit http %d", resp.StatusCode)
		}
		return toolkitError(resp.StatusCode, e.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *toolkitAuthResponse) result() (*models.Identity, *models.AuthTokens) {
	expires, _ := strconv.ParseInt(r.ExpiresIn, 10, 64)
	return &models.Identity{
			UID:         r.LocalID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			PhotoURL:    r.PhotoURL,
		}, &models.AuthTokens{
			IDToken:      r.IDToken,
			RefreshToken: r.RefreshToken,
			ExpiresIn:    expires,
		}
}

func (f *FirebaseIdentity) SignUp(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error) {
	var out toolkitAuthResponse
	err := f.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	id, tokens := out.result()
	return id, tokens, nil
}

func (f *FirebaseIdentity) SignIn(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error) {
	var out toolkitAuthResponse
	err := f.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	id, tokens := out.result()
	return id, tokens, nil
}

func (f *FirebaseIdentity) SignInWithGoogle(ctx context.Context, googleIDToken string) (*models.Identity, *models.AuthTokens, error) {
	postBody := url.Values{}
	postBody.Set("id_token", googleIDToken)
	postBody.Set("providerId", "google.com")

	var out toolkitAuthResponse
	err := f.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          f.RequestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	id, tokens := out.result()
	return id, tokens, nil
}

func (f *FirebaseIdentity) VerifyToken(ctx context.Context, idToken string) (*models.Identity, error) {
	tok, err := f.auth.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		slog.Debug("[VerifyToken] rejected", "error", err)
		return nil, ErrInvalidToken
	}
	id := &models.Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if pic, ok := tok.Claims["picture"].(string); ok {
		id.PhotoURL = pic
	}
	return id, nil
}

func userRecordToIdentity(u *auth.UserRecord) *models.Identity {
	return &models.Identity{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

func (f *FirebaseIdentity) GetIdentity(ctx context.Context, uid string) (*models.Identity, error) {
	u, err := f.auth.GetUser(ctx, uid)
	if auth.IsUserNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return userRecordToIdentity(u), nil
}

func (f *FirebaseIdentity) UpdatePassword(ctx context.Context, uid, password string) error {
	_, err := f.auth.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password))
	return err
}

func (f *FirebaseIdentity) UpdateProfile(ctx context.Context, uid string, displayName, photoURL *string) (*models.Identity, error) {
	params := &auth.UserToUpdate{}
	if displayName != nil {
		params = params.DisplayName(*displayName)
	}
	if photoURL != nil {
		params = params.PhotoURL(*photoURL)
	}
	u, err := f.auth.UpdateUser(ctx, uid, params)
	if err != nil {
		return nil, err
	}
	return userRecordToIdentity(u), nil
}

func (f *FirebaseIdentity) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := f.auth.PasswordResetLink(ctx, email)
	if auth.IsUserNotFound(err) || auth.IsEmailNotFound(err) {
		return "", ErrUserNotFound
	}
	return link, err
}

func (f *FirebaseIdentity) SendPasswordReset(ctx context.Context, email string) error {
	err := f.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
	if errors.Is(err, ErrInvalidCredentials) {
		return ErrUserNotFound
	}
	return err
}

func (f *FirebaseIdentity) RevokeSessions(ctx context.Context, uid string) error {
	return f.auth.RevokeRefreshTokens(ctx, uid)
}
