package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

// AuthService is the façade over the identity provider: sign-up, sign-in,
// password flows, logout and profile edits mirrored into the UserDetail.
type AuthService struct {
	identity IdentityProvider
	sessions *SessionManager
	users    storage.UserDetailRepository
	mailer   Mailer
	captcha  CaptchaVerifier
	photos   *PhotoService
}

type AuthOption func(*AuthService)

// WithMailer sends password reset links through m instead of the
// provider's own email.
func WithMailer(m Mailer) AuthOption {
	return func(s *AuthService) { s.mailer = m }
}

// WithCaptcha requires a passing captcha on Register.
func WithCaptcha(c CaptchaVerifier) AuthOption {
	return func(s *AuthService) { s.captcha = c }
}

func WithPhotos(p *PhotoService) AuthOption {
	return func(s *AuthService) { s.photos = p }
}

func NewAuthService(identity IdentityProvider, sessions *SessionManager, users storage.UserDetailRepository, opts ...AuthOption) *AuthService {
	s := &AuthService{
		identity: identity,
		sessions: sessions,
		users:    users,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) signedIn(ctx context.Context, id *models.Identity, tokens *models.AuthTokens) (*models.AuthResponse, error) {
	detail, err := s.sessions.EnsureDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := &Session{State: SessionSignedIn, Identity: id, Detail: detail}
	return &models.AuthResponse{Tokens: *tokens, Session: sess.Payload()}, nil
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, remoteIP string) (*models.AuthResponse, error) {
	if s.captcha != nil {
		ok, reason, err := s.captcha.Verify(ctx, req.RecaptchaToken, remoteIP)
		if err != nil {
			return nil, fmt.Errorf("verify captcha: %w", err)
		}
		if !ok {
			slog.Warn("[Register] captcha failed", "reason", reason)
			return nil, ErrRecaptchaFailed
		}
	}

	id, tokens, err := s.identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	slog.Info("[Register] account created", "user_id", id.UID)
	return s.signedIn(ctx, id, tokens)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	id, tokens, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, id, tokens)
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, req models.GoogleLoginRequest) (*models.AuthResponse, error) {
	id, tokens, err := s.identity.SignInWithGoogle(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, id, tokens)
}

// RequestPasswordReset never reveals whether the email has an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	var err error
	if s.mailer != nil {
		var link string
		link, err = s.identity.PasswordResetLink(ctx, email)
		if err == nil {
			err = s.mailer.SendPasswordReset(ctx, email, link)
		}
	} else {
		err = s.identity.SendPasswordReset(ctx, email)
	}

	if errors.Is(err, ErrUserNotFound) {
		slog.Info("[PasswordReset] unknown email")
		return nil
	}
	if err != nil {
		slog.Error("[PasswordReset] failed", logging.Err(err))
		return err
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, sess *Session, req models.ChangePasswordRequest) error {
	if !sess.IsLogged() {
		return ErrUnauthenticated
	}
	if err := s.identity.UpdatePassword(ctx, sess.UID(), req.Password); err != nil {
		slog.Error("[ChangePassword] provider error", "user_id", sess.UID(), logging.Err(err))
		return err
	}
	return nil
}

func (s *AuthService) Logout(ctx context.Context, sess *Session) error {
	if !sess.IsLogged() {
		return nil
	}
	return s.sessions.Teardown(ctx, sess.UID())
}

// UpdateProfile writes the identity provider first and then the UserDetail
// mirror. A failed mirror write puts the provider back to its old values.
func (s *AuthService) UpdateProfile(ctx context.Context, sess *Session, req models.ProfileUpdateRequest) (*models.SessionPayload, error) {
	if !sess.IsLogged() {
		return nil, ErrUnauthenticated
	}
	uid := sess.UID()

	before, err := s.identity.GetIdentity(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	updated, err := s.identity.UpdateProfile(ctx, uid, req.DisplayName, req.PhotoURL)
	if err != nil {
		slog.Error("[UpdateProfile] provider error", "user_id", uid, logging.Err(err))
		return nil, fmt.Errorf("update identity profile: %w", err)
	}

	var displayName, photoURL string
	if req.DisplayName != nil {
		displayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		photoURL = *req.PhotoURL
	}
	if err := s.users.UpdateProfile(ctx, uid, displayName, photoURL); err != nil {
		slog.Error("[UpdateProfile] mirror write failed, reverting provider", "user_id", uid, logging.Err(err))
		if _, rerr := s.identity.UpdateProfile(ctx, uid, &before.DisplayName, &before.PhotoURL); rerr != nil {
			slog.Error("[UpdateProfile] revert failed, provider and mirror differ", "user_id", uid, logging.Err(rerr))
		}
		return nil, fmt.Errorf("update user detail: %w", err)
	}

	detail, err := s.sessions.Update(ctx, uid)
	if err != nil {
		return nil, err
	}
	next := &Session{State: SessionSignedIn, Identity: updated, Detail: detail}
	payload := next.Payload()
	return &payload, nil
}

// UploadPhoto moderates an uploaded avatar and applies it as the profile
// photo.
func (s *AuthService) UploadPhoto(ctx context.Context, sess *Session, r io.Reader) (string, error) {
	if !sess.IsLogged() {
		return "", ErrUnauthenticated
	}
	if s.photos == nil {
		return "", ErrUnsupported
	}

	photoURL, err := s.photos.UploadAvatar(ctx, sess.UID(), r)
	if err != nil {
		return "", err
	}
	if _, err := s.UpdateProfile(ctx, sess, models.ProfileUpdateRequest{PhotoURL: &photoURL}); err != nil {
		return "", err
	}
	return photoURL, nil
}
