package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

type SessionState string

const (
	// SessionUnknown means identity is still being determined.
	SessionUnknown   SessionState = "unknown"
	SessionSignedOut SessionState = "signedOut"
	SessionSignedIn  SessionState = "signedIn"
)

// Session is the per-request view of who is calling and what they may do.
// It is created by SessionManager.Init and passed explicitly; nothing reads
// it from global state.
type Session struct {
	State    SessionState
	Identity *models.Identity
	Detail   *models.UserDetail
}

func (s *Session) IsLogged() bool {
	return s != nil && s.State == SessionSignedIn && s.Identity != nil
}

// HasAccess reports whether an admin has granted the account access.
func (s *Session) HasAccess() bool {
	return s.IsLogged() && s.Detail != nil && s.Detail.Allow
}

func (s *Session) IsAdmin() bool {
	return s.IsLogged() && s.Detail.HasAdminAccess()
}

func (s *Session) UID() string {
	if s == nil || s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}

func (s *Session) Payload() models.SessionPayload {
	if s == nil {
		return models.SessionPayload{State: string(SessionUnknown)}
	}
	return models.SessionPayload{
		State:      string(s.State),
		IsLogged:   s.IsLogged(),
		HasAccess:  s.HasAccess(),
		IsAdmin:    s.IsAdmin(),
		User:       s.Identity,
		UserDetail: s.Detail,
	}
}

// SessionManager owns the session lifecycle: Init on each incoming token,
// Update after the UserDetail changes and Teardown on logout.
type SessionManager struct {
	identity        IdentityProvider
	users           storage.UserDetailRepository
	cache           SessionCache
	defaultPhotoURL string
}

func NewSessionManager(identity IdentityProvider, users storage.UserDetailRepository, cache SessionCache, defaultPhotoURL string) *SessionManager {
	if cache == nil {
		cache = NopSessionCache{}
	}
	return &SessionManager{
		identity:        identity,
		users:           users,
		cache:           cache,
		defaultPhotoURL: defaultPhotoURL,
	}
}

// Init resolves an ID token into a session. An empty token is a signed-out
// session, not an error.
func (m *SessionManager) Init(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return &Session{State: SessionSignedOut}, nil
	}

	id, err := m.identity.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	detail, err := m.EnsureDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Session{State: SessionSignedIn, Identity: id, Detail: detail}, nil
}

// EnsureDetail returns the UserDetail for id, creating it with no access when
// the account has none yet.
func (m *SessionManager) EnsureDetail(ctx context.Context, id *models.Identity) (*models.UserDetail, error) {
	cached, err := m.cache.Get(ctx, id.UID)
	if err != nil {
		slog.Warn("[Session] cache read failed", "user_id", id.UID, logging.Err(err))
	}
	if cached != nil {
		return cached, nil
	}

	detail, err := m.users.Get(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("get user detail: %w", err)
	}
	if detail == nil {
		displayName := id.DisplayName
		if displayName == "" {
			displayName = id.Email
		}
		photoURL := id.PhotoURL
		if photoURL == "" {
			photoURL = m.defaultPhotoURL
		}
		detail, err = m.users.Create(ctx, models.UserDetail{
			ID:          id.UID,
			Email:       id.Email,
			Allow:       false,
			Admin:       false,
			DisplayName: displayName,
			PhotoURL:    photoURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create user detail: %w", err)
		}
		slog.Info("[Session] user detail created", "user_id", id.UID)
	}

	if err := m.cache.Set(ctx, detail); err != nil {
		slog.Warn("[Session] cache write failed", "user_id", id.UID, logging.Err(err))
	}
	return detail, nil
}

// Update drops the cached UserDetail for uid and reloads it from the store.
func (m *SessionManager) Update(ctx context.Context, uid string) (*models.UserDetail, error) {
	if err := m.cache.Delete(ctx, uid); err != nil {
		slog.Warn("[Session] cache delete failed", "user_id", uid, logging.Err(err))
	}
	detail, err := m.users.Get(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get user detail: %w", err)
	}
	if detail == nil {
		return nil, ErrUserNotFound
	}
	if err := m.cache.Set(ctx, detail); err != nil {
		slog.Warn("[Session] cache write failed", "user_id", uid, logging.Err(err))
	}
	return detail, nil
}

// Teardown revokes the user's tokens at the provider and forgets the cached
// detail.
func (m *SessionManager) Teardown(ctx context.Context, uid string) error {
	if err := m.identity.RevokeSessions(ctx, uid); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := m.cache.Delete(ctx, uid); err != nil {
		slog.Warn("[Session] cache delete failed", "user_id", uid, logging.Err(err))
	}
	return nil
}
