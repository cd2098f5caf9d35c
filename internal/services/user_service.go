package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

// UserService reads UserDetails and applies the changes that are not profile
// edits: admin permission toggles and the favourite group.
type UserService struct {
	store    storage.Store
	sessions *SessionManager
}

func NewUserService(store storage.Store, sessions *SessionManager) *UserService {
	return &UserService{store: store, sessions: sessions}
}

func (s *UserService) ListUsers(ctx context.Context, allowedOnly bool) ([]models.UserDetail, error) {
	users, err := s.store.Users().List(ctx, allowedOnly)
	if err != nil {
		slog.Error("[ListUsers] store error", logging.Err(err))
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) ListByIDs(ctx context.Context, ids []string) ([]models.UserDetail, error) {
	users, err := s.store.Users().ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.UserDetail, error) {
	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// PageUsers is the admin user list, ordered by email.
func (s *UserService) PageUsers(ctx context.Context, actor *Session, req models.PageRequest) (models.Page[models.UserDetail], error) {
	if !actor.IsAdmin() {
		return models.Page[models.UserDetail]{}, ErrForbidden
	}
	return s.store.Users().Page(ctx, req)
}

// SetPermission applies an admin toggle and refreshes the target's cached
// session so the change applies on their next request.
func (s *UserService) SetPermission(ctx context.Context, actor *Session, targetID string, update models.PermissionUpdate) (*models.UserDetail, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.store.Users().SetPermission(ctx, targetID, update); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		slog.Error("[SetPermission] store error", "user_id", targetID, logging.Err(err))
		return nil, fmt.Errorf("set permission: %w", err)
	}

	slog.Info("[SetPermission] permission changed",
		"admin_id", actor.UID(), "user_id", targetID, "field", update.Field(), "value", update.Value())
	return s.sessions.Update(ctx, targetID)
}

// SetFavoriteGroup stores the group the user lands on. An empty id clears it.
func (s *UserService) SetFavoriteGroup(ctx context.Context, sess *Session, groupID string) (*models.UserDetail, error) {
	if !sess.IsLogged() {
		return nil, ErrUnauthenticated
	}
	uid := sess.UID()
	if groupID != "" {
		if _, err := requireParticipant(ctx, s.store, groupID, uid); err != nil {
			return nil, err
		}
	}
	if err := s.store.Users().SetFavoriteGroup(ctx, uid, groupID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("set favorite group: %w", err)
	}
	return s.sessions.Update(ctx, uid)
}
