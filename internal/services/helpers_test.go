package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

type testEnv struct {
	store    *storage.MemoryStore
	identity *LocalIdentity
	sessions *SessionManager
	groups   *GroupService
	gifts    *GiftService
	users    *UserService
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	identity := NewLocalIdentity("test-secret", time.Hour, "http://localhost/reset")
	sessions := NewSessionManager(identity, store.Users(), nil, "https://example.com/default.png")
	return &testEnv{
		store:    store,
		identity: identity,
		sessions: sessions,
		groups:   NewGroupService(store),
		gifts:    NewGiftService(store),
		users:    NewUserService(store, sessions),
		auth:     NewAuthService(identity, sessions, store.Users()),
	}
}

// signUp registers email and returns its signed-in session with allow set as
// requested.
func (e *testEnv) signUp(t *testing.T, email string, allow bool) *Session {
	t.Helper()
	ctx := context.Background()

	_, tokens, err := e.identity.SignUp(ctx, email, "secret1")
	require.NoError(t, err)
	sess, err := e.sessions.Init(ctx, tokens.IDToken)
	require.NoError(t, err)
	if allow {
		require.NoError(t, e.store.Users().SetPermission(ctx, sess.UID(), models.SetAllow(true)))
		sess.Detail, err = e.sessions.Update(ctx, sess.UID())
		require.NoError(t, err)
	}
	return sess
}

func (e *testEnv) createGroup(t *testing.T, owner *Session, invited ...string) string {
	t.Helper()
	summary, err := e.groups.CreateGroup(context.Background(), owner.Identity, models.CreateGroupRequest{
		Name:         "Xmas",
		Code:         "1234",
		InvitedUsers: invited,
	})
	require.NoError(t, err)
	return summary.ID
}

func (e *testEnv) join(t *testing.T, sess *Session, groupID string) {
	t.Helper()
	_, err := e.groups.JoinGroup(context.Background(), sess.Identity, groupID, "1234")
	require.NoError(t, err)
}

func (e *testEnv) addGift(t *testing.T, sess *Session, groupID, name string) string {
	t.Helper()
	g, err := e.gifts.CreateGift(context.Background(), sess.Identity, groupID, models.GiftUpdateOrCreate{
		Name:  name,
		Price: "20",
		Note:  "size M",
	})
	require.NoError(t, err)
	return g.ID
}
