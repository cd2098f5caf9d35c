package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

type fakeCaptcha struct {
	ok    bool
	calls int
}

func (f *fakeCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, string, error) {
	f.calls++
	if !f.ok {
		return false, "invalid-input-response", nil
	}
	return true, "", nil
}

type fakeMailer struct {
	to, link string
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	f.to, f.link = to, link
	return nil
}

// failingProfileUsers rejects profile writes and passes everything else on.
type failingProfileUsers struct {
	storage.UserDetailRepository
}

func (failingProfileUsers) UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error {
	return errors.New("mirror unavailable")
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	resp, err := env.auth.Register(ctx, models.RegisterRequest{Email: "Ann@Example.com", Password: "secret1"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.IDToken)
	assert.True(t, resp.Session.IsLogged)
	assert.False(t, resp.Session.HasAccess)
	require.NotNil(t, resp.Session.UserDetail)
	assert.Equal(t, "ann@example.com", resp.Session.UserDetail.Email)

	_, err = env.auth.Register(ctx, models.RegisterRequest{Email: "ann@example.com", Password: "other1"}, "")
	assert.ErrorIs(t, err, ErrEmailExists)

	login, err := env.auth.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, resp.Session.User.UID, login.Session.User.UID)

	_, err = env.auth.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterChecksCaptcha(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	captcha := &fakeCaptcha{}
	auth := NewAuthService(env.identity, env.sessions, env.store.Users(), WithCaptcha(captcha))

	_, err := auth.Register(ctx, models.RegisterRequest{Email: "bot@example.com", Password: "secret1"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrRecaptchaFailed)

	_, _, err = env.identity.SignIn(ctx, "bot@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "no account is created")

	captcha.ok = true
	_, err = auth.Register(ctx, models.RegisterRequest{Email: "human@example.com", Password: "secret1"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, captcha.calls)
}

func TestLoginWithGoogleUnsupportedLocally(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{IDToken: "tok"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signUp(t, "bob@example.com", true)
	mailer := &fakeMailer{}
	auth := NewAuthService(env.identity, env.sessions, env.store.Users(), WithMailer(mailer))

	require.NoError(t, auth.RequestPasswordReset(ctx, "bob@example.com"))
	assert.Equal(t, "bob@example.com", mailer.to)
	assert.Contains(t, mailer.link, "http://localhost/reset?")
	assert.Contains(t, mailer.link, "mode=resetPassword")

	mailer.to = ""
	require.NoError(t, auth.RequestPasswordReset(ctx, "nobody@example.com"), "unknown email is not reported")
	assert.Empty(t, mailer.to)

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "bob@example.com"))
}

func TestChangePasswordAndLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.signUp(t, "bob@example.com", true)

	err := env.auth.ChangePassword(ctx, &Session{State: SessionSignedOut}, models.ChangePasswordRequest{Password: "newpass"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, env.auth.ChangePassword(ctx, sess, models.ChangePasswordRequest{Password: "newpass", ConfirmPassword: "newpass"}))
	_, err = env.auth.Login(ctx, models.LoginRequest{Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	resp, err := env.auth.Login(ctx, models.LoginRequest{Email: "bob@example.com", Password: "newpass"})
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, sess))
	_, err = env.sessions.Init(ctx, resp.Tokens.IDToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, env.auth.Logout(ctx, &Session{State: SessionSignedOut}))
}

func TestUpdateProfileMirrorsDetail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.signUp(t, "bob@example.com", true)

	name := "Bobby"
	payload, err := env.auth.UpdateProfile(ctx, sess, models.ProfileUpdateRequest{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Bobby", payload.User.DisplayName)
	assert.Equal(t, "Bobby", payload.UserDetail.DisplayName)
	assert.Equal(t, "https://example.com/default.png", payload.UserDetail.PhotoURL, "unset fields are kept")

	id, err := env.identity.GetIdentity(ctx, sess.UID())
	require.NoError(t, err)
	assert.Equal(t, "Bobby", id.DisplayName)
}

func TestUpdateProfileRevertsProviderWhenMirrorFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.signUp(t, "bob@example.com", true)

	auth := NewAuthService(env.identity, env.sessions, failingProfileUsers{env.store.Users()})
	name := "Bobby"
	_, err := auth.UpdateProfile(ctx, sess, models.ProfileUpdateRequest{DisplayName: &name})
	require.Error(t, err)

	id, err := env.identity.GetIdentity(ctx, sess.UID())
	require.NoError(t, err)
	assert.Equal(t, "", id.DisplayName, "provider is put back")

	detail, err := env.store.Users().Get(ctx, sess.UID())
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", detail.DisplayName)
}

func TestUploadPhotoWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	sess := env.signUp(t, "bob@example.com", true)

	_, err := env.auth.UploadPhoto(context.Background(), sess, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
