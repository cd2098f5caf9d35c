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

func TestOwnerNeverSeesStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)

	giftID := env.addGift(t, alice, gid, "scarf")
	_, err := env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, true)
	require.NoError(t, err)

	own, err := env.gifts.ListGifts(ctx, alice.UID(), gid, models.GiftQuery{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Empty(t, own[0].Status)
	assert.Empty(t, own[0].StatusText)

	theirs, err := env.gifts.ListGifts(ctx, bob.UID(), gid, models.GiftQuery{})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, models.GiftClaimed, theirs[0].Status)
	assert.Equal(t, "bob@example.com", theirs[0].StatusText)
}

func TestChangeStatusRecordsAndClearsActor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	giftID := env.addGift(t, alice, gid, "scarf")

	_, err := env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, true)
	require.NoError(t, err)
	stored, err := env.store.Gifts().Get(ctx, gid, giftID)
	require.NoError(t, err)
	assert.Equal(t, models.GiftClaimed, stored.Status)
	assert.Equal(t, bob.UID(), stored.StatusText)

	_, err = env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, false)
	require.NoError(t, err)
	stored, err = env.store.Gifts().Get(ctx, gid, giftID)
	require.NoError(t, err)
	assert.Equal(t, models.GiftAvailable, stored.Status)
	assert.Equal(t, "", stored.StatusText)
}

type unreachableUsers struct {
	storage.UserDetailRepository
}

func (unreachableUsers) ListByIDs(context.Context, []string) ([]models.UserDetail, error) {
	return nil, errors.New("users unavailable")
}

type usersDownStore struct {
	*storage.MemoryStore
}

func (s usersDownStore) Users() storage.UserDetailRepository {
	return unreachableUsers{s.MemoryStore.Users()}
}

func TestChangeStatusSurvivesNameLookupFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	giftID := env.addGift(t, alice, gid, "scarf")

	gifts := NewGiftService(usersDownStore{env.store})
	got, err := gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, true)
	require.NoError(t, err)
	assert.Equal(t, models.GiftClaimed, got.Status)
	assert.Equal(t, bob.UID(), got.StatusText)

	stored, err := env.store.Gifts().Get(ctx, gid, giftID)
	require.NoError(t, err)
	assert.Equal(t, models.GiftClaimed, stored.Status)
}

func TestChangeStatusAtEndsWritesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	giftID := env.addGift(t, alice, gid, "scarf")

	_, err := env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, false)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)

	for i := 0; i < 2; i++ {
		_, err = env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, true)
		require.NoError(t, err)
	}
	_, err = env.gifts.ChangeStatus(ctx, bob.UID(), gid, giftID, true)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)

	stored, err := env.store.Gifts().Get(ctx, gid, giftID)
	require.NoError(t, err)
	assert.Equal(t, models.GiftPurchased, stored.Status)
	assert.Equal(t, bob.UID(), stored.StatusText)
}

func TestChangeStatusRejectsOwnerAndOutsiders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	eve := env.signUp(t, "eve@example.com", true)
	gid := env.createGroup(t, alice)
	giftID := env.addGift(t, alice, gid, "scarf")

	_, err := env.gifts.ChangeStatus(ctx, alice.UID(), gid, giftID, true)
	assert.ErrorIs(t, err, ErrOwnGift)

	_, err = env.gifts.ChangeStatus(ctx, eve.UID(), gid, giftID, true)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = env.gifts.ChangeStatus(ctx, alice.UID(), gid, "missing", true)
	assert.ErrorIs(t, err, ErrGiftNotFound)
}

func TestGiftEditsAreOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	giftID := env.addGift(t, alice, gid, "scarf")

	form := models.GiftUpdateOrCreate{Name: "wool scarf", Price: "30", Note: "blue", WebURL: "https://example.com/scarf"}

	_, err := env.gifts.UpdateGift(ctx, bob.UID(), gid, giftID, form)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.ErrorIs(t, env.gifts.DeleteGift(ctx, bob.UID(), gid, giftID), ErrNotOwner)

	updated, err := env.gifts.UpdateGift(ctx, alice.UID(), gid, giftID, form)
	require.NoError(t, err)
	assert.Equal(t, "wool scarf", updated.Name)

	got, err := env.gifts.GetGift(ctx, alice.UID(), gid, giftID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/scarf", got.WebURL)

	mine, err := env.gifts.ListMyGifts(ctx, alice.UID(), gid)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, env.gifts.DeleteGift(ctx, alice.UID(), gid, giftID))
	_, err = env.gifts.GetGift(ctx, alice.UID(), gid, giftID)
	assert.ErrorIs(t, err, ErrGiftNotFound)
}

func TestCreateGiftRequiresParticipant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	eve := env.signUp(t, "eve@example.com", true)
	gid := env.createGroup(t, alice)

	_, err := env.gifts.CreateGift(ctx, eve.Identity, gid, models.GiftUpdateOrCreate{Name: "x", Price: "1", Note: "n"})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = env.gifts.CreateGift(ctx, alice.Identity, "missing", models.GiftUpdateOrCreate{Name: "x", Price: "1", Note: "n"})
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
