package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

func TestSweepRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	keep := env.addGift(t, alice, gid, "scarf")
	env.addGift(t, bob, gid, "book")

	// Leftovers of half-finished cascades: a member dropped without their
	// gifts, and sub-documents of a group that no longer exists.
	require.NoError(t, env.store.Participants().Delete(ctx, gid, bob.UID()))
	require.NoError(t, env.store.Participants().Add(ctx, "gone", models.Participant{UserID: bob.UID()}))
	_, err := env.store.Gifts().Create(ctx, "gone", models.Gift{Name: "lamp", UserID: bob.UID(), Status: models.GiftAvailable})
	require.NoError(t, err)

	report, err := NewSweeper(env.store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Participants: 1, Gifts: 2}, report)

	gifts, err := env.store.ListGiftKeys(ctx)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, keep, gifts[0].GiftID)

	report, err = NewSweeper(env.store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report, "a second sweep finds nothing")
}

// concurrentStore runs a write between the sweep's snapshot reads.
type concurrentStore struct {
	*storage.MemoryStore
	afterGroups       func()
	afterParticipants func()
}

func (s *concurrentStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	ids, err := s.MemoryStore.ListGroupIDs(ctx)
	if s.afterGroups != nil {
		s.afterGroups()
		s.afterGroups = nil
	}
	return ids, err
}

func (s *concurrentStore) ListParticipantKeys(ctx context.Context) ([]storage.ParticipantKey, error) {
	keys, err := s.MemoryStore.ListParticipantKeys(ctx)
	if s.afterParticipants != nil {
		s.afterParticipants()
		s.afterParticipants = nil
	}
	return keys, err
}

func TestSweepKeepsGroupCreatedMidSweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)

	var gid string
	store := &concurrentStore{
		MemoryStore: env.store,
		afterGroups: func() { gid = env.createGroup(t, alice) },
	}

	report, err := NewSweeper(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)

	owner, err := env.store.Participants().Get(ctx, gid, alice.UID())
	require.NoError(t, err)
	require.NotNil(t, owner, "owner stays a participant")
	env.addGift(t, alice, gid, "scarf")
}

func TestSweepKeepsGiftOfMemberWhoJoinedMidSweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)

	var giftID string
	store := &concurrentStore{
		MemoryStore: env.store,
		afterParticipants: func() {
			env.join(t, bob, gid)
			giftID = env.addGift(t, bob, gid, "book")
		},
	}

	report, err := NewSweeper(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)

	gift, err := env.store.Gifts().Get(ctx, gid, giftID)
	require.NoError(t, err)
	assert.NotNil(t, gift)
}
