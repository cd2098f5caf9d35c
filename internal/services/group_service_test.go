package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftlist/backend/internal/models"
)

func TestCreateGroupAddsOwnerAsOnlyParticipant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)

	gid := env.createGroup(t, alice, alice.UID())

	full, err := env.groups.GetFullGroup(ctx, gid)
	require.NoError(t, err)
	require.NotNil(t, full)
	require.Len(t, full.Participants, 1)
	assert.Equal(t, alice.UID(), full.Participants[0].UserID)
	assert.Equal(t, "alice@example.com", full.Participants[0].Identifier)
	assert.Equal(t, alice.UID(), full.OwnerID)

	joinable, err := env.groups.GetJoinableGroups(ctx, alice.UID())
	require.NoError(t, err)
	assert.Empty(t, joinable, "owner is never offered their own group")

	mine, err := env.groups.GetUserGroups(ctx, alice.UID())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsOwner)
	assert.Equal(t, 1, mine[0].ParticipantCount)
}

func TestJoinableGroups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	carol := env.signUp(t, "carol@example.com", true)

	gid := env.createGroup(t, alice, bob.UID())

	joinable, err := env.groups.GetJoinableGroups(ctx, bob.UID())
	require.NoError(t, err)
	require.Len(t, joinable, 1)
	assert.Equal(t, gid, joinable[0].ID)

	others, err := env.groups.GetJoinableGroups(ctx, carol.UID())
	require.NoError(t, err)
	assert.Empty(t, others, "uninvited users see nothing")

	env.join(t, bob, gid)
	joinable, err = env.groups.GetJoinableGroups(ctx, bob.UID())
	require.NoError(t, err)
	assert.Empty(t, joinable, "joined groups drop off the list")
}

func TestJoinGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)

	_, err := env.groups.JoinGroup(ctx, bob.Identity, gid, "9999")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = env.groups.JoinGroup(ctx, bob.Identity, "missing", "1234")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	summary, err := env.groups.JoinGroup(ctx, bob.Identity, gid, "1234")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ParticipantCount)

	summary, err = env.groups.JoinGroup(ctx, bob.Identity, gid, "1234")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ParticipantCount, "joining twice adds nothing")
}

func TestRemoveUserFromGroupCascadesGifts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)

	env.addGift(t, bob, gid, "book")
	env.addGift(t, bob, gid, "lamp")
	keep := env.addGift(t, alice, gid, "scarf")

	require.NoError(t, env.groups.RemoveUserFromGroup(ctx, gid, bob.UID()))

	full, err := env.groups.GetFullGroup(ctx, gid)
	require.NoError(t, err)
	assert.False(t, full.HasParticipant(bob.UID()))
	require.Len(t, full.Gifts, 1)
	assert.Equal(t, keep, full.Gifts[0].ID)
}

func TestLeaveGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)

	assert.ErrorIs(t, env.groups.LeaveGroup(ctx, alice.UID(), gid), ErrOwnerCannotLeave)
	require.NoError(t, env.groups.LeaveGroup(ctx, bob.UID(), gid))
	assert.ErrorIs(t, env.groups.LeaveGroup(ctx, bob.UID(), gid), ErrNotParticipant)
}

func TestRemoveMemberIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	carol := env.signUp(t, "carol@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	env.join(t, carol, gid)

	assert.ErrorIs(t, env.groups.RemoveMember(ctx, bob.UID(), gid, carol.UID()), ErrNotOwner)
	assert.ErrorIs(t, env.groups.RemoveMember(ctx, alice.UID(), gid, alice.UID()), ErrOwnerCannotLeave)
	require.NoError(t, env.groups.RemoveMember(ctx, alice.UID(), gid, carol.UID()))
	assert.ErrorIs(t, env.groups.RemoveMember(ctx, alice.UID(), gid, carol.UID()), ErrNotParticipant)
}

func TestUpdateGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	carol := env.signUp(t, "carol@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)

	upd := models.GroupUpdate{Name: "  Birthday ", OwnerID: alice.UID(), InvitedUsers: []string{carol.UID()}}

	_, err := env.groups.UpdateGroup(ctx, bob.UID(), gid, upd)
	assert.ErrorIs(t, err, ErrNotOwner)

	view, err := env.groups.UpdateGroup(ctx, alice.UID(), gid, upd)
	require.NoError(t, err)
	assert.Equal(t, "Birthday", view.Name)
	assert.Equal(t, []string{carol.UID()}, view.InvitedUsers)

	ok, err := env.groups.VerifyGroupCode(ctx, gid, "1234")
	require.NoError(t, err)
	assert.True(t, ok, "an empty code keeps the current one")

	upd.OwnerID = carol.UID()
	_, err = env.groups.UpdateGroup(ctx, alice.UID(), gid, upd)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "ownerId")

	upd.OwnerID = bob.UID()
	upd.Code = "5678"
	view, err = env.groups.UpdateGroup(ctx, alice.UID(), gid, upd)
	require.NoError(t, err)
	assert.Equal(t, bob.UID(), view.OwnerID)
	assert.False(t, view.IsOwner)

	ok, err = env.groups.VerifyGroupCode(ctx, gid, "5678")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	env.addGift(t, bob, gid, "book")

	assert.ErrorIs(t, env.groups.DeleteGroup(ctx, bob.UID(), gid), ErrNotOwner)
	require.NoError(t, env.groups.DeleteGroup(ctx, alice.UID(), gid))

	full, err := env.groups.GetFullGroup(ctx, gid)
	require.NoError(t, err)
	assert.Nil(t, full)

	gifts, err := env.store.ListGiftKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, gifts)

	assert.ErrorIs(t, env.groups.DeleteGroup(ctx, alice.UID(), gid), ErrGroupNotFound)
}

func TestViewGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	bob := env.signUp(t, "bob@example.com", true)
	eve := env.signUp(t, "eve@example.com", true)
	gid := env.createGroup(t, alice)
	env.join(t, bob, gid)
	env.addGift(t, alice, gid, "scarf")

	_, err := env.groups.ViewGroup(ctx, eve.UID(), gid, models.GiftQuery{})
	assert.ErrorIs(t, err, ErrNotParticipant)

	view, err := env.groups.ViewGroup(ctx, bob.UID(), gid, models.GiftQuery{})
	require.NoError(t, err)
	require.Len(t, view.Participants, 2)
	assert.True(t, view.Participants[0].IsOwner, "owner is listed first")
	assert.Equal(t, "alice@example.com", view.OwnerName)
	assert.Equal(t, "https://example.com/default.png", view.Participants[0].PhotoURL)
	require.Len(t, view.Gifts, 1)
	assert.Equal(t, models.GiftAvailable, view.Gifts[0].Status)
}

func TestWatchUserGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", true)
	gid := env.createGroup(t, alice)

	updates, err := env.groups.WatchUserGroups(ctx, alice.UID())
	require.NoError(t, err)

	next := func() []models.GroupSummary {
		t.Helper()
		select {
		case s, ok := <-updates:
			require.True(t, ok, "stream closed early")
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot received")
			return nil
		}
	}

	first := next()
	require.Len(t, first, 1)
	assert.Equal(t, gid, first[0].ID)

	_, err = env.groups.UpdateGroup(ctx, alice.UID(), gid, models.GroupUpdate{Name: "Renamed", OwnerID: alice.UID()})
	require.NoError(t, err)
	second := next()
	require.Len(t, second, 1)
	assert.Equal(t, "Renamed", second[0].Name)

	cancel()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}
