package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

type GroupService struct {
	store storage.Store
}

func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// GetFullGroup loads the group shell with its participants and gifts, or nil
// when the shell is missing.
func (s *GroupService) GetFullGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, nil
	}

	participants, err := s.store.Participants().List(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	gifts, err := s.store.Gifts().List(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	group.Participants = participants
	group.Gifts = gifts
	return group, nil
}

// ViewGroup renders a group for one of its participants.
func (s *GroupService) ViewGroup(ctx context.Context, viewerID, groupID string, q models.GiftQuery) (*models.ViewGroup, error) {
	group, err := s.GetFullGroup(ctx, groupID)
	if err != nil {
		slog.Error("[ViewGroup] store error", "group_id", groupID, logging.Err(err))
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if !group.HasParticipant(viewerID) {
		return nil, ErrNotParticipant
	}

	names, err := resolveNames(ctx, s.store.Users(), group.Participants, append(statusActors(group.Gifts), group.OwnerID)...)
	if err != nil {
		return nil, err
	}
	details, err := s.store.Users().ListByIDs(ctx, participantIDs(group.Participants))
	if err != nil {
		return nil, fmt.Errorf("list user details: %w", err)
	}
	photos := make(map[string]string, len(details))
	for _, d := range details {
		photos[d.ID] = d.PhotoURL
	}

	views := make([]models.ParticipantView, 0, len(group.Participants))
	for _, p := range group.Participants {
		views = append(views, models.ParticipantView{
			UserID:      p.UserID,
			Identifier:  p.Identifier,
			DisplayName: names[p.UserID],
			PhotoURL:    photos[p.UserID],
			IsOwner:     p.UserID == group.OwnerID,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].IsOwner != views[j].IsOwner {
			return views[i].IsOwner
		}
		return strings.ToLower(views[i].DisplayName) < strings.ToLower(views[j].DisplayName)
	})

	return &models.ViewGroup{
		ID:           group.ID,
		Name:         group.Name,
		Description:  group.Description,
		IsPublic:     group.IsPublic,
		OwnerID:      group.OwnerID,
		OwnerName:    names[group.OwnerID],
		IsOwner:      group.OwnerID == viewerID,
		InvitedUsers: group.InvitedUsers,
		Participants: views,
		Gifts:        FilterGifts(RenderGifts(group.Gifts, viewerID, names), q),
	}, nil
}

func participantIDs(ps []models.Participant) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	return ids
}

// summarize attaches participants to each group and orders them by name.
func (s *GroupService) summarize(ctx context.Context, groups []models.Group, viewerID string) ([]models.GroupSummary, error) {
	out := make([]models.GroupSummary, 0, len(groups))
	for _, g := range groups {
		participants, err := s.store.Participants().List(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		g.Participants = participants
		out = append(out, models.NewGroupSummary(g, viewerID))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetJoinableGroups lists groups userID is invited to, does not own, and has
// not joined yet. Summaries never carry the join code.
func (s *GroupService) GetJoinableGroups(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	invited, err := s.store.Groups().ListInvited(ctx, userID)
	if err != nil {
		slog.Error("[GetJoinableGroups] store error", "user_id", userID, logging.Err(err))
		return nil, fmt.Errorf("list invited groups: %w", err)
	}

	joinable := make([]models.Group, 0, len(invited))
	for _, g := range invited {
		if g.OwnerID == userID {
			continue
		}
		p, err := s.store.Participants().Get(ctx, g.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("get participant: %w", err)
		}
		if p != nil {
			continue
		}
		g.Code = ""
		joinable = append(joinable, g)
	}
	return s.summarize(ctx, joinable, userID)
}

// GetUserGroups lists the groups userID participates in.
func (s *GroupService) GetUserGroups(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	ids, err := s.store.Participants().ListGroupIDsForUser(ctx, userID)
	if err != nil {
		slog.Error("[GetUserGroups] store error", "user_id", userID, logging.Err(err))
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	groups, err := s.store.Groups().ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return s.summarize(ctx, groups, userID)
}

// CreateGroup stores an empty group and then adds the creator as its first
// participant. The shell is removed again if that second write fails.
func (s *GroupService) CreateGroup(ctx context.Context, creator *models.Identity, req models.CreateGroupRequest) (*models.GroupSummary, error) {
	invited := req.InvitedUsers
	if invited == nil {
		invited = []string{}
	}
	group := models.NewGroup()
	group.Name = strings.TrimSpace(req.Name)
	group.Code = req.Code
	group.Description = req.Description
	group.IsPublic = req.IsPublic
	group.OwnerID = creator.UID
	group.InvitedUsers = invited

	id, err := s.store.Groups().Create(ctx, group)
	if err != nil {
		slog.Error("[CreateGroup] store error", "user_id", creator.UID, logging.Err(err))
		return nil, fmt.Errorf("create group: %w", err)
	}
	group.ID = id

	owner := models.Participant{UserID: creator.UID, Identifier: creator.Label()}
	if err := s.AddParticipant(ctx, id, owner); err != nil {
		slog.Error("[CreateGroup] add owner failed, removing group", "group_id", id, logging.Err(err))
		if derr := s.store.Groups().Delete(ctx, id); derr != nil {
			slog.Error("[CreateGroup] rollback failed", "group_id", id, logging.Err(derr))
		}
		return nil, err
	}

	slog.Info("[CreateGroup] group created", "group_id", id, "user_id", creator.UID)
	group.Participants = []models.Participant{owner}
	summary := models.NewGroupSummary(group, creator.UID)
	return &summary, nil
}

func (s *GroupService) AddParticipant(ctx context.Context, groupID string, p models.Participant) error {
	if err := s.store.Participants().Add(ctx, groupID, p); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// ownedGroup loads a group only the owner may change.
func (s *GroupService) ownedGroup(ctx context.Context, viewerID, groupID string) (*models.Group, error) {
	group, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.OwnerID != viewerID {
		return nil, ErrNotOwner
	}
	return group, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, viewerID, groupID string, upd models.GroupUpdate) (*models.ViewGroup, error) {
	if _, err := s.ownedGroup(ctx, viewerID, groupID); err != nil {
		return nil, err
	}

	if upd.OwnerID != viewerID {
		p, err := s.store.Participants().Get(ctx, groupID, upd.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("get participant: %w", err)
		}
		if p == nil {
			return nil, newValidationError("ownerId", "The new owner must be a participant of the group")
		}
	}

	name := strings.TrimSpace(upd.Name)
	invited := upd.InvitedUsers
	if invited == nil {
		invited = []string{}
	}
	fields := storage.GroupFields{
		Name:         &name,
		Description:  &upd.Description,
		OwnerID:      &upd.OwnerID,
		InvitedUsers: &invited,
		IsPublic:     upd.IsPublic,
	}
	if upd.Code != "" {
		fields.Code = &upd.Code
	}

	if err := s.store.Groups().Update(ctx, groupID, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		slog.Error("[UpdateGroup] store error", "group_id", groupID, logging.Err(err))
		return nil, fmt.Errorf("update group: %w", err)
	}

	slog.Info("[UpdateGroup] group updated", "group_id", groupID, "user_id", viewerID)
	return s.ViewGroup(ctx, viewerID, groupID, models.GiftQuery{})
}

func (s *GroupService) DeleteGroup(ctx context.Context, viewerID, groupID string) error {
	if _, err := s.ownedGroup(ctx, viewerID, groupID); err != nil {
		return err
	}
	if err := s.store.Groups().Delete(ctx, groupID); err != nil {
		slog.Error("[DeleteGroup] store error", "group_id", groupID, logging.Err(err))
		return fmt.Errorf("delete group: %w", err)
	}
	slog.Info("[DeleteGroup] group deleted", "group_id", groupID, "user_id", viewerID)
	return nil
}

func (s *GroupService) VerifyGroupCode(ctx context.Context, groupID, code string) (bool, error) {
	group, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return false, ErrGroupNotFound
	}
	return group.Code != "" && group.Code == code, nil
}

// JoinGroup adds the viewer after checking the group code. Joining twice is
// a no-op.
func (s *GroupService) JoinGroup(ctx context.Context, viewer *models.Identity, groupID, code string) (*models.GroupSummary, error) {
	ok, err := s.VerifyGroupCode(ctx, groupID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("[JoinGroup] wrong code", "group_id", groupID, "user_id", viewer.UID)
		return nil, ErrInvalidCode
	}

	existing, err := s.store.Participants().Get(ctx, groupID, viewer.UID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if existing == nil {
		if err := s.AddParticipant(ctx, groupID, models.Participant{UserID: viewer.UID, Identifier: viewer.Label()}); err != nil {
			slog.Error("[JoinGroup] store error", "group_id", groupID, logging.Err(err))
			return nil, err
		}
		slog.Info("[JoinGroup] participant added", "group_id", groupID, "user_id", viewer.UID)
	}

	group, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	summaries, err := s.summarize(ctx, []models.Group{*group}, viewer.UID)
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// RemoveUserFromGroup deletes the membership and every gift the user owns in
// the group.
func (s *GroupService) RemoveUserFromGroup(ctx context.Context, groupID, userID string) error {
	if err := s.store.Groups().RemoveMember(ctx, groupID, userID); err != nil {
		slog.Error("[RemoveUserFromGroup] store error", "group_id", groupID, "user_id", userID, logging.Err(err))
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *GroupService) LeaveGroup(ctx context.Context, viewerID, groupID string) error {
	if _, err := requireParticipant(ctx, s.store, groupID, viewerID); err != nil {
		return err
	}
	group, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return ErrGroupNotFound
	}
	if group.OwnerID == viewerID {
		return ErrOwnerCannotLeave
	}
	return s.RemoveUserFromGroup(ctx, groupID, viewerID)
}

// RemoveMember lets the owner take another participant out of the group.
func (s *GroupService) RemoveMember(ctx context.Context, ownerID, groupID, userID string) error {
	if _, err := s.ownedGroup(ctx, ownerID, groupID); err != nil {
		return err
	}
	if userID == ownerID {
		return ErrOwnerCannotLeave
	}
	p, err := s.store.Participants().Get(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p == nil {
		return ErrNotParticipant
	}
	return s.RemoveUserFromGroup(ctx, groupID, userID)
}

// WatchUserGroups follows the groups collection and emits userID's member
// groups on every change. Each value replaces the previous one.
func (s *GroupService) WatchUserGroups(ctx context.Context, userID string) (<-chan []models.GroupSummary, error) {
	snapshots, err := s.store.Groups().Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch groups: %w", err)
	}

	out := make(chan []models.GroupSummary)
	go func() {
		defer close(out)
		for snap := range snapshots {
			ids, err := s.store.Participants().ListGroupIDsForUser(ctx, userID)
			if err != nil {
				slog.Error("[WatchUserGroups] list memberships", "user_id", userID, logging.Err(err))
				continue
			}
			member := make(map[string]bool, len(ids))
			for _, id := range ids {
				member[id] = true
			}
			var mine []models.Group
			for _, g := range snap {
				if member[g.ID] {
					mine = append(mine, g)
				}
			}
			summaries, err := s.summarize(ctx, mine, userID)
			if err != nil {
				slog.Error("[WatchUserGroups] summarize", "user_id", userID, logging.Err(err))
				continue
			}
			select {
			case out <- summaries:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
