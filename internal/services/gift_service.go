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

type GiftService struct {
	store storage.Store
}

func NewGiftService(store storage.Store) *GiftService {
	return &GiftService{store: store}
}

// requireParticipant returns the viewer's membership record in groupID.
func requireParticipant(ctx context.Context, store storage.Store, groupID, userID string) (*models.Participant, error) {
	group, err := store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	p, err := store.Participants().Get(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil {
		return nil, ErrNotParticipant
	}
	return p, nil
}

// resolveNames maps user ids to the label other members see: display name,
// else email, else the identifier captured at join time, else the id.
func resolveNames(ctx context.Context, users storage.UserDetailRepository, participants []models.Participant, extraIDs ...string) (map[string]string, error) {
	names := make(map[string]string, len(participants)+len(extraIDs))
	ids := make([]string, 0, len(participants)+len(extraIDs))
	for _, p := range participants {
		names[p.UserID] = p.Identifier
		ids = append(ids, p.UserID)
	}
	for _, id := range extraIDs {
		if id == "" {
			continue
		}
		if _, ok := names[id]; !ok {
			names[id] = id
		}
		ids = append(ids, id)
	}

	details, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list user details: %w", err)
	}
	for i := range details {
		if name := details[i].Name(); name != "" {
			names[details[i].ID] = name
		}
	}
	for id, name := range names {
		if name == "" {
			names[id] = id
		}
	}
	return names, nil
}

func statusActors(gifts []models.Gift) []string {
	var ids []string
	for _, g := range gifts {
		if g.StatusText != "" {
			ids = append(ids, g.StatusText)
		}
	}
	return ids
}

// ListGifts returns the group's gifts as viewerID may see them.
func (s *GiftService) ListGifts(ctx context.Context, viewerID, groupID string, q models.GiftQuery) ([]models.Gift, error) {
	if _, err := requireParticipant(ctx, s.store, groupID, viewerID); err != nil {
		return nil, err
	}

	gifts, err := s.store.Gifts().List(ctx, groupID)
	if err != nil {
		slog.Error("[ListGifts] store error", "group_id", groupID, logging.Err(err))
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	participants, err := s.store.Participants().List(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	names, err := resolveNames(ctx, s.store.Users(), participants, statusActors(gifts)...)
	if err != nil {
		return nil, err
	}
	return FilterGifts(RenderGifts(gifts, viewerID, names), q), nil
}

// ListMyGifts is the viewer's own wish list, without any status.
func (s *GiftService) ListMyGifts(ctx context.Context, viewerID, groupID string) ([]models.UserGift, error) {
	if _, err := requireParticipant(ctx, s.store, groupID, viewerID); err != nil {
		return nil, err
	}
	gifts, err := s.store.Gifts().ListByUser(ctx, groupID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	out := make([]models.UserGift, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, models.MapGiftToUserGift(g))
	}
	return out, nil
}

func (s *GiftService) CreateGift(ctx context.Context, viewer *models.Identity, groupID string, form models.GiftUpdateOrCreate) (*models.UserGift, error) {
	p, err := requireParticipant(ctx, s.store, groupID, viewer.UID)
	if err != nil {
		return nil, err
	}

	identifier := p.Identifier
	if identifier == "" {
		identifier = viewer.Label()
	}
	gift := models.MapToGiftForCreation(form, viewer.UID, identifier)

	id, err := s.store.Gifts().Create(ctx, groupID, gift)
	if err != nil {
		slog.Error("[CreateGift] store error", "group_id", groupID, "user_id", viewer.UID, logging.Err(err))
		return nil, fmt.Errorf("create gift: %w", err)
	}
	gift.ID = id

	slog.Info("[CreateGift] gift added", "group_id", groupID, "gift_id", id, "user_id", viewer.UID)
	ug := models.MapGiftToUserGift(gift)
	return &ug, nil
}

// ownGift loads a gift the viewer owns.
func (s *GiftService) ownGift(ctx context.Context, viewerID, groupID, giftID string) (*models.Gift, error) {
	if _, err := requireParticipant(ctx, s.store, groupID, viewerID); err != nil {
		return nil, err
	}
	gift, err := s.store.Gifts().Get(ctx, groupID, giftID)
	if err != nil {
		return nil, fmt.Errorf("get gift: %w", err)
	}
	if gift == nil {
		return nil, ErrGiftNotFound
	}
	if gift.UserID != viewerID {
		return nil, ErrNotOwner
	}
	return gift, nil
}

func (s *GiftService) GetGift(ctx context.Context, viewerID, groupID, giftID string) (*models.UserGift, error) {
	gift, err := s.ownGift(ctx, viewerID, groupID, giftID)
	if err != nil {
		return nil, err
	}
	ug := models.MapGiftToUserGift(*gift)
	return &ug, nil
}

func (s *GiftService) UpdateGift(ctx context.Context, viewerID, groupID, giftID string, form models.GiftUpdateOrCreate) (*models.UserGift, error) {
	gift, err := s.ownGift(ctx, viewerID, groupID, giftID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Gifts().Update(ctx, groupID, giftID, form); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGiftNotFound
		}
		slog.Error("[UpdateGift] store error", "group_id", groupID, "gift_id", giftID, logging.Err(err))
		return nil, fmt.Errorf("update gift: %w", err)
	}

	gift.Name = form.Name
	gift.Price = form.Price
	gift.WebURL = form.WebURL
	gift.Note = form.Note
	ug := models.MapGiftToUserGift(*gift)
	return &ug, nil
}

func (s *GiftService) DeleteGift(ctx context.Context, viewerID, groupID, giftID string) error {
	if _, err := s.ownGift(ctx, viewerID, groupID, giftID); err != nil {
		return err
	}
	if err := s.store.Gifts().Delete(ctx, groupID, giftID); err != nil {
		slog.Error("[DeleteGift] store error", "group_id", groupID, "gift_id", giftID, logging.Err(err))
		return fmt.Errorf("delete gift: %w", err)
	}
	return nil
}

// ChangeStatus moves a gift one step forward or back on behalf of a
// participant other than its owner. The write is a compare-and-set against
// the status that was read.
func (s *GiftService) ChangeStatus(ctx context.Context, viewerID, groupID, giftID string, next bool) (*models.Gift, error) {
	if _, err := requireParticipant(ctx, s.store, groupID, viewerID); err != nil {
		return nil, err
	}
	gift, err := s.store.Gifts().Get(ctx, groupID, giftID)
	if err != nil {
		return nil, fmt.Errorf("get gift: %w", err)
	}
	if gift == nil {
		return nil, ErrGiftNotFound
	}
	if gift.UserID == viewerID {
		return nil, ErrOwnGift
	}

	to, ok := GetStatus(next, gift.Status)
	if !ok {
		return nil, ErrTransitionNotAllowed
	}
	statusText := StatusTextFor(to, viewerID)

	err = s.store.Gifts().TransitionStatus(ctx, groupID, giftID, gift.Status, to, statusText)
	switch {
	case errors.Is(err, storage.ErrStatusConflict):
		return nil, ErrStatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrGiftNotFound
	case err != nil:
		slog.Error("[ChangeStatus] store error", "group_id", groupID, "gift_id", giftID, logging.Err(err))
		return nil, fmt.Errorf("transition status: %w", err)
	}

	slog.Info("[ChangeStatus] status updated", "group_id", groupID, "gift_id", giftID, "from", gift.Status, "to", to, "user_id", viewerID)

	gift.Status = to
	gift.StatusText = statusText
	// The transition is committed; a failed lookup only costs the label.
	names, err := resolveNames(ctx, s.store.Users(), nil, statusText)
	if err != nil {
		slog.Warn("[ChangeStatus] resolve names", "group_id", groupID, "gift_id", giftID, logging.Err(err))
		names = nil
	}
	rendered := RenderGift(*gift, viewerID, names)
	return &rendered, nil
}
