// Package storage adapts the document store behind four repositories:
// groups/{groupId}, groups/{groupId}/participants/{userId},
// groups/{groupId}/gifts/{giftId} and users/{userId}.
//
// Get-style calls return (nil, nil) when the document does not exist.
package storage

import (
	"context"
	"errors"

	"github.com/giftlist/backend/internal/models"
)

var (
	// ErrNotFound is returned by writes addressed at a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrStatusConflict is returned when a gift's stored status no longer
	// matches the status a transition was computed from.
	ErrStatusConflict = errors.New("gift status changed concurrently")
)

const (
	CollectionGroups       = "groups"
	CollectionParticipants = "participants"
	CollectionGifts        = "gifts"
	CollectionUsers        = "users"
)

// GroupFields is a partial group update; nil fields are left untouched.
type GroupFields struct {
	Name         *string
	Description  *string
	Code         *string
	IsPublic     *bool
	OwnerID      *string
	InvitedUsers *[]string
}

type GroupRepository interface {
	List(ctx context.Context) ([]models.Group, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Group, error)
	ListInvited(ctx context.Context, userID string) ([]models.Group, error)
	Get(ctx context.Context, groupID string) (*models.Group, error)
	// Create stores the group shell only and returns the assigned id.
	Create(ctx context.Context, g models.Group) (string, error)
	Update(ctx context.Context, groupID string, f GroupFields) error
	// Delete removes the group with its participants and gifts in one
	// transaction or batch.
	Delete(ctx context.Context, groupID string) error
	// RemoveMember removes a participant together with the gifts they own in
	// the group, in one transaction or batch.
	RemoveMember(ctx context.Context, groupID, userID string) error
	// Watch pushes a full snapshot of the groups collection on every change
	// until ctx ends, then closes the channel.
	Watch(ctx context.Context) (<-chan []models.Group, error)
}

type ParticipantRepository interface {
	List(ctx context.Context, groupID string) ([]models.Participant, error)
	Get(ctx context.Context, groupID, userID string) (*models.Participant, error)
	Add(ctx context.Context, groupID string, p models.Participant) error
	Delete(ctx context.Context, groupID, userID string) error
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

type GiftRepository interface {
	List(ctx context.Context, groupID string) ([]models.Gift, error)
	ListByUser(ctx context.Context, groupID, userID string) ([]models.Gift, error)
	Get(ctx context.Context, groupID, giftID string) (*models.Gift, error)
	Create(ctx context.Context, groupID string, g models.Gift) (string, error)
	Update(ctx context.Context, groupID, giftID string, form models.GiftUpdateOrCreate) error
	Delete(ctx context.Context, groupID, giftID string) error
	TransitionStatus(ctx context.Context, groupID, giftID string, from, to models.GiftStatus, statusText string) error
}

type UserDetailRepository interface {
	List(ctx context.Context, allowedOnly bool) ([]models.UserDetail, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.UserDetail, error)
	Get(ctx context.Context, userID string) (*models.UserDetail, error)
	// Create inserts u when no record exists and returns the stored record.
	Create(ctx context.Context, u models.UserDetail) (*models.UserDetail, error)
	// UpdateProfile writes only the non-empty fields.
	UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error
	SetPermission(ctx context.Context, userID string, update models.PermissionUpdate) error
	SetFavoriteGroup(ctx context.Context, userID, groupID string) error
	Page(ctx context.Context, req models.PageRequest) (models.Page[models.UserDetail], error)
}

// ParticipantKey and GiftKey locate sub-documents during a sweep.
type ParticipantKey struct {
	GroupID string
	UserID  string
}

type GiftKey struct {
	GroupID string
	GiftID  string
	UserID  string
}

// Sweepable lists every sub-document so orphans left behind by a failed
// cascade can be found.
type Sweepable interface {
	ListGroupIDs(ctx context.Context) ([]string, error)
	ListParticipantKeys(ctx context.Context) ([]ParticipantKey, error)
	ListGiftKeys(ctx context.Context) ([]GiftKey, error)
}

type Store interface {
	Groups() GroupRepository
	Participants() ParticipantRepository
	Gifts() GiftRepository
	Users() UserDetailRepository
	Sweepable
	Close(ctx context.Context) error
}

// chunk splits ids for stores that cap "in" filters.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
