package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
)

// Firestore caps "in" filters at 30 values.
const firestoreInLimit = 30

type FirestoreStore struct {
	client *firestore.Client
}

var _ Store = (*FirestoreStore)(nil)

type fsGroupDoc struct {
	Name         string   `firestore:"name"`
	Code         string   `firestore:"code"`
	Description  string   `firestore:"description"`
	IsPublic     bool     `firestore:"isPublic"`
	OwnerID      string   `firestore:"ownerId"`
	InvitedUsers []string `firestore:"invitedUsers"`
}

type fsParticipantDoc struct {
	UserID     string `firestore:"userId"`
	Identifier string `firestore:"identifier"`
}

type fsGiftDoc struct {
	Name           string `firestore:"name"`
	UserID         string `firestore:"userId"`
	UserIdentifier string `firestore:"userIdentifier"`
	Price          string `firestore:"price"`
	WebURL         string `firestore:"webUrl"`
	Note           string `firestore:"note"`
	Status         string `firestore:"status"`
	StatusText     string `firestore:"statusText"`
}

type fsUserDoc struct {
	Email         string `firestore:"email"`
	Allow         bool   `firestore:"allow"`
	Admin         bool   `firestore:"admin"`
	DisplayName   string `firestore:"displayName"`
	PhotoURL      string `firestore:"photoURL"`
	FavoriteGroup string `firestore:"favoriteGroup,omitempty"`
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Groups() GroupRepository             { return fsGroups{s} }
func (s *FirestoreStore) Participants() ParticipantRepository { return fsParticipants{s} }
func (s *FirestoreStore) Gifts() GiftRepository               { return fsGifts{s} }
func (s *FirestoreStore) Users() UserDetailRepository         { return fsUsers{s} }

func (s *FirestoreStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *FirestoreStore) groups() *firestore.CollectionRef {
	return s.client.Collection(CollectionGroups)
}

func (s *FirestoreStore) participants(groupID string) *firestore.CollectionRef {
	return s.groups().Doc(groupID).Collection(CollectionParticipants)
}

func (s *FirestoreStore) gifts(groupID string) *firestore.CollectionRef {
	return s.groups().Doc(groupID).Collection(CollectionGifts)
}

func (s *FirestoreStore) users() *firestore.CollectionRef {
	return s.client.Collection(CollectionUsers)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// getAll decodes every document an iterator yields.
func getAll[D any, T any](it *firestore.DocumentIterator, conv func(string, D) T) ([]T, error) {
	defer it.Stop()
	out := make([]T, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var doc D
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Ref.Path, err)
		}
		out = append(out, conv(snap.Ref.ID, doc))
	}
}

func fsGroupToModel(id string, d fsGroupDoc) models.Group {
	g := models.NewGroup()
	g.ID = id
	g.Name = d.Name
	g.Code = d.Code
	g.Description = d.Description
	g.IsPublic = d.IsPublic
	g.OwnerID = d.OwnerID
	if d.InvitedUsers != nil {
		g.InvitedUsers = d.InvitedUsers
	}
	return g
}

func fsParticipantToModel(id string, d fsParticipantDoc) models.Participant {
	if d.UserID == "" {
		d.UserID = id
	}
	return models.Participant{UserID: d.UserID, Identifier: d.Identifier}
}

func fsGiftToModel(id string, d fsGiftDoc) models.Gift {
	return models.Gift{
		ID:             id,
		Name:           d.Name,
		UserID:         d.UserID,
		UserIdentifier: d.UserIdentifier,
		Price:          d.Price,
		WebURL:         d.WebURL,
		Note:           d.Note,
		Status:         models.GiftStatus(d.Status),
		StatusText:     d.StatusText,
	}
}

func fsUserToModel(id string, d fsUserDoc) models.UserDetail {
	return models.UserDetail{
		ID:            id,
		Email:         d.Email,
		Allow:         d.Allow,
		Admin:         d.Admin,
		DisplayName:   d.DisplayName,
		PhotoURL:      d.PhotoURL,
		FavoriteGroup: d.FavoriteGroup,
	}
}

func (s *FirestoreStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	refs, err := s.groups().DocumentRefs(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// ListParticipantKeys scans the participants collection group, which also
// reaches sub-collections whose parent group document is gone.
func (s *FirestoreStore) ListParticipantKeys(ctx context.Context) ([]ParticipantKey, error) {
	snaps, err := s.client.CollectionGroup(CollectionParticipants).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	keys := make([]ParticipantKey, 0, len(snaps))
	for _, snap := range snaps {
		keys = append(keys, ParticipantKey{GroupID: snap.Ref.Parent.Parent.ID, UserID: snap.Ref.ID})
	}
	return keys, nil
}

func (s *FirestoreStore) ListGiftKeys(ctx context.Context) ([]GiftKey, error) {
	snaps, err := s.client.CollectionGroup(CollectionGifts).Select("userId").Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	keys := make([]GiftKey, 0, len(snaps))
	for _, snap := range snaps {
		uid, _ := snap.Data()["userId"].(string)
		keys = append(keys, GiftKey{GroupID: snap.Ref.Parent.Parent.ID, GiftID: snap.Ref.ID, UserID: uid})
	}
	return keys, nil
}

type fsGroups struct{ s *FirestoreStore }

func (r fsGroups) List(ctx context.Context) ([]models.Group, error) {
	return getAll(r.s.groups().Documents(ctx), fsGroupToModel)
}

func (r fsGroups) ListByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	out := make([]models.Group, 0, len(ids))
	for _, part := range chunk(dedupe(ids), firestoreInLimit) {
		refs := make([]*firestore.DocumentRef, 0, len(part))
		for _, id := range part {
			refs = append(refs, r.s.groups().Doc(id))
		}
		groups, err := getAll(r.s.groups().Where(firestore.DocumentID, "in", refs).Documents(ctx), fsGroupToModel)
		if err != nil {
			return nil, err
		}
		out = append(out, groups...)
	}
	return out, nil
}

func (r fsGroups) ListInvited(ctx context.Context, userID string) ([]models.Group, error) {
	return getAll(r.s.groups().Where("invitedUsers", "array-contains", userID).Documents(ctx), fsGroupToModel)
}

func (r fsGroups) Get(ctx context.Context, groupID string) (*models.Group, error) {
	snap, err := r.s.groups().Doc(groupID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fsGroupDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	g := fsGroupToModel(snap.Ref.ID, doc)
	return &g, nil
}

func (r fsGroups) Create(ctx context.Context, g models.Group) (string, error) {
	invited := g.InvitedUsers
	if invited == nil {
		invited = []string{}
	}
	ref := r.s.groups().NewDoc()
	_, err := ref.Create(ctx, fsGroupDoc{
		Name:         g.Name,
		Code:         g.Code,
		Description:  g.Description,
		IsPublic:     g.IsPublic,
		OwnerID:      g.OwnerID,
		InvitedUsers: invited,
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r fsGroups) Update(ctx context.Context, groupID string, f GroupFields) error {
	var updates []firestore.Update
	if f.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *f.Name})
	}
	if f.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *f.Description})
	}
	if f.Code != nil {
		updates = append(updates, firestore.Update{Path: "code", Value: *f.Code})
	}
	if f.IsPublic != nil {
		updates = append(updates, firestore.Update{Path: "isPublic", Value: *f.IsPublic})
	}
	if f.OwnerID != nil {
		updates = append(updates, firestore.Update{Path: "ownerId", Value: *f.OwnerID})
	}
	if f.InvitedUsers != nil {
		updates = append(updates, firestore.Update{Path: "invitedUsers", Value: *f.InvitedUsers})
	}
	if len(updates) == 0 {
		return nil
	}

	_, err := r.s.groups().Doc(groupID).Update(ctx, updates)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

// Delete removes the group and both sub-collections in one transaction.
// Groups larger than the transaction write limit fail as a whole and are
// left intact.
func (r fsGroups) Delete(ctx context.Context, groupID string) error {
	return r.s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		gifts, err := tx.DocumentRefs(r.s.gifts(groupID)).GetAll()
		if err != nil {
			return err
		}
		participants, err := tx.DocumentRefs(r.s.participants(groupID)).GetAll()
		if err != nil {
			return err
		}
		for _, ref := range gifts {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		for _, ref := range participants {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return tx.Delete(r.s.groups().Doc(groupID))
	})
}

func (r fsGroups) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		gifts, err := tx.Documents(r.s.gifts(groupID).Where("userId", "==", userID)).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range gifts {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(r.s.participants(groupID).Doc(userID))
	})
}

func (r fsGroups) Watch(ctx context.Context) (<-chan []models.Group, error) {
	it := r.s.groups().Snapshots(ctx)
	ch := make(chan []models.Group, 1)

	go func() {
		defer close(ch)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					slog.Error("[WatchGroups] snapshot listener stopped", logging.Err(err))
				}
				return
			}
			groups, err := getAll(snap.Documents, fsGroupToModel)
			if err != nil {
				slog.Error("[WatchGroups] decode snapshot", logging.Err(err))
				continue
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- groups:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

type fsParticipants struct{ s *FirestoreStore }

func (r fsParticipants) List(ctx context.Context, groupID string) ([]models.Participant, error) {
	return getAll(r.s.participants(groupID).Documents(ctx), fsParticipantToModel)
}

func (r fsParticipants) Get(ctx context.Context, groupID, userID string) (*models.Participant, error) {
	snap, err := r.s.participants(groupID).Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fsParticipantDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	p := fsParticipantToModel(snap.Ref.ID, doc)
	return &p, nil
}

func (r fsParticipants) Add(ctx context.Context, groupID string, p models.Participant) error {
	_, err := r.s.participants(groupID).Doc(p.UserID).Set(ctx, fsParticipantDoc{
		UserID:     p.UserID,
		Identifier: p.Identifier,
	})
	return err
}

func (r fsParticipants) Delete(ctx context.Context, groupID, userID string) error {
	_, err := r.s.participants(groupID).Doc(userID).Delete(ctx)
	return err
}

func (r fsParticipants) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	snaps, err := r.s.client.CollectionGroup(CollectionParticipants).Where("userId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.Ref.Parent.Parent.ID)
	}
	return ids, nil
}

type fsGifts struct{ s *FirestoreStore }

func (r fsGifts) List(ctx context.Context, groupID string) ([]models.Gift, error) {
	return getAll(r.s.gifts(groupID).Documents(ctx), fsGiftToModel)
}

func (r fsGifts) ListByUser(ctx context.Context, groupID, userID string) ([]models.Gift, error) {
	return getAll(r.s.gifts(groupID).Where("userId", "==", userID).Documents(ctx), fsGiftToModel)
}

func (r fsGifts) Get(ctx context.Context, groupID, giftID string) (*models.Gift, error) {
	snap, err := r.s.gifts(groupID).Doc(giftID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fsGiftDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	g := fsGiftToModel(snap.Ref.ID, doc)
	return &g, nil
}

func (r fsGifts) Create(ctx context.Context, groupID string, g models.Gift) (string, error) {
	ref := r.s.gifts(groupID).NewDoc()
	_, err := ref.Create(ctx, fsGiftDoc{
		Name:           g.Name,
		UserID:         g.UserID,
		UserIdentifier: g.UserIdentifier,
		Price:          g.Price,
		WebURL:         g.WebURL,
		Note:           g.Note,
		Status:         string(g.Status),
		StatusText:     g.StatusText,
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r fsGifts) Update(ctx context.Context, groupID, giftID string, form models.GiftUpdateOrCreate) error {
	_, err := r.s.gifts(groupID).Doc(giftID).Update(ctx, []firestore.Update{
		{Path: "name", Value: form.Name},
		{Path: "price", Value: form.Price},
		{Path: "webUrl", Value: form.WebURL},
		{Path: "note", Value: form.Note},
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r fsGifts) Delete(ctx context.Context, groupID, giftID string) error {
	_, err := r.s.gifts(groupID).Doc(giftID).Delete(ctx)
	return err
}

func (r fsGifts) TransitionStatus(ctx context.Context, groupID, giftID string, from, to models.GiftStatus, statusText string) error {
	ref := r.s.gifts(groupID).Doc(giftID)
	return r.s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, _ := snap.Data()["status"].(string)
		if models.GiftStatus(current) != from {
			return ErrStatusConflict
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "statusText", Value: statusText},
		})
	})
}

type fsUsers struct{ s *FirestoreStore }

func (r fsUsers) List(ctx context.Context, allowedOnly bool) ([]models.UserDetail, error) {
	q := r.s.users().Query
	if allowedOnly {
		q = q.Where("allow", "==", true)
	}
	return getAll(q.Documents(ctx), fsUserToModel)
}

func (r fsUsers) ListByIDs(ctx context.Context, ids []string) ([]models.UserDetail, error) {
	out := make([]models.UserDetail, 0, len(ids))
	for _, part := range chunk(dedupe(ids), firestoreInLimit) {
		refs := make([]*firestore.DocumentRef, 0, len(part))
		for _, id := range part {
			refs = append(refs, r.s.users().Doc(id))
		}
		users, err := getAll(r.s.users().Where(firestore.DocumentID, "in", refs).Documents(ctx), fsUserToModel)
		if err != nil {
			return nil, err
		}
		out = append(out, users...)
	}
	return out, nil
}

func (r fsUsers) Get(ctx context.Context, userID string) (*models.UserDetail, error) {
	snap, err := r.s.users().Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fsUserDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	u := fsUserToModel(snap.Ref.ID, doc)
	return &u, nil
}

func (r fsUsers) Create(ctx context.Context, u models.UserDetail) (*models.UserDetail, error) {
	ref := r.s.users().Doc(u.ID)
	var stored models.UserDetail

	err := r.s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			var doc fsUserDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			stored = fsUserToModel(ref.ID, doc)
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		stored = u
		return tx.Create(ref, fsUserDoc{
			Email:         u.Email,
			Allow:         u.Allow,
			Admin:         u.Admin,
			DisplayName:   u.DisplayName,
			PhotoURL:      u.PhotoURL,
			FavoriteGroup: u.FavoriteGroup,
		})
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r fsUsers) update(ctx context.Context, userID string, updates []firestore.Update) error {
	if len(updates) == 0 {
		return nil
	}
	_, err := r.s.users().Doc(userID).Update(ctx, updates)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r fsUsers) UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error {
	var updates []firestore.Update
	if displayName != "" {
		updates = append(updates, firestore.Update{Path: "displayName", Value: displayName})
	}
	if photoURL != "" {
		updates = append(updates, firestore.Update{Path: "photoURL", Value: photoURL})
	}
	return r.update(ctx, userID, updates)
}

func (r fsUsers) SetPermission(ctx context.Context, userID string, update models.PermissionUpdate) error {
	return r.update(ctx, userID, []firestore.Update{{Path: update.Field(), Value: update.Value()}})
}

func (r fsUsers) SetFavoriteGroup(ctx context.Context, userID, groupID string) error {
	return r.update(ctx, userID, []firestore.Update{{Path: "favoriteGroup", Value: groupID}})
}

func (r fsUsers) Page(ctx context.Context, req models.PageRequest) (models.Page[models.UserDetail], error) {
	w, err := newPageWindow(req)
	if err != nil {
		return models.Page[models.UserDetail]{}, err
	}

	dir := firestore.Asc
	if w.Before {
		dir = firestore.Desc
	}
	q := r.s.users().OrderBy("email", dir).OrderBy(firestore.DocumentID, dir)
	if w.HasCursor {
		q = q.StartAfter(w.At.Key, w.At.ID)
	}

	rows, err := getAll(q.Limit(w.Limit+1).Documents(ctx), fsUserToModel)
	if err != nil {
		return models.Page[models.UserDetail]{}, err
	}
	if w.Before {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return buildPage(rows, userPageKey, w), nil
}
