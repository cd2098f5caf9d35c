package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/giftlist/backend/internal/models"
)

const memorySnapshotFile = "giftlist.json"

// MemoryStore keeps every collection in process, optionally persisted to a
// JSON snapshot after each write. Sub-collections live outside their group
// the same way Firestore sub-collections do, so a group can vanish while
// its participants or gifts remain.
type MemoryStore struct {
	mu           sync.RWMutex
	groups       map[string]models.Group
	participants map[string]map[string]models.Participant
	gifts        map[string]map[string]models.Gift
	users        map[string]models.UserDetail

	watchers    map[int]chan []models.Group
	nextWatcher int

	file *SnapshotFile
}

var _ Store = (*MemoryStore)(nil)

type memorySnapshot struct {
	Groups       map[string]models.Group                  `json:"groups"`
	Participants map[string]map[string]models.Participant `json:"participants"`
	Gifts        map[string]map[string]models.Gift        `json:"gifts"`
	Users        map[string]models.UserDetail             `json:"users"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:       make(map[string]models.Group),
		participants: make(map[string]map[string]models.Participant),
		gifts:        make(map[string]map[string]models.Gift),
		users:        make(map[string]models.UserDetail),
		watchers:     make(map[int]chan []models.Group),
	}
}

// NewPersistentMemoryStore loads dataDir/giftlist.json if present and saves
// it back after every write.
func NewPersistentMemoryStore(dataDir string) (*MemoryStore, error) {
	file, err := OpenSnapshotFile(dataDir, memorySnapshotFile)
	if err != nil {
		return nil, err
	}

	s := NewMemoryStore()
	s.file = file

	var snap memorySnapshot
	if err := file.Load(&snap); err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", file.Path(), err)
	}
	for id, g := range snap.Groups {
		s.groups[id] = g
	}
	for gid, ps := range snap.Participants {
		s.participants[gid] = ps
	}
	for gid, gs := range snap.Gifts {
		s.gifts[gid] = gs
	}
	for id, u := range snap.Users {
		s.users[id] = u
	}
	return s, nil
}

func (s *MemoryStore) Groups() GroupRepository             { return memoryGroups{s} }
func (s *MemoryStore) Participants() ParticipantRepository { return memoryParticipants{s} }
func (s *MemoryStore) Gifts() GiftRepository               { return memoryGifts{s} }
func (s *MemoryStore) Users() UserDetailRepository         { return memoryUsers{s} }

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	return s.persistLocked()
}

// persistLocked must be called with s.mu held.
func (s *MemoryStore) persistLocked() error {
	if s.file == nil {
		return nil
	}
	return s.file.Save(memorySnapshot{
		Groups:       s.groups,
		Participants: s.participants,
		Gifts:        s.gifts,
		Users:        s.users,
	})
}

// notifyLocked pushes the current groups snapshot to every watcher, dropping
// any snapshot a slow watcher has not consumed yet.
func (s *MemoryStore) notifyLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.groupListLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *MemoryStore) groupListLocked() []models.Group {
	out := make([]models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, cloneGroup(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneGroup(g models.Group) models.Group {
	g.InvitedUsers = append([]string{}, g.InvitedUsers...)
	g.Participants = []models.Participant{}
	g.Gifts = []models.Gift{}
	return g
}

func (s *MemoryStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListParticipantKeys(ctx context.Context) ([]ParticipantKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []ParticipantKey
	for gid, ps := range s.participants {
		for uid := range ps {
			keys = append(keys, ParticipantKey{GroupID: gid, UserID: uid})
		}
	}
	return keys, nil
}

func (s *MemoryStore) ListGiftKeys(ctx context.Context) ([]GiftKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []GiftKey
	for gid, gs := range s.gifts {
		for id, g := range gs {
			keys = append(keys, GiftKey{GroupID: gid, GiftID: id, UserID: g.UserID})
		}
	}
	return keys, nil
}

type memoryGroups struct{ s *MemoryStore }

func (r memoryGroups) List(ctx context.Context) ([]models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.groupListLocked(), nil
}

func (r memoryGroups) ListByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Group, 0, len(ids))
	for _, id := range dedupe(ids) {
		if g, ok := r.s.groups[id]; ok {
			out = append(out, cloneGroup(g))
		}
	}
	return out, nil
}

func (r memoryGroups) ListInvited(ctx context.Context, userID string) ([]models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Group
	for _, g := range r.s.groupListLocked() {
		if g.IsInvited(userID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r memoryGroups) Get(ctx context.Context, groupID string) (*models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[groupID]
	if !ok {
		return nil, nil
	}
	c := cloneGroup(g)
	return &c, nil
}

func (r memoryGroups) Create(ctx context.Context, g models.Group) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g.ID = uuid.New().String()
	r.s.groups[g.ID] = cloneGroup(g)
	r.s.notifyLocked()
	return g.ID, r.s.persistLocked()
}

func (r memoryGroups) Update(ctx context.Context, groupID string, f GroupFields) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	if f.Name != nil {
		g.Name = *f.Name
	}
	if f.Description != nil {
		g.Description = *f.Description
	}
	if f.Code != nil {
		g.Code = *f.Code
	}
	if f.IsPublic != nil {
		g.IsPublic = *f.IsPublic
	}
	if f.OwnerID != nil {
		g.OwnerID = *f.OwnerID
	}
	if f.InvitedUsers != nil {
		g.InvitedUsers = append([]string{}, (*f.InvitedUsers)...)
	}
	r.s.groups[groupID] = g
	r.s.notifyLocked()
	return r.s.persistLocked()
}

func (r memoryGroups) Delete(ctx context.Context, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.groups, groupID)
	delete(r.s.participants, groupID)
	delete(r.s.gifts, groupID)
	r.s.notifyLocked()
	return r.s.persistLocked()
}

func (r memoryGroups) RemoveMember(ctx context.Context, groupID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.participants[groupID], userID)
	for id, g := range r.s.gifts[groupID] {
		if g.UserID == userID {
			delete(r.s.gifts[groupID], id)
		}
	}
	return r.s.persistLocked()
}

func (r memoryGroups) Watch(ctx context.Context) (<-chan []models.Group, error) {
	ch := make(chan []models.Group, 1)

	r.s.mu.Lock()
	id := r.s.nextWatcher
	r.s.nextWatcher++
	r.s.watchers[id] = ch
	ch <- r.s.groupListLocked()
	r.s.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if _, ok := r.s.watchers[id]; ok {
			delete(r.s.watchers, id)
			close(ch)
		}
	}()
	return ch, nil
}

type memoryParticipants struct{ s *MemoryStore }

func (r memoryParticipants) List(ctx context.Context, groupID string) ([]models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Participant, 0, len(r.s.participants[groupID]))
	for _, p := range r.s.participants[groupID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memoryParticipants) Get(ctx context.Context, groupID, userID string) (*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.participants[groupID][userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memoryParticipants) Add(ctx context.Context, groupID string, p models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.participants[groupID] == nil {
		r.s.participants[groupID] = make(map[string]models.Participant)
	}
	r.s.participants[groupID][p.UserID] = p
	return r.s.persistLocked()
}

func (r memoryParticipants) Delete(ctx context.Context, groupID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.participants[groupID], userID)
	return r.s.persistLocked()
}

func (r memoryParticipants) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []string
	for gid, ps := range r.s.participants {
		if _, ok := ps[userID]; ok {
			ids = append(ids, gid)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memoryGifts struct{ s *MemoryStore }

func (r memoryGifts) List(ctx context.Context, groupID string) ([]models.Gift, error) {
	return r.filter(groupID, func(models.Gift) bool { return true }), nil
}

func (r memoryGifts) ListByUser(ctx context.Context, groupID, userID string) ([]models.Gift, error) {
	return r.filter(groupID, func(g models.Gift) bool { return g.UserID == userID }), nil
}

func (r memoryGifts) filter(groupID string, keep func(models.Gift) bool) []models.Gift {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Gift, 0)
	for _, g := range r.s.gifts[groupID] {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memoryGifts) Get(ctx context.Context, groupID, giftID string) (*models.Gift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.gifts[groupID][giftID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r memoryGifts) Create(ctx context.Context, groupID string, g models.Gift) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g.ID = uuid.New().String()
	if r.s.gifts[groupID] == nil {
		r.s.gifts[groupID] = make(map[string]models.Gift)
	}
	r.s.gifts[groupID][g.ID] = g
	return g.ID, r.s.persistLocked()
}

func (r memoryGifts) Update(ctx context.Context, groupID, giftID string, form models.GiftUpdateOrCreate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[groupID][giftID]
	if !ok {
		return ErrNotFound
	}
	g.Name = form.Name
	g.Price = form.Price
	g.WebURL = form.WebURL
	g.Note = form.Note
	r.s.gifts[groupID][giftID] = g
	return r.s.persistLocked()
}

func (r memoryGifts) Delete(ctx context.Context, groupID, giftID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.gifts[groupID], giftID)
	return r.s.persistLocked()
}

func (r memoryGifts) TransitionStatus(ctx context.Context, groupID, giftID string, from, to models.GiftStatus, statusText string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[groupID][giftID]
	if !ok {
		return ErrNotFound
	}
	if g.Status != from {
		return ErrStatusConflict
	}
	g.Status = to
	g.StatusText = statusText
	r.s.gifts[groupID][giftID] = g
	return r.s.persistLocked()
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) sortedLocked() []models.UserDetail {
	out := make([]models.UserDetail, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(out[i].Email, out[i].ID, out[j].Email, out[j].ID)
	})
	return out
}

func (r memoryUsers) List(ctx context.Context, allowedOnly bool) ([]models.UserDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.UserDetail, 0)
	for _, u := range r.sortedLocked() {
		if !allowedOnly || u.Allow {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memoryUsers) ListByIDs(ctx context.Context, ids []string) ([]models.UserDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.UserDetail, 0, len(ids))
	for _, id := range dedupe(ids) {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memoryUsers) Get(ctx context.Context, userID string) (*models.UserDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memoryUsers) Create(ctx context.Context, u models.UserDetail) (*models.UserDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.users[u.ID]; ok {
		return &existing, nil
	}
	r.s.users[u.ID] = u
	return &u, r.s.persistLocked()
}

func (r memoryUsers) UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if photoURL != "" {
		u.PhotoURL = photoURL
	}
	r.s.users[userID] = u
	return r.s.persistLocked()
}

func (r memoryUsers) SetPermission(ctx context.Context, userID string, update models.PermissionUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	update.Apply(&u)
	r.s.users[userID] = u
	return r.s.persistLocked()
}

func (r memoryUsers) SetFavoriteGroup(ctx context.Context, userID, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.FavoriteGroup = groupID
	r.s.users[userID] = u
	return r.s.persistLocked()
}

func (r memoryUsers) Page(ctx context.Context, req models.PageRequest) (models.Page[models.UserDetail], error) {
	w, err := newPageWindow(req)
	if err != nil {
		return models.Page[models.UserDetail]{}, err
	}

	r.s.mu.RLock()
	all := r.sortedLocked()
	r.s.mu.RUnlock()

	var window []models.UserDetail
	switch {
	case !w.HasCursor:
		window = all
	case w.Before:
		for _, u := range all {
			if cursorLess(u.Email, u.ID, w.At.Key, w.At.ID) {
				window = append(window, u)
			}
		}
		if len(window) > w.Limit+1 {
			window = window[len(window)-(w.Limit+1):]
		}
	default:
		for _, u := range all {
			if cursorLess(w.At.Key, w.At.ID, u.Email, u.ID) {
				window = append(window, u)
			}
		}
	}
	if !w.Before && len(window) > w.Limit+1 {
		window = window[:w.Limit+1]
	}
	return buildPage(window, userPageKey, w), nil
}
