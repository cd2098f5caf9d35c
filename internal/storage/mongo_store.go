package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
)

const mongoTimeout = 10 * time.Second

// MongoStore flattens the sub-collections into participants and gifts
// collections carrying a group_id. Cascades run in a multi-document
// transaction, which needs a replica set.
type MongoStore struct {
	client          *mongo.Client
	db              *mongo.Database
	groupsCol       *mongo.Collection
	participantsCol *mongo.Collection
	giftsCol        *mongo.Collection
	usersCol        *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

type mongoGroupDoc struct {
	ID           string   `bson:"_id"`
	Name         string   `bson:"name"`
	Code         string   `bson:"code"`
	Description  string   `bson:"description"`
	IsPublic     bool     `bson:"is_public"`
	OwnerID      string   `bson:"owner_id"`
	InvitedUsers []string `bson:"invited_users"`
}

type mongoParticipantDoc struct {
	ID         string `bson:"_id"`
	GroupID    string `bson:"group_id"`
	UserID     string `bson:"user_id"`
	Identifier string `bson:"identifier"`
}

type mongoGiftDoc struct {
	ID             string `bson:"_id"`
	GroupID        string `bson:"group_id"`
	Name           string `bson:"name"`
	UserID         string `bson:"user_id"`
	UserIdentifier string `bson:"user_identifier"`
	Price          string `bson:"price"`
	WebURL         string `bson:"web_url"`
	Note           string `bson:"note"`
	Status         string `bson:"status"`
	StatusText     string `bson:"status_text"`
}

type mongoUserDoc struct {
	ID            string `bson:"_id"`
	Email         string `bson:"email"`
	Allow         bool   `bson:"allow"`
	Admin         bool   `bson:"admin"`
	DisplayName   string `bson:"display_name"`
	PhotoURL      string `bson:"photo_url"`
	FavoriteGroup string `bson:"favorite_group,omitempty"`
}

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	if mongoURI == "" || dbName == "" {
		return nil, errors.New("mongo uri and database are required")
	}

	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	opts := options.Client().ApplyURI(mongoURI)
	if opts.TLSConfig != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:          client,
		db:              db,
		groupsCol:       db.Collection(CollectionGroups),
		participantsCol: db.Collection(CollectionParticipants),
		giftsCol:        db.Collection(CollectionGifts),
		usersCol:        db.Collection(CollectionUsers),
	}

	// Best-effort indexes.
	_, _ = s.participantsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	_, _ = s.giftsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}}},
	})
	_, _ = s.groupsCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "invited_users", Value: 1}},
	})
	_, _ = s.usersCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "allow", Value: 1}}},
	})

	slog.Info("[NewMongoStore] MongoDB connected", "db", dbName)
	return s, nil
}

func (s *MongoStore) Groups() GroupRepository             { return mongoGroups{s} }
func (s *MongoStore) Participants() ParticipantRepository { return mongoParticipants{s} }
func (s *MongoStore) Gifts() GiftRepository               { return mongoGifts{s} }
func (s *MongoStore) Users() UserDetailRepository         { return mongoUsers{s} }

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func participantDocID(groupID, userID string) string {
	return groupID + ":" + userID
}

func groupDocToModel(d mongoGroupDoc) models.Group {
	g := models.NewGroup()
	g.ID = d.ID
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

func giftDocToModel(d mongoGiftDoc) models.Gift {
	return models.Gift{
		ID:             d.ID,
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

func userDocToModel(d mongoUserDoc) models.UserDetail {
	return models.UserDetail{
		ID:            d.ID,
		Email:         d.Email,
		Allow:         d.Allow,
		Admin:         d.Admin,
		DisplayName:   d.DisplayName,
		PhotoURL:      d.PhotoURL,
		FavoriteGroup: d.FavoriteGroup,
	}
}

// decodeAll drains cur through conv.
func decodeAll[D any, T any](ctx context.Context, cur *mongo.Cursor, conv func(D) T) ([]T, error) {
	defer cur.Close(ctx)
	out := make([]T, 0)
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, conv(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := s.groupsCol.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, func(d mongoGroupDoc) string { return d.ID })
}

func (s *MongoStore) ListParticipantKeys(ctx context.Context) ([]ParticipantKey, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := s.participantsCol.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, func(d mongoParticipantDoc) ParticipantKey {
		return ParticipantKey{GroupID: d.GroupID, UserID: d.UserID}
	})
}

func (s *MongoStore) ListGiftKeys(ctx context.Context) ([]GiftKey, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := s.giftsCol.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1, "group_id": 1, "user_id": 1}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, func(d mongoGiftDoc) GiftKey {
		return GiftKey{GroupID: d.GroupID, GiftID: d.ID, UserID: d.UserID}
	})
}

type mongoGroups struct{ s *MongoStore }

func (r mongoGroups) find(ctx context.Context, filter bson.M) ([]models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := r.s.groupsCol.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, groupDocToModel)
}

func (r mongoGroups) List(ctx context.Context) ([]models.Group, error) {
	return r.find(ctx, bson.M{})
}

func (r mongoGroups) ListByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r mongoGroups) ListInvited(ctx context.Context, userID string) ([]models.Group, error) {
	return r.find(ctx, bson.M{"invited_users": userID})
}

func (r mongoGroups) Get(ctx context.Context, groupID string) (*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoGroupDoc
	err := r.s.groupsCol.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g := groupDocToModel(doc)
	return &g, nil
}

func (r mongoGroups) Create(ctx context.Context, g models.Group) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	invited := g.InvitedUsers
	if invited == nil {
		invited = []string{}
	}
	doc := mongoGroupDoc{
		ID:           uuid.New().String(),
		Name:         g.Name,
		Code:         g.Code,
		Description:  g.Description,
		IsPublic:     g.IsPublic,
		OwnerID:      g.OwnerID,
		InvitedUsers: invited,
	}
	if _, err := r.s.groupsCol.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (r mongoGroups) Update(ctx context.Context, groupID string, f GroupFields) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	set := bson.M{}
	if f.Name != nil {
		set["name"] = *f.Name
	}
	if f.Description != nil {
		set["description"] = *f.Description
	}
	if f.Code != nil {
		set["code"] = *f.Code
	}
	if f.IsPublic != nil {
		set["is_public"] = *f.IsPublic
	}
	if f.OwnerID != nil {
		set["owner_id"] = *f.OwnerID
	}
	if f.InvitedUsers != nil {
		set["invited_users"] = *f.InvitedUsers
	}
	if len(set) == 0 {
		return nil
	}

	res, err := r.s.groupsCol.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoGroups) Delete(ctx context.Context, groupID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	return r.s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.s.giftsCol.DeleteMany(sc, bson.M{"group_id": groupID}); err != nil {
			return fmt.Errorf("delete gifts: %w", err)
		}
		if _, err := r.s.participantsCol.DeleteMany(sc, bson.M{"group_id": groupID}); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		_, err := r.s.groupsCol.DeleteOne(sc, bson.M{"_id": groupID})
		return err
	})
}

func (r mongoGroups) RemoveMember(ctx context.Context, groupID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	return r.s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.s.giftsCol.DeleteMany(sc, bson.M{"group_id": groupID, "user_id": userID}); err != nil {
			return fmt.Errorf("delete gifts: %w", err)
		}
		_, err := r.s.participantsCol.DeleteOne(sc, bson.M{"_id": participantDocID(groupID, userID)})
		return err
	})
}

// Watch follows the groups change stream and republishes the whole
// collection on every event.
func (r mongoGroups) Watch(ctx context.Context) (<-chan []models.Group, error) {
	stream, err := r.s.groupsCol.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}

	initial, err := r.List(ctx)
	if err != nil {
		stream.Close(context.Background())
		return nil, err
	}

	ch := make(chan []models.Group, 1)
	ch <- initial

	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			groups, err := r.List(ctx)
			if err != nil {
				slog.Error("[WatchGroups] reload failed", logging.Err(err))
				return
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
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			slog.Error("[WatchGroups] change stream ended", logging.Err(err))
		}
	}()
	return ch, nil
}

type mongoParticipants struct{ s *MongoStore }

func (r mongoParticipants) List(ctx context.Context, groupID string) ([]models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := r.s.participantsCol.Find(ctx, bson.M{"group_id": groupID}, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, func(d mongoParticipantDoc) models.Participant {
		return models.Participant{UserID: d.UserID, Identifier: d.Identifier}
	})
}

func (r mongoParticipants) Get(ctx context.Context, groupID, userID string) (*models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoParticipantDoc
	err := r.s.participantsCol.FindOne(ctx, bson.M{"_id": participantDocID(groupID, userID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Participant{UserID: doc.UserID, Identifier: doc.Identifier}, nil
}

func (r mongoParticipants) Add(ctx context.Context, groupID string, p models.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	doc := mongoParticipantDoc{
		ID:         participantDocID(groupID, p.UserID),
		GroupID:    groupID,
		UserID:     p.UserID,
		Identifier: p.Identifier,
	}
	_, err := r.s.participantsCol.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r mongoParticipants) Delete(ctx context.Context, groupID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := r.s.participantsCol.DeleteOne(ctx, bson.M{"_id": participantDocID(groupID, userID)})
	return err
}

func (r mongoParticipants) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := r.s.participantsCol.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, func(d mongoParticipantDoc) string { return d.GroupID })
}

type mongoGifts struct{ s *MongoStore }

func (r mongoGifts) find(ctx context.Context, filter bson.M) ([]models.Gift, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := r.s.giftsCol.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, giftDocToModel)
}

func (r mongoGifts) List(ctx context.Context, groupID string) ([]models.Gift, error) {
	return r.find(ctx, bson.M{"group_id": groupID})
}

func (r mongoGifts) ListByUser(ctx context.Context, groupID, userID string) ([]models.Gift, error) {
	return r.find(ctx, bson.M{"group_id": groupID, "user_id": userID})
}

func (r mongoGifts) Get(ctx context.Context, groupID, giftID string) (*models.Gift, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoGiftDoc
	err := r.s.giftsCol.FindOne(ctx, bson.M{"_id": giftID, "group_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g := giftDocToModel(doc)
	return &g, nil
}

func (r mongoGifts) Create(ctx context.Context, groupID string, g models.Gift) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	doc := mongoGiftDoc{
		ID:             uuid.New().String(),
		GroupID:        groupID,
		Name:           g.Name,
		UserID:         g.UserID,
		UserIdentifier: g.UserIdentifier,
		Price:          g.Price,
		WebURL:         g.WebURL,
		Note:           g.Note,
		Status:         string(g.Status),
		StatusText:     g.StatusText,
	}
	if _, err := r.s.giftsCol.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (r mongoGifts) Update(ctx context.Context, groupID, giftID string, form models.GiftUpdateOrCreate) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := r.s.giftsCol.UpdateOne(ctx,
		bson.M{"_id": giftID, "group_id": groupID},
		bson.M{"$set": bson.M{
			"name":    form.Name,
			"price":   form.Price,
			"web_url": form.WebURL,
			"note":    form.Note,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoGifts) Delete(ctx context.Context, groupID, giftID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := r.s.giftsCol.DeleteOne(ctx, bson.M{"_id": giftID, "group_id": groupID})
	return err
}

func (r mongoGifts) TransitionStatus(ctx context.Context, groupID, giftID string, from, to models.GiftStatus, statusText string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := r.s.giftsCol.UpdateOne(ctx,
		bson.M{"_id": giftID, "group_id": groupID, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "status_text": statusText}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.s.giftsCol.CountDocuments(ctx, bson.M{"_id": giftID, "group_id": groupID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

type mongoUsers struct{ s *MongoStore }

func (r mongoUsers) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.UserDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	cur, err := r.s.usersCol.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur, userDocToModel)
}

func byEmail(order int) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "email", Value: order}, {Key: "_id", Value: order}})
}

func (r mongoUsers) List(ctx context.Context, allowedOnly bool) ([]models.UserDetail, error) {
	filter := bson.M{}
	if allowedOnly {
		filter["allow"] = true
	}
	return r.find(ctx, filter, byEmail(1))
}

func (r mongoUsers) ListByIDs(ctx context.Context, ids []string) ([]models.UserDetail, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []models.UserDetail{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, byEmail(1))
}

func (r mongoUsers) Get(ctx context.Context, userID string) (*models.UserDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoUserDoc
	err := r.s.usersCol.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := userDocToModel(doc)
	return &u, nil
}

func (r mongoUsers) Create(ctx context.Context, u models.UserDetail) (*models.UserDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	doc := mongoUserDoc{
		ID:            u.ID,
		Email:         u.Email,
		Allow:         u.Allow,
		Admin:         u.Admin,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		FavoriteGroup: u.FavoriteGroup,
	}
	_, err := r.s.usersCol.UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, u.ID)
}

func (r mongoUsers) set(ctx context.Context, userID string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := r.s.usersCol.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoUsers) UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error {
	set := bson.M{}
	if displayName != "" {
		set["display_name"] = displayName
	}
	if photoURL != "" {
		set["photo_url"] = photoURL
	}
	if len(set) == 0 {
		return nil
	}
	return r.set(ctx, userID, set)
}

func (r mongoUsers) SetPermission(ctx context.Context, userID string, update models.PermissionUpdate) error {
	return r.set(ctx, userID, bson.M{update.Field(): update.Value()})
}

func (r mongoUsers) SetFavoriteGroup(ctx context.Context, userID, groupID string) error {
	return r.set(ctx, userID, bson.M{"favorite_group": groupID})
}

func (r mongoUsers) Page(ctx context.Context, req models.PageRequest) (models.Page[models.UserDetail], error) {
	w, err := newPageWindow(req)
	if err != nil {
		return models.Page[models.UserDetail]{}, err
	}

	filter := bson.M{}
	order := 1
	if w.HasCursor {
		op := "$gt"
		if w.Before {
			op = "$lt"
			order = -1
		}
		filter = bson.M{"$or": bson.A{
			bson.M{"email": bson.M{op: w.At.Key}},
			bson.M{"email": w.At.Key, "_id": bson.M{op: w.At.ID}},
		}}
	}

	rows, err := r.find(ctx, filter, byEmail(order).SetLimit(int64(w.Limit+1)))
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
