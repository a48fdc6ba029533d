package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{coll: db.Collection(CollectionNotifications)}
}

func (s *NotificationStore) InsertMany(ctx context.Context, items []*Notification) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, len(items))
	for i, n := range items {
		docs[i] = n
	}
	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	for i, id := range res.InsertedIDs {
		items[i].ID = id.(primitive.ObjectID)
	}
	return nil
}

// Find returns matching notifications newest first. A limit of 0 means no limit.
func (s *NotificationStore) Find(ctx context.Context, f NotificationFilter, skip, limit int64) ([]*Notification, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1}).SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.coll.Find(ctx, f.filter(), opts)
	if err != nil {
		return nil, err
	}
	items := []*Notification{}
	if err = cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *NotificationStore) Count(ctx context.Context, f NotificationFilter) (int64, error) {
	return s.coll.CountDocuments(ctx, f.filter())
}

// Recipients returns the distinct owners of the matching notifications.
func (s *NotificationStore) Recipients(ctx context.Context, f NotificationFilter) ([]primitive.ObjectID, error) {
	raw, err := s.coll.Distinct(ctx, "userId", f.filter())
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *NotificationStore) owned(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id, "userId": userID})
	return n > 0, err
}

// MarkRead only touches unread records so a repeated call keeps the first readAt.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "userId": userID, "read": false}, bson.M{
		"$set": bson.M{"read": true, "readAt": at},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	return s.owned(ctx, id, userID)
}

func (s *NotificationStore) MarkUnread(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{
		"$set": bson.M{"read": false, "readAt": nil},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *NotificationStore) MarkReadWhere(ctx context.Context, f NotificationFilter, at time.Time) (int64, error) {
	unread := false
	f.Read = &unread
	res, err := s.coll.UpdateMany(ctx, f.filter(), bson.M{
		"$set": bson.M{"read": true, "readAt": at},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *NotificationStore) Delete(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *NotificationStore) DeleteWhere(ctx context.Context, f NotificationFilter) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, f.filter())
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// SetAdminNote returns the updated record, or nil when it does not exist.
func (s *NotificationStore) SetAdminNote(ctx context.Context, id primitive.ObjectID, note string) (*Notification, error) {
	n := &Notification{}
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"adminNote": note}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(n)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}
