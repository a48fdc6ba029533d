package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AnnouncementStore struct {
	coll *mongo.Collection
}

func NewAnnouncementStore(db *mongo.Database) *AnnouncementStore {
	return &AnnouncementStore{coll: db.Collection(CollectionAnnouncements)}
}

func (s *AnnouncementStore) Insert(ctx context.Context, a *Announcement) error {
	res, err := s.coll.InsertOne(ctx, a)
	if err != nil {
		return err
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *AnnouncementStore) Find(ctx context.Context, id primitive.ObjectID) (*Announcement, error) {
	a := &Announcement{}
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnnouncementStore) FindMany(ctx context.Context, includeDeleted bool) ([]*Announcement, error) {
	filter := bson.M{}
	if !includeDeleted {
		filter["isDeleted"] = bson.M{"$ne": true}
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	items := []*Announcement{}
	if err = cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *AnnouncementStore) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"isDeleted": true, "deletedAt": at},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
