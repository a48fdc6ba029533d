package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SMSAlertStore struct {
	coll *mongo.Collection
}

func NewSMSAlertStore(db *mongo.Database) *SMSAlertStore {
	return &SMSAlertStore{coll: db.Collection(CollectionSMSAlerts)}
}

func (s *SMSAlertStore) Insert(ctx context.Context, a *SMSAlert) error {
	res, err := s.coll.InsertOne(ctx, a)
	if err != nil {
		return err
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *SMSAlertStore) FindMany(ctx context.Context, limit int64) ([]*SMSAlert, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	items := []*SMSAlert{}
	if err = cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
