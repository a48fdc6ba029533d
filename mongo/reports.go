package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CaseStore persists resident-filed cases (incident reports, document requests). Both
// collections share the userId/status/adminResponse layout.
type CaseStore[T any] struct {
	coll *mongo.Collection
}

func NewIncidentStore(db *mongo.Database) *CaseStore[Incident] {
	return &CaseStore[Incident]{coll: db.Collection(CollectionIncidents)}
}

func NewDocumentStore(db *mongo.Database) *CaseStore[DocumentRequest] {
	return &CaseStore[DocumentRequest]{coll: db.Collection(CollectionDocuments)}
}

// Insert returns the generated id; callers set it on their copy.
func (s *CaseStore[T]) Insert(ctx context.Context, item *T) (primitive.ObjectID, error) {
	res, err := s.coll.InsertOne(ctx, item)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (s *CaseStore[T]) FindMany(ctx context.Context, q CaseQuery) ([]*T, error) {
	cur, err := s.coll.Find(ctx, q.filter(), options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	items := []*T{}
	if err = cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus returns the updated case, or nil when it does not exist.
func (s *CaseStore[T]) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, response string, at time.Time) (*T, error) {
	set := bson.M{"status": status, "updatedAt": at}
	if response != "" {
		set["adminResponse"] = response
	}
	item := new(T)
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(item)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
