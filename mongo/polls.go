package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PollStore struct {
	coll *mongo.Collection
}

func NewPollStore(db *mongo.Database) *PollStore {
	return &PollStore{coll: db.Collection(CollectionPolls)}
}

func (s *PollStore) Insert(ctx context.Context, poll *Poll) error {
	res, err := s.coll.InsertOne(ctx, poll)
	if err != nil {
		return err
	}
	poll.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// Find returns nil, nil when the poll does not exist.
func (s *PollStore) Find(ctx context.Context, id primitive.ObjectID) (*Poll, error) {
	poll := &Poll{}
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(poll)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return poll, nil
}

func (s *PollStore) FindMany(ctx context.Context, q PollQuery) ([]*Poll, error) {
	cur, err := s.coll.Find(ctx, q.filter(), options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	polls := []*Poll{}
	if err = cur.All(ctx, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (s *PollStore) ids(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// CloseExpired flips every active poll whose end date is before now to closed and
// returns the ids it flipped.
func (s *PollStore) CloseExpired(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	ids, err := s.ids(ctx, bson.M{"status": PollActive, "endDate": bson.M{"$lt": now}})
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	_, err = s.coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "status": PollActive}, bson.M{
		"$set": bson.M{"status": PollClosed, "updatedAt": now},
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PollStore) ClosedIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return s.ids(ctx, bson.M{"status": PollClosed})
}

// AppendResponse pushes the response and bumps every selected option counter in one update.
func (s *PollStore) AppendResponse(ctx context.Context, id primitive.ObjectID, resp Response) error {
	inc := bson.M{}
	for _, a := range resp.Answers {
		for _, o := range a.SelectedOptions {
			key := fmt.Sprintf("questions.%d.options.%d.votes", a.QuestionIndex, o)
			if v, ok := inc[key]; ok {
				inc[key] = v.(int) + 1
			} else {
				inc[key] = 1
			}
		}
	}

	update := bson.M{"$push": bson.M{"responses": resp}}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocuments
	}
	return nil
}

func (s *PollStore) Update(ctx context.Context, id primitive.ObjectID, c PollChanges) (*Poll, error) {
	poll := &Poll{}
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": c.set()},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(poll)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// SetDeleted writes the soft-delete triplet. Restoring passes nil at and by.
func (s *PollStore) SetDeleted(ctx context.Context, id primitive.ObjectID, deleted bool, at *time.Time, by *primitive.ObjectID) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"isDeleted": deleted, "deletedAt": at, "deletedBy": by},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *PollStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
