package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

const (
	CollectionUsers         = "users"
	CollectionPolls         = "polls"
	CollectionNotifications = "notifications"
	CollectionAnnouncements = "announcements"
	CollectionSMSAlerts     = "smsalerts"
	CollectionIncidents     = "incidents"
	CollectionDocuments     = "documentrequests"
)

var ErrNoDocuments = mongo.ErrNoDocuments

type Database = mongo.Database

// Connect dials and pings the server, then makes sure the indexes the stores rely on exist.
// Index failures are logged, not returned; queries still work without them.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(database)
	if err = EnsureIndexes(ctx, db); err != nil {
		log.Errorf("mongodb, err=%v", err)
	}

	return client, db, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: bson.M{"role": 1}},
		},
		CollectionPolls: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}}},
			{Keys: bson.M{"isDeleted": 1}},
		},
		CollectionNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.M{"relatedEntityId": 1}},
		},
		CollectionIncidents: {
			{Keys: bson.M{"userId": 1}},
		},
		CollectionDocuments: {
			{Keys: bson.M{"userId": 1}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
