package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client = redis.Client

type Message = redis.Message

const ErrNil = redis.Nil

type PubSub = redis.PubSub

func NewClient(ctx context.Context, uri string) (*redis.Client, error) {
	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func PollVoteChannel(pollID primitive.ObjectID) string {
	return fmt.Sprintf("events:poll:vote:%s", pollID.Hex())
}

func NotificationChannel(userID primitive.ObjectID) string {
	return fmt.Sprintf("events:notifications:%s", userID.Hex())
}

// Events publishes JSON payloads on redis channels.
type Events struct {
	client *redis.Client
}

func NewEvents(client *redis.Client) *Events {
	return &Events{client: client}
}

func (e *Events) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.MarshalToString(payload)
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, channel, data).Err()
}
