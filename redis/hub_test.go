package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterSlice(t *testing.T) {
	a, b, c := make(chan string), make(chan string), make(chan string)

	assert.Equal(t, []chan string{a, c}, filterSlice([]chan string{a, b, c}, b))
	assert.Equal(t, []chan string{a}, filterSlice([]chan string{a}, b))
	assert.Empty(t, filterSlice([]chan string{a}, a))
}

func TestChannelNames(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("64b7f0c2a1b2c3d4e5f60718")
	require.NoError(t, err)

	assert.Equal(t, "events:poll:vote:64b7f0c2a1b2c3d4e5f60718", PollVoteChannel(id))
	assert.Equal(t, "events:notifications:64b7f0c2a1b2c3d4e5f60718", NotificationChannel(id))
}

func TestSubscribeFailureLeavesNoListener(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	h := &Hub{subs: map[string][]chan string{}, pubsub: client.Subscribe(ctx), done: make(chan struct{})}
	require.NoError(t, h.pubsub.Close())

	channel := PollVoteChannel(primitive.NewObjectID())
	assert.Error(t, h.Subscribe(ctx, channel, make(chan string, 1)))
	assert.Empty(t, h.subs)

	// the next listener retries the redis subscription
	assert.Error(t, h.Subscribe(ctx, channel, make(chan string, 1)))
	assert.Empty(t, h.subs)
}

func TestHubRoundTrip(t *testing.T) {
	uri := os.Getenv("REDIS_TEST_URI")
	if uri == "" {
		t.Skip("REDIS_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, uri)
	require.NoError(t, err)
	defer client.Close()

	hub := NewHub(ctx, client)
	defer hub.Close()

	ch := make(chan string, 1)
	channel := NotificationChannel(primitive.NewObjectID())
	require.NoError(t, hub.Subscribe(ctx, channel, ch))

	// the SUBSCRIBE round trip is asynchronous
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, NewEvents(client).Publish(ctx, channel, map[string]int{"count": 3}))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"count":3}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, hub.Unsubscribe(ctx, channel, ch))
}
