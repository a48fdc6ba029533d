package resolvers

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/polls"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errUnauthenticated  = errors.New("not signed in")
	errMissingPoll      = errors.New("we don't know what poll that is")
	errVotingTooQuickly = errors.New("You are voting too quickly, try again shortly.")
)

// Subscriber is the part of the redis hub the watch subscription needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, ch chan string) error
	Unsubscribe(ctx context.Context, channel string, ch chan string) error
}

// Limiter throttles votes per viewer.
type Limiter interface {
	Allow(id primitive.ObjectID) bool
}

type RootResolver struct {
	polls   *polls.Manager
	hub     Subscriber
	limiter Limiter
}

func New(manager *polls.Manager, hub *redis.Hub, limiter Limiter) *RootResolver {
	rr := &RootResolver{polls: manager, limiter: limiter}
	if hub != nil {
		rr.hub = hub
	}
	return rr
}

func viewer(ctx context.Context) (auth.Viewer, error) {
	v, ok := auth.FromContext(ctx)
	if !ok {
		return v, errUnauthenticated
	}
	return v, nil
}

func pollID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return id, errMissingPoll
	}
	return id, nil
}

// graphError logs unclassified errors. The message reaches the client either way.
func graphError(err error) error {
	if apierr.KindOf(err) == apierr.KindInternal {
		log.Errorf("gql, err=%v", err)
	}
	return err
}
