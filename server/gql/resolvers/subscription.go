package resolvers

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/redis"
)

// Watch emits the poll once, then again after every vote until ctx ends. Without a hub
// it emits once and closes.
func (r *RootResolver) Watch(ctx context.Context, args struct{ ID string }) (<-chan *pollResolver, error) {
	v, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pollID(args.ID)
	if err != nil {
		return nil, err
	}

	view, err := r.polls.Get(ctx, id, v)
	if err != nil {
		return nil, graphError(err)
	}

	rChan := make(chan *pollResolver, 1)
	rChan <- &pollResolver{view}

	if r.hub == nil {
		close(rChan)
		return rChan, nil
	}

	event := redis.PollVoteChannel(id)
	votes := make(chan string, 100)
	if err = r.hub.Subscribe(ctx, event, votes); err != nil {
		log.Errorf("redis, err=%v", err)
		return nil, err
	}

	go func() {
		defer close(rChan)
		defer func() {
			if err := r.hub.Unsubscribe(context.Background(), event, votes); err != nil {
				log.Errorf("redis, err=%v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-votes:
				view, err := r.polls.Get(ctx, id, v)
				if err != nil {
					log.Errorf("watch, poll=%s err=%v", id.Hex(), err)
					return
				}
				select {
				case rChan <- &pollResolver{view}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return rChan, nil
}
