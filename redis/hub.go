package redis

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// Hub multiplexes one redis subscription across any number of local listeners. The
// redis channel is subscribed with the first listener and dropped with the last.
type Hub struct {
	mtx    sync.Mutex
	subs   map[string][]chan string
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewHub(ctx context.Context, client *redis.Client) *Hub {
	h := &Hub{
		subs:   make(map[string][]chan string),
		pubsub: client.Subscribe(ctx),
		done:   make(chan struct{}),
	}

	go h.run()

	return h
}

func (h *Hub) run() {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.dispatch(msg.Channel, msg.Payload)
		}
	}
}

// dispatch never blocks on a slow listener; a full buffer drops the event.
func (h *Hub) dispatch(channel, payload string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for _, c := range h.subs[channel] {
		select {
		case c <- payload:
		default:
			log.WithField("component", "hub").Warnf("dropped event, channel=%s", channel)
		}
	}
}

func filterSlice(s []chan string, r chan string) []chan string {
	for i, v := range s {
		if v == r {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (h *Hub) Subscribe(ctx context.Context, channel string, ch chan string) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if v, ok := h.subs[channel]; ok {
		h.subs[channel] = append(v, ch)
		return nil
	}
	if err := h.pubsub.Subscribe(ctx, channel); err != nil {
		return err
	}
	h.subs[channel] = []chan string{ch}
	return nil
}

func (h *Hub) Unsubscribe(ctx context.Context, channel string, ch chan string) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	rest := filterSlice(h.subs[channel], ch)
	if len(rest) == 0 {
		delete(h.subs, channel)
		return h.pubsub.Unsubscribe(ctx, channel)
	}
	h.subs[channel] = rest
	return nil
}

func (h *Hub) Close() error {
	close(h.done)
	return h.pubsub.Close()
}
