package rest

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

var ErrVotingTooQuickly = fiber.NewError(fiber.StatusTooManyRequests, "You are voting too quickly, try again shortly.")

// VoteLimiter keeps one token bucket per viewer. A nil limiter or a zero limit allows
// everything.
type VoteLimiter struct {
	mtx     sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[primitive.ObjectID]*rate.Limiter
}

func NewVoteLimiter(limit rate.Limit, burst int) *VoteLimiter {
	if burst < 1 {
		burst = 1
	}
	return &VoteLimiter{limit: limit, burst: burst, buckets: map[primitive.ObjectID]*rate.Limiter{}}
}

func (l *VoteLimiter) Allow(id primitive.ObjectID) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mtx.Lock()
	b, ok := l.buckets[id]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[id] = b
	}
	l.mtx.Unlock()
	return b.Allow()
}

func (l *VoteLimiter) handler(c *fiber.Ctx) error {
	if !l.Allow(viewerOf(c).ID) {
		return ErrVotingTooQuickly
	}
	return c.Next()
}
