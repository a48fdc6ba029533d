package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AnnouncementStore struct {
	mu    sync.Mutex
	items []*mongo.Announcement
	Err   error
}

func (s *AnnouncementStore) Insert(_ context.Context, a *mongo.Announcement) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = primitive.NewObjectID()
	c := *a
	s.items = append(s.items, &c)
	return nil
}

func (s *AnnouncementStore) Find(_ context.Context, id primitive.ObjectID) (*mongo.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (s *AnnouncementStore) FindMany(_ context.Context, includeDeleted bool) ([]*mongo.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*mongo.Announcement{}
	for i := len(s.items) - 1; i >= 0; i-- {
		if includeDeleted || !s.items[i].IsDeleted {
			c := *s.items[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *AnnouncementStore) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.ID == id {
			a.IsDeleted, a.DeletedAt = true, &at
			return true, nil
		}
	}
	return false, nil
}

type SMSAlertStore struct {
	mu    sync.Mutex
	items []*mongo.SMSAlert
}

func (s *SMSAlertStore) Insert(_ context.Context, a *mongo.SMSAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = primitive.NewObjectID()
	c := *a
	s.items = append(s.items, &c)
	return nil
}

func (s *SMSAlertStore) FindMany(_ context.Context, limit int64) ([]*mongo.SMSAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*mongo.SMSAlert{}
	for i := len(s.items) - 1; i >= 0 && (limit <= 0 || int64(len(out)) < limit); i-- {
		c := *s.items[i]
		out = append(out, &c)
	}
	return out, nil
}

// CaseStore keeps incidents or document requests in memory.
type CaseStore[T any, P interface {
	*T
	Fields() *mongo.Case
}] struct {
	mu    sync.Mutex
	items []*T
}

func (s *CaseStore[T, P]) Insert(_ context.Context, item *T) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *item
	P(&c).Fields().ID = primitive.NewObjectID()
	s.items = append(s.items, &c)
	return P(&c).Fields().ID, nil
}

func (s *CaseStore[T, P]) FindMany(_ context.Context, q mongo.CaseQuery) ([]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*T{}
	for _, item := range s.items {
		if q.Matches(P(item).Fields()) {
			c := *item
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return P(out[i]).Fields().CreatedAt.After(P(out[j]).Fields().CreatedAt)
	})
	return out, nil
}

func (s *CaseStore[T, P]) UpdateStatus(_ context.Context, id primitive.ObjectID, status, response string, at time.Time) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		f := P(item).Fields()
		if f.ID != id {
			continue
		}
		f.Status, f.UpdatedAt = status, at
		if response != "" {
			f.AdminResponse = response
		}
		c := *item
		return &c, nil
	}
	return nil, nil
}
