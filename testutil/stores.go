// Package testutil holds in-memory stand-ins for the mongo stores and the redis publisher.
// They follow the same contracts (nil, nil for a missing document, copies on every read)
// so services can be tested without a database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func clonePoll(p *mongo.Poll) *mongo.Poll {
	c := *p
	c.Questions = make([]mongo.Question, len(p.Questions))
	for i, q := range p.Questions {
		q.Options = append([]mongo.Option(nil), q.Options...)
		c.Questions[i] = q
	}
	c.Responses = make([]mongo.Response, len(p.Responses))
	for i, r := range p.Responses {
		r.Answers = append([]mongo.Answer(nil), r.Answers...)
		c.Responses[i] = r
	}
	return &c
}

type PollStore struct {
	mu    sync.Mutex
	polls map[primitive.ObjectID]*mongo.Poll
	Err   error
}

func NewPollStore() *PollStore {
	return &PollStore{polls: map[primitive.ObjectID]*mongo.Poll{}}
}

// Put stores p as-is, assigning an id when it has none.
func (s *PollStore) Put(p *mongo.Poll) *mongo.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.polls[p.ID] = clonePoll(p)
	return p
}

func (s *PollStore) Get(id primitive.ObjectID) *mongo.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.polls[id]; ok {
		return clonePoll(p)
	}
	return nil
}

func (s *PollStore) Insert(_ context.Context, p *mongo.Poll) error {
	if s.Err != nil {
		return s.Err
	}
	s.Put(p)
	return nil
}

func (s *PollStore) Find(_ context.Context, id primitive.ObjectID) (*mongo.Poll, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Get(id), nil
}

func (s *PollStore) FindMany(_ context.Context, q mongo.PollQuery) ([]*mongo.Poll, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*mongo.Poll{}
	for _, p := range s.polls {
		if q.Matches(p) {
			out = append(out, clonePoll(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PollStore) CloseExpired(_ context.Context, now time.Time) ([]primitive.ObjectID, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, p := range s.polls {
		if p.Status == mongo.PollActive && p.EndDate.Before(now) {
			p.Status = mongo.PollClosed
			p.UpdatedAt = now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *PollStore) ClosedIDs(_ context.Context) ([]primitive.ObjectID, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, p := range s.polls {
		if p.Status == mongo.PollClosed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *PollStore) AppendResponse(_ context.Context, id primitive.ObjectID, resp mongo.Response) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	for _, a := range resp.Answers {
		for _, o := range a.SelectedOptions {
			p.Questions[a.QuestionIndex].Options[o].Votes++
		}
	}
	p.Responses = append(p.Responses, resp)
	return nil
}

func (s *PollStore) Update(_ context.Context, id primitive.ObjectID, c mongo.PollChanges) (*mongo.Poll, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, nil
	}
	c.Apply(p)
	return clonePoll(p), nil
}

func (s *PollStore) SetDeleted(_ context.Context, id primitive.ObjectID, deleted bool, at *time.Time, by *primitive.ObjectID) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return false, nil
	}
	p.IsDeleted, p.DeletedAt, p.DeletedBy = deleted, at, by
	return true, nil
}

func (s *PollStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.polls[id]
	delete(s.polls, id)
	return ok, nil
}

type NotificationStore struct {
	mu        sync.Mutex
	items     []*mongo.Notification
	InsertErr error
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func cloneNotification(n *mongo.Notification) *mongo.Notification {
	c := *n
	return &c
}

// All returns a snapshot of every stored record in insertion order.
func (s *NotificationStore) All() []*mongo.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mongo.Notification, len(s.items))
	for i, n := range s.items {
		out[i] = cloneNotification(n)
	}
	return out
}

func (s *NotificationStore) Get(id primitive.ObjectID) *mongo.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			return cloneNotification(n)
		}
	}
	return nil
}

func (s *NotificationStore) InsertMany(_ context.Context, items []*mongo.Notification) error {
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range items {
		n.ID = primitive.NewObjectID()
		s.items = append(s.items, cloneNotification(n))
	}
	return nil
}

func (s *NotificationStore) matching(f mongo.NotificationFilter) []*mongo.Notification {
	out := []*mongo.Notification{}
	for _, n := range s.items {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s *NotificationStore) Find(_ context.Context, f mongo.NotificationFilter, skip, limit int64) ([]*mongo.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matching(f)
	sort.SliceStable(m, func(i, j int) bool { return m[i].CreatedAt.After(m[j].CreatedAt) })
	if skip >= int64(len(m)) {
		return []*mongo.Notification{}, nil
	}
	m = m[skip:]
	if limit > 0 && limit < int64(len(m)) {
		m = m[:limit]
	}
	out := make([]*mongo.Notification, len(m))
	for i, n := range m {
		out[i] = cloneNotification(n)
	}
	return out, nil
}

func (s *NotificationStore) Count(_ context.Context, f mongo.NotificationFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matching(f))), nil
}

func (s *NotificationStore) Recipients(_ context.Context, f mongo.NotificationFilter) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, n := range s.matching(f) {
		if !seen[n.UserID] {
			seen[n.UserID] = true
			ids = append(ids, n.UserID)
		}
	}
	return ids, nil
}

func (s *NotificationStore) owned(id, userID primitive.ObjectID) *mongo.Notification {
	for _, n := range s.items {
		if n.ID == id && n.UserID == userID {
			return n
		}
	}
	return nil
}

func (s *NotificationStore) MarkRead(_ context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.owned(id, userID)
	if n == nil {
		return false, nil
	}
	if !n.Read {
		n.Read, n.ReadAt = true, &at
	}
	return true, nil
}

func (s *NotificationStore) MarkUnread(_ context.Context, id, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.owned(id, userID)
	if n == nil {
		return false, nil
	}
	n.Read, n.ReadAt = false, nil
	return true, nil
}

func (s *NotificationStore) MarkReadWhere(_ context.Context, f mongo.NotificationFilter, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unread := false
	f.Read = &unread
	var count int64
	for _, n := range s.matching(f) {
		readAt := at
		n.Read, n.ReadAt = true, &readAt
		count++
	}
	return count, nil
}

func (s *NotificationStore) Delete(_ context.Context, id, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id && n.UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *NotificationStore) DeleteWhere(_ context.Context, f mongo.NotificationFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	var count int64
	for _, n := range s.items {
		if f.Matches(n) {
			count++
			continue
		}
		kept = append(kept, n)
	}
	s.items = kept
	return count, nil
}

func (s *NotificationStore) SetAdminNote(_ context.Context, id primitive.ObjectID, note string) (*mongo.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			n.AdminNote = note
			return cloneNotification(n), nil
		}
	}
	return nil, nil
}

// Directory lists a fixed set of resident ids, or fails with Err.
type Directory struct {
	IDs []primitive.ObjectID
	Err error
}

func (d *Directory) ResidentIDs(context.Context) ([]primitive.ObjectID, error) {
	return d.IDs, d.Err
}

// Publisher records every published channel.
type Publisher struct {
	mu       sync.Mutex
	Channels []string
}

func (p *Publisher) Publish(_ context.Context, channel string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Channels = append(p.Channels, channel)
	return nil
}

func (p *Publisher) Count(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Channels {
		if c == channel {
			n++
		}
	}
	return n
}
