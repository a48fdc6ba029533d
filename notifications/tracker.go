// Package notifications creates per-user notification records and keeps their read state
// consistent with the entities they point at.
package notifications

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Store interface {
	InsertMany(ctx context.Context, items []*mongo.Notification) error
	Find(ctx context.Context, f mongo.NotificationFilter, skip, limit int64) ([]*mongo.Notification, error)
	Count(ctx context.Context, f mongo.NotificationFilter) (int64, error)
	Recipients(ctx context.Context, f mongo.NotificationFilter) ([]primitive.ObjectID, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error)
	MarkUnread(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	MarkReadWhere(ctx context.Context, f mongo.NotificationFilter, at time.Time) (int64, error)
	Delete(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	DeleteWhere(ctx context.Context, f mongo.NotificationFilter) (int64, error)
	SetAdminNote(ctx context.Context, id primitive.ObjectID, note string) (*mongo.Notification, error)
}

type Directory interface {
	ResidentIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// PollSource is how the unread poll count checks whether a referenced poll is still live.
type PollSource interface {
	Find(ctx context.Context, id primitive.ObjectID) (*mongo.Poll, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// Payload is everything a fan-out copies onto each recipient's record.
type Payload struct {
	Type              mongo.NotificationType
	Title             string
	Message           string
	Priority          string
	RelatedEntityType string
	RelatedEntityID   *primitive.ObjectID
}

// Event is published on a user's channel whenever their notifications change.
type Event struct {
	Event string `json:"event"`
}

type Tracker struct {
	store     Store
	directory Directory
	polls     PollSource
	events    Publisher
	now       func() time.Time
}

func New(store Store, directory Directory, polls PollSource, events Publisher) *Tracker {
	return &Tracker{
		store:     store,
		directory: directory,
		polls:     polls,
		events:    events,
		now:       time.Now,
	}
}

// WithClock replaces the time source; tests use it to pin readAt values.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) changed(ctx context.Context, userIDs ...primitive.ObjectID) {
	if t.events == nil {
		return
	}
	for _, id := range userIDs {
		if err := t.events.Publish(ctx, redis.NotificationChannel(id), Event{"changed"}); err != nil {
			log.WithField("component", "notifications").Errorf("redis, err=%v", err)
		}
	}
}

// CreateForUsers writes one record per user in a single batch. Calling it twice creates
// duplicates.
func (t *Tracker) CreateForUsers(ctx context.Context, userIDs []primitive.ObjectID, p Payload) ([]*mongo.Notification, error) {
	if !p.Type.Valid() {
		return nil, apierr.Validation("unknown notification type %q", p.Type)
	}
	if len(userIDs) == 0 {
		return []*mongo.Notification{}, nil
	}

	now := t.now()
	items := make([]*mongo.Notification, len(userIDs))
	for i, id := range userIDs {
		items[i] = &mongo.Notification{
			UserID:            id,
			Type:              p.Type,
			Title:             p.Title,
			Message:           p.Message,
			Priority:          p.Priority,
			RelatedEntityType: p.RelatedEntityType,
			RelatedEntityID:   p.RelatedEntityID,
			CreatedAt:         now,
		}
	}

	if err := t.store.InsertMany(ctx, items); err != nil {
		return nil, err
	}

	t.changed(ctx, userIDs...)
	return items, nil
}

// NotifyResidents fans p out to every non-admin user and returns how many records it wrote.
func (t *Tracker) NotifyResidents(ctx context.Context, p Payload) (int, error) {
	ids, err := t.directory.ResidentIDs(ctx)
	if err != nil {
		return 0, err
	}
	items, err := t.CreateForUsers(ctx, ids, p)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

type ListOptions struct {
	Page       int64
	Limit      int64
	UnreadOnly bool
	Type       string
}

type Page struct {
	Notifications []*mongo.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Page          int64                 `json:"page"`
	Pages         int64                 `json:"pages"`
	Limit         int64                 `json:"limit"`
}

func (t *Tracker) List(ctx context.Context, userID primitive.ObjectID, o ListOptions) (*Page, error) {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}

	f := mongo.NotificationFilter{UserID: &userID, Kind: o.Type}
	if o.UnreadOnly {
		unread := false
		f.Read = &unread
	}

	total, err := t.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	items, err := t.store.Find(ctx, f, (o.Page-1)*o.Limit, o.Limit)
	if err != nil {
		return nil, err
	}

	return &Page{
		Notifications: items,
		Total:         total,
		Page:          o.Page,
		Pages:         int64(math.Ceil(float64(total) / float64(o.Limit))),
		Limit:         o.Limit,
	}, nil
}

// MarkRead is a no-op on a record that is already read; readAt keeps its first value.
func (t *Tracker) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	found, err := t.store.MarkRead(ctx, id, userID, t.now())
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Notification not found")
	}
	t.changed(ctx, userID)
	return nil
}

func (t *Tracker) MarkUnread(ctx context.Context, id, userID primitive.ObjectID) error {
	found, err := t.store.MarkUnread(ctx, id, userID)
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Notification not found")
	}
	t.changed(ctx, userID)
	return nil
}

// MarkAllReadByFilter marks the user's notifications read whose type or related entity
// type equals kind. An empty kind marks everything.
func (t *Tracker) MarkAllReadByFilter(ctx context.Context, userID primitive.ObjectID, kind string) (int64, error) {
	n, err := t.store.MarkReadWhere(ctx, mongo.NotificationFilter{UserID: &userID, Kind: kind}, t.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.changed(ctx, userID)
	}
	return n, nil
}

// MarkReadWhere is the bulk form used by poll reconciliation. It may span every user;
// each user who had a matching unread notification gets a change event.
func (t *Tracker) MarkReadWhere(ctx context.Context, f mongo.NotificationFilter) (int64, error) {
	unread := false
	f.Read = &unread

	var users []primitive.ObjectID
	if f.UserID != nil {
		users = []primitive.ObjectID{*f.UserID}
	} else if t.events != nil {
		var err error
		if users, err = t.store.Recipients(ctx, f); err != nil {
			return 0, err
		}
	}

	n, err := t.store.MarkReadWhere(ctx, f, t.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.changed(ctx, users...)
	}
	return n, nil
}

// UnreadCount counts unread notifications matching kind. For kind "poll" it first marks
// read every unread poll notification whose poll is gone or no longer active, so the
// badge only ever counts live polls.
func (t *Tracker) UnreadCount(ctx context.Context, userID primitive.ObjectID, kind string) (int64, error) {
	unread := false
	f := mongo.NotificationFilter{UserID: &userID, Kind: kind, Read: &unread}

	if kind != mongo.EntityPoll {
		return t.store.Count(ctx, f)
	}

	items, err := t.store.Find(ctx, f, 0, 0)
	if err != nil {
		return 0, err
	}

	live := map[primitive.ObjectID]bool{}
	stale := []primitive.ObjectID{}
	var count int64
	for _, n := range items {
		if n.RelatedEntityID == nil {
			stale = append(stale, n.ID)
			continue
		}
		active, ok := live[*n.RelatedEntityID]
		if !ok {
			poll, err := t.polls.Find(ctx, *n.RelatedEntityID)
			if err != nil {
				return 0, err
			}
			active = poll != nil && poll.Status == mongo.PollActive
			live[*n.RelatedEntityID] = active
		}
		if active {
			count++
		} else {
			stale = append(stale, n.ID)
		}
	}

	if len(stale) > 0 {
		if _, err = t.store.MarkReadWhere(ctx, mongo.NotificationFilter{IDs: stale, UserID: &userID}, t.now()); err != nil {
			return 0, err
		}
		t.changed(ctx, userID)
	}

	return count, nil
}

func (t *Tracker) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	found, err := t.store.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Notification not found")
	}
	t.changed(ctx, userID)
	return nil
}

func (t *Tracker) DeleteAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	read := true
	n, err := t.store.DeleteWhere(ctx, mongo.NotificationFilter{UserID: &userID, Read: &read})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.changed(ctx, userID)
	}
	return n, nil
}

func (t *Tracker) SetAdminNote(ctx context.Context, viewer auth.Viewer, id primitive.ObjectID, note string) (*mongo.Notification, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can edit notification notes")
	}
	n, err := t.store.SetAdminNote(ctx, id, note)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apierr.NotFound("Notification not found")
	}
	return n, nil
}
