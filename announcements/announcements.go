package announcements

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store interface {
	Insert(ctx context.Context, a *mongo.Announcement) error
	Find(ctx context.Context, id primitive.ObjectID) (*mongo.Announcement, error)
	FindMany(ctx context.Context, includeDeleted bool) ([]*mongo.Announcement, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
}

type Notifier interface {
	NotifyResidents(ctx context.Context, p notifications.Payload) (int, error)
}

type Input struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	Category string `json:"category"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func New(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in Input, viewer auth.Viewer) (*mongo.Announcement, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can post announcements")
	}
	if err := apierr.Validate(in); err != nil {
		return nil, err
	}

	a := &mongo.Announcement{
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		Priority:  in.Priority,
		CreatedBy: viewer.ID,
		CreatedAt: s.now(),
	}
	if a.Priority == "" {
		a.Priority = "normal"
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}

	id := a.ID
	if _, err := s.notifier.NotifyResidents(ctx, notifications.Payload{
		Type:              mongo.NotificationAnnouncement,
		Title:             a.Title,
		Message:           a.Content,
		Priority:          a.Priority,
		RelatedEntityType: mongo.EntityAnnouncement,
		RelatedEntityID:   &id,
	}); err != nil {
		log.Errorf("announcement fan-out, err=%v", err)
	}

	return a, nil
}

// List returns newest first. Deleted announcements are only listed for admins who ask.
func (s *Service) List(ctx context.Context, viewer auth.Viewer, includeDeleted bool) ([]*mongo.Announcement, error) {
	return s.store.FindMany(ctx, includeDeleted && viewer.IsAdmin())
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) (*mongo.Announcement, error) {
	a, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil || (a.IsDeleted && !viewer.IsAdmin()) {
		return nil, apierr.NotFound("Announcement not found")
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) error {
	if !viewer.IsAdmin() {
		return apierr.Forbidden("Only administrators can delete announcements")
	}
	found, err := s.store.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Announcement not found")
	}
	return nil
}
