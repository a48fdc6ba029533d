// Package reports runs the admin desk for resident-filed cases: incident reports and
// document requests. Both move through a fixed set of statuses and notify their owner
// on every status change.
package reports

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store[T any] interface {
	Insert(ctx context.Context, item *T) (primitive.ObjectID, error)
	FindMany(ctx context.Context, q mongo.CaseQuery) ([]*T, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status, response string, at time.Time) (*T, error)
}

type Notifier interface {
	CreateForUsers(ctx context.Context, userIDs []primitive.ObjectID, p notifications.Payload) ([]*mongo.Notification, error)
}

// Kind describes one case collection.
type Kind[T any] struct {
	Label        string
	Entity       string
	Notification mongo.NotificationType
	Statuses     []string
	// Describe names the case in notification text.
	Describe func(*T) string
}

var IncidentKind = Kind[mongo.Incident]{
	Label:        "Incident report",
	Entity:       mongo.EntityIncident,
	Notification: mongo.NotificationIncidentUpdate,
	Statuses:     mongo.IncidentStatuses,
	Describe:     func(i *mongo.Incident) string { return i.Title },
}

var DocumentKind = Kind[mongo.DocumentRequest]{
	Label:        "Document request",
	Entity:       mongo.EntityDocumentRequest,
	Notification: mongo.NotificationDocumentUpdate,
	Statuses:     mongo.DocumentStatuses,
	Describe:     func(d *mongo.DocumentRequest) string { return d.DocumentType },
}

type Desk[T any, P interface {
	*T
	Fields() *mongo.Case
}] struct {
	kind     Kind[T]
	store    Store[T]
	notifier Notifier
	now      func() time.Time
}

func NewDesk[T any, P interface {
	*T
	Fields() *mongo.Case
}](kind Kind[T], store Store[T], notifier Notifier) *Desk[T, P] {
	return &Desk[T, P]{kind: kind, store: store, notifier: notifier, now: time.Now}
}

type (
	Incidents = Desk[mongo.Incident, *mongo.Incident]
	Documents = Desk[mongo.DocumentRequest, *mongo.DocumentRequest]
)

func NewIncidents(store Store[mongo.Incident], notifier Notifier) *Incidents {
	return NewDesk[mongo.Incident, *mongo.Incident](IncidentKind, store, notifier)
}

func NewDocuments(store Store[mongo.DocumentRequest], notifier Notifier) *Documents {
	return NewDesk[mongo.DocumentRequest, *mongo.DocumentRequest](DocumentKind, store, notifier)
}

func (d *Desk[T, P]) WithClock(now func() time.Time) *Desk[T, P] {
	d.now = now
	return d
}

// Create files a new case for the viewer. Client-supplied bookkeeping fields are ignored.
func (d *Desk[T, P]) Create(ctx context.Context, item *T, viewer auth.Viewer) (*T, error) {
	if err := apierr.Validate(item); err != nil {
		return nil, err
	}

	now := d.now()
	*P(item).Fields() = mongo.Case{
		UserID:    viewer.ID,
		Status:    d.kind.Statuses[0],
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := d.store.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	P(item).Fields().ID = id
	return item, nil
}

func (d *Desk[T, P]) ListMine(ctx context.Context, viewer auth.Viewer) ([]*T, error) {
	uid := viewer.ID
	return d.store.FindMany(ctx, mongo.CaseQuery{UserID: &uid})
}

func (d *Desk[T, P]) ListAll(ctx context.Context, viewer auth.Viewer, status string) ([]*T, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can view all %ss", strings.ToLower(d.kind.Label))
	}
	if status != "" && !d.validStatus(status) {
		return nil, apierr.Validation("status must be one of: %s", strings.Join(d.kind.Statuses, " "))
	}
	return d.store.FindMany(ctx, mongo.CaseQuery{Status: status})
}

func (d *Desk[T, P]) validStatus(status string) bool {
	for _, s := range d.kind.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

type StatusInput struct {
	Status        string `json:"status" validate:"required"`
	AdminResponse string `json:"adminResponse"`
}

// UpdateStatus moves a case to any of its statuses and tells the owner.
func (d *Desk[T, P]) UpdateStatus(ctx context.Context, id primitive.ObjectID, in StatusInput, viewer auth.Viewer) (*T, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can update a %s", strings.ToLower(d.kind.Label))
	}
	if err := apierr.Validate(in); err != nil {
		return nil, err
	}
	if !d.validStatus(in.Status) {
		return nil, apierr.Validation("status must be one of: %s", strings.Join(d.kind.Statuses, " "))
	}

	item, err := d.store.UpdateStatus(ctx, id, in.Status, in.AdminResponse, d.now())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apierr.NotFound("%s not found", d.kind.Label)
	}

	c := P(item).Fields()
	message := d.kind.Label + " \"" + d.kind.Describe(item) + "\" is now " + strings.ReplaceAll(c.Status, "_", " ") + "."
	if c.AdminResponse != "" {
		message += " " + c.AdminResponse
	}
	related := c.ID
	if _, err := d.notifier.CreateForUsers(ctx, []primitive.ObjectID{c.UserID}, notifications.Payload{
		Type:              d.kind.Notification,
		Title:             d.kind.Label + " updated",
		Message:           message,
		Priority:          "normal",
		RelatedEntityType: d.kind.Entity,
		RelatedEntityID:   &related,
	}); err != nil {
		log.Errorf("%s fan-out, err=%v", d.kind.Entity, err)
	}

	return item, nil
}
