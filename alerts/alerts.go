// Package alerts sends SMS alerts to residents and keeps a log of every send.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gateway delivers one message to a set of users and returns the provider's message id.
type Gateway interface {
	Send(ctx context.Context, recipients []primitive.ObjectID, message string) (string, error)
}

// LogGateway is the stand-in provider: it logs the send and hands back a fresh id.
type LogGateway struct{}

func (LogGateway) Send(_ context.Context, recipients []primitive.ObjectID, message string) (string, error) {
	id := uuid.NewString()
	log.WithField("component", "sms").Infof("queued id=%s recipients=%d len=%d", id, len(recipients), len(message))
	return id, nil
}

type Store interface {
	Insert(ctx context.Context, a *mongo.SMSAlert) error
	FindMany(ctx context.Context, limit int64) ([]*mongo.SMSAlert, error)
}

type Directory interface {
	ResidentIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type Notifier interface {
	CreateForUsers(ctx context.Context, userIDs []primitive.ObjectID, p notifications.Payload) ([]*mongo.Notification, error)
}

type Input struct {
	Message    string               `json:"message" validate:"required,max=480"`
	Recipients []primitive.ObjectID `json:"recipients"`
}

type Service struct {
	store     Store
	gateway   Gateway
	directory Directory
	notifier  Notifier
	now       func() time.Time
}

func New(store Store, gateway Gateway, directory Directory, notifier Notifier) *Service {
	return &Service{store: store, gateway: gateway, directory: directory, notifier: notifier, now: time.Now}
}

// Send delivers the alert and records the outcome. A gateway failure is stored on the
// alert as status "failed" rather than returned; no notifications go out for it.
func (s *Service) Send(ctx context.Context, in Input, viewer auth.Viewer) (*mongo.SMSAlert, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can send SMS alerts")
	}
	if err := apierr.Validate(in); err != nil {
		return nil, err
	}

	recipients := in.Recipients
	if len(recipients) == 0 {
		ids, err := s.directory.ResidentIDs(ctx)
		if err != nil {
			return nil, err
		}
		recipients = ids
	}

	alert := &mongo.SMSAlert{
		Message:    in.Message,
		Recipients: recipients,
		Status:     mongo.SMSSent,
		CreatedBy:  viewer.ID,
		CreatedAt:  s.now(),
	}

	msgID, err := s.gateway.Send(ctx, recipients, in.Message)
	if err != nil {
		log.Errorf("sms gateway, err=%v", err)
		alert.Status, alert.Error = mongo.SMSFailed, err.Error()
	} else {
		alert.GatewayMessageID = msgID
	}

	if err = s.store.Insert(ctx, alert); err != nil {
		return nil, err
	}

	if alert.Status == mongo.SMSSent && len(recipients) > 0 {
		id := alert.ID
		if _, err := s.notifier.CreateForUsers(ctx, recipients, notifications.Payload{
			Type:              mongo.NotificationSMS,
			Title:             "SMS alert",
			Message:           alert.Message,
			Priority:          "high",
			RelatedEntityType: mongo.EntitySMSAlert,
			RelatedEntityID:   &id,
		}); err != nil {
			log.Errorf("sms fan-out, err=%v", err)
		}
	}

	return alert, nil
}

func (s *Service) List(ctx context.Context, viewer auth.Viewer, limit int64) ([]*mongo.SMSAlert, error) {
	if !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Only administrators can view SMS alerts")
	}
	return s.store.FindMany(ctx, limit)
}
