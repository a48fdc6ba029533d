package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type gateway struct {
	mock.Mock
}

func (g *gateway) Send(ctx context.Context, recipients []primitive.ObjectID, message string) (string, error) {
	args := g.Called(ctx, recipients, message)
	return args.String(0), args.Error(1)
}

var admin = auth.Viewer{ID: primitive.NewObjectID(), Role: mongo.RoleAdmin}

type fixture struct {
	service *Service
	store   *testutil.SMSAlertStore
	notes   *testutil.NotificationStore
	dir     *testutil.Directory
}

func newFixture(gw Gateway, residents ...primitive.ObjectID) *fixture {
	f := &fixture{
		store: &testutil.SMSAlertStore{},
		notes: testutil.NewNotificationStore(),
		dir:   &testutil.Directory{IDs: residents},
	}
	tracker := notifications.New(f.notes, f.dir, testutil.NewPollStore(), &testutil.Publisher{})
	f.service = New(f.store, gw, f.dir, tracker)
	return f
}

func TestSendToAllResidents(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	f := newFixture(LogGateway{}, a, b)

	alert, err := f.service.Send(context.Background(), Input{Message: "Boil water notice"}, admin)
	require.NoError(t, err)
	assert.Equal(t, mongo.SMSSent, alert.Status)
	assert.Equal(t, []primitive.ObjectID{a, b}, alert.Recipients)
	_, err = uuid.Parse(alert.GatewayMessageID)
	assert.NoError(t, err)

	notes := f.notes.All()
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, mongo.NotificationSMS, n.Type)
		assert.Equal(t, alert.ID, *n.RelatedEntityID)
	}
}

func TestSendToChosenRecipients(t *testing.T) {
	target := primitive.NewObjectID()
	gw := &gateway{}
	gw.On("Send", mock.Anything, []primitive.ObjectID{target}, "Your permit is ready").Return("gw-1", nil)
	f := newFixture(gw, primitive.NewObjectID(), target)

	alert, err := f.service.Send(context.Background(), Input{Message: "Your permit is ready", Recipients: []primitive.ObjectID{target}}, admin)
	require.NoError(t, err)
	assert.Equal(t, "gw-1", alert.GatewayMessageID)
	require.Len(t, f.notes.All(), 1)
	assert.Equal(t, target, f.notes.All()[0].UserID)
	gw.AssertExpectations(t)
}

func TestSendGatewayFailure(t *testing.T) {
	gw := &gateway{}
	gw.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("provider timeout"))
	f := newFixture(gw, primitive.NewObjectID())

	alert, err := f.service.Send(context.Background(), Input{Message: "Storm warning"}, admin)
	require.NoError(t, err)
	assert.Equal(t, mongo.SMSFailed, alert.Status)
	assert.Equal(t, "provider timeout", alert.Error)
	assert.Empty(t, f.notes.All())

	list, err := f.service.List(context.Background(), admin, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mongo.SMSFailed, list[0].Status)
}

func TestSendRejected(t *testing.T) {
	f := newFixture(LogGateway{}, primitive.NewObjectID())
	ctx := context.Background()
	resident := auth.Viewer{ID: primitive.NewObjectID(), Role: "resident"}

	_, err := f.service.Send(ctx, Input{Message: "hi"}, resident)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = f.service.Send(ctx, Input{}, admin)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, err = f.service.List(ctx, resident, 0)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(LogGateway{}, primitive.NewObjectID())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { now = now.Add(time.Minute); return now }

	for _, m := range []string{"first", "second", "third"} {
		_, err := f.service.Send(context.Background(), Input{Message: m}, admin)
		require.NoError(t, err)
	}

	list, err := f.service.List(context.Background(), admin, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Message)
	assert.Equal(t, "second", list[1].Message)
}
