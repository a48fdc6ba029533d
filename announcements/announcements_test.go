package announcements

import (
	"context"
	"errors"
	"testing"

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

type notifier struct {
	mock.Mock
}

func (n *notifier) NotifyResidents(ctx context.Context, p notifications.Payload) (int, error) {
	args := n.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

var (
	admin    = auth.Viewer{ID: primitive.NewObjectID(), Role: mongo.RoleAdmin}
	resident = auth.Viewer{ID: primitive.NewObjectID(), Role: "resident"}
)

func TestCreate(t *testing.T) {
	store := &testutil.AnnouncementStore{}
	n := &notifier{}
	n.On("NotifyResidents", mock.Anything, mock.MatchedBy(func(p notifications.Payload) bool {
		return p.Type == mongo.NotificationAnnouncement && p.RelatedEntityType == mongo.EntityAnnouncement && p.RelatedEntityID != nil
	})).Return(3, nil)

	s := New(store, n)
	a, err := s.Create(context.Background(), Input{Title: "Road works", Content: "Main St closed Monday"}, admin)
	require.NoError(t, err)
	assert.False(t, a.ID.IsZero())
	assert.Equal(t, "normal", a.Priority)
	assert.Equal(t, admin.ID, a.CreatedBy)
	n.AssertExpectations(t)
}

func TestCreateRejected(t *testing.T) {
	s := New(&testutil.AnnouncementStore{}, &notifier{})
	ctx := context.Background()

	_, err := s.Create(ctx, Input{Title: "x", Content: "y"}, resident)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = s.Create(ctx, Input{Title: "x"}, admin)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, err = s.Create(ctx, Input{Title: "x", Content: "y", Priority: "urgent"}, admin)
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestCreateSurvivesFanOutFailure(t *testing.T) {
	n := &notifier{}
	n.On("NotifyResidents", mock.Anything, mock.Anything).Return(0, errors.New("boom"))

	_, err := New(&testutil.AnnouncementStore{}, n).Create(context.Background(), Input{Title: "x", Content: "y"}, admin)
	assert.NoError(t, err)
}

func TestDeleteHidesFromResidents(t *testing.T) {
	n := &notifier{}
	n.On("NotifyResidents", mock.Anything, mock.Anything).Return(1, nil)
	s := New(&testutil.AnnouncementStore{}, n)
	ctx := context.Background()

	a, err := s.Create(ctx, Input{Title: "Fair", Content: "Saturday"}, admin)
	require.NoError(t, err)

	assert.True(t, apierr.Is(s.Delete(ctx, a.ID, resident), apierr.KindForbidden))
	require.NoError(t, s.Delete(ctx, a.ID, admin))
	assert.True(t, apierr.Is(s.Delete(ctx, primitive.NewObjectID(), admin), apierr.KindNotFound))

	_, err = s.Get(ctx, a.ID, resident)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
	got, err := s.Get(ctx, a.ID, admin)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	list, err := s.List(ctx, resident, true)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = s.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
