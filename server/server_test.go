package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/troydota/api.civic.komodohype.dev/alerts"
	"github.com/troydota/api.civic.komodohype.dev/announcements"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/polls"
	"github.com/troydota/api.civic.komodohype.dev/reports"
	"github.com/troydota/api.civic.komodohype.dev/server/rest"
	"github.com/troydota/api.civic.komodohype.dev/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

var secret = []byte("test-secret")

type harness struct {
	t          *testing.T
	svc        rest.Services
	notes      *testutil.NotificationStore
	admin      string
	resident   string
	residentID primitive.ObjectID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	residentID := primitive.NewObjectID()

	pollStore := testutil.NewPollStore()
	notes := testutil.NewNotificationStore()
	dir := &testutil.Directory{IDs: []primitive.ObjectID{residentID}}
	events := &testutil.Publisher{}
	tracker := notifications.New(notes, dir, pollStore, events)

	h := &harness{
		t:          t,
		notes:      notes,
		residentID: residentID,
		svc: rest.Services{
			Polls:         polls.New(pollStore, tracker, events),
			Notifications: tracker,
			Announcements: announcements.New(&testutil.AnnouncementStore{}, tracker),
			Alerts:        alerts.New(&testutil.SMSAlertStore{}, alerts.LogGateway{}, dir, tracker),
			Incidents:     reports.NewIncidents(&testutil.CaseStore[mongo.Incident, *mongo.Incident]{}, tracker),
			Documents:     reports.NewDocuments(&testutil.CaseStore[mongo.DocumentRequest, *mongo.DocumentRequest]{}, tracker),
			Secret:        secret,
			VoteLimit:     rate.Limit(100),
			VoteBurst:     100,
		},
	}

	var err error
	h.admin, err = auth.Issue(auth.Viewer{ID: primitive.NewObjectID(), Role: mongo.RoleAdmin}, secret, time.Hour)
	require.NoError(t, err)
	h.resident, err = auth.Issue(auth.Viewer{ID: residentID, Role: "resident"}, secret, time.Hour)
	require.NoError(t, err)
	return h
}

func (h *harness) do(method, path, token, body string) (int, map[string]interface{}) {
	h.t.Helper()
	status, raw := h.raw(method, path, token, body)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &out))
	}
	return status, out
}

func (h *harness) raw(method, path, token, body string) (int, []byte) {
	h.t.Helper()
	app := NewApp(h.svc)
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, data
}

func (h *harness) list(path, token string) []map[string]interface{} {
	h.t.Helper()
	status, raw := h.raw(http.MethodGet, path, token, "")
	require.Equal(h.t, http.StatusOK, status)
	var out []map[string]interface{}
	require.NoError(h.t, json.Unmarshal(raw, &out))
	return out
}

const pollBody = `{
	"title": "Library hours",
	"questions": [
		{"question": "Open on Sundays?", "type": "single", "options": [{"text": "Yes"}, {"text": "No"}]},
		{"question": "Anything else?", "type": "text"}
	]
}`

func (h *harness) createPoll() string {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/v1/polls", h.admin, pollBody)
	require.Equal(h.t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodGet, "/v1/polls", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.EqualValues(t, 401, body["status"])

	status, _ = h.do(http.MethodGet, "/v1/polls", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "We don't know what you're looking for.", body["message"])
}

func TestPollFlow(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodPost, "/v1/polls", h.resident, pollBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.EqualValues(t, 403, body["status"])

	status, body = h.do(http.MethodPost, "/v1/polls", h.admin, `{"questions": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title is required", body["message"])

	id := h.createPoll()

	status, body = h.do(http.MethodGet, "/v1/notifications/unread-count?type=poll", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = h.do(http.MethodPost, "/v1/polls/"+id+"/vote", h.resident, `{"answers": [1, "later opening"]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["hasVoted"])
	assert.Equal(t, "already_voted", body["voteEndedReason"])

	status, body = h.do(http.MethodPost, "/v1/polls/"+id+"/vote", h.resident, `{"answers": [0]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "You have already voted in this poll", body["message"])

	status, body = h.do(http.MethodGet, "/v1/notifications/unread-count?type=poll", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])

	status, _ = h.do(http.MethodGet, "/v1/polls/"+id+"/results", h.resident, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.do(http.MethodPost, "/v1/polls/"+id+"/close", h.admin, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", body["status"])

	status, body = h.do(http.MethodPost, "/v1/polls/"+id+"/vote", h.admin, `{"answers": [0]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "This poll is not accepting votes", body["message"])

	status, body = h.do(http.MethodGet, "/v1/polls/"+id+"/results", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["totalResponses"])

	status, _ = h.do(http.MethodPatch, "/v1/polls/"+id, h.admin, `{"status": "draft"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPollDeleteRoutes(t *testing.T) {
	h := newHarness(t)
	id := h.createPoll()

	status, _ := h.do(http.MethodDelete, "/v1/polls/"+id, h.admin, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodGet, "/v1/polls/"+id, h.resident, "")
	assert.Equal(t, http.StatusNotFound, status)

	assert.Len(t, h.list("/v1/polls", h.admin), 1)
	assert.Empty(t, h.list("/v1/polls?excludeDeleted=true", h.admin))
	assert.Empty(t, h.list("/v1/polls", h.resident))

	status, _ = h.do(http.MethodPost, "/v1/polls/"+id+"/undo", h.admin, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodGet, "/v1/polls/"+id, h.resident, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodDelete, "/v1/polls/"+id+"/permanent", h.admin, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodGet, "/v1/polls/"+id, h.admin, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodGet, "/v1/polls/not-an-id", h.admin, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestVoteRateLimit(t *testing.T) {
	h := newHarness(t)
	h.svc.VoteLimit, h.svc.VoteBurst = rate.Every(time.Hour), 1
	app := NewApp(h.svc)
	id := h.createPoll()

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/polls/"+id+"/vote", bytes.NewBufferString(`{"answers": [0]}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+h.resident)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestNotificationRoutes(t *testing.T) {
	h := newHarness(t)
	h.createPoll()

	status, body := h.do(http.MethodGet, "/v1/notifications?limit=5", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["limit"])
	items := body["notifications"].([]interface{})
	require.Len(t, items, 1)
	id := items[0].(map[string]interface{})["id"].(string)

	status, _ = h.do(http.MethodPatch, "/v1/notifications/"+id+"/read", h.admin, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodPatch, "/v1/notifications/"+id+"/read", h.resident, "")
	require.Equal(t, http.StatusOK, status)

	status, body = h.do(http.MethodGet, "/v1/notifications/unread", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, _ = h.do(http.MethodPatch, "/v1/notifications/"+id+"/unread", h.resident, "")
	require.Equal(t, http.StatusOK, status)

	status, body = h.do(http.MethodPatch, "/v1/notifications/read-all", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["updated"])

	status, _ = h.do(http.MethodPatch, "/v1/notifications/"+id+"/admin-note", h.resident, `{"note": "x"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.do(http.MethodPatch, "/v1/notifications/"+id+"/admin-note", h.admin, `{"note": "checked"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "checked", body["adminNote"])

	status, body = h.do(http.MethodDelete, "/v1/notifications/read", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["deleted"])
	assert.Empty(t, h.notes.All())
}

func TestSocketNeedsUpgrade(t *testing.T) {
	h := newHarness(t)
	status, _ := h.raw(http.MethodGet, "/v1/notifications/ws", h.resident, "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestContentRoutes(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodPost, "/v1/announcements", h.admin, `{"title": "Fair", "content": "Saturday at noon"}`)
	require.Equal(t, http.StatusCreated, status, body)
	annID := body["id"].(string)

	status, body = h.do(http.MethodGet, "/v1/announcements/"+annID, h.resident, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Fair", body["title"])

	status, body = h.do(http.MethodPost, "/v1/sms-alerts", h.admin, `{"message": "Road closed"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "sent", body["status"])

	status, _ = h.do(http.MethodGet, "/v1/sms-alerts", h.resident, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.do(http.MethodPost, "/v1/incidents", h.resident, `{"title": "Pothole", "description": "Deep one", "category": "roads"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "pending", body["status"])
	incidentID := body["id"].(string)

	status, body = h.do(http.MethodPatch, "/v1/incidents/"+incidentID+"/status", h.admin, `{"status": "resolved", "adminResponse": "Filled"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "resolved", body["status"])

	status, _ = h.do(http.MethodPatch, "/v1/incidents/"+incidentID+"/status", h.admin, `{"status": "ready"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = h.do(http.MethodPost, "/v1/documents", h.resident, `{"documentType": "permit", "purpose": "fence"}`)
	require.Equal(t, http.StatusCreated, status, body)

	status, raw := h.raw(http.MethodGet, "/v1/documents/mine", h.resident, "")
	require.Equal(t, http.StatusOK, status)
	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &docs))
	assert.Len(t, docs, 1)

	unread, err := h.svc.Notifications.UnreadCount(context.Background(), h.residentID, string(mongo.NotificationIncidentUpdate))
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}
