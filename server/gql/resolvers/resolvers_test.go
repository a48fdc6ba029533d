package resolvers

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/graph-gophers/graphql-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/polls"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"github.com/troydota/api.civic.komodohype.dev/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeHub struct {
	mtx  sync.Mutex
	subs map[string]chan string
	gone chan string
}

func newFakeHub() *fakeHub {
	return &fakeHub{subs: map[string]chan string{}, gone: make(chan string, 1)}
}

func (h *fakeHub) Subscribe(_ context.Context, channel string, ch chan string) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.subs[channel] = ch
	return nil
}

func (h *fakeHub) Unsubscribe(_ context.Context, channel string, _ chan string) error {
	h.mtx.Lock()
	delete(h.subs, channel)
	h.mtx.Unlock()
	h.gone <- channel
	return nil
}

func (h *fakeHub) send(channel, payload string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.subs[channel] <- payload
}

type quota struct {
	left int
}

func (q *quota) Allow(primitive.ObjectID) bool {
	q.left--
	return q.left >= 0
}

type fixture struct {
	schema   *graphql.Schema
	manager  *polls.Manager
	store    *testutil.PollStore
	hub      *fakeHub
	admin    auth.Viewer
	resident auth.Viewer
	pollID   string
}

func newFixture(t *testing.T, limiter Limiter) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewPollStore(),
		hub:      newFakeHub(),
		admin:    auth.Viewer{ID: primitive.NewObjectID(), Role: mongo.RoleAdmin},
		resident: auth.Viewer{ID: primitive.NewObjectID(), Role: "resident"},
	}
	events := &testutil.Publisher{}
	dir := &testutil.Directory{IDs: []primitive.ObjectID{f.resident.ID}}
	tracker := notifications.New(testutil.NewNotificationStore(), dir, f.store, events)
	f.manager = polls.New(f.store, tracker, events)

	s, err := os.ReadFile("../schema/schema.gql")
	require.NoError(t, err)
	f.schema = graphql.MustParseSchema(string(s), &RootResolver{polls: f.manager, hub: f.hub, limiter: limiter}, graphql.UseFieldResolvers())

	v, err := f.manager.Create(context.Background(), polls.CreateInput{
		Title: "Recycling pickup",
		Questions: []polls.QuestionInput{
			{Question: "Which day?", Type: mongo.QuestionSingle, Options: []polls.OptionInput{{Text: "Monday"}, {Text: "Thursday"}}},
			{Question: "Anything else?", Type: mongo.QuestionText},
		},
	}, f.admin)
	require.NoError(t, err)
	f.pollID = v.ID.Hex()
	return f
}

func (f *fixture) exec(t *testing.T, viewer auth.Viewer, query string, out interface{}) []string {
	t.Helper()
	ctx := auth.WithViewer(context.Background(), viewer)
	res := f.schema.Exec(ctx, query, "", map[string]interface{}{"id": f.pollID})
	msgs := make([]string, len(res.Errors))
	for i, e := range res.Errors {
		msgs[i] = e.Message
	}
	if out != nil && len(res.Data) > 0 {
		require.NoError(t, json.Unmarshal(res.Data, out))
	}
	return msgs
}

const voteMutation = `mutation($id: String!) {
	vote(id: $id, answers: [{questionIndex: 0, selectedOptions: [1]}, {questionIndex: 1, textAnswer: "earlier please"}]) {
		hasVoted
		totalResponses
		voteEndedReason
		questions { options { votes } }
	}
}`

type pollData struct {
	HasVoted        bool    `json:"hasVoted"`
	CanVote         bool    `json:"canVote"`
	TotalResponses  int     `json:"totalResponses"`
	VoteEndedReason *string `json:"voteEndedReason"`
	Questions       []struct {
		Options []struct {
			Votes int `json:"votes"`
		} `json:"options"`
	} `json:"questions"`
}

func TestVoteMutation(t *testing.T) {
	f := newFixture(t, nil)

	var out struct{ Vote pollData }
	require.Empty(t, f.exec(t, f.resident, voteMutation, &out))
	assert.True(t, out.Vote.HasVoted)
	assert.Equal(t, 1, out.Vote.TotalResponses)
	require.NotNil(t, out.Vote.VoteEndedReason)
	assert.Equal(t, polls.ReasonAlreadyVoted, *out.Vote.VoteEndedReason)
	assert.Equal(t, 0, out.Vote.Questions[0].Options[0].Votes)
	assert.Equal(t, 1, out.Vote.Questions[0].Options[1].Votes)

	errs := f.exec(t, f.resident, voteMutation, nil)
	assert.Equal(t, []string{"You have already voted in this poll"}, errs)
}

func TestVoteMutationLimited(t *testing.T) {
	f := newFixture(t, &quota{left: 0})

	errs := f.exec(t, f.resident, voteMutation, nil)
	assert.Equal(t, []string{errVotingTooQuickly.Error()}, errs)
	id, err := primitive.ObjectIDFromHex(f.pollID)
	require.NoError(t, err)
	assert.Empty(t, f.store.Get(id).Responses)
}

func TestAnswerInput(t *testing.T) {
	q, text := int32(2), "yes"
	opts := []int32{0, 3}

	a := answerInput{QuestionIndex: &q, SelectedOptions: &opts, TextAnswer: &text}.answer()
	assert.Equal(t, polls.AnswerStructured, a.Kind)
	require.NotNil(t, a.QuestionIndex)
	assert.Equal(t, 2, *a.QuestionIndex)
	assert.Equal(t, []int{0, 3}, a.SelectedOptions)
	assert.Equal(t, "yes", a.Text)

	a = answerInput{}.answer()
	assert.Nil(t, a.QuestionIndex)
	assert.Nil(t, a.SelectedOptions)
	assert.Equal(t, []int{}, a.Normalize(4).SelectedOptions)
	assert.Equal(t, 4, a.Normalize(4).QuestionIndex)
}

func TestPollQueries(t *testing.T) {
	f := newFixture(t, nil)

	var one struct{ Poll *pollData }
	require.Empty(t, f.exec(t, f.resident, `query($id: String!) { poll(id: $id) { canVote hasVoted totalResponses } }`, &one))
	require.NotNil(t, one.Poll)
	assert.True(t, one.Poll.CanVote)
	assert.False(t, one.Poll.HasVoted)

	var missing struct{ Poll *pollData }
	require.Empty(t, f.exec(t, f.resident, `{ poll(id: "not-an-id") { canVote } }`, &missing))
	assert.Nil(t, missing.Poll)

	errs := f.exec(t, f.resident, `{ poll(id: "64b7f0c2a1b2c3d4e5f60718") { canVote } }`, nil)
	assert.Equal(t, []string{"Poll not found"}, errs)

	var list struct{ Polls []pollData }
	require.Empty(t, f.exec(t, f.resident, `{ polls(status: "active") { canVote } }`, &list))
	assert.Len(t, list.Polls, 1)

	require.Empty(t, f.exec(t, f.resident, `{ polls(status: "closed") { canVote } }`, &list))
	assert.Empty(t, list.Polls)
}

func TestResultsQuery(t *testing.T) {
	f := newFixture(t, nil)
	require.Empty(t, f.exec(t, f.resident, voteMutation, nil))

	const query = `query($id: String!) {
		results(id: $id) {
			totalResponses
			questions { textAnswers options { votes percentage } }
		}
	}`

	errs := f.exec(t, f.resident, query, nil)
	require.Len(t, errs, 1)

	var out struct {
		Results struct {
			TotalResponses int `json:"totalResponses"`
			Questions      []struct {
				TextAnswers []string `json:"textAnswers"`
				Options     []struct {
					Votes      int     `json:"votes"`
					Percentage float64 `json:"percentage"`
				} `json:"options"`
			} `json:"questions"`
		}
	}
	require.Empty(t, f.exec(t, f.admin, query, &out))
	assert.Equal(t, 1, out.Results.TotalResponses)
	assert.Equal(t, 100.0, out.Results.Questions[0].Options[1].Percentage)
	assert.Equal(t, 0.0, out.Results.Questions[0].Options[0].Percentage)
	assert.Equal(t, []string{"earlier please"}, out.Results.Questions[1].TextAnswers)
	assert.Empty(t, out.Results.Questions[0].TextAnswers)
}

func TestInternalErrorsKeepTheirMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Err = errors.New("mongo down")

	errs := f.exec(t, f.admin, `query($id: String!) { poll(id: $id) { canVote } }`, nil)
	assert.Equal(t, []string{"mongo down"}, errs)
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t, nil)

	res := f.schema.Exec(context.Background(), `{ polls { canVote } }`, "", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errUnauthenticated.Error(), res.Errors[0].Message)
}

func next(t *testing.T, ch <-chan interface{}) pollData {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "subscription closed")
		res, ok := v.(*graphql.Response)
		require.True(t, ok)
		require.Empty(t, res.Errors)
		var out struct{ Watch pollData }
		require.NoError(t, json.Unmarshal(res.Data, &out))
		return out.Watch
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription payload")
	}
	return pollData{}
}

func TestWatchSubscription(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(auth.WithViewer(context.Background(), f.resident))
	defer cancel()

	out, err := f.schema.Subscribe(ctx, `subscription($id: String!) { watch(id: $id) { totalResponses } }`, "", map[string]interface{}{"id": f.pollID})
	require.NoError(t, err)

	assert.Equal(t, 0, next(t, out).TotalResponses)

	require.Empty(t, f.exec(t, f.resident, voteMutation, nil))
	id, err := primitive.ObjectIDFromHex(f.pollID)
	require.NoError(t, err)
	channel := redis.PollVoteChannel(id)
	f.hub.send(channel, "{}")

	assert.Equal(t, 1, next(t, out).TotalResponses)

	cancel()
	select {
	case got := <-f.hub.gone:
		assert.Equal(t, channel, got)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not unsubscribe")
	}
}

func TestWatchWithoutHub(t *testing.T) {
	f := newFixture(t, nil)
	s, err := os.ReadFile("../schema/schema.gql")
	require.NoError(t, err)
	schema := graphql.MustParseSchema(string(s), New(f.manager, nil, nil), graphql.UseFieldResolvers())

	ctx := auth.WithViewer(context.Background(), f.resident)
	out, err := schema.Subscribe(ctx, `subscription($id: String!) { watch(id: $id) { totalResponses } }`, "", map[string]interface{}{"id": f.pollID})
	require.NoError(t, err)

	assert.Equal(t, 0, next(t, out).TotalResponses)
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}
