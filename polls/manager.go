// Package polls owns poll status transitions, soft deletion, voting and tallying.
//
// Polls are closed lazily: List runs a reconciliation sweep that closes every active poll
// whose end date has passed and marks notifications about closed polls read. A poll past
// its end date therefore stays active in storage until the next List.
package polls

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultDuration = 7 * 24 * time.Hour

type Store interface {
	Insert(ctx context.Context, poll *mongo.Poll) error
	Find(ctx context.Context, id primitive.ObjectID) (*mongo.Poll, error)
	FindMany(ctx context.Context, q mongo.PollQuery) ([]*mongo.Poll, error)
	CloseExpired(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)
	ClosedIDs(ctx context.Context) ([]primitive.ObjectID, error)
	AppendResponse(ctx context.Context, id primitive.ObjectID, resp mongo.Response) error
	Update(ctx context.Context, id primitive.ObjectID, c mongo.PollChanges) (*mongo.Poll, error)
	SetDeleted(ctx context.Context, id primitive.ObjectID, deleted bool, at *time.Time, by *primitive.ObjectID) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Notifier is the slice of the notification tracker the manager drives.
type Notifier interface {
	NotifyResidents(ctx context.Context, p notifications.Payload) (int, error)
	MarkReadWhere(ctx context.Context, f mongo.NotificationFilter) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// VoteEvent is published on the poll's vote channel after every accepted vote.
type VoteEvent struct {
	PollID  string         `json:"pollId"`
	Answers []mongo.Answer `json:"answers"`
}

type Manager struct {
	store    Store
	notifier Notifier
	events   Publisher
	now      func() time.Time
}

func New(store Store, notifier Notifier, events Publisher) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		events:   events,
		now:      time.Now,
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

var logger = log.WithField("component", "polls")

type OptionInput struct {
	Text string `json:"text" validate:"required"`
}

type QuestionInput struct {
	Question string             `json:"question" validate:"required"`
	Type     mongo.QuestionType `json:"type" validate:"omitempty,oneof=single multiple text"`
	Options  []OptionInput      `json:"options" validate:"dive"`
}

type CreateInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Questions   []QuestionInput `json:"questions" validate:"required,min=1,dive"`
	StartDate   *time.Time      `json:"startDate"`
	EndDate     *time.Time      `json:"endDate"`
	IsAnonymous bool            `json:"isAnonymous"`
}

type UpdateInput struct {
	Title       *string           `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string           `json:"description"`
	Questions   []QuestionInput   `json:"questions" validate:"omitempty,min=1,dive"`
	Status      *mongo.PollStatus `json:"status" validate:"omitempty,oneof=draft active closed archived"`
	StartDate   *time.Time        `json:"startDate"`
	EndDate     *time.Time        `json:"endDate"`
	IsAnonymous *bool             `json:"isAnonymous"`
}

func buildQuestions(in []QuestionInput) ([]mongo.Question, error) {
	out := make([]mongo.Question, len(in))
	for i, q := range in {
		typ := q.Type
		if typ == "" {
			typ = mongo.QuestionSingle
		}
		options := make([]mongo.Option, 0, len(q.Options))
		if typ != mongo.QuestionText {
			if len(q.Options) < 2 {
				return nil, apierr.Validation("question %d needs at least two options", i)
			}
			for _, o := range q.Options {
				options = append(options, mongo.Option{Text: o.Text})
			}
		}
		out[i] = mongo.Question{Question: q.Question, Type: typ, Options: options}
	}
	return out, nil
}

func requireAdmin(viewer auth.Viewer) error {
	if !viewer.IsAdmin() {
		return apierr.Forbidden("Only administrators can manage polls")
	}
	return nil
}

// Create stores a new poll as active and fans a "poll" notification out to every resident.
// A failed fan-out is logged; the poll still counts as created.
func (m *Manager) Create(ctx context.Context, in CreateInput, creator auth.Viewer) (*View, error) {
	if err := requireAdmin(creator); err != nil {
		return nil, err
	}
	if err := apierr.Validate(in); err != nil {
		return nil, err
	}
	questions, err := buildQuestions(in.Questions)
	if err != nil {
		return nil, err
	}

	now := m.now()
	poll := &mongo.Poll{
		Title:       in.Title,
		Description: in.Description,
		Questions:   questions,
		Responses:   []mongo.Response{},
		Status:      mongo.PollActive,
		StartDate:   now,
		EndDate:     now.Add(DefaultDuration),
		IsAnonymous: in.IsAnonymous,
		CreatedBy:   creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.StartDate != nil {
		poll.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		poll.EndDate = *in.EndDate
	}

	if err = m.store.Insert(ctx, poll); err != nil {
		return nil, err
	}

	message := poll.Description
	if message == "" {
		message = "A new poll is open for your vote."
	}
	id := poll.ID
	if _, err := m.notifier.NotifyResidents(ctx, notifications.Payload{
		Type:              mongo.NotificationPoll,
		Title:             "New poll: " + poll.Title,
		Message:           message,
		Priority:          "normal",
		RelatedEntityType: mongo.EntityPoll,
		RelatedEntityID:   &id,
	}); err != nil {
		logger.Errorf("fan-out, poll=%s err=%v", id.Hex(), err)
	}

	return m.view(poll, creator), nil
}

// ListOptions narrows List. Admins see soft-deleted polls unless ExcludeDeleted is set;
// residents never do.
type ListOptions struct {
	Status         mongo.PollStatus
	ExcludeDeleted bool
}

// Reconcile closes expired polls and marks notifications about any closed poll read.
func (m *Manager) Reconcile(ctx context.Context) error {
	expired, err := m.store.CloseExpired(ctx, m.now())
	if err != nil {
		return err
	}
	if len(expired) > 0 {
		logger.Infof("closed %d expired polls", len(expired))
		m.markPollsRead(ctx, expired)
	}

	closed, err := m.store.ClosedIDs(ctx)
	if err != nil {
		return err
	}
	if len(closed) > 0 {
		m.markPollsRead(ctx, closed)
	}
	return nil
}

func (m *Manager) markPollsRead(ctx context.Context, ids []primitive.ObjectID) {
	if _, err := m.notifier.MarkReadWhere(ctx, mongo.NotificationFilter{RelatedEntityIDs: ids}); err != nil {
		logger.Errorf("notifications, err=%v", err)
	}
}

// List reconciles first, then applies the viewer's visibility rules.
func (m *Manager) List(ctx context.Context, viewer auth.Viewer, o ListOptions) ([]*View, error) {
	if err := m.Reconcile(ctx); err != nil {
		return nil, err
	}

	q := mongo.PollQuery{Status: o.Status, IncludeDeleted: viewer.IsAdmin() && !o.ExcludeDeleted}
	if !viewer.IsAdmin() && o.Status == mongo.PollActive {
		now := m.now()
		q.OpenAt = &now
	}

	polls, err := m.store.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}

	views := make([]*View, len(polls))
	for i, p := range polls {
		views[i] = m.view(p, viewer)
	}
	return views, nil
}

// find loads a poll the viewer is allowed to see.
func (m *Manager) find(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) (*mongo.Poll, error) {
	poll, err := m.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll == nil || (poll.IsDeleted && !viewer.IsAdmin()) {
		return nil, apierr.NotFound("Poll not found")
	}
	return poll, nil
}

func (m *Manager) Get(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) (*View, error) {
	poll, err := m.find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return m.view(poll, viewer), nil
}

// Vote records one response. The already-voted check and the append are separate
// operations, so two concurrent requests from the same user can both land.
func (m *Manager) Vote(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer, answers []Answer) (*View, error) {
	poll, err := m.find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if poll.Status != mongo.PollActive || now.After(poll.EndDate) {
		return nil, apierr.InvalidState("This poll is not accepting votes")
	}
	if !poll.IsAnonymous && hasVoted(poll, viewer.ID) {
		return nil, apierr.AlreadyVoted()
	}

	normalized, err := normalizeAnswers(poll, answers)
	if err != nil {
		return nil, err
	}

	resp := mongo.Response{Answers: normalized, SubmittedAt: now}
	if !poll.IsAnonymous {
		uid := viewer.ID
		resp.UserID = &uid
	}

	if err = m.store.AppendResponse(ctx, poll.ID, resp); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("Poll not found")
		}
		return nil, err
	}

	for _, a := range normalized {
		for _, o := range a.SelectedOptions {
			poll.Questions[a.QuestionIndex].Options[o].Votes++
		}
	}
	poll.Responses = append(poll.Responses, resp)

	uid := viewer.ID
	if _, err := m.notifier.MarkReadWhere(ctx, mongo.NotificationFilter{
		UserID:           &uid,
		Kind:             mongo.EntityPoll,
		RelatedEntityIDs: []primitive.ObjectID{poll.ID},
	}); err != nil {
		logger.Errorf("notifications, err=%v", err)
	}

	if m.events != nil {
		if err := m.events.Publish(ctx, redis.PollVoteChannel(poll.ID), VoteEvent{poll.ID.Hex(), normalized}); err != nil {
			logger.Errorf("redis, err=%v", err)
		}
	}

	return m.view(poll, viewer), nil
}

var transitions = map[mongo.PollStatus][]mongo.PollStatus{
	mongo.PollDraft:  {mongo.PollActive},
	mongo.PollActive: {mongo.PollClosed},
	mongo.PollClosed: {mongo.PollArchived, mongo.PollActive},
}

func canTransition(from, to mongo.PollStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Update applies an admin edit. Questions and anonymity are frozen once anyone has voted.
func (m *Manager) Update(ctx context.Context, id primitive.ObjectID, in UpdateInput, viewer auth.Viewer) (*View, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if err := apierr.Validate(in); err != nil {
		return nil, err
	}

	poll, err := m.find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	c := mongo.PollChanges{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsAnonymous: in.IsAnonymous,
		UpdatedAt:   m.now(),
	}

	if in.Questions != nil {
		if len(poll.Responses) > 0 {
			return nil, apierr.InvalidState("Questions cannot be changed after voting has started")
		}
		if c.Questions, err = buildQuestions(in.Questions); err != nil {
			return nil, err
		}
	}
	if in.IsAnonymous != nil && *in.IsAnonymous != poll.IsAnonymous && len(poll.Responses) > 0 {
		return nil, apierr.InvalidState("Anonymity cannot be changed after voting has started")
	}
	if in.Status != nil {
		if !canTransition(poll.Status, *in.Status) {
			return nil, apierr.InvalidState("A %s poll cannot become %s", poll.Status, *in.Status)
		}
		c.Status = in.Status
	}

	updated, err := m.store.Update(ctx, id, c)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apierr.NotFound("Poll not found")
	}

	if updated.Status == mongo.PollClosed && poll.Status != mongo.PollClosed {
		m.markPollsRead(ctx, []primitive.ObjectID{id})
	}

	return m.view(updated, viewer), nil
}

func (m *Manager) Close(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) (*View, error) {
	closed := mongo.PollClosed
	return m.Update(ctx, id, UpdateInput{Status: &closed}, viewer)
}

// SoftDelete hides the poll from residents without touching its status or responses.
func (m *Manager) SoftDelete(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) error {
	if err := requireAdmin(viewer); err != nil {
		return err
	}
	now := m.now()
	by := viewer.ID
	found, err := m.store.SetDeleted(ctx, id, true, &now, &by)
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Poll not found")
	}
	return nil
}

func (m *Manager) Undo(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) error {
	if err := requireAdmin(viewer); err != nil {
		return err
	}
	found, err := m.store.SetDeleted(ctx, id, false, nil, nil)
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Poll not found")
	}
	return nil
}

// PermanentDelete removes the poll for good. Notifications pointing at it are left in place
// and get cleaned up by the unread poll count.
func (m *Manager) PermanentDelete(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) error {
	if err := requireAdmin(viewer); err != nil {
		return err
	}
	found, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("Poll not found")
	}
	return nil
}
