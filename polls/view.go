package polls

import (
	"context"
	"math"
	"time"

	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reasons a viewer cannot vote, reported in View.VoteEndedReason.
const (
	ReasonClosed       = "closed"
	ReasonNotOpen      = "not_open"
	ReasonExpired      = "expired"
	ReasonAlreadyVoted = "already_voted"
)

// View is a poll as one viewer sees it. The derived fields are computed per request and never stored.
type View struct {
	*mongo.Poll
	TotalResponses  int    `json:"totalResponses"`
	HasVoted        bool   `json:"hasVoted"`
	CanVote         bool   `json:"canVote"`
	VoteEndedReason string `json:"voteEndedReason,omitempty"`
}

func hasVoted(poll *mongo.Poll, userID primitive.ObjectID) bool {
	for _, r := range poll.Responses {
		if r.UserID != nil && *r.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Manager) view(poll *mongo.Poll, viewer auth.Viewer) *View {
	v := &View{
		TotalResponses: len(poll.Responses),
		HasVoted:       !poll.IsAnonymous && hasVoted(poll, viewer.ID),
	}

	switch {
	case poll.Status == mongo.PollDraft:
		v.VoteEndedReason = ReasonNotOpen
	case poll.Status != mongo.PollActive:
		v.VoteEndedReason = ReasonClosed
	case m.now().After(poll.EndDate):
		v.VoteEndedReason = ReasonExpired
	case v.HasVoted:
		v.VoteEndedReason = ReasonAlreadyVoted
	default:
		v.CanVote = true
	}

	if !viewer.IsAdmin() {
		c := *poll
		c.Responses = nil
		poll = &c
	}
	v.Poll = poll
	return v
}

type OptionResult struct {
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

type QuestionResult struct {
	Question    string             `json:"question"`
	Type        mongo.QuestionType `json:"type"`
	Options     []OptionResult     `json:"options"`
	TextAnswers []string           `json:"textAnswers,omitempty"`
}

type Participant struct {
	UserID      primitive.ObjectID `json:"userId"`
	SubmittedAt time.Time          `json:"submittedAt"`
}

type Results struct {
	PollID         primitive.ObjectID `json:"pollId"`
	Title          string             `json:"title"`
	Status         mongo.PollStatus   `json:"status"`
	IsAnonymous    bool               `json:"isAnonymous"`
	TotalResponses int                `json:"totalResponses"`
	Questions      []QuestionResult   `json:"questions"`
	Participants   []Participant      `json:"participants,omitempty"`
}

// percentage rounds to one decimal place. Multiple-choice questions can exceed 100 in total.
func percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*1000) / 10
}

// Results tallies a poll. Residents only see results once the poll is closed.
func (m *Manager) Results(ctx context.Context, id primitive.ObjectID, viewer auth.Viewer) (*Results, error) {
	poll, err := m.find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if poll.Status != mongo.PollClosed && !viewer.IsAdmin() {
		return nil, apierr.Forbidden("Results are available once the poll is closed")
	}

	total := len(poll.Responses)
	res := &Results{
		PollID:         poll.ID,
		Title:          poll.Title,
		Status:         poll.Status,
		IsAnonymous:    poll.IsAnonymous,
		TotalResponses: total,
		Questions:      make([]QuestionResult, len(poll.Questions)),
	}

	for i, q := range poll.Questions {
		qr := QuestionResult{Question: q.Question, Type: q.Type, Options: make([]OptionResult, len(q.Options))}
		for j, o := range q.Options {
			qr.Options[j] = OptionResult{Text: o.Text, Votes: o.Votes, Percentage: percentage(o.Votes, total)}
		}
		res.Questions[i] = qr
	}

	for _, r := range poll.Responses {
		for _, a := range r.Answers {
			if a.TextAnswer != "" && a.QuestionIndex >= 0 && a.QuestionIndex < len(res.Questions) {
				res.Questions[a.QuestionIndex].TextAnswers = append(res.Questions[a.QuestionIndex].TextAnswers, a.TextAnswer)
			}
		}
		if viewer.IsAdmin() && !poll.IsAnonymous && r.UserID != nil {
			res.Participants = append(res.Participants, Participant{UserID: *r.UserID, SubmittedAt: r.SubmittedAt})
		}
	}

	return res, nil
}
