package resolvers

import (
	"context"
	"time"

	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/polls"
)

func (r *RootResolver) Poll(ctx context.Context, args struct{ ID string }) (*pollResolver, error) {
	v, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pollID(args.ID)
	if err != nil {
		return nil, nil
	}

	view, err := r.polls.Get(ctx, id, v)
	if err != nil {
		return nil, graphError(err)
	}
	return &pollResolver{view}, nil
}

func (r *RootResolver) Polls(ctx context.Context, args struct{ Status *string }) ([]*pollResolver, error) {
	v, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	o := polls.ListOptions{}
	if args.Status != nil {
		o.Status = mongo.PollStatus(*args.Status)
	}

	views, err := r.polls.List(ctx, v, o)
	if err != nil {
		return nil, graphError(err)
	}
	out := make([]*pollResolver, len(views))
	for i, view := range views {
		out[i] = &pollResolver{view}
	}
	return out, nil
}

func (r *RootResolver) Results(ctx context.Context, args struct{ ID string }) (*resultsResolver, error) {
	v, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pollID(args.ID)
	if err != nil {
		return nil, err
	}

	res, err := r.polls.Results(ctx, id, v)
	if err != nil {
		return nil, graphError(err)
	}
	return &resultsResolver{res}, nil
}

type pollResolver struct {
	view *polls.View
}

func (r *pollResolver) ID() string {
	return r.view.ID.Hex()
}

func (r *pollResolver) Title() string {
	return r.view.Title
}

func (r *pollResolver) Description() string {
	return r.view.Description
}

func (r *pollResolver) Status() string {
	return string(r.view.Status)
}

func (r *pollResolver) StartDate() string {
	return r.view.StartDate.Format(time.RFC3339)
}

func (r *pollResolver) EndDate() string {
	return r.view.EndDate.Format(time.RFC3339)
}

func (r *pollResolver) IsAnonymous() bool {
	return r.view.IsAnonymous
}

func (r *pollResolver) IsDeleted() bool {
	return r.view.IsDeleted
}

func (r *pollResolver) Questions() []*questionResolver {
	out := make([]*questionResolver, len(r.view.Questions))
	for i := range r.view.Questions {
		out[i] = &questionResolver{&r.view.Questions[i]}
	}
	return out
}

func (r *pollResolver) TotalResponses() int32 {
	return int32(r.view.TotalResponses)
}

func (r *pollResolver) HasVoted() bool {
	return r.view.HasVoted
}

func (r *pollResolver) CanVote() bool {
	return r.view.CanVote
}

func (r *pollResolver) VoteEndedReason() *string {
	if r.view.VoteEndedReason == "" {
		return nil
	}
	s := r.view.VoteEndedReason
	return &s
}

func (r *pollResolver) CreatedAt() string {
	return r.view.CreatedAt.Format(time.RFC3339)
}

type questionResolver struct {
	q *mongo.Question
}

func (r *questionResolver) Question() string {
	return r.q.Question
}

func (r *questionResolver) Type() string {
	return string(r.q.Type)
}

func (r *questionResolver) Options() []*optionResolver {
	out := make([]*optionResolver, len(r.q.Options))
	for i, o := range r.q.Options {
		out[i] = &optionResolver{o.Text, int32(o.Votes)}
	}
	return out
}

type optionResolver struct {
	text  string
	votes int32
}

func (r *optionResolver) Text() string {
	return r.text
}

func (r *optionResolver) Votes() int32 {
	return r.votes
}

type resultsResolver struct {
	res *polls.Results
}

func (r *resultsResolver) PollID() string {
	return r.res.PollID.Hex()
}

func (r *resultsResolver) Title() string {
	return r.res.Title
}

func (r *resultsResolver) Status() string {
	return string(r.res.Status)
}

func (r *resultsResolver) TotalResponses() int32 {
	return int32(r.res.TotalResponses)
}

func (r *resultsResolver) Questions() []*questionResultResolver {
	out := make([]*questionResultResolver, len(r.res.Questions))
	for i := range r.res.Questions {
		out[i] = &questionResultResolver{&r.res.Questions[i]}
	}
	return out
}

type questionResultResolver struct {
	q *polls.QuestionResult
}

func (r *questionResultResolver) Question() string {
	return r.q.Question
}

func (r *questionResultResolver) Type() string {
	return string(r.q.Type)
}

func (r *questionResultResolver) Options() []*optionResultResolver {
	out := make([]*optionResultResolver, len(r.q.Options))
	for i := range r.q.Options {
		out[i] = &optionResultResolver{&r.q.Options[i]}
	}
	return out
}

func (r *questionResultResolver) TextAnswers() []string {
	if r.q.TextAnswers == nil {
		return []string{}
	}
	return r.q.TextAnswers
}

type optionResultResolver struct {
	o *polls.OptionResult
}

func (r *optionResultResolver) Text() string {
	return r.o.Text
}

func (r *optionResultResolver) Votes() int32 {
	return int32(r.o.Votes)
}

func (r *optionResultResolver) Percentage() float64 {
	return r.o.Percentage
}
