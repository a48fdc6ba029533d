package resolvers

import (
	"context"

	"github.com/troydota/api.civic.komodohype.dev/polls"
)

type answerInput struct {
	QuestionIndex   *int32
	SelectedOptions *[]int32
	TextAnswer      *string
}

func (a answerInput) answer() polls.Answer {
	out := polls.Answer{Kind: polls.AnswerStructured}
	if a.QuestionIndex != nil {
		i := int(*a.QuestionIndex)
		out.QuestionIndex = &i
	}
	if a.SelectedOptions != nil {
		out.SelectedOptions = make([]int, len(*a.SelectedOptions))
		for i, s := range *a.SelectedOptions {
			out.SelectedOptions[i] = int(s)
		}
	}
	if a.TextAnswer != nil {
		out.Text = *a.TextAnswer
	}
	return out
}

func (r *RootResolver) Vote(ctx context.Context, args struct {
	ID      string
	Answers []answerInput
}) (*pollResolver, error) {
	v, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pollID(args.ID)
	if err != nil {
		return nil, err
	}
	if r.limiter != nil && !r.limiter.Allow(v.ID) {
		return nil, errVotingTooQuickly
	}

	answers := make([]polls.Answer, len(args.Answers))
	for i, a := range args.Answers {
		answers[i] = a.answer()
	}

	view, err := r.polls.Vote(ctx, id, v, answers)
	if err != nil {
		return nil, graphError(err)
	}
	return &pollResolver{view}, nil
}
