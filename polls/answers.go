package polls

import (
	"bytes"
	"math"

	jsoniter "github.com/json-iterator/go"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type AnswerKind int

const (
	// AnswerText is the fallback for every shape not listed below, including plain strings.
	AnswerText AnswerKind = iota
	// AnswerIndex is a bare option index: 2
	AnswerIndex
	// AnswerIndices is a list of option indices: [0, 2]
	AnswerIndices
	// AnswerStructured is {"questionIndex":..,"selectedOptions":[..],"textAnswer":".."}
	AnswerStructured
)

// Answer is one element of a vote's "answers" array as the client sent it. Clients
// send several shapes; Normalize turns each into the stored form.
type Answer struct {
	Kind    AnswerKind
	Index   int
	Indices []int

	QuestionIndex   *int
	SelectedOptions []int
	Text            string
}

type structuredAnswer struct {
	QuestionIndex   *int   `json:"questionIndex"`
	SelectedOptions []int  `json:"selectedOptions"`
	TextAnswer      string `json:"textAnswer"`
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*a = Answer{Kind: AnswerText}
	if len(b) == 0 {
		return nil
	}

	switch c := b[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		var f float64
		if err := json.Unmarshal(b, &f); err == nil && f == math.Trunc(f) {
			a.Kind, a.Index = AnswerIndex, int(f)
			return nil
		}
	case c == '[':
		var indices []int
		if err := json.Unmarshal(b, &indices); err == nil {
			a.Kind, a.Indices = AnswerIndices, indices
			return nil
		}
	case c == '{':
		var s structuredAnswer
		if err := json.Unmarshal(b, &s); err == nil {
			a.Kind = AnswerStructured
			a.QuestionIndex, a.SelectedOptions, a.Text = s.QuestionIndex, s.SelectedOptions, s.TextAnswer
			return nil
		}
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			a.Text = s
			return nil
		}
	case bytes.Equal(b, []byte("null")):
		return nil
	}

	// keep whatever was sent rather than dropping it
	a.Text = string(b)
	return nil
}

// Normalize returns the stored form of the answer at position i of the answers array.
// i is the question index unless a structured answer names its own.
func (a Answer) Normalize(i int) mongo.Answer {
	switch a.Kind {
	case AnswerIndex:
		return mongo.Answer{QuestionIndex: i, SelectedOptions: []int{a.Index}}
	case AnswerIndices:
		return mongo.Answer{QuestionIndex: i, SelectedOptions: append([]int{}, a.Indices...)}
	case AnswerStructured:
		out := mongo.Answer{QuestionIndex: i, SelectedOptions: append([]int{}, a.SelectedOptions...), TextAnswer: a.Text}
		if a.QuestionIndex != nil {
			out.QuestionIndex = *a.QuestionIndex
		}
		return out
	}
	return mongo.Answer{QuestionIndex: i, SelectedOptions: []int{}, TextAnswer: a.Text}
}

// normalizeAnswers converts and checks a whole vote against the poll's questions.
func normalizeAnswers(poll *mongo.Poll, answers []Answer) ([]mongo.Answer, error) {
	if len(answers) == 0 {
		return nil, apierr.Validation("answers are required")
	}

	out := make([]mongo.Answer, 0, len(answers))
	seen := map[int]bool{}
	for i, raw := range answers {
		a := raw.Normalize(i)
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(poll.Questions) {
			return nil, apierr.Validation("answer %d refers to question %d, which does not exist", i, a.QuestionIndex)
		}
		if seen[a.QuestionIndex] {
			return nil, apierr.Validation("question %d is answered more than once", a.QuestionIndex)
		}
		seen[a.QuestionIndex] = true

		q := poll.Questions[a.QuestionIndex]
		picked := map[int]bool{}
		selected := a.SelectedOptions[:0]
		for _, o := range a.SelectedOptions {
			if o < 0 || o >= len(q.Options) {
				return nil, apierr.Validation("option %d is not valid for question %d", o, a.QuestionIndex)
			}
			if !picked[o] {
				picked[o] = true
				selected = append(selected, o)
			}
		}
		a.SelectedOptions = selected

		if q.Type == mongo.QuestionSingle && len(a.SelectedOptions) > 1 {
			return nil, apierr.Validation("question %d accepts a single option", a.QuestionIndex)
		}
		out = append(out, a)
	}
	return out, nil
}
