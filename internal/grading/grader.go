// Package grading scores quiz submissions. Grade is a pure function of the
// quiz definition and the submitted answers; writing the results is left to
// the caller.
package grading

import (
	"sort"

	"coursecraft_backend/internal/model"
)

// Answer is one submitted answer. OptionID is used by choice questions, Text
// by short answers.
type Answer struct {
	QuestionID uint
	OptionID   *uint
	Text       *string
}

// ResponseResult is the graded outcome for one question.
type ResponseResult struct {
	QuestionID       uint    `json:"questionId"`
	SelectedOptionID *uint   `json:"selectedOptionId,omitempty"`
	AnswerText       *string `json:"answerText,omitempty"`
	Correct          bool    `json:"isCorrect"`
	Points           int     `json:"pointsAwarded"`
}

type Result struct {
	Responses []ResponseResult `json:"responses"`
	Score     int              `json:"score"`
	// MaxScore counts auto-gradable questions only.
	MaxScore     int  `json:"maxScore"`
	PassingScore int  `json:"passingScore"`
	Passed       bool `json:"passed"`
}

// strategy grades a single question against the answer given for it (nil
// when the question was left unanswered).
type strategy interface {
	grade(q model.Question, a *Answer) ResponseResult
	autoGraded() bool
}

var strategies = map[model.QuestionType]strategy{
	model.MultipleChoice: choiceStrategy{},
	model.TrueFalse:      choiceStrategy{},
	model.ShortAnswer:    manualStrategy{},
}

// Grade produces exactly one ResponseResult per question, in question order.
// Unanswered questions and unknown options score zero; answers for questions
// outside the quiz are ignored; when a question is answered twice the first
// answer counts.
func Grade(quiz model.Quiz, questions []model.Question, answers []Answer) Result {
	byQuestion := make(map[uint]*Answer, len(answers))
	for i := range answers {
		a := &answers[i]
		if _, dup := byQuestion[a.QuestionID]; !dup {
			byQuestion[a.QuestionID] = a
		}
	}

	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Ordering != ordered[j].Ordering {
			return ordered[i].Ordering < ordered[j].Ordering
		}
		return ordered[i].ID < ordered[j].ID
	})

	res := Result{
		Responses:    make([]ResponseResult, 0, len(ordered)),
		PassingScore: quiz.PassingScore,
	}
	for _, q := range ordered {
		s, ok := strategies[q.Type]
		if !ok {
			s = manualStrategy{}
		}
		r := s.grade(q, byQuestion[q.ID])
		res.Responses = append(res.Responses, r)
		res.Score += r.Points
		if s.autoGraded() {
			res.MaxScore++
		}
	}
	res.Passed = res.Score >= quiz.PassingScore
	return res
}

// AutoGradable counts the questions that can earn a point.
func AutoGradable(questions []model.Question) int {
	n := 0
	for _, q := range questions {
		if s, ok := strategies[q.Type]; ok && s.autoGraded() {
			n++
		}
	}
	return n
}

// choiceStrategy is single-select: the answer is correct iff the selected
// option is one of the question's correct options. One point at most.
type choiceStrategy struct{}

func (choiceStrategy) autoGraded() bool { return true }

func (choiceStrategy) grade(q model.Question, a *Answer) ResponseResult {
	r := ResponseResult{QuestionID: q.ID}
	if a == nil || a.OptionID == nil {
		return r
	}
	for _, o := range q.Options {
		if o.ID != *a.OptionID {
			continue
		}
		id := o.ID
		r.SelectedOptionID = &id
		if o.IsCorrect {
			r.Correct = true
			r.Points = 1
		}
		break
	}
	return r
}

// manualStrategy records the answer text and never awards points; free-text
// answers need a human reviewer.
type manualStrategy struct{}

func (manualStrategy) autoGraded() bool { return false }

func (manualStrategy) grade(q model.Question, a *Answer) ResponseResult {
	r := ResponseResult{QuestionID: q.ID}
	if a != nil && a.Text != nil {
		text := *a.Text
		r.AnswerText = &text
	}
	return r
}
