package grading

import (
	"testing"

	"coursecraft_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
func opt(id uint, correct bool) model.Option {
	return model.Option{Model: model.Model{ID: id}, IsCorrect: correct}
}

func question(id uint, ordering int, t model.QuestionType, opts ...model.Option) model.Question {
	return model.Question{Model: model.Model{ID: id}, Ordering: ordering, Type: t, Options: opts}
}

// Two multiple choice, one true/false, one short answer; passing score 2.
func sampleQuiz() (model.Quiz, []model.Question) {
	quiz := model.Quiz{Model: model.Model{ID: 1}, PassingScore: 2}
	questions := []model.Question{
		question(10, 1, model.MultipleChoice, opt(100, false), opt(101, true), opt(102, false)),
		question(11, 2, model.MultipleChoice, opt(110, true), opt(111, false)),
		question(12, 3, model.TrueFalse, opt(120, true), opt(121, false)),
		question(13, 4, model.ShortAnswer),
	}
	return quiz, questions
}

func TestGradeScoresChoiceQuestions(t *testing.T) {
	quiz, questions := sampleQuiz()
	res := Grade(quiz, questions, []Answer{
		{QuestionID: 10, OptionID: uintPtr(101)},
		{QuestionID: 11, OptionID: uintPtr(111)},
		{QuestionID: 12, OptionID: uintPtr(120)},
		{QuestionID: 13, Text: strPtr("pointers")},
	})

	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 3, res.MaxScore)
	assert.Equal(t, 2, res.PassingScore)
	assert.True(t, res.Passed)
	require.Len(t, res.Responses, 4)

	assert.True(t, res.Responses[0].Correct)
	assert.Equal(t, 1, res.Responses[0].Points)
	assert.False(t, res.Responses[1].Correct)
	assert.Equal(t, uint(111), *res.Responses[1].SelectedOptionID)
	assert.True(t, res.Responses[2].Correct)

	short := res.Responses[3]
	assert.False(t, short.Correct)
	assert.Zero(t, short.Points)
	require.NotNil(t, short.AnswerText)
	assert.Equal(t, "pointers", *short.AnswerText)
}

func TestGradeFailsBelowPassingScore(t *testing.T) {
	quiz, questions := sampleQuiz()
	res := Grade(quiz, questions, []Answer{{QuestionID: 10, OptionID: uintPtr(101)}})
	assert.Equal(t, 1, res.Score)
	assert.False(t, res.Passed)
}

func TestGradeEdgeAnswers(t *testing.T) {
	quiz, questions := sampleQuiz()
	res := Grade(quiz, questions, []Answer{
		// unknown option
		{QuestionID: 10, OptionID: uintPtr(999)},
		// first answer wins
		{QuestionID: 11, OptionID: uintPtr(110)},
		{QuestionID: 11, OptionID: uintPtr(111)},
		// question outside the quiz
		{QuestionID: 77, OptionID: uintPtr(1)},
	})

	require.Len(t, res.Responses, 4)
	assert.Nil(t, res.Responses[0].SelectedOptionID)
	assert.False(t, res.Responses[0].Correct)
	assert.True(t, res.Responses[1].Correct)
	// unanswered
	assert.Nil(t, res.Responses[2].SelectedOptionID)
	assert.Nil(t, res.Responses[3].AnswerText)
	assert.Equal(t, 1, res.Score)
}

func TestGradeZeroPassingScorePassesEmptySubmission(t *testing.T) {
	quiz, questions := sampleQuiz()
	quiz.PassingScore = 0
	res := Grade(quiz, questions, nil)
	assert.Zero(t, res.Score)
	assert.True(t, res.Passed)
}

func TestGradeIsDeterministic(t *testing.T) {
	quiz, questions := sampleQuiz()
	answers := []Answer{
		{QuestionID: 12, OptionID: uintPtr(121)},
		{QuestionID: 10, OptionID: uintPtr(101)},
	}
	first := Grade(quiz, questions, answers)

	reversed := []model.Question{questions[3], questions[2], questions[1], questions[0]}
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Grade(quiz, reversed, answers))
	}
	// responses follow question ordering regardless of input order
	assert.Equal(t, uint(10), first.Responses[0].QuestionID)
	assert.Equal(t, uint(13), first.Responses[3].QuestionID)
}

func TestAutoGradable(t *testing.T) {
	_, questions := sampleQuiz()
	assert.Equal(t, 3, AutoGradable(questions))
	assert.Zero(t, AutoGradable([]model.Question{question(1, 1, model.ShortAnswer)}))
}
