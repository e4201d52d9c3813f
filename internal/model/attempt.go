package model

import "time"

type AttemptState string

const (
	AttemptStarted AttemptState = "STARTED"
	AttemptPassed  AttemptState = "PASSED"
	AttemptFailed  AttemptState = "FAILED"
)

// swagger:model Attempt
type Attempt struct {
	Model
	QuizID     uint       `gorm:"index:idx_attempts_quiz_user;not null" json:"quizId"`
	UserID     uint       `gorm:"index:idx_attempts_quiz_user;not null" json:"userId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Score      int        `gorm:"default:0" json:"score"`
	Passed     bool       `gorm:"default:false" json:"passed"`
	Responses  []Response `gorm:"foreignKey:AttemptID" json:"responses,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) Finished() bool {
	return a.FinishedAt != nil
}

func (a *Attempt) State() AttemptState {
	switch {
	case a.FinishedAt == nil:
		return AttemptStarted
	case a.Passed:
		return AttemptPassed
	default:
		return AttemptFailed
	}
}

// Response is written once per question per attempt and never changed.
type Response struct {
	Model
	AttemptID        uint    `gorm:"uniqueIndex:idx_responses_attempt_question;not null" json:"attemptId"`
	QuestionID       uint    `gorm:"uniqueIndex:idx_responses_attempt_question;not null" json:"questionId"`
	SelectedOptionID *uint   `json:"selectedOptionId,omitempty"`
	AnswerText       *string `gorm:"type:text" json:"answerText,omitempty"`
	IsCorrect        bool    `json:"isCorrect"`
	PointsAwarded    int     `json:"pointsAwarded"`
}

func (Response) TableName() string {
	return "responses"
}
