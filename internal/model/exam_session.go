package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is derived from the attempt timestamps and completion flag.
type AttemptStatus string

const (
	AttemptStatusCreated    AttemptStatus = "CREATED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// Attempt is one student's sitting of one exam. EndTime advances on every
// answer write, so EndTime-StartTime is the elapsed working time.
type Attempt struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Status reports where the attempt is in CREATED -> IN_PROGRESS -> COMPLETED.
func (a *Attempt) Status() AttemptStatus {
	switch {
	case a.Completed:
		return AttemptStatusCompleted
	case a.EndTime.Equal(a.StartTime):
		return AttemptStatusCreated
	default:
		return AttemptStatusInProgress
	}
}

// AnswerInput is one answer inside an auto-save request.
type AnswerInput struct {
	QuestionID   uuid.UUID `json:"questionId" binding:"required"`
	QuestionType string    `json:"questionType" binding:"required,question_kind"`
	Answer       string    `json:"answer" binding:"max=65536"`
	Language     string    `json:"language" binding:"max=32"`
}

// AutoSaveRequest is the payload for periodically persisting answers.
type AutoSaveRequest struct {
	StudentExamID uuid.UUID     `json:"studentExamId" binding:"required"`
	Answers       []AnswerInput `json:"answers" binding:"max=500,dive"`
}

// RunCodeRequest is the payload for a free-form sandbox run.
type RunCodeRequest struct {
	SourceCode string `json:"sourceCode" binding:"max=65536"`
	LanguageID int    `json:"languageId"`
	Language   string `json:"language" binding:"omitempty,max=32,judge_language"`
	Stdin      string `json:"stdin" binding:"max=65536"`
}

// SubmitCodeRequest is the payload for grading a coding answer.
type SubmitCodeRequest struct {
	QuestionID uuid.UUID `json:"questionId" binding:"required"`
	Answer     string    `json:"answer" binding:"max=65536"`
	Language   string    `json:"language" binding:"max=32"`
}
