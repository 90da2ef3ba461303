package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the lifecycle states of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusStarted   ExamStatus = "STARTED"
	ExamStatusPaused    ExamStatus = "PAUSED"
	ExamStatusResumed   ExamStatus = "RESUMED"
	ExamStatusCompleted ExamStatus = "COMPLETED"
)

// Valid reports whether s is one of the known exam statuses.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamStatusScheduled, ExamStatusStarted, ExamStatusPaused, ExamStatusResumed, ExamStatusCompleted:
		return true
	}
	return false
}

// Exam represents a scheduled exam. Duration is kept as the decimal minute
// count it was authored with.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Status          ExamStatus `json:"status"`
	Enabled         bool       `json:"enabled"`
	Duration        string     `json:"duration"`
	ScheduleDate    time.Time  `json:"schedule_date"`
	Branch          string     `json:"branch"`
	Semester        int        `json:"semester"`
	PassingMarks    int        `json:"passing_marks"`
	TotalMarks      int        `json:"total_marks"`
	DifficultyLevel string     `json:"difficulty_level"`
	OrganizationIDs []int      `json:"organization_ids"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasOrganization reports whether the exam is linked to the organization.
func (e *Exam) HasOrganization(orgID int) bool {
	for _, id := range e.OrganizationIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

// ExamSummary is the student-facing listing entry.
type ExamSummary struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Duration string     `json:"duration"`
	Enabled  bool       `json:"enabled"`
	Status   ExamStatus `json:"status"`
}

// Summary projects the exam onto its listing entry.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:       e.ID,
		Name:     e.Name,
		Duration: e.Duration,
		Enabled:  e.Enabled,
		Status:   e.Status,
	}
}

// UpdateExamStatusRequest is the payload for moving an exam to a new status.
type UpdateExamStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=SCHEDULED STARTED PAUSED RESUMED COMPLETED"`
}

// AssignQuestionsRequest is the payload for attaching bank questions to an exam.
type AssignQuestionsRequest struct {
	Kind        string      `json:"kind" binding:"required,oneof=MCQ CODING"`
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1,max=200"`
}
