package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is the persisted outcome of a submitted attempt. One per (exam, student).
type ExamResult struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	StudentID     int       `json:"student_id"`
	AttemptID     uuid.UUID `json:"attempt_id"`
	MarksObtained int       `json:"marks_obtained"`
	Passed        bool      `json:"passed"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExamResultRow is an admin listing entry joined with the student profile.
type ExamResultRow struct {
	ExamResult
	StudentEmail string `json:"student_email"`
	StudentName  string `json:"student_name"`
}

// ResultSummary is returned to the student on submission.
type ResultSummary struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	ExamID           uuid.UUID `json:"exam_id"`
	MarksObtained    int       `json:"marks_obtained"`
	PassingMarks     int       `json:"passing_marks"`
	TotalMarks       int       `json:"total_marks"`
	Passed           bool      `json:"passed"`
	AlreadySubmitted bool      `json:"already_submitted"`
	Message          string    `json:"message"`
}

// VerdictStatus is the outcome class of a code submission.
type VerdictStatus string

const (
	VerdictAccepted VerdictStatus = "accepted"
	VerdictMismatch VerdictStatus = "mismatch"
	VerdictError    VerdictStatus = "error"
)

// CodeVerdict is the student-facing result of grading submitted code.
type CodeVerdict struct {
	Status  VerdictStatus `json:"status"`
	Message string        `json:"message"`
	Output  string        `json:"output,omitempty"`
}
