package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/codexam/internal/judge"
	"github.com/stemsi/codexam/internal/model"
)

// StudentDirectory resolves student profiles.
type StudentDirectory interface {
	GetByEmail(ctx context.Context, email string) (*model.Student, error)
}

// ExamStore reads exams.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListByOrganization(ctx context.Context, orgID int) ([]model.Exam, error)
}

// ExamAdminStore additionally changes exams and drops cached copies.
type ExamAdminStore interface {
	ExamStore
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// QuestionStore reads the question bank and exam assignments.
type QuestionStore interface {
	GetMCQ(ctx context.Context, id uuid.UUID) (*model.MCQQuestion, error)
	GetCoding(ctx context.Context, id uuid.UUID) (*model.CodingQuestion, error)
	IsAssigned(ctx context.Context, examID uuid.UUID, ref model.QuestionRef) (bool, error)
	ListExamQuestions(ctx context.Context, examID uuid.UUID, kind model.QuestionKind, limit, offset int) ([]model.ExamQuestion, int, error)
	AssignToExam(ctx context.Context, examID uuid.UUID, questions []model.ExamQuestion) (int, error)
}

// AttemptStore persists attempts. Create returns pgx.ErrNoRows when the attempt already exists.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)
}

// AnswerStore persists answers.
type AnswerStore interface {
	UpsertBatch(ctx context.Context, attemptID uuid.UUID, writes []model.AnswerWrite, endTime time.Time) error
	UpsertCorrect(ctx context.Context, attemptID uuid.UUID, ref model.QuestionRef, text, language string, endTime time.Time) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	ListForScoring(ctx context.Context, attemptID uuid.UUID) ([]model.GradedAnswer, error)
}

// ResultStore persists exam results, one per (exam, student).
type ResultStore interface {
	Create(ctx context.Context, res *model.ExamResult) (bool, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error)
	ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error)
}

// SubmitLocker guards one attempt against concurrent submission.
type SubmitLocker interface {
	Acquire(ctx context.Context, attemptID uuid.UUID) (func(), error)
}

// CodeRunner executes code in the sandbox.
type CodeRunner interface {
	Run(ctx context.Context, sub judge.Submission) (*judge.ExecutionResult, error)
}
