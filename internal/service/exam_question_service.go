package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/codexam/internal/examclock"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ExamQuestionService pages through an exam's questions for a student,
// overlaying the answers already saved on the attempt.
type ExamQuestionService struct {
	session   *ExamSessionService
	questions QuestionStore
	answers   AnswerStore
}

// NewExamQuestionService creates a new ExamQuestionService sharing the session service's lookups.
func NewExamQuestionService(session *ExamSessionService, questions QuestionStore, answers AnswerStore) *ExamQuestionService {
	return &ExamQuestionService{session: session, questions: questions, answers: answers}
}

// GetQuestions returns one page of questions of the given kind.
func (s *ExamQuestionService) GetQuestions(ctx context.Context, examID uuid.UUID, email string, kind model.QuestionKind, page, perPage int) ([]model.QuestionView, *response.Pagination, error) {
	student, err := s.session.getStudent(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	exam, err := s.session.getExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}

	attempt, err := s.session.attempts.GetByExamAndStudent(ctx, examID, student.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrAttemptNotStarted
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}

	if err := s.session.checkEligibility(student, exam, s.session.clock.Now(), resumableStatuses); err != nil {
		return nil, nil, err
	}
	if attempt.Completed {
		duration, err := examclock.ParseDuration(exam.Duration)
		if err != nil || examclock.Expired(duration, attempt.StartTime, attempt.EndTime) {
			return nil, nil, ErrExamTimeOver
		}
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	questions, total, err := s.questions.ListExamQuestions(ctx, examID, kind, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exam questions: %w", err)
	}

	saved, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list answers: %w", err)
	}
	answers := model.NewAnswerSet(saved)

	views := make([]model.QuestionView, 0, len(questions))
	for _, eq := range questions {
		v := model.NewQuestionView(eq)
		if a, ok := answers.Lookup(eq.Question.Ref()); ok {
			v.Answer = a.Text
			v.Language = a.Language
		}
		views = append(views, v)
	}

	return views, response.NewPagination(page, perPage, total), nil
}
