package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
	"github.com/stemsi/codexam/internal/scoring"
)

// statusTransitions lists the statuses each exam status may move to.
var statusTransitions = map[model.ExamStatus][]model.ExamStatus{
	model.ExamStatusScheduled: {model.ExamStatusStarted},
	model.ExamStatusStarted:   {model.ExamStatusPaused, model.ExamStatusCompleted},
	model.ExamStatusPaused:    {model.ExamStatusResumed, model.ExamStatusCompleted},
	model.ExamStatusResumed:   {model.ExamStatusPaused, model.ExamStatusCompleted},
}

// ExamAdminService handles exam administration: status changes, question assignment and results.
type ExamAdminService struct {
	exams     ExamAdminStore
	questions QuestionStore
	results   ResultStore
	log       zerolog.Logger
}

// NewExamAdminService creates a new ExamAdminService.
func NewExamAdminService(exams ExamAdminStore, questions QuestionStore, results ResultStore, log zerolog.Logger) *ExamAdminService {
	return &ExamAdminService{
		exams:     exams,
		questions: questions,
		results:   results,
		log:       log.With().Str("component", "exam_admin").Logger(),
	}
}

// UpdateStatus moves the exam to a new status. Setting the current status again is a no-op.
func (s *ExamAdminService) UpdateStatus(ctx context.Context, examID uuid.UUID, status model.ExamStatus) (*model.Exam, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status == status {
		return exam, nil
	}
	if !hasStatus(status, statusTransitions[exam.Status]) {
		return nil, ErrInvalidStatusTransition
	}

	if err := s.exams.UpdateStatus(ctx, examID, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("from", string(exam.Status)).
		Str("to", string(status)).
		Msg("Exam status changed")

	exam.Status = status
	return exam, nil
}

// AssignQuestions attaches bank questions to the exam, pricing each from the
// marks table. It returns how many were newly assigned.
func (s *ExamAdminService) AssignQuestions(ctx context.Context, examID uuid.UUID, kind model.QuestionKind, ids []uuid.UUID) (int, error) {
	if _, err := s.getExam(ctx, examID); err != nil {
		return 0, err
	}

	items := make([]model.ExamQuestion, 0, len(ids))
	for _, id := range ids {
		q, err := s.loadQuestion(ctx, kind, id)
		if err != nil {
			return 0, err
		}
		items = append(items, model.ExamQuestion{
			ExamID:   examID,
			Marks:    scoring.Marks(q.Kind(), q.Difficulty()),
			Question: q,
		})
	}

	added, err := s.questions.AssignToExam(ctx, examID, items)
	if err != nil {
		return 0, fmt.Errorf("assign questions: %w", err)
	}
	if err := s.exams.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate exam cache")
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("kind", string(kind)).
		Int("added", added).
		Msg("Questions assigned")
	return added, nil
}

// ListResults retrieves the exam results with pagination.
func (s *ExamAdminService) ListResults(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResultRow, *response.Pagination, error) {
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, nil, err
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

	rows, total, err := s.results.ListByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if rows == nil {
		rows = []model.ExamResultRow{}
	}

	return rows, response.NewPagination(page, perPage, total), nil
}

func (s *ExamAdminService) loadQuestion(ctx context.Context, kind model.QuestionKind, id uuid.UUID) (model.Question, error) {
	var (
		q   model.Question
		err error
	)
	switch kind {
	case model.QuestionKindMCQ:
		var mcq *model.MCQQuestion
		mcq, err = s.questions.GetMCQ(ctx, id)
		if err == nil {
			if verr := mcq.Validate(); verr != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidQuestion, verr)
			}
			q = mcq
		}
	case model.QuestionKindCoding:
		var coding *model.CodingQuestion
		coding, err = s.questions.GetCoding(ctx, id)
		if err == nil {
			q = coding
		}
	default:
		return nil, ErrInvalidQuestionType
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kinded(ErrNotFound, fmt.Sprintf("question %s not found", id))
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *ExamAdminService) getExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
