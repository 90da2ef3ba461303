package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/examclock"
	"github.com/stemsi/codexam/internal/metrics"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/repository"
	"github.com/stemsi/codexam/internal/scoring"
)

var (
	// A new attempt may only be opened while the exam is in one of these states.
	startableStatuses = []model.ExamStatus{model.ExamStatusStarted, model.ExamStatusPaused}
	// An existing attempt may be resumed in any running state.
	resumableStatuses = []model.ExamStatus{model.ExamStatusStarted, model.ExamStatusPaused, model.ExamStatusResumed}
)

// ExamSessionDeps wires the collaborators of ExamSessionService.
type ExamSessionDeps struct {
	Students  StudentDirectory
	Exams     ExamStore
	Questions QuestionStore
	Attempts  AttemptStore
	Answers   AnswerStore
	Results   ResultStore
	Locker    SubmitLocker
	Runner    CodeRunner
	Clock     examclock.Clock
	Location  *time.Location
}

// ExamSessionService handles the student side of an exam: eligibility,
// attempts, answer auto-save, code grading and submission.
type ExamSessionService struct {
	students  StudentDirectory
	exams     ExamStore
	questions QuestionStore
	attempts  AttemptStore
	answers   AnswerStore
	results   ResultStore
	locker    SubmitLocker
	runner    CodeRunner
	clock     examclock.Clock
	loc       *time.Location
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(deps ExamSessionDeps, log zerolog.Logger) *ExamSessionService {
	clock := deps.Clock
	if clock == nil {
		clock = examclock.SystemClock{}
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ExamSessionService{
		students:  deps.Students,
		exams:     deps.Exams,
		questions: deps.Questions,
		attempts:  deps.Attempts,
		answers:   deps.Answers,
		results:   deps.Results,
		locker:    deps.Locker,
		runner:    deps.Runner,
		clock:     clock,
		loc:       loc,
		log:       log.With().Str("component", "exam_session").Logger(),
	}
}

// FindEligibleExams lists the exams the student may still sit.
func (s *ExamSessionService) FindEligibleExams(ctx context.Context, email string) ([]model.ExamSummary, error) {
	student, err := s.getStudent(ctx, email)
	if err != nil {
		return nil, err
	}

	exams, err := s.exams.ListByOrganization(ctx, student.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	attempts, err := s.attempts.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attemptByExam := make(map[uuid.UUID]*model.Attempt, len(attempts))
	for i := range attempts {
		attemptByExam[attempts[i].ExamID] = &attempts[i]
	}

	eligible := make([]model.ExamSummary, 0, len(exams))
	for i := range exams {
		exam := &exams[i]
		if !exam.Enabled || !matchesProfile(student, exam) {
			continue
		}
		if a, ok := attemptByExam[exam.ID]; ok {
			if a.Completed {
				continue
			}
			duration, err := examclock.ParseDuration(exam.Duration)
			if err != nil || examclock.Expired(duration, a.StartTime, a.EndTime) {
				continue
			}
		}
		eligible = append(eligible, exam.Summary())
	}

	return eligible, nil
}

// StartOrResumeAttempt opens the student's attempt for the exam, or returns the
// existing one unchanged. The bool reports whether a new attempt was created.
func (s *ExamSessionService) StartOrResumeAttempt(ctx context.Context, email string, examID uuid.UUID) (*model.Attempt, bool, error) {
	student, err := s.getStudent(ctx, email)
	if err != nil {
		return nil, false, err
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	if err := s.checkEligibility(student, exam, now, resumableStatuses); err != nil {
		return nil, false, err
	}

	existing, err := s.attempts.GetByExamAndStudent(ctx, examID, student.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check existing attempt: %w", err)
	}

	if !hasStatus(exam.Status, startableStatuses) {
		return nil, false, ErrExamNotRunning
	}

	attempt := &model.Attempt{
		ExamID:    examID,
		StudentID: student.ID,
		StartTime: now,
		EndTime:   now,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent create; the other request's attempt wins.
			existing, err := s.attempts.GetByExamAndStudent(ctx, examID, student.ID)
			if err != nil {
				return nil, false, fmt.Errorf("fetch concurrent attempt: %w", err)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", student.ID).
		Msg("Attempt started")

	return attempt, true, nil
}

// AutoSave upserts the given answers and advances the attempt end time.
// Nothing is written unless every answer is valid and the time budget is intact.
func (s *ExamSessionService) AutoSave(ctx context.Context, examID, attemptID uuid.UUID, answers []model.AnswerInput) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	if attempt.ExamID != exam.ID {
		return ErrAttemptExamMismatch
	}
	if err := s.checkWritable(exam, attempt); err != nil {
		return err
	}

	writes := make([]model.AnswerWrite, 0, len(answers))
	for _, in := range answers {
		w, err := s.gradeAnswer(ctx, examID, in)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}

	if err := s.answers.UpsertBatch(ctx, attempt.ID, writes, s.clock.Now()); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}

	s.log.Debug().
		Str("exam_id", examID.String()).
		Str("attempt_id", attemptID.String()).
		Int("answers", len(writes)).
		Msg("Answers auto-saved")
	return nil
}

// Submit closes the attempt and records its score. Submitting again returns
// the stored result marked as already submitted.
func (s *ExamSessionService) Submit(ctx context.Context, attemptID uuid.UUID) (*model.ResultSummary, error) {
	release, err := s.locker.Acquire(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, ErrSubmissionInProgress
		}
		return nil, fmt.Errorf("lock attempt: %w", err)
	}
	defer release()

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	stored, err := s.results.GetByExamAndStudent(ctx, exam.ID, attempt.StudentID)
	if err == nil {
		metrics.ExamSubmissions.WithLabelValues("already_submitted").Inc()
		return summarize(exam, stored, true), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check result: %w", err)
	}

	if err := s.attempts.MarkCompleted(ctx, attempt.ID, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	graded, err := s.answers.ListForScoring(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	score := scoring.Score(graded, exam.PassingMarks)

	result := &model.ExamResult{
		ExamID:        exam.ID,
		StudentID:     attempt.StudentID,
		AttemptID:     attempt.ID,
		MarksObtained: score.MarksObtained,
		Passed:        score.Passed,
	}
	created, err := s.results.Create(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	if !created {
		stored, err := s.results.GetByExamAndStudent(ctx, exam.ID, attempt.StudentID)
		if err != nil {
			return nil, fmt.Errorf("load stored result: %w", err)
		}
		metrics.ExamSubmissions.WithLabelValues("already_submitted").Inc()
		return summarize(exam, stored, true), nil
	}

	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	metrics.ExamSubmissions.WithLabelValues(outcome).Inc()

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", attempt.StudentID).
		Int("marks", result.MarksObtained).
		Int("answered", score.Answered).
		Bool("passed", result.Passed).
		Msg("Attempt submitted")

	return summarize(exam, result, false), nil
}

// VerifyAttemptOwner checks that the attempt belongs to the student with this email.
func (s *ExamSessionService) VerifyAttemptOwner(ctx context.Context, attemptID uuid.UUID, email string) error {
	student, err := s.getStudent(ctx, email)
	if err != nil {
		return err
	}
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.StudentID != student.ID {
		return ErrAttemptNotFound
	}
	return nil
}

// gradeAnswer validates one auto-saved answer. MCQ answers are graded
// immediately; coding answers keep their stored correctness.
func (s *ExamSessionService) gradeAnswer(ctx context.Context, examID uuid.UUID, in model.AnswerInput) (model.AnswerWrite, error) {
	kind, ok := model.ParseQuestionKind(in.QuestionType)
	if !ok {
		return model.AnswerWrite{}, ErrInvalidQuestionType
	}
	ref := model.QuestionRef{Kind: kind, ID: in.QuestionID}

	assigned, err := s.questions.IsAssigned(ctx, examID, ref)
	if err != nil {
		return model.AnswerWrite{}, fmt.Errorf("check question: %w", err)
	}
	if !assigned {
		return model.AnswerWrite{}, ErrQuestionNotFound
	}

	w := model.AnswerWrite{Question: ref, Text: in.Answer}
	switch kind {
	case model.QuestionKindMCQ:
		q, err := s.questions.GetMCQ(ctx, in.QuestionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.AnswerWrite{}, ErrQuestionNotFound
			}
			return model.AnswerWrite{}, fmt.Errorf("get mcq: %w", err)
		}
		correct := q.IsCorrectAnswer(in.Answer)
		w.Correct = &correct
	case model.QuestionKindCoding:
		w.Language = in.Language
	}
	return w, nil
}

// checkWritable enforces the time budget on answer writes.
func (s *ExamSessionService) checkWritable(exam *model.Exam, attempt *model.Attempt) error {
	if attempt.Completed {
		return ErrAttemptCompleted
	}
	duration, err := examclock.ParseDuration(exam.Duration)
	if err != nil {
		return ErrInvalidExamDuration
	}
	if examclock.Expired(duration, attempt.StartTime, attempt.EndTime) {
		return ErrExamTimeOver
	}
	return nil
}

func (s *ExamSessionService) checkEligibility(student *model.Student, exam *model.Exam, now time.Time, statuses []model.ExamStatus) error {
	if !exam.Enabled || !matchesProfile(student, exam) {
		return ErrExamNotAvailable
	}
	if !hasStatus(exam.Status, statuses) {
		return ErrExamNotRunning
	}
	if !examclock.SameDay(exam.ScheduleDate, now, s.loc) {
		return ErrExamNotScheduledToday
	}
	return nil
}

func (s *ExamSessionService) getStudent(ctx context.Context, email string) (*model.Student, error) {
	student, err := s.students.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

func (s *ExamSessionService) getExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

func (s *ExamSessionService) getAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

func matchesProfile(student *model.Student, exam *model.Exam) bool {
	return strings.EqualFold(strings.TrimSpace(student.Branch), strings.TrimSpace(exam.Branch)) &&
		student.Semester == exam.Semester &&
		exam.HasOrganization(student.OrganizationID)
}

func hasStatus(status model.ExamStatus, allowed []model.ExamStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func summarize(exam *model.Exam, res *model.ExamResult, already bool) *model.ResultSummary {
	msg := "Exam submitted successfully"
	if already {
		msg = "Exam was already submitted"
	}
	return &model.ResultSummary{
		AttemptID:        res.AttemptID,
		ExamID:           exam.ID,
		MarksObtained:    res.MarksObtained,
		PassingMarks:     exam.PassingMarks,
		TotalMarks:       exam.TotalMarks,
		Passed:           res.Passed,
		AlreadySubmitted: already,
		Message:          msg,
	}
}
