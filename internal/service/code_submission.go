package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/judge"
	"github.com/stemsi/codexam/internal/metrics"
	"github.com/stemsi/codexam/internal/model"
)

const (
	verdictAcceptedMsg = "Your code is correct and submitted successfully"
	verdictErrorMsg    = "Your code gives an error."
	verdictMismatchMsg = "Output does not match the expected output. Your output: "
)

// RunCode executes free-form code in the sandbox and passes its result through.
func (s *ExamSessionService) RunCode(ctx context.Context, req model.RunCodeRequest) (*judge.ExecutionResult, error) {
	if strings.TrimSpace(req.SourceCode) == "" {
		return nil, ErrEmptySourceCode
	}

	languageID := req.LanguageID
	if languageID == 0 && req.Language != "" {
		id, ok := config.LanguageID(req.Language)
		if !ok {
			return nil, ErrUnknownLanguage
		}
		languageID = id
	}
	if !config.KnownLanguageID(languageID) {
		return nil, ErrUnknownLanguage
	}

	return s.run(ctx, judge.Submission{
		SourceCode: req.SourceCode,
		LanguageID: languageID,
		Stdin:      req.Stdin,
	})
}

// SubmitCode runs the student's code against every test case of the question
// in one sandbox call and stores the answer when the output matches exactly.
func (s *ExamSessionService) SubmitCode(ctx context.Context, email string, examID uuid.UUID, req model.SubmitCodeRequest) (*model.CodeVerdict, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return nil, ErrEmptySourceCode
	}
	languageID, ok := config.LanguageID(req.Language)
	if !ok {
		return nil, ErrUnknownLanguage
	}

	student, err := s.getStudent(ctx, email)
	if err != nil {
		return nil, err
	}
	attempt, err := s.attempts.GetByExamAndStudent(ctx, examID, student.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWritable(exam, attempt); err != nil {
		return nil, err
	}

	ref := model.QuestionRef{Kind: model.QuestionKindCoding, ID: req.QuestionID}
	assigned, err := s.questions.IsAssigned(ctx, examID, ref)
	if err != nil {
		return nil, fmt.Errorf("check question: %w", err)
	}
	if !assigned {
		return nil, ErrQuestionNotFound
	}
	question, err := s.questions.GetCoding(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get coding question: %w", err)
	}

	stdin, expected, err := buildJudgeIO(question)
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, judge.Submission{
		SourceCode: req.Answer,
		LanguageID: languageID,
		Stdin:      stdin,
	})
	if err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("exam_id", examID.String()).
		Str("attempt_id", attempt.ID.String()).
		Str("question_id", req.QuestionID.String()).
		Logger()

	var verdict *model.CodeVerdict
	switch {
	case result.Failed():
		verdict = &model.CodeVerdict{Status: model.VerdictError, Message: verdictErrorMsg, Output: result.ErrorOutput()}
	case result.Stdout == expected:
		if err := s.answers.UpsertCorrect(ctx, attempt.ID, ref, req.Answer, req.Language, s.clock.Now()); err != nil {
			return nil, fmt.Errorf("save accepted answer: %w", err)
		}
		verdict = &model.CodeVerdict{Status: model.VerdictAccepted, Message: verdictAcceptedMsg}
	default:
		verdict = &model.CodeVerdict{Status: model.VerdictMismatch, Message: verdictMismatchMsg + result.Stdout, Output: result.Stdout}
	}

	metrics.CodeVerdicts.WithLabelValues(string(verdict.Status)).Inc()
	log.Info().Str("verdict", string(verdict.Status)).Msg("Code graded")

	return verdict, nil
}

// buildJudgeIO concatenates the test cases, ordered by id, into one stdin
// (count line first) and the matching expected stdout.
func buildJudgeIO(q *model.CodingQuestion) (string, string, error) {
	cases := q.SortedTestCases()
	if len(cases) == 0 {
		return "", "", ErrNoTestCases
	}

	var stdin, expected strings.Builder
	stdin.WriteString(strconv.Itoa(len(cases)))
	stdin.WriteByte('\n')
	for _, tc := range cases {
		stdin.WriteString(tc.InputData)
		stdin.WriteByte('\n')
		expected.WriteString(tc.ExpectedOutput)
		expected.WriteByte('\n')
	}
	return stdin.String(), expected.String(), nil
}

func (s *ExamSessionService) run(ctx context.Context, sub judge.Submission) (*judge.ExecutionResult, error) {
	result, err := s.runner.Run(ctx, sub)
	if err != nil {
		if errors.Is(err, judge.ErrInvalidSubmission) {
			return nil, ErrInvalidSubmission
		}
		s.log.Warn().Err(err).Int("language_id", sub.LanguageID).Msg("Sandbox call failed")
		return nil, fmt.Errorf("%w: %v", ErrSandboxUnavailable, err)
	}
	return result, nil
}
