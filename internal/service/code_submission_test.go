package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/codexam/internal/judge"
	"github.com/stemsi/codexam/internal/model"
)

func submitCode(f *fixture, code, language string) (*model.CodeVerdict, error) {
	return f.session.SubmitCode(context.Background(), f.student.Email, f.exam.ID, model.SubmitCodeRequest{
		QuestionID: f.coding.ID,
		Answer:     code,
		Language:   language,
	})
}

func TestSubmitCodeAccepted(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)

	verdict, err := submitCode(f, "print(5)", "Python")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAccepted, verdict.Status)
	assert.Equal(t, "Your code is correct and submitted successfully", verdict.Message)

	require.Len(t, f.runner.Calls, 1)
	assert.Equal(t, "1\n2 3\n", f.runner.Calls[0].Stdin)
	assert.Equal(t, 71, f.runner.Calls[0].LanguageID)

	saved, ok := f.answers.Get(attempt.ID, f.coding.Ref())
	require.True(t, ok)
	assert.True(t, saved.Correct)
	assert.Equal(t, "print(5)", saved.Text)
	assert.Equal(t, "Python", saved.Language)
}

func TestSubmitCodeErrorLeavesPriorAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	require.NoError(t, f.session.AutoSave(ctx, f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.coding.ID, QuestionType: "coding", Answer: "draft", Language: "python"},
	}))
	writes := f.answers.Writes

	f.runner.RunFunc = func(judge.Submission) (*judge.ExecutionResult, error) {
		return &judge.ExecutionResult{Stderr: "NameError: name 'x' is not defined"}, nil
	}

	verdict, err := submitCode(f, "print(x)", "python")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictError, verdict.Status)
	assert.Equal(t, "Your code gives an error.", verdict.Message)
	assert.Contains(t, verdict.Output, "NameError")

	assert.Equal(t, writes, f.answers.Writes)
	saved, ok := f.answers.Get(attempt.ID, f.coding.Ref())
	require.True(t, ok)
	assert.Equal(t, "draft", saved.Text)
	assert.False(t, saved.Correct)
}

func TestSubmitCodeMismatch(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)
	f.runner.RunFunc = func(judge.Submission) (*judge.ExecutionResult, error) {
		return &judge.ExecutionResult{Stdout: "6\n"}, nil
	}

	verdict, err := submitCode(f, "print(6)", "python")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMismatch, verdict.Status)
	assert.Equal(t, "Output does not match the expected output. Your output: 6\n", verdict.Message)
	assert.Equal(t, "6\n", verdict.Output)

	_, ok := f.answers.Get(attempt.ID, f.coding.Ref())
	assert.False(t, ok)
}

func TestSubmitCodeOrdersTestCasesByID(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.coding.TestCases = []model.CodingTestCase{
		{ID: 9, InputData: "10 1", ExpectedOutput: "11"},
		{ID: 2, InputData: "2 2", ExpectedOutput: "4"},
	}
	f.runner.RunFunc = func(judge.Submission) (*judge.ExecutionResult, error) {
		return &judge.ExecutionResult{Stdout: "4\n11\n"}, nil
	}

	verdict, err := submitCode(f, "solve()", "c++")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAccepted, verdict.Status)
	assert.Equal(t, "2\n2 2\n10 1\n", f.runner.Calls[0].Stdin)
	assert.Equal(t, 105, f.runner.Calls[0].LanguageID)
}

func TestSubmitCodeRejections(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(t *testing.T, f *fixture)
		code     string
		language string
		want     error
		kind     error
	}{
		{name: "empty code", code: "   ", language: "python", want: ErrEmptySourceCode, kind: ErrInvalidArgument},
		{name: "unknown language", code: "x", language: "cobol", want: ErrUnknownLanguage, kind: ErrInvalidArgument},
		{
			name:     "no attempt",
			prepare:  func(t *testing.T, f *fixture) {},
			code:     "x",
			language: "python",
			want:     ErrAttemptNotFound,
			kind:     ErrNotFound,
		},
		{
			name: "no test cases",
			prepare: func(t *testing.T, f *fixture) {
				f.start(t)
				f.coding.TestCases = nil
			},
			code:     "x",
			language: "python",
			want:     ErrNoTestCases,
			kind:     ErrInvalidState,
		},
		{
			name: "time over",
			prepare: func(t *testing.T, f *fixture) {
				a := f.start(t)
				a.EndTime = a.StartTime.Add(61 * time.Minute)
				f.attempts.Put(*a)
			},
			code:     "x",
			language: "python",
			want:     ErrExamTimeOver,
			kind:     ErrTimeExpired,
		},
		{
			name: "submitted attempt",
			prepare: func(t *testing.T, f *fixture) {
				a := f.start(t)
				a.Completed = true
				f.attempts.Put(*a)
			},
			code:     "x",
			language: "python",
			want:     ErrAttemptCompleted,
			kind:     ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			_, err := submitCode(f, tt.code, tt.language)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.kind)
			assert.Empty(t, f.runner.Calls)
			assert.Zero(t, f.answers.Writes)
		})
	}
}

func TestSubmitCodeSandboxFailure(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.runner.RunFunc = func(judge.Submission) (*judge.ExecutionResult, error) {
		return nil, fmt.Errorf("%w: status 503", judge.ErrSandbox)
	}

	_, err := submitCode(f, "print(5)", "python")
	assert.ErrorIs(t, err, ErrSandboxUnavailable)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Equal(t, "code execution service is unavailable", Message(err))
}

func TestSubmitCodeQuestionNotInExam(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	_, err := f.session.SubmitCode(context.Background(), f.student.Email, f.exam.ID, model.SubmitCodeRequest{
		QuestionID: uuid.New(),
		Answer:     "x",
		Language:   "python",
	})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestRunCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.runner.RunFunc = func(sub judge.Submission) (*judge.ExecutionResult, error) {
		return &judge.ExecutionResult{Stdout: sub.Stdin}, nil
	}

	res, err := f.session.RunCode(ctx, model.RunCodeRequest{SourceCode: "echo", Language: "JavaScript", Stdin: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Stdout)
	assert.Equal(t, 102, f.runner.Calls[0].LanguageID)

	_, err = f.session.RunCode(ctx, model.RunCodeRequest{SourceCode: "echo", LanguageID: 105})
	require.NoError(t, err)
	assert.Equal(t, 105, f.runner.Calls[1].LanguageID)

	_, err = f.session.RunCode(ctx, model.RunCodeRequest{SourceCode: "echo"})
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = f.session.RunCode(ctx, model.RunCodeRequest{SourceCode: "", Language: "python"})
	assert.ErrorIs(t, err, ErrEmptySourceCode)
	assert.Len(t, f.runner.Calls, 2)
}

func TestRunCodeRejectsUnsupportedLanguageID(t *testing.T) {
	f := newFixture(t)

	for _, id := range []int{62, 999, -1} {
		_, err := f.session.RunCode(context.Background(), model.RunCodeRequest{SourceCode: "echo", LanguageID: id})
		assert.ErrorIs(t, err, ErrUnknownLanguage, "language id %d", id)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	assert.Empty(t, f.runner.Calls)
}

func TestRunCodeInvalidSubmissionFromClient(t *testing.T) {
	f := newFixture(t)
	f.runner.RunFunc = func(judge.Submission) (*judge.ExecutionResult, error) {
		return nil, judge.ErrInvalidSubmission
	}

	_, err := f.session.RunCode(context.Background(), model.RunCodeRequest{SourceCode: "x", LanguageID: 71})
	assert.ErrorIs(t, err, ErrInvalidSubmission)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
