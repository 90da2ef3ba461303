package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/codexam/internal/model"
)

func TestStartOrResumeAttemptIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.session.StartOrResumeAttempt(ctx, "ANA@example.com", f.exam.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, testNow, first.StartTime)
	assert.Equal(t, model.AttemptStatusCreated, first.Status())

	f.clock.Advance(5 * time.Minute)
	second, created, err := f.session.StartOrResumeAttempt(ctx, f.student.Email, f.exam.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, testNow, second.StartTime)
	assert.Equal(t, 1, f.attempts.Len())
}

func TestStartOrResumeAttemptRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
		want   error
		kind   error
	}{
		{
			name:   "completed exam",
			mutate: func(f *fixture) { f.setStatus(model.ExamStatusCompleted) },
			want:   ErrExamNotRunning,
			kind:   ErrInvalidState,
		},
		{
			name:   "scheduled exam",
			mutate: func(f *fixture) { f.setStatus(model.ExamStatusScheduled) },
			want:   ErrExamNotRunning,
			kind:   ErrInvalidState,
		},
		{
			name: "disabled exam",
			mutate: func(f *fixture) {
				ex := f.exam
				ex.Enabled = false
				f.exams.Put(ex)
			},
			want: ErrExamNotAvailable,
			kind: ErrInvalidState,
		},
		{
			name: "other branch",
			mutate: func(f *fixture) {
				st := f.student
				st.Branch = "ECE"
				f.students.Put(st)
			},
			want: ErrExamNotAvailable,
			kind: ErrInvalidState,
		},
		{
			name: "other organization",
			mutate: func(f *fixture) {
				st := f.student
				st.OrganizationID = 99
				f.students.Put(st)
			},
			want: ErrExamNotAvailable,
			kind: ErrInvalidState,
		},
		{
			name:   "not scheduled today",
			mutate: func(f *fixture) { f.clock.Advance(24 * time.Hour) },
			want:   ErrExamNotScheduledToday,
			kind:   ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			_, _, err := f.session.StartOrResumeAttempt(context.Background(), f.student.Email, f.exam.ID)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.kind)
			assert.Zero(t, f.attempts.Len())
		})
	}
}

func TestStartOrResumeAttemptNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.session.StartOrResumeAttempt(ctx, "nobody@example.com", f.exam.ID)
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.session.StartOrResumeAttempt(ctx, f.student.Email, uuid.New())
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestResumedExamOnlyResumesExistingAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	f.setStatus(model.ExamStatusResumed)

	again, created, err := f.session.StartOrResumeAttempt(ctx, f.student.Email, f.exam.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, attempt.ID, again.ID)

	late := model.Student{ID: 8, Email: "ben@example.com", Branch: "CSE", Semester: 5, OrganizationID: 1}
	f.students.Put(late)
	_, _, err = f.session.StartOrResumeAttempt(ctx, late.Email, f.exam.ID)
	assert.ErrorIs(t, err, ErrExamNotRunning)
}

func TestAutoSaveGradesMCQIgnoringCase(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)
	f.clock.Advance(3 * time.Minute)

	err := f.session.AutoSave(context.Background(), f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: " pARIS "},
	})
	require.NoError(t, err)

	saved, ok := f.answers.Get(attempt.ID, f.mcq.Ref())
	require.True(t, ok)
	assert.True(t, saved.Correct)
	assert.Equal(t, " pARIS ", saved.Text)

	stored, err := f.attempts.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(3*time.Minute), stored.EndTime)
	assert.Equal(t, model.AttemptStatusInProgress, stored.Status())
}

func TestAutoSaveLastWriteWins(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)
	ctx := context.Background()

	require.NoError(t, f.session.AutoSave(ctx, f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.mcq.ID, QuestionType: "MCQ", Answer: "Paris"},
	}))
	require.NoError(t, f.session.AutoSave(ctx, f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.mcq.ID, QuestionType: "MCQ", Answer: "Lyon"},
	}))

	saved, ok := f.answers.Get(attempt.ID, f.mcq.Ref())
	require.True(t, ok)
	assert.Equal(t, "Lyon", saved.Text)
	assert.False(t, saved.Correct)

	all, err := f.answers.ListByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAutoSaveGradesPaddedMCQAnswerIncorrect(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)

	require.NoError(t, f.session.AutoSave(context.Background(), f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.mcq.ID, QuestionType: "MCQ", Answer: " paris"},
	}))

	saved, ok := f.answers.Get(attempt.ID, f.mcq.Ref())
	require.True(t, ok)
	assert.Equal(t, " paris", saved.Text)
	assert.False(t, saved.Correct)
}

func TestAutoSaveCodingKeepsCorrectness(t *testing.T) {
	f := newFixture(t)
	attempt := f.start(t)
	ctx := context.Background()

	require.NoError(t, f.answers.UpsertCorrect(ctx, attempt.ID, f.coding.Ref(), "print(5)", "python", testNow))

	require.NoError(t, f.session.AutoSave(ctx, f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.coding.ID, QuestionType: "code", Answer: "print(2+3)", Language: "python"},
	}))

	saved, ok := f.answers.Get(attempt.ID, f.coding.Ref())
	require.True(t, ok)
	assert.Equal(t, "print(2+3)", saved.Text)
	assert.True(t, saved.Correct)
}

func TestAutoSaveRejectsWithoutWriting(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput)
		want    error
		kind    error
	}{
		{
			name: "time budget exceeded",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				a.StartTime = testNow.Add(-70 * time.Minute)
				a.EndTime = testNow.Add(-5 * time.Minute)
				f.attempts.Put(*a)
				return f.exam.ID, []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"}}
			},
			want: ErrExamTimeOver,
			kind: ErrTimeExpired,
		},
		{
			name: "completed attempt",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				a.Completed = true
				f.attempts.Put(*a)
				return f.exam.ID, []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"}}
			},
			want: ErrAttemptCompleted,
			kind: ErrInvalidState,
		},
		{
			name: "one unknown question in batch",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				return f.exam.ID, []model.AnswerInput{
					{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"},
					{QuestionID: uuid.New(), QuestionType: "mcq", Answer: "x"},
				}
			},
			want: ErrQuestionNotFound,
			kind: ErrNotFound,
		},
		{
			name: "question kind mismatch",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				return f.exam.ID, []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "coding", Answer: "x"}}
			},
			want: ErrQuestionNotFound,
			kind: ErrNotFound,
		},
		{
			name: "invalid question type",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				return f.exam.ID, []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "essay", Answer: "x"}}
			},
			want: ErrInvalidQuestionType,
			kind: ErrInvalidArgument,
		},
		{
			name: "unknown exam",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				return uuid.New(), []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"}}
			},
			want: ErrExamNotFound,
			kind: ErrNotFound,
		},
		{
			name: "attempt of another exam",
			prepare: func(f *fixture, a *model.Attempt) (uuid.UUID, []model.AnswerInput) {
				other := f.exam
				other.ID = uuid.New()
				f.exams.Put(other)
				return other.ID, []model.AnswerInput{{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"}}
			},
			want: ErrAttemptExamMismatch,
			kind: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			attempt := f.start(t)
			examID, answers := tt.prepare(f, attempt)

			err := f.session.AutoSave(context.Background(), examID, attempt.ID, answers)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.kind)
			assert.Zero(t, f.answers.Writes)
		})
	}
}

func TestAutoSaveUnknownAttempt(t *testing.T) {
	f := newFixture(t)
	err := f.session.AutoSave(context.Background(), f.exam.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestSubmitScoresAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	require.NoError(t, f.session.AutoSave(ctx, f.exam.ID, attempt.ID, []model.AnswerInput{
		{QuestionID: f.mcq.ID, QuestionType: "mcq", Answer: "Paris"},
	}))
	verdict, err := f.session.SubmitCode(ctx, f.student.Email, f.exam.ID, model.SubmitCodeRequest{
		QuestionID: f.coding.ID,
		Answer:     "a, b = map(int, input().split())\nprint(a + b)",
		Language:   "python",
	})
	require.NoError(t, err)
	require.Equal(t, model.VerdictAccepted, verdict.Status)

	f.clock.Advance(20 * time.Minute)
	summary, err := f.session.Submit(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 41, summary.MarksObtained)
	assert.True(t, summary.Passed)
	assert.False(t, summary.AlreadySubmitted)
	assert.Equal(t, 10, summary.PassingMarks)
	assert.Equal(t, 41, summary.TotalMarks)

	stored, err := f.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.Equal(t, testNow.Add(20*time.Minute), stored.EndTime)
}

func TestSubmitTwiceReturnsStoredResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	first, err := f.session.Submit(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, first.MarksObtained)
	assert.False(t, first.Passed)

	// A late answer write must not change the recorded score.
	require.NoError(t, f.answers.UpsertCorrect(ctx, attempt.ID, f.coding.Ref(), "x", "python", testNow))

	second, err := f.session.Submit(ctx, attempt.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadySubmitted)
	assert.Equal(t, 0, second.MarksObtained)
	assert.Equal(t, 1, f.results.Len())
}

func TestSubmitWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	release, err := f.locker.Acquire(ctx, attempt.ID)
	require.NoError(t, err)
	defer release()

	_, err = f.session.Submit(ctx, attempt.ID)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.Zero(t, f.results.Len())
}

func TestFindEligibleExams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherBranch := model.Exam{
		ID: uuid.New(), Name: "Circuits", Status: model.ExamStatusStarted, Enabled: true, Duration: "30",
		ScheduleDate: f.exam.ScheduleDate, Branch: "ECE", Semester: 5, OrganizationIDs: []int{1},
	}
	f.exams.Put(otherBranch)

	exams, err := f.session.FindEligibleExams(ctx, f.student.Email)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, f.exam.ID, exams[0].ID)

	attempt := f.start(t)
	_, err = f.session.Submit(ctx, attempt.ID)
	require.NoError(t, err)

	exams, err = f.session.FindEligibleExams(ctx, f.student.Email)
	require.NoError(t, err)
	assert.Empty(t, exams)
}

func TestVerifyAttemptOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	require.NoError(t, f.session.VerifyAttemptOwner(ctx, attempt.ID, f.student.Email))

	f.students.Put(model.Student{ID: 8, Email: "ben@example.com", Branch: "CSE", Semester: 5, OrganizationID: 1})
	err := f.session.VerifyAttemptOwner(ctx, attempt.ID, "ben@example.com")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
