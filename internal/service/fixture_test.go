package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/codexam/internal/examclock"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/storetest"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *examclock.FixedClock
	students  *storetest.Students
	exams     *storetest.Exams
	questions *storetest.Questions
	attempts  *storetest.Attempts
	answers   *storetest.Answers
	results   *storetest.Results
	locker    *storetest.Locker
	runner    *storetest.Runner

	session *ExamSessionService
	pager   *ExamQuestionService
	admin   *ExamAdminService

	student model.Student
	exam    model.Exam
	mcq     *model.MCQQuestion
	coding  *model.CodingQuestion
}

// newFixture builds a running 60-minute exam, scheduled today, with one easy
// MCQ and one hard coding question assigned, and one eligible student.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:  &examclock.FixedClock{T: testNow},
		runner: storetest.Stdout("5\n"),
		locker: storetest.NewLocker(),
		student: model.Student{
			ID:             7,
			Email:          "ana@example.com",
			Name:           "Ana",
			Branch:         "CSE",
			Semester:       5,
			OrganizationID: 1,
		},
		exam: model.Exam{
			ID:              uuid.New(),
			Name:            "Data Structures",
			Status:          model.ExamStatusStarted,
			Enabled:         true,
			Duration:        "60",
			ScheduleDate:    time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			Branch:          "cse",
			Semester:        5,
			PassingMarks:    10,
			OrganizationIDs: []int{1},
		},
		mcq: &model.MCQQuestion{
			ID:              uuid.New(),
			QuestionText:    "Capital of France?",
			DifficultyLevel: "Easy",
			Options: []model.MCQOption{
				{ID: 1, Text: "Paris", IsCorrect: true},
				{ID: 2, Text: "Lyon"},
			},
		},
		coding: &model.CodingQuestion{
			ID:              uuid.New(),
			Title:           "Sum",
			DifficultyLevel: "Hard",
			TestCases:       []model.CodingTestCase{{ID: 1, InputData: "2 3", ExpectedOutput: "5"}},
		},
	}

	f.students = storetest.NewStudents(f.student)
	f.exams = storetest.NewExams(f.exam)
	f.questions = storetest.NewQuestions(f.exams)
	f.questions.AddMCQ(f.mcq)
	f.questions.AddCoding(f.coding)
	f.attempts = storetest.NewAttempts()
	f.answers = storetest.NewAnswers(f.attempts, f.questions)
	f.results = storetest.NewResults(f.students)

	f.session = NewExamSessionService(ExamSessionDeps{
		Students:  f.students,
		Exams:     f.exams,
		Questions: f.questions,
		Attempts:  f.attempts,
		Answers:   f.answers,
		Results:   f.results,
		Locker:    f.locker,
		Runner:    f.runner,
		Clock:     f.clock,
		Location:  time.UTC,
	}, zerolog.Nop())
	f.pager = NewExamQuestionService(f.session, f.questions, f.answers)
	f.admin = NewExamAdminService(f.exams, f.questions, f.results, zerolog.Nop())

	_, err := f.questions.AssignToExam(context.Background(), f.exam.ID, []model.ExamQuestion{
		{Marks: 1, Question: f.mcq},
		{Marks: 40, Question: f.coding},
	})
	require.NoError(t, err)
	stored, err := f.exams.GetByID(context.Background(), f.exam.ID)
	require.NoError(t, err)
	f.exam = *stored

	return f
}

func (f *fixture) start(t *testing.T) *model.Attempt {
	t.Helper()
	attempt, _, err := f.session.StartOrResumeAttempt(context.Background(), f.student.Email, f.exam.ID)
	require.NoError(t, err)
	return attempt
}

func (f *fixture) setStatus(status model.ExamStatus) {
	ex := f.exam
	ex.Status = status
	f.exams.Put(ex)
}
