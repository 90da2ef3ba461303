// Package storetest provides in-memory implementations of the stores the
// services depend on. Lookups of missing rows return pgx.ErrNoRows like the
// pgx repositories do.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/codexam/internal/judge"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/repository"
)

// Students is an in-memory student directory keyed by lower-cased email.
type Students struct {
	mu   sync.Mutex
	byEmail map[string]model.Student
}

func NewStudents(students ...model.Student) *Students {
	s := &Students{byEmail: make(map[string]model.Student)}
	for _, st := range students {
		s.Put(st)
	}
	return s
}

func (s *Students) Put(st model.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[strings.ToLower(st.Email)] = st
}

func (s *Students) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &st, nil
}

// Exams is an in-memory exam store that also counts cache invalidations.
type Exams struct {
	mu            sync.Mutex
	exams         map[uuid.UUID]model.Exam
	Invalidations int
}

func NewExams(exams ...model.Exam) *Exams {
	e := &Exams{exams: make(map[uuid.UUID]model.Exam)}
	for _, ex := range exams {
		e.Put(ex)
	}
	return e
}

func (e *Exams) Put(ex model.Exam) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exams[ex.ID] = ex
}

func (e *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, ok := e.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ex, nil
}

func (e *Exams) ListByOrganization(_ context.Context, orgID int) ([]model.Exam, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.Exam
	for _, ex := range e.exams {
		if ex.Enabled && ex.HasOrganization(orgID) {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleDate.Before(out[j].ScheduleDate) })
	return out, nil
}

func (e *Exams) UpdateStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, ok := e.exams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ex.Status = status
	e.exams[id] = ex
	return nil
}

func (e *Exams) Invalidate(context.Context, uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Invalidations++
	return nil
}

// Questions is an in-memory question bank plus exam assignments.
type Questions struct {
	mu       sync.Mutex
	mcq      map[uuid.UUID]*model.MCQQuestion
	coding   map[uuid.UUID]*model.CodingQuestion
	assigned []model.ExamQuestion
	exams    *Exams
}

// NewQuestions creates an empty bank. When exams is set, assignment updates their total marks.
func NewQuestions(exams *Exams) *Questions {
	return &Questions{
		mcq:    make(map[uuid.UUID]*model.MCQQuestion),
		coding: make(map[uuid.UUID]*model.CodingQuestion),
		exams:  exams,
	}
}

func (q *Questions) AddMCQ(m *model.MCQQuestion) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mcq[m.ID] = m
}

func (q *Questions) AddCoding(c *model.CodingQuestion) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.coding[c.ID] = c
}

func (q *Questions) GetMCQ(_ context.Context, id uuid.UUID) (*model.MCQQuestion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.mcq[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m, nil
}

func (q *Questions) GetCoding(_ context.Context, id uuid.UUID) (*model.CodingQuestion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.coding[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (q *Questions) IsAssigned(_ context.Context, examID uuid.UUID, ref model.QuestionRef) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(examID, ref) >= 0, nil
}

func (q *Questions) ListExamQuestions(_ context.Context, examID uuid.UUID, kind model.QuestionKind, limit, offset int) ([]model.ExamQuestion, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var all []model.ExamQuestion
	for _, eq := range q.assigned {
		if eq.ExamID == examID && eq.Question.Kind() == kind {
			all = append(all, eq)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Position < all[j].Position })

	total := len(all)
	if offset >= total {
		return []model.ExamQuestion{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (q *Questions) AssignToExam(_ context.Context, examID uuid.UUID, questions []model.ExamQuestion) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := 0
	for _, eq := range q.assigned {
		if eq.ExamID == examID && eq.Position > next {
			next = eq.Position
		}
	}

	added := 0
	for _, eq := range questions {
		next++
		if q.indexOf(examID, eq.Question.Ref()) >= 0 {
			continue
		}
		eq.ID = uuid.New()
		eq.ExamID = examID
		eq.Position = next
		q.assigned = append(q.assigned, eq)
		added++
	}

	if q.exams != nil {
		total := 0
		for _, eq := range q.assigned {
			if eq.ExamID == examID {
				total += eq.Marks
			}
		}
		q.exams.mu.Lock()
		if ex, ok := q.exams.exams[examID]; ok {
			ex.TotalMarks = total
			q.exams.exams[examID] = ex
		}
		q.exams.mu.Unlock()
	}
	return added, nil
}

func (q *Questions) difficulty(ref model.QuestionRef) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch ref.Kind {
	case model.QuestionKindMCQ:
		if m, ok := q.mcq[ref.ID]; ok {
			return m.DifficultyLevel
		}
	case model.QuestionKindCoding:
		if c, ok := q.coding[ref.ID]; ok {
			return c.DifficultyLevel
		}
	}
	return ""
}

func (q *Questions) indexOf(examID uuid.UUID, ref model.QuestionRef) int {
	for i, eq := range q.assigned {
		if eq.ExamID == examID && eq.Question.Ref() == ref {
			return i
		}
	}
	return -1
}

// Attempts is an in-memory attempt store with one attempt per (exam, student).
type Attempts struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]model.Attempt
}

func NewAttempts() *Attempts {
	return &Attempts{attempts: make(map[uuid.UUID]model.Attempt)}
}

func (a *Attempts) Put(at model.Attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts[at.ID] = at
}

func (a *Attempts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attempts)
}

func (a *Attempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &at, nil
}

func (a *Attempts) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, at := range a.attempts {
		if at.ExamID == examID && at.StudentID == studentID {
			return &at, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (a *Attempts) Create(_ context.Context, at *model.Attempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.attempts {
		if existing.ExamID == at.ExamID && existing.StudentID == at.StudentID {
			return pgx.ErrNoRows
		}
	}
	at.ID = uuid.New()
	at.CreatedAt = at.StartTime
	a.attempts[at.ID] = *at
	return nil
}

func (a *Attempts) MarkCompleted(_ context.Context, id uuid.UUID, when time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	at.Completed = true
	at.EndTime = when
	a.attempts[id] = at
	return nil
}

func (a *Attempts) ListByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.Attempt
	for _, at := range a.attempts {
		if at.StudentID == studentID {
			out = append(out, at)
		}
	}
	return out, nil
}

func (a *Attempts) setEndTime(id uuid.UUID, when time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if at, ok := a.attempts[id]; ok {
		at.EndTime = when
		a.attempts[id] = at
	}
}

// Answers is an in-memory answer store. Writes advance the attempt end time
// in the linked Attempts, mirroring the single transaction of the pgx store.
type Answers struct {
	mu        sync.Mutex
	answers   map[uuid.UUID]map[model.QuestionRef]model.Answer
	attempts  *Attempts
	questions *Questions
	Writes    int
}

func NewAnswers(attempts *Attempts, questions *Questions) *Answers {
	return &Answers{
		answers:   make(map[uuid.UUID]map[model.QuestionRef]model.Answer),
		attempts:  attempts,
		questions: questions,
	}
}

func (s *Answers) UpsertBatch(_ context.Context, attemptID uuid.UUID, writes []model.AnswerWrite, endTime time.Time) error {
	s.mu.Lock()
	byRef, ok := s.answers[attemptID]
	if !ok {
		byRef = make(map[model.QuestionRef]model.Answer)
		s.answers[attemptID] = byRef
	}
	for _, w := range writes {
		a, exists := byRef[w.Question]
		if !exists {
			a = model.Answer{ID: uuid.New(), AttemptID: attemptID, Question: w.Question}
		}
		a.Text = w.Text
		a.Language = w.Language
		if w.Correct != nil {
			a.Correct = *w.Correct
		}
		a.UpdatedAt = endTime
		byRef[w.Question] = a
		s.Writes++
	}
	s.mu.Unlock()

	if s.attempts != nil {
		s.attempts.setEndTime(attemptID, endTime)
	}
	return nil
}

func (s *Answers) UpsertCorrect(ctx context.Context, attemptID uuid.UUID, ref model.QuestionRef, text, language string, endTime time.Time) error {
	correct := true
	return s.UpsertBatch(ctx, attemptID, []model.AnswerWrite{{Question: ref, Text: text, Language: language, Correct: &correct}}, endTime)
}

func (s *Answers) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Answer, 0, len(s.answers[attemptID]))
	for _, a := range s.answers[attemptID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Question.ID.String() < out[j].Question.ID.String() })
	return out, nil
}

func (s *Answers) ListForScoring(ctx context.Context, attemptID uuid.UUID) ([]model.GradedAnswer, error) {
	answers, _ := s.ListByAttempt(ctx, attemptID)
	out := make([]model.GradedAnswer, 0, len(answers))
	for _, a := range answers {
		g := model.GradedAnswer{Question: a.Question, Correct: a.Correct}
		if s.questions != nil {
			g.Difficulty = s.questions.difficulty(a.Question)
		}
		out = append(out, g)
	}
	return out, nil
}

// Get returns the stored answer for one question of an attempt.
func (s *Answers) Get(attemptID uuid.UUID, ref model.QuestionRef) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[attemptID][ref]
	return a, ok
}

// Results is an in-memory result store with one result per (exam, student).
type Results struct {
	mu       sync.Mutex
	results  []model.ExamResult
	students *Students
}

func NewResults(students *Students) *Results {
	return &Results{students: students}
}

func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *Results) Create(_ context.Context, res *model.ExamResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.results {
		if existing.ExamID == res.ExamID && existing.StudentID == res.StudentID {
			return false, nil
		}
	}
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	r.results = append(r.results, *res)
	return true, nil
}

func (r *Results) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.ExamID == examID && res.StudentID == studentID {
			out := res
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Results) ListByExam(_ context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error) {
	r.mu.Lock()
	var rows []model.ExamResultRow
	for _, res := range r.results {
		if res.ExamID == examID {
			rows = append(rows, model.ExamResultRow{ExamResult: res})
		}
	}
	r.mu.Unlock()

	if r.students != nil {
		r.students.mu.Lock()
		for i := range rows {
			for _, st := range r.students.byEmail {
				if st.ID == rows[i].StudentID {
					rows[i].StudentEmail = st.Email
					rows[i].StudentName = st.Name
				}
			}
		}
		r.students.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MarksObtained > rows[j].MarksObtained })

	total := len(rows)
	if offset >= total {
		return []model.ExamResultRow{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return rows[offset:end], total, nil
}

// Locker is an in-process submit lock.
type Locker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func NewLocker() *Locker {
	return &Locker{held: make(map[uuid.UUID]bool)}
}

func (l *Locker) Acquire(_ context.Context, attemptID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[attemptID] {
		return nil, repository.ErrLockHeld
	}
	l.held[attemptID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, attemptID)
	}, nil
}

// Runner is a scripted sandbox that records every submission it receives.
type Runner struct {
	mu      sync.Mutex
	RunFunc func(sub judge.Submission) (*judge.ExecutionResult, error)
	Calls   []judge.Submission
}

// Stdout returns a runner that always prints out.
func Stdout(out string) *Runner {
	return &Runner{RunFunc: func(judge.Submission) (*judge.ExecutionResult, error) {
		return &judge.ExecutionResult{Stdout: out, Status: judge.Status{ID: 3, Description: "Accepted"}}, nil
	}}
}

func (r *Runner) Run(_ context.Context, sub judge.Submission) (*judge.ExecutionResult, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, sub)
	fn := r.RunFunc
	r.mu.Unlock()
	if fn == nil {
		return &judge.ExecutionResult{}, nil
	}
	return fn(sub)
}
