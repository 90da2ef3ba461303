package model

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// QuestionKind distinguishes the two question variants.
type QuestionKind string

const (
	QuestionKindMCQ    QuestionKind = "MCQ"
	QuestionKindCoding QuestionKind = "CODING"
)

// ParseQuestionKind accepts the wire spellings used by clients ("mcq", "coding", "code").
func ParseQuestionKind(s string) (QuestionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq":
		return QuestionKindMCQ, true
	case "coding", "code":
		return QuestionKindCoding, true
	}
	return "", false
}

// Question is implemented by *MCQQuestion and *CodingQuestion only.
type Question interface {
	QuestionID() uuid.UUID
	Kind() QuestionKind
	Difficulty() string
	Ref() QuestionRef
	isQuestion()
}

// QuestionRef identifies a question of either kind.
type QuestionRef struct {
	Kind QuestionKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

// MCQOption is one choice of a multiple-choice question.
type MCQOption struct {
	ID        int64  `json:"id"`
	Text      string `json:"option_text"`
	IsCorrect bool   `json:"is_correct"`
}

// MCQQuestion is a multiple-choice question with two to four options, exactly one correct.
type MCQQuestion struct {
	ID              uuid.UUID   `json:"id"`
	QuestionText    string      `json:"question_text"`
	Category        string      `json:"category"`
	DifficultyLevel string      `json:"difficulty_level"`
	Options         []MCQOption `json:"options"`
}

func (q *MCQQuestion) QuestionID() uuid.UUID { return q.ID }
func (q *MCQQuestion) Kind() QuestionKind    { return QuestionKindMCQ }
func (q *MCQQuestion) Difficulty() string    { return q.DifficultyLevel }
func (q *MCQQuestion) Ref() QuestionRef      { return QuestionRef{Kind: QuestionKindMCQ, ID: q.ID} }
func (q *MCQQuestion) isQuestion()           {}

var (
	ErrOptionCount   = errors.New("mcq question must have between 2 and 4 options")
	ErrCorrectOption = errors.New("mcq question must have exactly one correct option")
)

// Validate checks the option invariants of the question.
func (q *MCQQuestion) Validate() error {
	if len(q.Options) < 2 || len(q.Options) > 4 {
		return ErrOptionCount
	}
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return ErrCorrectOption
	}
	return nil
}

// CorrectOption returns the option flagged correct.
func (q *MCQQuestion) CorrectOption() (MCQOption, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return MCQOption{}, false
}

// IsCorrectAnswer reports whether answer equals the correct option text, ignoring
// case only. Surrounding whitespace makes the answer incorrect.
func (q *MCQQuestion) IsCorrectAnswer(answer string) bool {
	correct, ok := q.CorrectOption()
	if !ok {
		return false
	}
	return strings.EqualFold(correct.Text, answer)
}

// CodingTestCase is one stdin/expected-output pair of a coding question.
type CodingTestCase struct {
	ID             int64  `json:"id"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
}

// CodingQuestion is a programming task judged against its test cases.
type CodingQuestion struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	QuestionText      string           `json:"question_text"`
	Category          string           `json:"category"`
	DifficultyLevel   string           `json:"difficulty_level"`
	FunctionSignature string           `json:"function_signature"`
	TestCases         []CodingTestCase `json:"test_cases"`
}

func (q *CodingQuestion) QuestionID() uuid.UUID { return q.ID }
func (q *CodingQuestion) Kind() QuestionKind    { return QuestionKindCoding }
func (q *CodingQuestion) Difficulty() string    { return q.DifficultyLevel }
func (q *CodingQuestion) Ref() QuestionRef      { return QuestionRef{Kind: QuestionKindCoding, ID: q.ID} }
func (q *CodingQuestion) isQuestion()           {}

// SortedTestCases returns a copy of the test cases ordered by id ascending.
func (q *CodingQuestion) SortedTestCases() []CodingTestCase {
	out := make([]CodingTestCase, len(q.TestCases))
	copy(out, q.TestCases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExamQuestion places a bank question into an exam.
type ExamQuestion struct {
	ID       uuid.UUID `json:"id"`
	ExamID   uuid.UUID `json:"exam_id"`
	Position int       `json:"position"`
	Marks    int       `json:"marks"`
	Question Question  `json:"-"`
}

// MCQOptionView hides the correct flag from students.
type MCQOptionView struct {
	ID         int64  `json:"id"`
	OptionText string `json:"option_text"`
}

type MCQQuestionView struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Category     string          `json:"category"`
	Difficulty   string          `json:"difficulty_level"`
	Options      []MCQOptionView `json:"options"`
}

type CodingQuestionView struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	QuestionText      string           `json:"question_text"`
	Category          string           `json:"category"`
	Difficulty        string           `json:"difficulty_level"`
	FunctionSignature string           `json:"function_signature"`
	TestCases         []CodingTestCase `json:"test_cases"`
}

// QuestionView is one entry of a question page, carrying the student's saved answer if any.
type QuestionView struct {
	ID             uuid.UUID           `json:"id"`
	Position       int                 `json:"position"`
	Marks          int                 `json:"marks"`
	MCQQuestion    *MCQQuestionView    `json:"mcq_question,omitempty"`
	CodingQuestion *CodingQuestionView `json:"coding_question,omitempty"`
	Answer         string              `json:"answer"`
	Language       string              `json:"language,omitempty"`
}

// NewQuestionView builds the student-facing view of an exam question.
func NewQuestionView(eq ExamQuestion) QuestionView {
	v := QuestionView{ID: eq.ID, Position: eq.Position, Marks: eq.Marks}
	switch q := eq.Question.(type) {
	case *MCQQuestion:
		opts := make([]MCQOptionView, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, MCQOptionView{ID: o.ID, OptionText: o.Text})
		}
		v.MCQQuestion = &MCQQuestionView{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Category:     q.Category,
			Difficulty:   q.DifficultyLevel,
			Options:      opts,
		}
	case *CodingQuestion:
		v.CodingQuestion = &CodingQuestionView{
			ID:                q.ID,
			Title:             q.Title,
			QuestionText:      q.QuestionText,
			Category:          q.Category,
			Difficulty:        q.DifficultyLevel,
			FunctionSignature: q.FunctionSignature,
			TestCases:         q.SortedTestCases(),
		}
	}
	return v
}
