// Package scoring owns the difficulty to marks table and attempt scoring.
package scoring

import (
	"strings"

	"github.com/stemsi/codexam/internal/model"
)

// Difficulty is the normalized question difficulty.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ParseDifficulty normalizes a stored level; anything not Easy or Medium counts as Hard.
func ParseDifficulty(level string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "easy":
		return Easy
	case "medium":
		return Medium
	default:
		return Hard
	}
}

var marksTable = map[model.QuestionKind]map[Difficulty]int{
	model.QuestionKindMCQ:    {Easy: 1, Medium: 2, Hard: 3},
	model.QuestionKindCoding: {Easy: 20, Medium: 30, Hard: 40},
}

// Marks returns the points a correct answer of kind and level is worth.
func Marks(kind model.QuestionKind, level string) int {
	return marksTable[kind][ParseDifficulty(level)]
}

// Result is the outcome of scoring one attempt.
type Result struct {
	MarksObtained int  `json:"marks_obtained"`
	Passed        bool `json:"passed"`
	Correct       int  `json:"correct"`
	Answered      int  `json:"answered"`
}

// Score totals the marks of the correct answers.
func Score(answers []model.GradedAnswer, passingMarks int) Result {
	var r Result
	for _, a := range answers {
		r.Answered++
		if !a.Correct {
			continue
		}
		r.Correct++
		r.MarksObtained += Marks(a.Question.Kind, a.Difficulty)
	}
	r.Passed = r.MarksObtained >= passingMarks
	return r
}

// TotalMarks sums the marks of a set of exam questions.
func TotalMarks(questions []model.Question) int {
	total := 0
	for _, q := range questions {
		total += Marks(q.Kind(), q.Difficulty())
	}
	return total
}
