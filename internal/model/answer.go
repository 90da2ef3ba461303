package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a student's saved response to one question of an attempt.
type Answer struct {
	ID        uuid.UUID   `json:"id"`
	AttemptID uuid.UUID   `json:"attempt_id"`
	Question  QuestionRef `json:"question"`
	Text      string      `json:"answer"`
	Language  string      `json:"language"`
	Correct   bool        `json:"correct"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AnswerWrite is one upsert of an answer. A nil Correct keeps the stored flag.
type AnswerWrite struct {
	Question QuestionRef
	Text     string
	Language string
	Correct  *bool
}

// GradedAnswer pairs an answer's correctness with its question's difficulty.
type GradedAnswer struct {
	Question   QuestionRef
	Difficulty string
	Correct    bool
}

// AnswerSet indexes answers by question for constant-time lookup.
type AnswerSet map[QuestionRef]Answer

// NewAnswerSet builds an index over answers; later entries win on duplicates.
func NewAnswerSet(answers []Answer) AnswerSet {
	set := make(AnswerSet, len(answers))
	for _, a := range answers {
		set[a.Question] = a
	}
	return set
}

// Lookup returns the saved answer for the question, if any.
func (s AnswerSet) Lookup(ref QuestionRef) (Answer, bool) {
	a, ok := s[ref]
	return a, ok
}
