package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stemsi/codexam/internal/model"
)

func graded(kind model.QuestionKind, level string, correct bool) model.GradedAnswer {
	return model.GradedAnswer{
		Question:   model.QuestionRef{Kind: kind, ID: uuid.New()},
		Difficulty: level,
		Correct:    correct,
	}
}

func TestMarksTable(t *testing.T) {
	cases := []struct {
		kind  model.QuestionKind
		level string
		want  int
	}{
		{model.QuestionKindMCQ, "Easy", 1},
		{model.QuestionKindMCQ, "medium", 2},
		{model.QuestionKindMCQ, "Hard", 3},
		{model.QuestionKindMCQ, "Expert", 3},
		{model.QuestionKindCoding, "EASY", 20},
		{model.QuestionKindCoding, "Medium", 30},
		{model.QuestionKindCoding, "", 40},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Marks(tc.kind, tc.level), "%s/%s", tc.kind, tc.level)
	}
}

func TestScoreEasyMCQAndHardCoding(t *testing.T) {
	answers := []model.GradedAnswer{
		graded(model.QuestionKindMCQ, "Easy", true),
		graded(model.QuestionKindCoding, "Hard", true),
		graded(model.QuestionKindMCQ, "Hard", false),
	}

	r := Score(answers, 10)

	assert.Equal(t, 41, r.MarksObtained)
	assert.True(t, r.Passed)
	assert.Equal(t, 2, r.Correct)
	assert.Equal(t, 3, r.Answered)
}

func TestScoreIsDeterministic(t *testing.T) {
	answers := []model.GradedAnswer{
		graded(model.QuestionKindMCQ, "Medium", true),
		graded(model.QuestionKindCoding, "Easy", true),
	}

	assert.Equal(t, Score(answers, 30), Score(answers, 30))
}

func TestScoreBelowPassingMarks(t *testing.T) {
	r := Score([]model.GradedAnswer{graded(model.QuestionKindMCQ, "Easy", true)}, 2)
	assert.Equal(t, 1, r.MarksObtained)
	assert.False(t, r.Passed)

	empty := Score(nil, 0)
	assert.True(t, empty.Passed)
}

func TestTotalMarks(t *testing.T) {
	qs := []model.Question{
		&model.MCQQuestion{DifficultyLevel: "Easy"},
		&model.CodingQuestion{DifficultyLevel: "Medium"},
	}
	assert.Equal(t, 31, TotalMarks(qs))
}
