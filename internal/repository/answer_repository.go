package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/codexam/internal/database"
	"github.com/stemsi/codexam/internal/model"
)

// upsertAnswerSQL keeps the stored correctness flag when $6 is NULL.
const upsertAnswerSQL = `
	INSERT INTO student_answers (attempt_id, question_kind, question_id, answer, language, is_correct)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6::boolean, FALSE))
	ON CONFLICT (attempt_id, question_kind, question_id) DO UPDATE
	SET answer     = EXCLUDED.answer,
	    language   = EXCLUDED.language,
	    is_correct = COALESCE($6::boolean, student_answers.is_correct),
	    updated_at = NOW()`

// AnswerRepository handles student answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch writes every answer and advances the attempt end time in one transaction.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, attemptID uuid.UUID, writes []model.AnswerWrite, endTime time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, w := range writes {
			batch.Queue(upsertAnswerSQL, attemptID, w.Question.Kind, w.Question.ID, w.Text, w.Language, w.Correct)
		}
		batch.Queue(`UPDATE student_exams SET end_time = $2 WHERE id = $1`, attemptID, endTime)

		return tx.SendBatch(ctx, batch).Close()
	})
}

// UpsertCorrect stores an accepted coding answer and advances the attempt end time.
func (r *AnswerRepository) UpsertCorrect(ctx context.Context, attemptID uuid.UUID, ref model.QuestionRef, text, language string, endTime time.Time) error {
	correct := true
	return r.UpsertBatch(ctx, attemptID, []model.AnswerWrite{{
		Question: ref,
		Text:     text,
		Language: language,
		Correct:  &correct,
	}}, endTime)
}

// ListByAttempt retrieves every saved answer of an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_kind, question_id, answer, language, is_correct, updated_at
		 FROM student_answers
		 WHERE attempt_id = $1
		 ORDER BY created_at, id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.Question.Kind, &a.Question.ID, &a.Text, &a.Language, &a.Correct, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListForScoring returns each answer's correctness joined with its question difficulty.
func (r *AnswerRepository) ListForScoring(ctx context.Context, attemptID uuid.UUID) ([]model.GradedAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.question_kind, a.question_id, a.is_correct,
		        COALESCE(m.difficulty_level, c.difficulty_level, '')
		 FROM student_answers a
		 LEFT JOIN mcq_questions m ON a.question_kind = 'MCQ' AND m.id = a.question_id
		 LEFT JOIN coding_questions c ON a.question_kind = 'CODING' AND c.id = a.question_id
		 WHERE a.attempt_id = $1
		 ORDER BY a.created_at, a.id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var graded []model.GradedAnswer
	for rows.Next() {
		var g model.GradedAnswer
		if err := rows.Scan(&g.Question.Kind, &g.Question.ID, &g.Correct, &g.Difficulty); err != nil {
			return nil, err
		}
		graded = append(graded, g)
	}
	return graded, rows.Err()
}
