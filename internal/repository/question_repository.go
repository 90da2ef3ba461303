package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/codexam/internal/model"
)

// QuestionRepository handles the question bank and exam assignments.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetMCQ retrieves a multiple-choice question with its options.
func (r *QuestionRepository) GetMCQ(ctx context.Context, id uuid.UUID) (*model.MCQQuestion, error) {
	found, err := r.loadMCQs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	q, ok := found[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

// GetCoding retrieves a coding question with its test cases ordered by id.
func (r *QuestionRepository) GetCoding(ctx context.Context, id uuid.UUID) (*model.CodingQuestion, error) {
	found, err := r.loadCodings(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	q, ok := found[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

// IsAssigned reports whether the question is part of the exam.
func (r *QuestionRepository) IsAssigned(ctx context.Context, examID uuid.UUID, ref model.QuestionRef) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_questions
			WHERE exam_id = $1 AND question_kind = $2 AND question_id = $3)`,
		examID, ref.Kind, ref.ID,
	).Scan(&ok)
	return ok, err
}

// ListExamQuestions returns one page of the exam's questions of the given kind, ordered by position.
func (r *QuestionRepository) ListExamQuestions(ctx context.Context, examID uuid.UUID, kind model.QuestionKind, limit, offset int) ([]model.ExamQuestion, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_questions WHERE exam_id = $1 AND question_kind = $2`,
		examID, kind,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_id, position, marks
		 FROM exam_questions
		 WHERE exam_id = $1 AND question_kind = $2
		 ORDER BY position, id
		 LIMIT $3 OFFSET $4`,
		examID, kind, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		page []model.ExamQuestion
		ids  []uuid.UUID
	)
	for rows.Next() {
		var eq model.ExamQuestion
		var qid uuid.UUID
		if err := rows.Scan(&eq.ID, &eq.ExamID, &qid, &eq.Position, &eq.Marks); err != nil {
			return nil, 0, err
		}
		page = append(page, eq)
		ids = append(ids, qid)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(page) == 0 {
		return page, total, nil
	}

	switch kind {
	case model.QuestionKindMCQ:
		found, err := r.loadMCQs(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i, id := range ids {
			q, ok := found[id]
			if !ok {
				return nil, 0, fmt.Errorf("exam question %s references missing mcq %s", page[i].ID, id)
			}
			page[i].Question = q
		}
	case model.QuestionKindCoding:
		found, err := r.loadCodings(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i, id := range ids {
			q, ok := found[id]
			if !ok {
				return nil, 0, fmt.Errorf("exam question %s references missing coding question %s", page[i].ID, id)
			}
			page[i].Question = q
		}
	}

	return page, total, nil
}

// AssignToExam appends questions to the exam after the current last position and
// recomputes the exam total marks. Already assigned questions are skipped.
func (r *QuestionRepository) AssignToExam(ctx context.Context, examID uuid.UUID, questions []model.ExamQuestion) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM exam_questions WHERE exam_id = $1`, examID,
	).Scan(&next); err != nil {
		return 0, err
	}

	added := 0
	for _, eq := range questions {
		next++
		tag, err := tx.Exec(ctx,
			`INSERT INTO exam_questions (exam_id, question_kind, question_id, position, marks)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (exam_id, question_kind, question_id) DO NOTHING`,
			examID, eq.Question.Kind(), eq.Question.QuestionID(), next, eq.Marks)
		if err != nil {
			return 0, err
		}
		added += int(tag.RowsAffected())
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exams
		 SET total_marks = (SELECT COALESCE(SUM(marks), 0) FROM exam_questions WHERE exam_id = $1),
		     updated_at = NOW()
		 WHERE id = $1`, examID); err != nil {
		return 0, err
	}

	return added, tx.Commit(ctx)
}

// CreateMCQ inserts a multiple-choice question and its options.
func (r *QuestionRepository) CreateMCQ(ctx context.Context, q *model.MCQQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO mcq_questions (question_text, category, difficulty_level)
		 VALUES ($1, $2, $3) RETURNING id`,
		q.QuestionText, q.Category, q.DifficultyLevel,
	).Scan(&q.ID); err != nil {
		return err
	}

	for i := range q.Options {
		o := &q.Options[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO mcq_options (question_id, option_text, is_correct)
			 VALUES ($1, $2, $3) RETURNING id`,
			q.ID, o.Text, o.IsCorrect,
		).Scan(&o.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CreateCoding inserts a coding question and its test cases.
func (r *QuestionRepository) CreateCoding(ctx context.Context, q *model.CodingQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO coding_questions (title, question_text, category, difficulty_level, function_signature)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		q.Title, q.QuestionText, q.Category, q.DifficultyLevel, q.FunctionSignature,
	).Scan(&q.ID); err != nil {
		return err
	}

	for i := range q.TestCases {
		tc := &q.TestCases[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO coding_test_cases (question_id, input_data, expected_output)
			 VALUES ($1, $2, $3) RETURNING id`,
			q.ID, tc.InputData, tc.ExpectedOutput,
		).Scan(&tc.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *QuestionRepository) loadMCQs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.MCQQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, category, difficulty_level
		 FROM mcq_questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*model.MCQQuestion, len(ids))
	for rows.Next() {
		q := &model.MCQQuestion{}
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Category, &q.DifficultyLevel); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT id, question_id, option_text, is_correct
		 FROM mcq_options WHERE question_id = ANY($1)
		 ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.MCQOption
		var qid uuid.UUID
		if err := optRows.Scan(&o.ID, &qid, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		if q, ok := out[qid]; ok {
			q.Options = append(q.Options, o)
		}
	}
	return out, optRows.Err()
}

func (r *QuestionRepository) loadCodings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.CodingQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, question_text, category, difficulty_level, function_signature
		 FROM coding_questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*model.CodingQuestion, len(ids))
	for rows.Next() {
		q := &model.CodingQuestion{}
		if err := rows.Scan(&q.ID, &q.Title, &q.QuestionText, &q.Category, &q.DifficultyLevel, &q.FunctionSignature); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tcRows, err := r.pool.Query(ctx,
		`SELECT id, question_id, input_data, expected_output
		 FROM coding_test_cases WHERE question_id = ANY($1)
		 ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer tcRows.Close()

	for tcRows.Next() {
		var tc model.CodingTestCase
		var qid uuid.UUID
		if err := tcRows.Scan(&tc.ID, &qid, &tc.InputData, &tc.ExpectedOutput); err != nil {
			return nil, err
		}
		if q, ok := out[qid]; ok {
			q.TestCases = append(q.TestCases, tc)
		}
	}
	return out, tcRows.Err()
}
