package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/codexam/internal/model"
)

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts the result unless one already exists for (exam, student).
// It reports whether a new row was written.
func (r *ResultRepository) Create(ctx context.Context, res *model.ExamResult) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_results (exam_id, student_id, attempt_id, marks_obtained, is_passed)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, created_at`,
		res.ExamID, res.StudentID, res.AttemptID, res.MarksObtained, res.Passed,
	).Scan(&res.ID, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByExamAndStudent retrieves the stored result for a student.
func (r *ResultRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, attempt_id, marks_obtained, is_passed, created_at
		 FROM exam_results WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&res.ID, &res.ExamID, &res.StudentID, &res.AttemptID, &res.MarksObtained, &res.Passed, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByExam retrieves one page of results for an exam, best marks first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_results WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT er.id, er.exam_id, er.student_id, er.attempt_id, er.marks_obtained, er.is_passed, er.created_at,
		        s.email, s.name
		 FROM exam_results er
		 JOIN students s ON s.id = er.student_id
		 WHERE er.exam_id = $1
		 ORDER BY er.marks_obtained DESC, s.name
		 LIMIT $2 OFFSET $3`, examID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResultRow
	for rows.Next() {
		var row model.ExamResultRow
		if err := rows.Scan(&row.ID, &row.ExamID, &row.StudentID, &row.AttemptID, &row.MarksObtained, &row.Passed, &row.CreatedAt,
			&row.StudentEmail, &row.StudentName); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}
	return results, total, rows.Err()
}
