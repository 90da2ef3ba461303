package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/codexam/internal/model"
)

const examSelect = `
	SELECT e.id, e.name, e.status, e.enabled, e.duration, e.schedule_date, e.branch, e.semester,
	       e.passing_marks, e.total_marks, e.difficulty_level, e.created_at, e.updated_at,
	       COALESCE(array_agg(eo.organization_id) FILTER (WHERE eo.organization_id IS NOT NULL), '{}')
	FROM exams e
	LEFT JOIN exam_organizations eo ON eo.exam_id = e.id`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	var orgIDs []int32
	err := row.Scan(&e.ID, &e.Name, &e.Status, &e.Enabled, &e.Duration, &e.ScheduleDate, &e.Branch, &e.Semester,
		&e.PassingMarks, &e.TotalMarks, &e.DifficultyLevel, &e.CreatedAt, &e.UpdatedAt, &orgIDs)
	if err != nil {
		return nil, err
	}
	e.OrganizationIDs = make([]int, len(orgIDs))
	for i, id := range orgIDs {
		e.OrganizationIDs[i] = int(id)
	}
	return e, nil
}

// GetByID retrieves an exam with its organization links.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx, examSelect+` WHERE e.id = $1 GROUP BY e.id`, id))
}

// ListByOrganization retrieves enabled exams linked to the organization.
func (r *ExamRepository) ListByOrganization(ctx context.Context, orgID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		examSelect+`
		WHERE e.enabled = TRUE
		  AND EXISTS (SELECT 1 FROM exam_organizations x WHERE x.exam_id = e.id AND x.organization_id = $1)
		GROUP BY e.id
		ORDER BY e.schedule_date, e.name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// Create inserts an exam together with its organization links.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (name, status, enabled, duration, schedule_date, branch, semester,
		                    passing_marks, total_marks, difficulty_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		e.Name, e.Status, e.Enabled, e.Duration, e.ScheduleDate, e.Branch, e.Semester,
		e.PassingMarks, e.TotalMarks, e.DifficultyLevel,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}

	for _, orgID := range e.OrganizationIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_organizations (exam_id, organization_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, e.ID, orgID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpdateStatus sets the exam status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
