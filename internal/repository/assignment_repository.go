package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// AssignmentRepository reads exam and homework assignment metadata.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// Get retrieves an assignment of the given kind.
func (r *AssignmentRepository) Get(ctx context.Context, ref model.AssignmentRef) (*model.Assignment, error) {
	switch ref.Kind {
	case model.AssignmentExam:
		return r.getExam(ctx, ref.ID)
	case model.AssignmentHomework:
		return r.getHomework(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("unknown assignment kind %q", ref.Kind)
	}
}

func (r *AssignmentRepository) getExam(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{Kind: model.AssignmentExam}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, test_id, visibility, show_results_immediately, results_published
		 FROM exam_assignments
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.TestID, &a.Visibility, &a.ShowResultsImmediately, &a.ResultsPublished)
	if err != nil {
		return nil, classify(err)
	}
	return a, nil
}

func (r *AssignmentRepository) getHomework(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{Kind: model.AssignmentHomework}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, deadline, show_results_immediately, results_published
		 FROM homework_assignments
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Deadline, &a.ShowResultsImmediately, &a.ResultsPublished)
	if err != nil {
		return nil, classify(err)
	}

	if a.TestIDs, err = r.listIDs(ctx, `SELECT test_id FROM homework_tests WHERE homework_id = $1`, id); err != nil {
		return nil, fmt.Errorf("list homework tests: %w", err)
	}
	if a.QuizIDs, err = r.listIDs(ctx, `SELECT quiz_id FROM homework_quizzes WHERE homework_id = $1`, id); err != nil {
		return nil, fmt.Errorf("list homework quizzes: %w", err)
	}
	return a, nil
}

func (r *AssignmentRepository) listIDs(ctx context.Context, query string, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var v uuid.UUID
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		ids = append(ids, v)
	}
	return ids, rows.Err()
}
