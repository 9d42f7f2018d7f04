package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

const submissionColumns = `id, user_id, exam_assignment_id, homework_assignment_id, test_id, quiz_id,
	status, started_at, completed_at, score::text, answers, result, snapshot, created_at, updated_at`

// FinalizeFunc computes the graded state of a submission. It runs inside the
// finalize transaction after the current row has been read.
type FinalizeFunc func(ctx context.Context, current *model.Submission) (*model.Finalization, error)

// StartedCursor is a keyset position for paging STARTED submissions.
type StartedCursor struct {
	StartedAt time.Time
	ID        uuid.UUID
}

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts a new STARTED submission. When a row for the same attempt key
// already exists nothing is written and ErrConflict is returned.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid submission: %w", err)
	}
	examID, homeworkID := assignmentColumns(s.Assignment)
	testID, quizID := resourceColumns(s.Resource)

	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions
			(user_id, exam_assignment_id, homework_assignment_id, test_id, quiz_id, status, started_at, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '{}')
		 ON CONFLICT DO NOTHING
		 RETURNING id, started_at, created_at, updated_at`,
		s.UserID, examID, homeworkID, testID, quizID, model.SubmissionStatusStarted, s.StartedAt,
	).Scan(&s.ID, &s.StartedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return classify(err)
	}

	s.Status = model.SubmissionStatusStarted
	s.Answers = model.Answers{}
	return nil
}

// GetByID retrieves a submission by id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return getSubmission(ctx, r.pool, id)
}

// FindByAttempt retrieves the submission for a (user, assignment, resource) attempt key.
func (r *SubmissionRepository) FindByAttempt(ctx context.Context, userID uuid.UUID, assignment model.AssignmentRef, resource model.ResourceRef) (*model.Submission, error) {
	var row pgx.Row
	switch {
	case assignment.Kind == model.AssignmentExam:
		row = r.pool.QueryRow(ctx,
			`SELECT `+submissionColumns+` FROM submissions
			 WHERE user_id = $1 AND exam_assignment_id = $2`, userID, assignment.ID)
	case resource.Kind == model.ResourceQuiz:
		row = r.pool.QueryRow(ctx,
			`SELECT `+submissionColumns+` FROM submissions
			 WHERE user_id = $1 AND homework_assignment_id = $2 AND quiz_id = $3`, userID, assignment.ID, resource.ID)
	default:
		row = r.pool.QueryRow(ctx,
			`SELECT `+submissionColumns+` FROM submissions
			 WHERE user_id = $1 AND homework_assignment_id = $2 AND test_id = $3`, userID, assignment.ID, resource.ID)
	}
	return scanSubmission(row)
}

// Finalize moves a STARTED submission to GRADED in one transaction. fn builds
// the finalization from the current row; the write is a compare-and-set on
// status, so a concurrent finalize makes this call return ErrNotStarted and
// nothing is written.
func (r *SubmissionRepository) Finalize(ctx context.Context, id uuid.UUID, fn FinalizeFunc) (*model.Submission, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := getSubmission(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	fin, err := fn(ctx, current)
	if err != nil {
		return nil, err
	}

	answers, err := json.Marshal(fin.Answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	result, err := json.Marshal(fin.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	snapshot, err := json.Marshal(fin.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET status = $2, answers = $3, completed_at = $4, score = $5::numeric,
		     result = $6, snapshot = $7, updated_at = NOW()
		 WHERE id = $1 AND status = $8`,
		id, model.SubmissionStatusGraded, answers, fin.CompletedAt, fin.Score.String(),
		result, snapshot, model.SubmissionStatusStarted,
	)
	if err != nil {
		return nil, classify(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotStarted
	}

	graded, err := getSubmission(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit finalize: %w", err)
	}
	return graded, nil
}

// SaveDraftAnswers replaces the autosaved answers of a STARTED submission.
func (r *SubmissionRepository) SaveDraftAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions SET answers = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, raw, model.SubmissionStatusStarted)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotStarted
	}
	return nil
}

// ListStarted pages through STARTED submissions that began at or before
// startedBefore, oldest first.
func (r *SubmissionRepository) ListStarted(ctx context.Context, startedBefore time.Time, after *StartedCursor, limit int) ([]model.Submission, error) {
	cursorAt := time.Time{}
	cursorID := uuid.Nil
	if after != nil {
		cursorAt, cursorID = after.StartedAt, after.ID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE status = $1 AND started_at <= $2 AND (started_at, id) > ($3, $4)
		 ORDER BY started_at, id
		 LIMIT $5`,
		model.SubmissionStatusStarted, startedBefore, cursorAt, cursorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func getSubmission(ctx context.Context, q querier, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(q.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var (
		s                         model.Submission
		examID, homeworkID        *uuid.UUID
		testID, quizID            *uuid.UUID
		score                     string
		answers, result, snapshot []byte
	)

	err := row.Scan(
		&s.ID, &s.UserID, &examID, &homeworkID, &testID, &quizID,
		&s.Status, &s.StartedAt, &s.CompletedAt, &score, &answers, &result, &snapshot,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}

	switch {
	case examID != nil:
		s.Assignment = model.AssignmentRef{Kind: model.AssignmentExam, ID: *examID}
	case homeworkID != nil:
		s.Assignment = model.AssignmentRef{Kind: model.AssignmentHomework, ID: *homeworkID}
	}
	switch {
	case testID != nil:
		s.Resource = model.ResourceRef{Kind: model.ResourceTest, ID: *testID}
	case quizID != nil:
		s.Resource = model.ResourceRef{Kind: model.ResourceQuiz, ID: *quizID}
	}

	if s.Score, err = model.ParseScore(score); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if result != nil {
		s.Result = &model.Result{}
		if err := json.Unmarshal(result, s.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if snapshot != nil {
		s.Snapshot = &model.Snapshot{}
		if err := json.Unmarshal(snapshot, s.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &s, nil
}

func assignmentColumns(ref model.AssignmentRef) (exam, homework *uuid.UUID) {
	id := ref.ID
	if ref.Kind == model.AssignmentExam {
		return &id, nil
	}
	return nil, &id
}

func resourceColumns(ref model.ResourceRef) (test, quiz *uuid.UUID) {
	id := ref.ID
	if ref.Kind == model.ResourceQuiz {
		return nil, &id
	}
	return &id, nil
}
