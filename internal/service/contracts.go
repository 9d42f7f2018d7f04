package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

// SubmissionStore persists attempts. *repository.SubmissionRepository satisfies it.
type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	FindByAttempt(ctx context.Context, userID uuid.UUID, assignment model.AssignmentRef, resource model.ResourceRef) (*model.Submission, error)
	Finalize(ctx context.Context, id uuid.UUID, fn repository.FinalizeFunc) (*model.Submission, error)
	SaveDraftAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error
	ListStarted(ctx context.Context, startedBefore time.Time, after *repository.StartedCursor, limit int) ([]model.Submission, error)
}

// ContentCatalog reads test and quiz structure, answer keys included.
type ContentCatalog interface {
	GetResource(ctx context.Context, ref model.ResourceRef) (model.Resource, error)
	IsPublishable(ctx context.Context, ref model.ResourceRef) (bool, error)
}

// AssignmentRegistry reads assignment metadata.
type AssignmentRegistry interface {
	Get(ctx context.Context, ref model.AssignmentRef) (*model.Assignment, error)
}

var (
	_ SubmissionStore    = (*repository.SubmissionRepository)(nil)
	_ ContentCatalog     = (*repository.ContentRepository)(nil)
	_ AssignmentRegistry = (*repository.AssignmentRepository)(nil)
)
