package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/observability"
	"github.com/stemsi/exstem-grading/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// PaperSource returns the sanitized paper for a resource.
type PaperSource interface {
	Get(ctx context.Context, ref model.ResourceRef) (*model.Paper, error)
}

// AttemptService opens or resumes attempts.
type AttemptService struct {
	store       SubmissionStore
	catalog     ContentCatalog
	assignments AssignmentRegistry
	papers      PaperSource
	now         func() time.Time
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	store SubmissionStore,
	catalog ContentCatalog,
	assignments AssignmentRegistry,
	papers PaperSource,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		store:       store,
		catalog:     catalog,
		assignments: assignments,
		papers:      papers,
		now:         time.Now,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// StartExam opens the attempt for an exam assignment's linked test.
func (s *AttemptService) StartExam(ctx context.Context, userID, assignmentID uuid.UUID) (*model.StartedAttempt, error) {
	return s.Start(ctx, userID, model.AssignmentRef{Kind: model.AssignmentExam, ID: assignmentID}, nil)
}

// StartHomework opens the attempt for one test or quiz of a homework assignment.
func (s *AttemptService) StartHomework(ctx context.Context, userID, assignmentID uuid.UUID, resource model.ResourceRef) (*model.StartedAttempt, error) {
	return s.Start(ctx, userID, model.AssignmentRef{Kind: model.AssignmentHomework, ID: assignmentID}, &resource)
}

// Start checks admission preconditions in order, then creates the STARTED row
// or returns the existing one. A resumed attempt keeps its original started_at.
// resource is ignored for exams, which always use the linked test.
func (s *AttemptService) Start(ctx context.Context, userID uuid.UUID, ref model.AssignmentRef, resource *model.ResourceRef) (*model.StartedAttempt, error) {
	ctx, span := tracer.Start(ctx, "attempt.start")
	span.SetAttributes(
		attribute.String("assignment.kind", string(ref.Kind)),
		attribute.String("assignment.id", ref.ID.String()),
	)
	defer span.End()

	assignment, err := s.assignments.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, spanFail(span, ErrNotFound, "assignment_not_found")
		}
		return nil, spanFail(span, fmt.Errorf("get assignment: %w", err), "assignment_lookup_failed")
	}

	now := s.now().UTC()
	var target model.ResourceRef
	switch ref.Kind {
	case model.AssignmentExam:
		if assignment.Visibility != model.VisibilityOpen {
			return nil, spanFail(span, ErrNotOpen, "not_open")
		}
		target = model.ResourceRef{Kind: model.ResourceTest, ID: assignment.TestID}
	case model.AssignmentHomework:
		if assignment.DeadlinePassed(now) {
			return nil, spanFail(span, ErrDeadlinePassed, "deadline_passed")
		}
		if resource == nil || !resource.Kind.Valid() {
			return nil, spanFail(span, ErrValidation, "resource_required")
		}
		target = *resource
	default:
		return nil, spanFail(span, ErrValidation, "unknown_assignment_kind")
	}
	span.SetAttributes(attribute.String("resource", target.String()))

	if !assignment.Includes(target) {
		return nil, spanFail(span, ErrNotFound, "resource_not_in_assignment")
	}

	publishable, err := s.catalog.IsPublishable(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, spanFail(span, ErrNotFound, "resource_not_found")
		}
		return nil, spanFail(span, fmt.Errorf("check publishable: %w", err), "publishable_lookup_failed")
	}
	if !publishable {
		return nil, spanFail(span, ErrResourceNotPublishable, "not_publishable")
	}

	sub, resumed, err := s.createOrResume(ctx, userID, ref, target, now)
	if err != nil {
		return nil, spanFail(span, err, "admission_failed")
	}
	span.SetAttributes(attribute.Bool("attempt.resumed", resumed))

	paper, err := s.papers.Get(ctx, target)
	if err != nil {
		return nil, spanFail(span, fmt.Errorf("load paper: %w", err), "paper_failed")
	}

	outcome := "created"
	if resumed {
		outcome = "resumed"
	}
	observability.AttemptsStarted().WithLabelValues(string(ref.Kind), outcome).Inc()

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("user_id", userID.String()).
		Str("resource", target.String()).
		Bool("resumed", resumed).
		Msg("Attempt admitted")

	return &model.StartedAttempt{
		SubmissionID: sub.ID,
		StartedAt:    sub.StartedAt,
		Resumed:      resumed,
		Paper:        paper,
	}, nil
}

// createOrResume inserts optimistically and, on a uniqueness conflict, reads
// the row that won and branches on its status.
func (s *AttemptService) createOrResume(ctx context.Context, userID uuid.UUID, ref model.AssignmentRef, target model.ResourceRef, now time.Time) (*model.Submission, bool, error) {
	sub := &model.Submission{
		UserID:     userID,
		Assignment: ref,
		Resource:   target,
		Status:     model.SubmissionStatusStarted,
		StartedAt:  now,
	}

	err := s.store.Create(ctx, sub)
	if err == nil {
		return sub, false, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, false, fmt.Errorf("create submission: %w", err)
	}

	existing, err := s.store.FindByAttempt(ctx, userID, ref, target)
	if err != nil {
		return nil, false, fmt.Errorf("find existing submission: %w", fromStore(err))
	}
	if existing.Status.Completed() {
		return nil, false, ErrAlreadyCompleted
	}
	return existing, true, nil
}
