package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/event"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/observability"
	"github.com/stemsi/exstem-grading/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// answersRule is the validation rule applied to every answers payload.
const answersRule = "dive,keys,uuid,endkeys,gte=0"

// DraftBuffer holds autosaved answers outside the submission row.
type DraftBuffer interface {
	Clear(ctx context.Context, submissionID uuid.UUID) error
}

// Viewer identifies who is asking for a result.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

// GradingService finalizes, previews and discloses attempt results.
type GradingService struct {
	store       SubmissionStore
	catalog     ContentCatalog
	assignments AssignmentRegistry
	snapshots   *SnapshotBuilder
	engine      *grading.Engine
	events      event.Publisher
	drafts      DraftBuffer
	validate    *govalidator.Validate
	now         func() time.Time
	log         zerolog.Logger
}

// GradingOption configures optional collaborators of a GradingService.
type GradingOption func(*GradingService)

// WithPublisher sets the graded-event publisher.
func WithPublisher(p event.Publisher) GradingOption {
	return func(s *GradingService) { s.events = p }
}

// WithDraftBuffer clears autosaved answers once a submission is graded.
func WithDraftBuffer(b DraftBuffer) GradingOption {
	return func(s *GradingService) { s.drafts = b }
}

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) GradingOption {
	return func(s *GradingService) { s.now = now }
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	store SubmissionStore,
	catalog ContentCatalog,
	assignments AssignmentRegistry,
	engine *grading.Engine,
	log zerolog.Logger,
	opts ...GradingOption,
) *GradingService {
	s := &GradingService{
		store:       store,
		catalog:     catalog,
		assignments: assignments,
		snapshots:   NewSnapshotBuilder(catalog),
		engine:      engine,
		events:      event.Nop{},
		validate:    govalidator.New(),
		now:         time.Now,
		log:         log.With().Str("component", "grading_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshots.now = s.now
	return s
}

// ValidateAnswers rejects answer maps with non-UUID keys or negative indexes.
func (s *GradingService) ValidateAnswers(answers model.Answers) error {
	if err := s.validate.Var(answers, answersRule); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Submit grades the caller's STARTED submission and persists the result. The
// returned outcome carries the result only when the assignment discloses it
// at submit time.
func (s *GradingService) Submit(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) (*model.SubmitOutcome, error) {
	ctx, span := tracer.Start(ctx, "grading.submit")
	span.SetAttributes(attribute.String("submission.id", submissionID.String()))
	defer span.End()

	if answers == nil {
		answers = model.Answers{}
	}
	if err := s.ValidateAnswers(answers); err != nil {
		return nil, spanFail(span, err, "validation_failed")
	}

	current, err := s.owned(ctx, userID, submissionID)
	if err != nil {
		return nil, spanFail(span, err, "lookup_failed")
	}
	if current.Status != model.SubmissionStatusStarted {
		return nil, spanFail(span, ErrInvalidState, "not_started")
	}

	var assignment *model.Assignment
	if current.Assignment.Kind == model.AssignmentHomework {
		assignment, err = s.assignments.Get(ctx, current.Assignment)
		if err != nil {
			return nil, spanFail(span, fmt.Errorf("get assignment: %w", fromStore(err)), "assignment_lookup_failed")
		}
		if assignment.DeadlinePassed(s.now()) {
			return nil, spanFail(span, ErrDeadlinePassed, "deadline_passed")
		}
	}

	graded, err := s.finalize(ctx, submissionID, answers, event.TriggerSubmit)
	if err != nil {
		return nil, spanFail(span, err, "finalize_failed")
	}

	outcome := &model.SubmitOutcome{
		SubmissionID: graded.ID,
		Status:       graded.Status,
	}
	if graded.CompletedAt != nil {
		outcome.CompletedAt = *graded.CompletedAt
	}

	if assignment == nil {
		assignment, err = s.assignments.Get(ctx, graded.Assignment)
		if err != nil {
			// The grade is committed; only disclosure is unknown, so withhold.
			s.log.Warn().Err(err).Str("submission_id", graded.ID.String()).Msg("Assignment lookup failed after submit")
			return outcome, nil
		}
	}
	if assignment.ShowResultsImmediately || assignment.ResultsPublished {
		outcome.Result = graded.Result
	}
	return outcome, nil
}

// ForceFinalize grades a STARTED submission with no answers. It is the expiry
// path and does not check ownership.
func (s *GradingService) ForceFinalize(ctx context.Context, submissionID uuid.UUID) (*model.Submission, error) {
	ctx, span := tracer.Start(ctx, "grading.force_finalize")
	span.SetAttributes(attribute.String("submission.id", submissionID.String()))
	defer span.End()

	graded, err := s.finalize(ctx, submissionID, model.Answers{}, event.TriggerExpiry)
	if err != nil {
		return nil, spanFail(span, err, "finalize_failed")
	}
	return graded, nil
}

// finalize runs snapshot, precondition check and grading inside the store's
// finalize transaction, then publishes the graded event.
func (s *GradingService) finalize(ctx context.Context, submissionID uuid.UUID, answers model.Answers, trigger event.Trigger) (*model.Submission, error) {
	started := time.Now()

	graded, err := s.store.Finalize(ctx, submissionID, func(ctx context.Context, current *model.Submission) (*model.Finalization, error) {
		snap, err := s.snapshots.Build(ctx, current.Resource)
		if err != nil {
			return nil, fmt.Errorf("build snapshot: %w", err)
		}
		if !model.CanTransition(current.Status, model.SubmissionStatusGraded) {
			return nil, ErrInvalidState
		}

		result, err := s.engine.Grade(snap.Resource(), answers)
		if err != nil {
			return nil, fmt.Errorf("grade: %w", err)
		}

		return &model.Finalization{
			Answers:     answers.Clone(),
			CompletedAt: s.now().UTC(),
			Score:       result.TotalScore,
			Result:      result,
			Snapshot:    snap,
		}, nil
	})
	if err != nil {
		return nil, fromStore(err)
	}

	kind := string(graded.Resource.Kind)
	observability.GradingDuration().WithLabelValues(kind).Observe(time.Since(started).Seconds())
	observability.SubmissionsGraded().WithLabelValues(kind, string(trigger)).Inc()

	s.log.Info().
		Str("submission_id", graded.ID.String()).
		Str("trigger", string(trigger)).
		Str("score", graded.Score.Fixed()).
		Msg("Submission graded")

	if s.drafts != nil {
		if err := s.drafts.Clear(ctx, graded.ID); err != nil {
			s.log.Warn().Err(err).Str("submission_id", graded.ID.String()).Msg("Failed to clear autosaved answers")
		}
	}
	if err := s.events.PublishGraded(ctx, event.NewSubmissionGraded(graded, trigger)); err != nil {
		s.log.Error().Err(err).Str("submission_id", graded.ID.String()).Msg("Failed to publish graded event")
	}
	return graded, nil
}

// Preview grades answers against the live resource without persisting
// anything. Only in-progress homework attempts can be previewed.
func (s *GradingService) Preview(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) (*model.Result, error) {
	ctx, span := tracer.Start(ctx, "grading.preview")
	span.SetAttributes(attribute.String("submission.id", submissionID.String()))
	defer span.End()

	if answers == nil {
		answers = model.Answers{}
	}
	if err := s.ValidateAnswers(answers); err != nil {
		return nil, spanFail(span, err, "validation_failed")
	}

	sub, err := s.owned(ctx, userID, submissionID)
	if err != nil {
		return nil, spanFail(span, err, "lookup_failed")
	}
	if sub.Assignment.Kind != model.AssignmentHomework {
		return nil, spanFail(span, ErrInvalidState, "exam_preview")
	}
	if sub.Status != model.SubmissionStatusStarted {
		return nil, spanFail(span, ErrInvalidState, "not_started")
	}

	assignment, err := s.assignments.Get(ctx, sub.Assignment)
	if err != nil {
		return nil, spanFail(span, fmt.Errorf("get assignment: %w", fromStore(err)), "assignment_lookup_failed")
	}
	if assignment.DeadlinePassed(s.now()) {
		return nil, spanFail(span, ErrDeadlinePassed, "deadline_passed")
	}

	res, err := s.catalog.GetResource(ctx, sub.Resource)
	if err != nil {
		return nil, spanFail(span, fmt.Errorf("get resource: %w", fromStore(err)), "resource_lookup_failed")
	}
	result, err := s.engine.Grade(res, answers)
	if err != nil {
		return nil, spanFail(span, fmt.Errorf("grade: %w", err), "grade_failed")
	}
	return result, nil
}

// GetResult returns a graded submission. Owners see it only once the
// assignment discloses results; admins always see it, snapshot included.
func (s *GradingService) GetResult(ctx context.Context, viewer Viewer, submissionID uuid.UUID) (*model.ResultView, error) {
	var (
		sub *model.Submission
		err error
	)
	if viewer.Admin {
		sub, err = s.store.GetByID(ctx, submissionID)
		err = fromStore(err)
	} else {
		sub, err = s.owned(ctx, viewer.UserID, submissionID)
	}
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionStatusGraded {
		return nil, ErrInvalidState
	}

	if !viewer.Admin {
		assignment, err := s.assignments.Get(ctx, sub.Assignment)
		if err != nil {
			return nil, fmt.Errorf("get assignment: %w", fromStore(err))
		}
		if !assignment.DisclosesResults() {
			return nil, ErrResultsNotPublished
		}
	}

	view := &model.ResultView{
		SubmissionID: sub.ID,
		Assignment:   sub.Assignment,
		Resource:     sub.Resource,
		Status:       sub.Status,
		StartedAt:    sub.StartedAt,
		CompletedAt:  sub.CompletedAt,
		Score:        sub.Score,
		Answers:      sub.Answers,
		Result:       sub.Result,
	}
	if viewer.Admin {
		view.Snapshot = sub.Snapshot
	}
	return view, nil
}

// owned loads a submission and checks it belongs to userID.
func (s *GradingService) owned(ctx context.Context, userID, submissionID uuid.UUID) (*model.Submission, error) {
	return loadOwned(ctx, s.store, userID, submissionID)
}

func loadOwned(ctx context.Context, store SubmissionStore, userID, submissionID uuid.UUID) (*model.Submission, error) {
	sub, err := store.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if sub.UserID != userID {
		return nil, ErrForbidden
	}
	return sub, nil
}
