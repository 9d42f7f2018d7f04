package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/observability"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// StartedLister pages through in-progress submissions.
type StartedLister interface {
	ListStarted(ctx context.Context, startedBefore time.Time, after *repository.StartedCursor, limit int) ([]model.Submission, error)
}

// ResourceReader resolves a resource to read its time budget.
type ResourceReader interface {
	GetResource(ctx context.Context, ref model.ResourceRef) (model.Resource, error)
}

// Finalizer force-grades a submission with an empty answer map.
type Finalizer interface {
	ForceFinalize(ctx context.Context, submissionID uuid.UUID) (*model.Submission, error)
}

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	Scanned int
	Graded  int
	Pending int
	Skipped int
	Failed  int
}

// ExpirySweeper force-finalizes STARTED submissions whose time budget plus
// grace period has elapsed. It keeps no state between passes.
type ExpirySweeper struct {
	store     StartedLister
	catalog   ResourceReader
	finalizer Finalizer
	grace     time.Duration
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(store StartedLister, catalog ResourceReader, finalizer Finalizer, grace time.Duration, batchSize int, log zerolog.Logger) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ExpirySweeper{
		store:     store,
		catalog:   catalog,
		finalizer: finalizer,
		grace:     grace,
		batchSize: batchSize,
		now:       time.Now,
		log:       log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start runs a pass immediately and then every interval until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("interval", interval).Dur("grace", s.grace).Msg("Sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("Sweep pass aborted")
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps every STARTED submission once. A failure on one row is
// logged and does not stop the pass; only listing errors abort it.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (SweepStats, error) {
	ctx, span := otel.Tracer("github.com/stemsi/exstem-grading/internal/worker").Start(ctx, "sweeper.run")
	defer span.End()

	var stats SweepStats
	now := s.now()
	budgets := make(map[model.ResourceRef]time.Duration)

	var cursor *repository.StartedCursor
	for {
		batch, err := s.store.ListStarted(ctx, now.Add(-s.grace), cursor, s.batchSize)
		if err != nil {
			span.RecordError(err)
			return stats, err
		}

		for i := range batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			s.sweepOne(ctx, &batch[i], now, budgets, &stats)
		}

		if len(batch) < s.batchSize {
			break
		}
		last := batch[len(batch)-1]
		cursor = &repository.StartedCursor{StartedAt: last.StartedAt, ID: last.ID}
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", stats.Scanned),
		attribute.Int("sweep.graded", stats.Graded),
		attribute.Int("sweep.failed", stats.Failed),
	)
	if stats.Graded > 0 || stats.Failed > 0 {
		s.log.Info().
			Int("scanned", stats.Scanned).
			Int("graded", stats.Graded).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("Sweep pass finished")
	}
	return stats, nil
}

func (s *ExpirySweeper) sweepOne(ctx context.Context, sub *model.Submission, now time.Time, budgets map[model.ResourceRef]time.Duration, stats *SweepStats) {
	stats.Scanned++

	budget, ok := budgets[sub.Resource]
	if !ok {
		res, err := s.catalog.GetResource(ctx, sub.Resource)
		if err != nil {
			stats.Failed++
			observability.SweepOutcomes().WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).
				Str("submission_id", sub.ID.String()).
				Str("resource", sub.Resource.String()).
				Msg("Cannot resolve time budget, skipping")
			return
		}
		budget = res.Duration()
		budgets[sub.Resource] = budget
	}

	if now.Before(sub.StartedAt.Add(budget).Add(s.grace)) {
		stats.Pending++
		return
	}

	_, err := s.finalizer.ForceFinalize(ctx, sub.ID)
	switch {
	case err == nil:
		stats.Graded++
		observability.SweepOutcomes().WithLabelValues("graded").Inc()
	case errors.Is(err, service.ErrInvalidState):
		// Finalized by a live submit since the page was read.
		stats.Skipped++
		observability.SweepOutcomes().WithLabelValues("skipped").Inc()
	default:
		stats.Failed++
		observability.SweepOutcomes().WithLabelValues("failed").Inc()
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Force finalize failed, skipping")
	}
}
