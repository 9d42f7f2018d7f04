package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

// DraftSource reads the buffered answers of a submission.
type DraftSource interface {
	Buffered(ctx context.Context, submissionID uuid.UUID) (model.Answers, error)
}

// DraftWriter persists draft answers on a STARTED submission row.
type DraftWriter interface {
	SaveDraftAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error
}

// AutosaveWorker consumes persist_answers_queue and copies the buffered
// answers of each queued submission onto its row.
type AutosaveWorker struct {
	rdb        *redis.Client
	drafts     DraftSource
	store      DraftWriter
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(rdb *redis.Client, drafts DraftSource, store DraftWriter, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		rdb:        rdb,
		drafts:     drafts,
		store:      store,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Str("submission_id", result[1]).Msg("Persist error, retrying later")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// persist copies the buffer onto the row. Rows that are no longer STARTED are
// dropped: a graded submission never takes draft writes.
func (w *AutosaveWorker) persist(ctx context.Context, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		w.log.Warn().Str("payload", raw).Msg("Dropping malformed queue entry")
		return nil
	}

	answers, err := w.drafts.Buffered(ctx, id)
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	err = w.store.SaveDraftAnswers(ctx, id, answers)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotStarted), errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrImmutable):
		w.log.Debug().Err(err).Str("submission_id", raw).Msg("Dropping draft for finalized submission")
		return nil
	default:
		return err
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		if err := w.persist(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
