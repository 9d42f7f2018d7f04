package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/model"
)

// ProgressService buffers autosaved answers in Redis and restores attempt state.
type ProgressService struct {
	store    SubmissionStore
	catalog  ContentCatalog
	rdb      *redis.Client
	ttl      time.Duration
	validate *govalidator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(store SubmissionStore, catalog ContentCatalog, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ProgressService {
	return &ProgressService{
		store:    store,
		catalog:  catalog,
		rdb:      rdb,
		ttl:      ttl,
		validate: govalidator.New(),
		now:      time.Now,
		log:      log.With().Str("component", "progress_service").Logger(),
	}
}

// SaveProgress merges answers into the Redis buffer and enqueues a persist job
// for the autosave worker.
func (s *ProgressService) SaveProgress(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) error {
	if err := s.validate.Var(answers, answersRule); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sub, err := loadOwned(ctx, s.store, userID, submissionID)
	if err != nil {
		return err
	}
	if sub.Status != model.SubmissionStatusStarted {
		return ErrInvalidState
	}
	if len(answers) == 0 {
		return nil
	}

	key := config.CacheKey.SubmissionAnswersKey(submissionID.String())
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, flatten(answers))
	pipe.Expire(ctx, key, s.ttl)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, submissionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffer answers: %w", err)
	}
	return nil
}

// Buffered returns the autosaved answers held in Redis for a submission.
func (s *ProgressService) Buffered(ctx context.Context, submissionID uuid.UUID) (model.Answers, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.SubmissionAnswersKey(submissionID.String())).Result()
	if err != nil {
		return nil, err
	}
	return parseAnswers(raw), nil
}

// Clear drops the Redis buffer for a submission.
func (s *ProgressService) Clear(ctx context.Context, submissionID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.SubmissionAnswersKey(submissionID.String())).Err()
}

// GetState returns what a client needs to resume an attempt after a reload.
func (s *ProgressService) GetState(ctx context.Context, userID, submissionID uuid.UUID) (*model.AttemptState, error) {
	sub, err := loadOwned(ctx, s.store, userID, submissionID)
	if err != nil {
		return nil, err
	}

	budget, err := s.budget(ctx, sub)
	if err != nil {
		return nil, err
	}

	endsAt := sub.StartedAt.Add(budget)
	remaining := endsAt.Sub(s.now()).Seconds()
	if remaining < 0 || sub.Status != model.SubmissionStatusStarted {
		remaining = 0
	}

	state := &model.AttemptState{
		SubmissionID:     sub.ID,
		Status:           sub.Status,
		StartedAt:        sub.StartedAt,
		EndsAt:           endsAt,
		RemainingSeconds: remaining,
		AutosavedAnswers: sub.Answers,
	}
	if sub.Status != model.SubmissionStatusStarted {
		return state, nil
	}

	buffered, err := s.Buffered(ctx, sub.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Autosave buffer read failed, using stored draft")
	}
	if len(buffered) > 0 {
		state.AutosavedAnswers = buffered
		return state, nil
	}

	if len(sub.Answers) > 0 && err == nil {
		s.heal(ctx, sub)
	}
	if state.AutosavedAnswers == nil {
		state.AutosavedAnswers = model.Answers{}
	}
	return state, nil
}

// budget prefers the snapshot duration for graded rows so later catalog edits
// do not move their deadline.
func (s *ProgressService) budget(ctx context.Context, sub *model.Submission) (time.Duration, error) {
	if sub.Snapshot != nil {
		return sub.Snapshot.Resource().Duration(), nil
	}
	res, err := s.catalog.GetResource(ctx, sub.Resource)
	if err != nil {
		return 0, fmt.Errorf("get resource: %w", fromStore(err))
	}
	return res.Duration(), nil
}

// heal repopulates an evicted buffer from the stored draft.
func (s *ProgressService) heal(ctx context.Context, sub *model.Submission) {
	key := config.CacheKey.SubmissionAnswersKey(sub.ID.String())
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, flatten(sub.Answers))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Failed to restore autosave buffer")
	}
}

func flatten(answers model.Answers) map[string]any {
	fields := make(map[string]any, len(answers))
	for q, idx := range answers {
		fields[q] = idx
	}
	return fields
}

func parseAnswers(raw map[string]string) model.Answers {
	answers := make(model.Answers, len(raw))
	for q, v := range raw {
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 {
			continue
		}
		answers[q] = idx
	}
	return answers
}
