package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startedRows struct {
	rows []model.Submission
}

func (s *startedRows) ListStarted(_ context.Context, startedBefore time.Time, after *repository.StartedCursor, limit int) ([]model.Submission, error) {
	sorted := append([]model.Submission(nil), s.rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartedAt.Equal(sorted[j].StartedAt) {
			return sorted[i].StartedAt.Before(sorted[j].StartedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	var out []model.Submission
	for _, r := range sorted {
		if r.StartedAt.After(startedBefore) {
			continue
		}
		if after != nil && (r.StartedAt.Before(after.StartedAt) ||
			(r.StartedAt.Equal(after.StartedAt) && r.ID.String() <= after.ID.String())) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type resources map[model.ResourceRef]model.Resource

func (r resources) GetResource(_ context.Context, ref model.ResourceRef) (model.Resource, error) {
	res, ok := r[ref]
	if !ok {
		return model.Resource{}, repository.ErrNotFound
	}
	return res, nil
}

type scriptedFinalizer struct {
	mu     sync.Mutex
	errs   map[uuid.UUID]error
	called []uuid.UUID
}

func (f *scriptedFinalizer) ForceFinalize(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &model.Submission{ID: id, Status: model.SubmissionStatusGraded}, nil
}

func TestExpirySweeperRunOnce(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	quiz := &model.Quiz{
		ID:     uuid.New(),
		Active: true,
		Questions: []model.QuizQuestion{
			{ID: uuid.New(), DurationSeconds: 30},
			{ID: uuid.New(), DurationSeconds: 30},
		},
	}
	quizRef := model.ResourceRef{Kind: model.ResourceQuiz, ID: quiz.ID}
	missingRef := model.ResourceRef{Kind: model.ResourceTest, ID: uuid.New()}

	row := func(ago time.Duration, ref model.ResourceRef) model.Submission {
		return model.Submission{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			Resource:  ref,
			Status:    model.SubmissionStatusStarted,
			StartedAt: now.Add(-ago),
		}
	}

	expired := row(20*time.Minute, quizRef)
	insideGrace := row(10*time.Minute+30*time.Second, quizRef)
	exactlyDue := row(11*time.Minute, quizRef)
	broken := row(30*time.Minute, quizRef)
	raced := row(35*time.Minute, quizRef)
	alsoExpired := row(40*time.Minute, quizRef)
	unresolvable := row(50*time.Minute, missingRef)
	fresh := row(time.Minute, quizRef)

	store := &startedRows{rows: []model.Submission{
		expired, insideGrace, exactlyDue, broken, raced, alsoExpired, unresolvable, fresh,
	}}
	finalizer := &scriptedFinalizer{errs: map[uuid.UUID]error{
		broken.ID: errors.New("connection reset"),
		raced.ID:  service.ErrInvalidState,
	}}

	sweeper := NewExpirySweeper(store, resources{quizRef: {Quiz: quiz}}, finalizer, 10*time.Minute, 2, zerolog.Nop())
	sweeper.now = func() time.Time { return now }

	stats, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{expired.ID, exactlyDue.ID, broken.ID, raced.ID, alsoExpired.ID}, finalizer.called)
	assert.NotContains(t, finalizer.called, insideGrace.ID)
	assert.NotContains(t, finalizer.called, fresh.ID)

	assert.Equal(t, SweepStats{Scanned: 7, Graded: 3, Pending: 1, Skipped: 1, Failed: 2}, stats)
}

func TestExpirySweeperNothingDue(t *testing.T) {
	finalizer := &scriptedFinalizer{}
	sweeper := NewExpirySweeper(&startedRows{}, resources{}, finalizer, 10*time.Minute, 50, zerolog.Nop())

	stats, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
	assert.Empty(t, finalizer.called)
}

func TestExpirySweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sweeper := NewExpirySweeper(&startedRows{}, resources{}, &scriptedFinalizer{}, time.Minute, 10, zerolog.Nop())
	go func() {
		sweeper.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
