package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartExamCreatesSubmissionWithSanitizedPaper(t *testing.T) {
	f := newFixture(t)

	got, err := f.attempts.StartExam(context.Background(), f.student, f.exam.ID)
	require.NoError(t, err)

	assert.False(t, got.Resumed)
	assert.Equal(t, f.clock.Now(), got.StartedAt)
	require.NotNil(t, got.Paper)
	require.NotNil(t, got.Paper.Test)
	assert.Equal(t, 30, got.Paper.Test.DurationMinutes)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_option_index")
	assert.NotContains(t, string(raw), "correct")

	stored, err := f.store.GetByID(context.Background(), got.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusStarted, stored.Status)
	assert.Equal(t, f.testRef(), stored.Resource)
}

func TestStartResumesWithoutResettingStartedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.quizRef())
	require.NoError(t, err)

	f.clock.Advance(7 * time.Minute)

	second, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.quizRef())
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.SubmissionID, second.SubmissionID)
	assert.True(t, first.StartedAt.Equal(second.StartedAt))
	assert.Equal(t, 1, f.store.count())
}

func TestStartAfterGradedFailsAlreadyCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.attempts.StartExam(ctx, f.student, f.exam.ID)
	require.NoError(t, err)
	_, err = f.grading.Submit(ctx, f.student, started.SubmissionID, f.perfectTestAnswers())
	require.NoError(t, err)

	_, err = f.attempts.StartExam(ctx, f.student, f.exam.ID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, f.store.count())
}

func TestStartHomeworkResourcesAreIndependentAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quiz, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.quizRef())
	require.NoError(t, err)
	test, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.testRef())
	require.NoError(t, err)

	assert.NotEqual(t, quiz.SubmissionID, test.SubmissionID)
	assert.Equal(t, 2, f.store.count())
}

func TestStartPreconditionsInOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(f *fixture)
		start func(f *fixture) error
		want  error
	}{
		{
			name:  "missing assignment",
			setup: func(f *fixture) {},
			start: func(f *fixture) error {
				_, err := f.attempts.StartExam(ctx, f.student, uuid.New())
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "closed exam wins over unpublished test",
			setup: func(f *fixture) {
				f.exam.Visibility = model.VisibilityClosed
				f.registry.put(f.exam)
				f.catalog.edit(f.testRef(), func(r *model.Resource) { r.Test.Status = model.ContentStatusDraft })
			},
			start: func(f *fixture) error {
				_, err := f.attempts.StartExam(ctx, f.student, f.exam.ID)
				return err
			},
			want: ErrNotOpen,
		},
		{
			name: "deadline passed wins over foreign resource",
			setup: func(f *fixture) {
				past := f.clock.Now().Add(-time.Second)
				f.homework.Deadline = &past
				f.registry.put(f.homework)
			},
			start: func(f *fixture) error {
				_, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID,
					model.ResourceRef{Kind: model.ResourceQuiz, ID: uuid.New()})
				return err
			},
			want: ErrDeadlinePassed,
		},
		{
			name: "deadline equal to now has passed",
			setup: func(f *fixture) {
				now := f.clock.Now()
				f.homework.Deadline = &now
				f.registry.put(f.homework)
			},
			start: func(f *fixture) error {
				_, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.quizRef())
				return err
			},
			want: ErrDeadlinePassed,
		},
		{
			name:  "resource outside assignment",
			setup: func(f *fixture) {},
			start: func(f *fixture) error {
				_, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID,
					model.ResourceRef{Kind: model.ResourceQuiz, ID: uuid.New()})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "inactive quiz",
			setup: func(f *fixture) {
				f.catalog.edit(f.quizRef(), func(r *model.Resource) { r.Quiz.Active = false })
			},
			start: func(f *fixture) error {
				_, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, f.quizRef())
				return err
			},
			want: ErrResourceNotPublishable,
		},
		{
			name: "draft test",
			setup: func(f *fixture) {
				f.catalog.edit(f.testRef(), func(r *model.Resource) { r.Test.Status = model.ContentStatusDraft })
			},
			start: func(f *fixture) error {
				_, err := f.attempts.StartExam(ctx, f.student, f.exam.ID)
				return err
			},
			want: ErrResourceNotPublishable,
		},
		{
			name:  "homework without resource kind",
			setup: func(f *fixture) {},
			start: func(f *fixture) error {
				_, err := f.attempts.StartHomework(ctx, f.student, f.homework.ID, model.ResourceRef{ID: f.quiz.ID})
				return err
			},
			want: ErrValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)
			require.ErrorIs(t, tc.start(f), tc.want)
			assert.Zero(t, f.store.count())
		})
	}
}

func TestStartConcurrentRequestsShareOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.attempts.StartExam(ctx, f.student, f.exam.ID)
			errs[i] = err
			if err == nil {
				ids[i] = got.SubmissionID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.count())
}
