package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draftMap map[uuid.UUID]model.Answers

func (d draftMap) Buffered(_ context.Context, id uuid.UUID) (model.Answers, error) {
	return d[id], nil
}

type draftRecorder struct {
	mu    sync.Mutex
	saved map[uuid.UUID]model.Answers
	err   error
}

func (r *draftRecorder) SaveDraftAnswers(_ context.Context, id uuid.UUID, answers model.Answers) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.saved == nil {
		r.saved = make(map[uuid.UUID]model.Answers)
	}
	r.saved[id] = answers
	return nil
}

func newQueue(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestAutosaveWorkerPersistsBufferedAnswers(t *testing.T) {
	server, rdb := newQueue(t)
	id := uuid.New()
	answers := model.Answers{uuid.NewString(): 2}
	store := &draftRecorder{}

	w := NewAutosaveWorker(rdb, draftMap{id: answers}, store, zerolog.Nop())
	_, err := server.Lpush(config.WorkerKey.PersistAnswersQueue, id.String())
	require.NoError(t, err)

	w.processNext(context.Background())

	assert.Equal(t, answers, store.saved[id])
	assert.False(t, server.Exists(config.WorkerKey.PersistAnswersQueue))
}

func TestAutosaveWorkerDropsFinalizedSubmissions(t *testing.T) {
	server, rdb := newQueue(t)
	id := uuid.New()
	store := &draftRecorder{err: repository.ErrNotStarted}

	w := NewAutosaveWorker(rdb, draftMap{id: {uuid.NewString(): 1}}, store, zerolog.Nop())
	_, err := server.Lpush(config.WorkerKey.PersistAnswersQueue, id.String())
	require.NoError(t, err)

	w.processNext(context.Background())
	assert.False(t, server.Exists(config.WorkerKey.PersistAnswersQueue))
}

func TestAutosaveWorkerRequeuesOnStoreFailure(t *testing.T) {
	server, rdb := newQueue(t)
	id := uuid.New()
	store := &draftRecorder{err: errors.New("pool closed")}

	w := NewAutosaveWorker(rdb, draftMap{id: {uuid.NewString(): 1}}, store, zerolog.Nop())
	w.retryDelay = 0
	_, err := server.Lpush(config.WorkerKey.PersistAnswersQueue, id.String())
	require.NoError(t, err)

	w.processNext(context.Background())

	items, err := server.List(config.WorkerKey.PersistAnswersQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{id.String()}, items)
}

func TestAutosaveWorkerDrainOnShutdown(t *testing.T) {
	server, rdb := newQueue(t)
	a, b := uuid.New(), uuid.New()
	store := &draftRecorder{}

	w := NewAutosaveWorker(rdb, draftMap{a: {uuid.NewString(): 0}, b: {uuid.NewString(): 1}}, store, zerolog.Nop())
	for _, id := range []uuid.UUID{a, b} {
		_, err := server.Push(config.WorkerKey.PersistAnswersQueue, id.String())
		require.NoError(t, err)
	}
	_, err := server.Push(config.WorkerKey.PersistAnswersQueue, "not-a-uuid")
	require.NoError(t, err)

	w.drain(context.Background())

	assert.Len(t, store.saved, 2)
	assert.False(t, server.Exists(config.WorkerKey.PersistAnswersQueue))
}
