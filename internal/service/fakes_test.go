package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/event"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stretchr/testify/require"
)

// fakeStore mirrors the Postgres schema's uniqueness and compare-and-set rules.
type fakeStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID][]byte)}
}

func attemptKey(s *model.Submission) string {
	if s.Assignment.Kind == model.AssignmentExam {
		return s.UserID.String() + "|exam|" + s.Assignment.ID.String()
	}
	return s.UserID.String() + "|hw|" + s.Assignment.ID.String() + "|" + s.Resource.String()
}

func encode(s *model.Submission) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return raw
}

func decode(raw []byte) *model.Submission {
	var s model.Submission
	if err := json.Unmarshal(raw, &s); err != nil {
		panic(err)
	}
	return &s
}

func (f *fakeStore) Create(_ context.Context, s *model.Submission) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := attemptKey(s)
	for _, raw := range f.rows {
		if attemptKey(decode(raw)) == key {
			return repository.ErrConflict
		}
	}

	s.ID = uuid.New()
	s.Status = model.SubmissionStatusStarted
	s.Answers = model.Answers{}
	s.CreatedAt = s.StartedAt
	s.UpdatedAt = s.StartedAt
	f.rows[s.ID] = encode(s)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return decode(raw), nil
}

func (f *fakeStore) FindByAttempt(_ context.Context, userID uuid.UUID, assignment model.AssignmentRef, resource model.ResourceRef) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attemptKey(&model.Submission{UserID: userID, Assignment: assignment, Resource: resource})
	for _, raw := range f.rows {
		if s := decode(raw); attemptKey(s) == key {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Finalize(ctx context.Context, id uuid.UUID, fn repository.FinalizeFunc) (*model.Submission, error) {
	current, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fin, err := fn(ctx, current)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	row := decode(f.rows[id])
	if row.Status != model.SubmissionStatusStarted {
		return nil, repository.ErrNotStarted
	}
	completed := fin.CompletedAt
	row.Status = model.SubmissionStatusGraded
	row.Answers = fin.Answers
	row.CompletedAt = &completed
	row.Score = fin.Score
	row.Result = fin.Result
	row.Snapshot = fin.Snapshot
	f.rows[id] = encode(row)
	return decode(f.rows[id]), nil
}

func (f *fakeStore) SaveDraftAnswers(_ context.Context, id uuid.UUID, answers model.Answers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	row := decode(raw)
	if row.Status != model.SubmissionStatusStarted {
		return repository.ErrNotStarted
	}
	row.Answers = answers
	f.rows[id] = encode(row)
	return nil
}

func (f *fakeStore) ListStarted(_ context.Context, startedBefore time.Time, after *repository.StartedCursor, limit int) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Submission
	for _, raw := range f.rows {
		s := decode(raw)
		if s.Status != model.SubmissionStatusStarted || s.StartedAt.After(startedBefore) {
			continue
		}
		if after != nil {
			if s.StartedAt.Before(after.StartedAt) ||
				(s.StartedAt.Equal(after.StartedAt) && s.ID.String() <= after.ID.String()) {
				continue
			}
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// raw returns the stored bytes of a row for byte-identity checks.
func (f *fakeStore) raw(id uuid.UUID) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.rows[id]...)
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeCatalog struct {
	mu        sync.Mutex
	resources map[model.ResourceRef]model.Resource
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{resources: make(map[model.ResourceRef]model.Resource)}
}

func (c *fakeCatalog) put(res model.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[res.Ref()] = res
}

func (c *fakeCatalog) edit(ref model.ResourceRef, fn func(*model.Resource)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.resources[ref]
	fn(&res)
	c.resources[ref] = res
}

func (c *fakeCatalog) GetResource(_ context.Context, ref model.ResourceRef) (model.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.resources[ref]
	if !ok {
		return model.Resource{}, repository.ErrNotFound
	}
	out := model.Resource{}
	if res.Test != nil {
		out.Test = res.Test.Clone()
	}
	if res.Quiz != nil {
		out.Quiz = res.Quiz.Clone()
	}
	return out, nil
}

func (c *fakeCatalog) IsPublishable(ctx context.Context, ref model.ResourceRef) (bool, error) {
	res, err := c.GetResource(ctx, ref)
	if err != nil {
		return false, err
	}
	return res.Publishable(), nil
}

type fakeRegistry struct {
	mu          sync.Mutex
	assignments map[model.AssignmentRef]*model.Assignment
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{assignments: make(map[model.AssignmentRef]*model.Assignment)}
}

func (r *fakeRegistry) put(a *model.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[a.Ref()] = a
}

func (r *fakeRegistry) Get(_ context.Context, ref model.AssignmentRef) (*model.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.SubmissionGraded
}

func (p *recordingPublisher) PublishGraded(_ context.Context, ev event.SubmissionGraded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func intPtr(i int) *int { return &i }

func score(t *testing.T, s string) model.Score {
	t.Helper()
	sc, err := model.ParseScore(s)
	require.NoError(t, err)
	return sc
}

// fixture wires the services against fakes with one exam and one homework.
type fixture struct {
	store    *fakeStore
	catalog  *fakeCatalog
	registry *fakeRegistry
	clock    *clock
	events   *recordingPublisher

	attempts *AttemptService
	grading  *GradingService

	test     *model.Test
	quiz     *model.Quiz
	exam     *model.Assignment
	homework *model.Assignment

	student uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newFakeStore(),
		catalog:  newFakeCatalog(),
		registry: newFakeRegistry(),
		clock:    &clock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)},
		events:   &recordingPublisher{},
		student:  uuid.New(),
	}

	f.test = &model.Test{
		ID:     uuid.New(),
		Title:  "JLPT N4 Mock",
		Level:  model.LevelN4,
		Status: model.ContentStatusPublished,
		Sections: []model.Section{
			{
				ID: uuid.New(), Name: "Vocabulary", Type: model.SectionVocab, DurationMinutes: 20, Order: 1,
				Groups: []model.QuestionGroup{{
					ID: uuid.New(), Number: 1, Title: "Mondai 1", Order: 1,
					Questions: []model.Question{
						{ID: uuid.New(), Number: 1, Text: "q1", Weight: score(t, "1.5"), Options: []model.Option{{Text: "a"}, {Text: "b"}}, CorrectOptionIndex: intPtr(0), Order: 1},
						{ID: uuid.New(), Number: 2, Text: "q2", Weight: score(t, "1.5"), Options: []model.Option{{Text: "a"}, {Text: "b"}}, CorrectOptionIndex: intPtr(1), Order: 2},
					},
				}},
			},
			{
				ID: uuid.New(), Name: "Listening", Type: model.SectionListening, DurationMinutes: 10, Order: 2,
				Groups: []model.QuestionGroup{{
					ID: uuid.New(), Number: 1, Title: "Mondai 1", AudioURL: "https://cdn.example/a.mp3", Order: 1,
					Questions: []model.Question{
						{ID: uuid.New(), Number: 1, Text: "l1", Weight: score(t, "2"), Options: []model.Option{{Text: "a"}, {Text: "b"}, {Text: "c"}}, CorrectOptionIndex: intPtr(2), Order: 1},
					},
				}},
			},
		},
	}
	f.quiz = &model.Quiz{
		ID:     uuid.New(),
		Title:  "Kanji quiz",
		Active: true,
		Questions: []model.QuizQuestion{
			{ID: uuid.New(), Text: "k1", Type: "MULTIPLE_CHOICE", DurationSeconds: 30, Points: score(t, "5"), Options: []model.Option{{Text: "x"}, {Text: "y"}}, CorrectOptionIndex: intPtr(1), Order: 1},
			{ID: uuid.New(), Text: "k2", Type: "MULTIPLE_CHOICE", DurationSeconds: 30, Points: score(t, "5"), Options: []model.Option{{Text: "x"}, {Text: "y"}}, CorrectOptionIndex: intPtr(0), Order: 2},
		},
	}
	f.catalog.put(model.Resource{Test: f.test})
	f.catalog.put(model.Resource{Quiz: f.quiz})

	deadline := f.clock.Now().Add(72 * time.Hour)
	f.exam = &model.Assignment{
		ID: uuid.New(), Kind: model.AssignmentExam, Title: "Midterm",
		Visibility: model.VisibilityOpen, TestID: f.test.ID,
	}
	f.homework = &model.Assignment{
		ID: uuid.New(), Kind: model.AssignmentHomework, Title: "Week 3",
		Deadline: &deadline, TestIDs: []uuid.UUID{f.test.ID}, QuizIDs: []uuid.UUID{f.quiz.ID},
		ShowResultsImmediately: true,
	}
	f.registry.put(f.exam)
	f.registry.put(f.homework)

	log := zerolog.Nop()
	papers := NewPaperCache(f.catalog, nil, time.Minute, log)
	f.attempts = NewAttemptService(f.store, f.catalog, f.registry, papers, log)
	f.attempts.now = f.clock.Now
	f.grading = NewGradingService(f.store, f.catalog, f.registry, grading.NewEngine(), log,
		WithPublisher(f.events), WithClock(f.clock.Now))
	return f
}

func (f *fixture) quizRef() model.ResourceRef {
	return model.ResourceRef{Kind: model.ResourceQuiz, ID: f.quiz.ID}
}

func (f *fixture) testRef() model.ResourceRef {
	return model.ResourceRef{Kind: model.ResourceTest, ID: f.test.ID}
}

// perfectTestAnswers answers every test question correctly.
func (f *fixture) perfectTestAnswers() model.Answers {
	answers := model.Answers{}
	for _, s := range f.test.Sections {
		for _, g := range s.Groups {
			for _, q := range g.Questions {
				answers[q.ID.String()] = *q.CorrectOptionIndex
			}
		}
	}
	return answers
}
