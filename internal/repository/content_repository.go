package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// ContentRepository reads test and quiz structures, answer keys included.
// Authoring happens elsewhere; nothing here writes.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// GetResource loads the full structure of a test or quiz.
func (r *ContentRepository) GetResource(ctx context.Context, ref model.ResourceRef) (model.Resource, error) {
	switch ref.Kind {
	case model.ResourceTest:
		t, err := r.GetTest(ctx, ref.ID)
		return model.Resource{Test: t}, err
	case model.ResourceQuiz:
		q, err := r.GetQuiz(ctx, ref.ID)
		return model.Resource{Quiz: q}, err
	default:
		return model.Resource{}, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

// IsPublishable reports whether a resource currently accepts attempts.
func (r *ContentRepository) IsPublishable(ctx context.Context, ref model.ResourceRef) (bool, error) {
	var ok bool
	var err error
	switch ref.Kind {
	case model.ResourceTest:
		err = r.pool.QueryRow(ctx,
			`SELECT status = $2 FROM tests WHERE id = $1`, ref.ID, model.ContentStatusPublished).Scan(&ok)
	case model.ResourceQuiz:
		err = r.pool.QueryRow(ctx,
			`SELECT is_active FROM quizzes WHERE id = $1`, ref.ID).Scan(&ok)
	default:
		return false, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// GetTest loads a test with its sections, groups and questions in display order.
func (r *ContentRepository) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, level, status FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Level, &t.Status)
	if err != nil {
		return nil, classify(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, section_type, duration_minutes, sort_order
		 FROM test_sections
		 WHERE test_id = $1
		 ORDER BY sort_order, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sectionIdx := make(map[uuid.UUID]int)
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.DurationMinutes, &s.Order); err != nil {
			rows.Close()
			return nil, err
		}
		sectionIdx[s.ID] = len(t.Sections)
		t.Sections = append(t.Sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Groups without questions still come back through the LEFT JOIN.
	rows, err = r.pool.Query(ctx,
		`SELECT g.id, g.section_id, g.number, g.title, g.instruction, g.reading_text, g.audio_url, g.sort_order,
		        q.id, q.number, q.text, q.weight::text, q.options, q.correct_option_index, q.sort_order
		 FROM question_groups g
		 JOIN test_sections s ON s.id = g.section_id
		 LEFT JOIN questions q ON q.group_id = g.id
		 WHERE s.test_id = $1
		 ORDER BY s.sort_order, s.id, g.sort_order, g.id, q.sort_order, q.number`, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	type groupKey struct{ section, group int }
	groupIdx := make(map[uuid.UUID]groupKey)

	for rows.Next() {
		var (
			g          model.QuestionGroup
			sectionID  uuid.UUID
			qID        *uuid.UUID
			qNumber    *int
			qText      *string
			qWeight    *string
			qOptions   []byte
			qCorrect   *int
			qSortOrder *int
		)
		if err := rows.Scan(
			&g.ID, &sectionID, &g.Number, &g.Title, &g.Instruction, &g.ReadingText, &g.AudioURL, &g.Order,
			&qID, &qNumber, &qText, &qWeight, &qOptions, &qCorrect, &qSortOrder,
		); err != nil {
			return nil, err
		}

		key, seen := groupIdx[g.ID]
		if !seen {
			si, ok := sectionIdx[sectionID]
			if !ok {
				continue
			}
			sec := &t.Sections[si]
			key = groupKey{section: si, group: len(sec.Groups)}
			groupIdx[g.ID] = key
			sec.Groups = append(sec.Groups, g)
		}
		if qID == nil {
			continue
		}

		q := model.Question{ID: *qID, CorrectOptionIndex: qCorrect}
		if qNumber != nil {
			q.Number = *qNumber
		}
		if qText != nil {
			q.Text = *qText
		}
		if qSortOrder != nil {
			q.Order = *qSortOrder
		}
		if qWeight != nil {
			if q.Weight, err = model.ParseScore(*qWeight); err != nil {
				return nil, err
			}
		}
		if q.Options, err = decodeOptions(qOptions); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}

		grp := &t.Sections[key.section].Groups[key.group]
		grp.Questions = append(grp.Questions, q)
	}
	return t, rows.Err()
}

// GetQuiz loads a quiz with its questions in display order.
func (r *ContentRepository) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, is_active FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.Active)
	if err != nil {
		return nil, classify(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, text, question_type, duration_seconds, points::text, options, correct_option_index, sort_order
		 FROM quiz_questions
		 WHERE quiz_id = $1
		 ORDER BY sort_order, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			qq      model.QuizQuestion
			points  string
			options []byte
		)
		if err := rows.Scan(&qq.ID, &qq.Text, &qq.Type, &qq.DurationSeconds, &points, &options,
			&qq.CorrectOptionIndex, &qq.Order); err != nil {
			return nil, err
		}
		if qq.Points, err = model.ParseScore(points); err != nil {
			return nil, err
		}
		if qq.Options, err = decodeOptions(options); err != nil {
			return nil, fmt.Errorf("quiz question %s: %w", qq.ID, err)
		}
		q.Questions = append(q.Questions, qq)
	}
	return q, rows.Err()
}

// decodeOptions accepts either [{"text": "..."}] or a plain string array.
func decodeOptions(raw []byte) ([]model.Option, error) {
	if len(raw) == 0 {
		return []model.Option{}, nil
	}
	var opts []model.Option
	if err := json.Unmarshal(raw, &opts); err == nil {
		return opts, nil
	}
	var texts []string
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	opts = make([]model.Option, len(texts))
	for i, t := range texts {
		opts[i] = model.Option{Text: t}
	}
	return opts, nil
}
