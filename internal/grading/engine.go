// Package grading scores answer maps against a resource's answer key. It is
// pure: no I/O, no clock, and it never mutates its inputs.
package grading

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-grading/internal/model"
)

// ErrEmptyResource is returned when a resource carries neither a test nor a quiz.
var ErrEmptyResource = errors.New("resource has no test or quiz structure")

var hundred = decimal.NewFromInt(100)

// Engine grades tests and quizzes. The zero value is not usable; call NewEngine.
type Engine struct {
	rules map[model.Level]Rule
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRule adds or replaces the rule for r.Level.
func WithRule(r Rule) Option {
	return func(e *Engine) {
		e.rules[r.Level] = r
	}
}

// NewEngine returns an engine loaded with the default level rules.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: make(map[model.Level]Rule)}
	for _, r := range DefaultRules() {
		e.rules[r.Level] = r
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rule returns the rule for a level.
func (e *Engine) Rule(level model.Level) (Rule, bool) {
	r, ok := e.rules[level]
	return r, ok
}

// Grade dispatches on the resource kind.
func (e *Engine) Grade(res model.Resource, answers model.Answers) (*model.Result, error) {
	switch {
	case res.Test != nil:
		return e.GradeTest(res.Test, answers), nil
	case res.Quiz != nil:
		return e.GradeQuiz(res.Quiz, answers), nil
	default:
		return nil, ErrEmptyResource
	}
}

// GradeTest scores a multi-section test. Every question's weight counts toward
// its section maximum whether or not it was answered.
func (e *Engine) GradeTest(t *model.Test, answers model.Answers) *model.Result {
	total := decimal.Zero
	maxTotal := decimal.Zero
	sections := make([]model.SectionResult, 0, len(t.Sections))

	for _, s := range t.Sections {
		earned := decimal.Zero
		possible := decimal.Zero
		details := make([]model.QuestionResult, 0)

		for _, g := range s.Groups {
			for _, q := range g.Questions {
				weight := q.Weight.Decimal
				possible = possible.Add(weight)

				selected, answered := answers[q.ID.String()]
				if !answered {
					continue
				}
				correct := isCorrect(q.CorrectOptionIndex, selected)
				awarded := decimal.Zero
				if correct {
					awarded = weight
					earned = earned.Add(weight)
				}
				details = append(details, model.QuestionResult{
					QuestionID:    q.ID,
					SelectedIndex: selected,
					Correct:       correct,
					Score:         model.NewScore(awarded),
					MaxScore:      model.NewScore(weight),
				})
			}
		}

		total = total.Add(earned)
		maxTotal = maxTotal.Add(possible)
		sections = append(sections, model.SectionResult{
			SectionID: s.ID,
			Name:      s.Name,
			Type:      s.Type,
			Score:     model.NewScore(earned),
			MaxScore:  model.NewScore(possible),
			Questions: details,
		})
	}

	result := &model.Result{
		Kind:       model.ResourceTest,
		TotalScore: model.NewScore(total),
		MaxScore:   model.NewScore(maxTotal),
		Sections:   sections,
	}
	if rule, ok := e.Rule(t.Level); ok {
		result.Verdict = rule.verdict(total, sections)
	}
	return result
}

// GradeQuiz scores a flat quiz. Only answered questions that belong to the
// quiz count toward the maximum; ids outside the quiz are ignored.
func (e *Engine) GradeQuiz(q *model.Quiz, answers model.Answers) *model.Result {
	earned := decimal.Zero
	maxPoints := decimal.Zero
	correctCount := 0
	answeredCount := 0
	details := make([]model.QuestionResult, 0, len(answers))

	for _, qq := range q.Questions {
		selected, answered := answers[qq.ID.String()]
		if !answered {
			continue
		}
		answeredCount++
		points := qq.Points.Decimal
		maxPoints = maxPoints.Add(points)

		correct := isCorrect(qq.CorrectOptionIndex, selected)
		awarded := decimal.Zero
		if correct {
			awarded = points
			earned = earned.Add(points)
			correctCount++
		}
		details = append(details, model.QuestionResult{
			QuestionID:    qq.ID,
			SelectedIndex: selected,
			Correct:       correct,
			Score:         model.NewScore(awarded),
			MaxScore:      model.NewScore(points),
		})
	}

	pct := model.NewScore(Percentage(earned, maxPoints))
	return &model.Result{
		Kind:         model.ResourceQuiz,
		TotalScore:   model.NewScore(earned),
		MaxScore:     model.NewScore(maxPoints),
		CorrectCount:  correctCount,
		AnsweredCount: answeredCount,
		TotalCount:    len(q.Questions),
		Percentage:   &pct,
		Questions:    details,
	}
}

// Percentage returns earned/possible*100 rounded to two places, or zero when
// nothing was possible.
func Percentage(earned, possible decimal.Decimal) decimal.Decimal {
	if possible.IsZero() {
		return decimal.Zero
	}
	return earned.Mul(hundred).DivRound(possible, model.ScorePlaces)
}

func isCorrect(correctIndex *int, selected int) bool {
	return correctIndex != nil && *correctIndex == selected
}
