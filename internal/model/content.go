package model

import (
	"time"

	"github.com/google/uuid"
)

// Level is a JLPT proficiency level.
type Level string

const (
	LevelN1 Level = "N1"
	LevelN2 Level = "N2"
	LevelN3 Level = "N3"
	LevelN4 Level = "N4"
	LevelN5 Level = "N5"
)

// ContentStatus enumerates test authoring states.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "DRAFT"
	ContentStatusPublished ContentStatus = "PUBLISHED"
	ContentStatusArchived  ContentStatus = "ARCHIVED"
)

// SectionType tags what a section measures and how it feeds the sub-scores.
type SectionType string

const (
	SectionVocab          SectionType = "VOCAB"
	SectionGrammar        SectionType = "GRAMMAR"
	SectionReading        SectionType = "READING"
	SectionGrammarReading SectionType = "GRAMMAR_READING"
	SectionFullWritten    SectionType = "FULL_WRITTEN"
	SectionListening      SectionType = "LISTENING"
)

// Option is one selectable answer. Correctness lives on the parent question.
type Option struct {
	Text string `json:"text"`
}

// Question is a scored item inside a question group.
type Question struct {
	ID                 uuid.UUID `json:"id"`
	Number             int       `json:"number"`
	Text               string    `json:"text"`
	Weight             Score     `json:"weight"`
	Options            []Option  `json:"options"`
	CorrectOptionIndex *int      `json:"correct_option_index"`
	Order              int       `json:"order"`
}

// QuestionGroup is a "mondai": questions sharing an instruction and passage.
type QuestionGroup struct {
	ID          uuid.UUID  `json:"id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Instruction string     `json:"instruction,omitempty"`
	ReadingText string     `json:"reading_text,omitempty"`
	AudioURL    string     `json:"audio_url,omitempty"`
	Order       int        `json:"order"`
	Questions   []Question `json:"questions"`
}

// Section is a timed part of a test.
type Section struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Type            SectionType     `json:"type"`
	DurationMinutes int             `json:"duration_minutes"`
	Order           int             `json:"order"`
	Groups          []QuestionGroup `json:"groups"`
}

// Test is a multi-section mock exam with its full answer key.
type Test struct {
	ID       uuid.UUID     `json:"id"`
	Title    string        `json:"title"`
	Level    Level         `json:"level"`
	Status   ContentStatus `json:"status"`
	Sections []Section     `json:"sections"`
}

// Publishable reports whether students may attempt the test.
func (t *Test) Publishable() bool {
	return t.Status == ContentStatusPublished
}

// Duration is the sum of section durations.
func (t *Test) Duration() time.Duration {
	var minutes int
	for _, s := range t.Sections {
		minutes += s.DurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Clone returns a deep copy.
func (t *Test) Clone() *Test {
	c := *t
	c.Sections = make([]Section, len(t.Sections))
	for i, s := range t.Sections {
		cs := s
		cs.Groups = make([]QuestionGroup, len(s.Groups))
		for j, g := range s.Groups {
			cg := g
			cg.Questions = make([]Question, len(g.Questions))
			for k, q := range g.Questions {
				cg.Questions[k] = q.clone()
			}
			cs.Groups[j] = cg
		}
		c.Sections[i] = cs
	}
	return &c
}

func (q Question) clone() Question {
	q.Options = append([]Option(nil), q.Options...)
	if q.CorrectOptionIndex != nil {
		idx := *q.CorrectOptionIndex
		q.CorrectOptionIndex = &idx
	}
	return q
}

// QuizQuestion is a flat, individually timed quiz item.
type QuizQuestion struct {
	ID                 uuid.UUID `json:"id"`
	Text               string    `json:"text"`
	Type               string    `json:"type"`
	DurationSeconds    int       `json:"duration_seconds"`
	Points             Score     `json:"points"`
	Options            []Option  `json:"options"`
	CorrectOptionIndex *int      `json:"correct_option_index"`
	Order              int       `json:"order"`
}

// Quiz is a flat question list with its full answer key.
type Quiz struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Active      bool           `json:"is_active"`
	Questions   []QuizQuestion `json:"questions"`
}

// Publishable reports whether students may attempt the quiz.
func (q *Quiz) Publishable() bool {
	return q.Active
}

// Duration is the sum of per-question durations.
func (q *Quiz) Duration() time.Duration {
	var seconds int
	for _, qq := range q.Questions {
		seconds += qq.DurationSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Clone returns a deep copy.
func (q *Quiz) Clone() *Quiz {
	c := *q
	c.Questions = make([]QuizQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		cq := qq
		cq.Options = append([]Option(nil), qq.Options...)
		if qq.CorrectOptionIndex != nil {
			idx := *qq.CorrectOptionIndex
			cq.CorrectOptionIndex = &idx
		}
		c.Questions[i] = cq
	}
	return &c
}

// Resource is the structure of one gradable item, exactly one of Test or Quiz.
type Resource struct {
	Test *Test
	Quiz *Quiz
}

// Ref identifies the resource.
func (r Resource) Ref() ResourceRef {
	if r.Quiz != nil {
		return ResourceRef{Kind: ResourceQuiz, ID: r.Quiz.ID}
	}
	return ResourceRef{Kind: ResourceTest, ID: r.Test.ID}
}

// Publishable reports whether the underlying item accepts attempts.
func (r Resource) Publishable() bool {
	if r.Quiz != nil {
		return r.Quiz.Publishable()
	}
	return r.Test != nil && r.Test.Publishable()
}

// Duration is the item's time budget.
func (r Resource) Duration() time.Duration {
	if r.Quiz != nil {
		return r.Quiz.Duration()
	}
	if r.Test != nil {
		return r.Test.Duration()
	}
	return 0
}
