package model

import (
	"time"

	"github.com/google/uuid"
)

// Paper is the student-facing view of a resource. It carries no answer key.
type Paper struct {
	Kind ResourceKind `json:"kind"`
	Test *TestPaper   `json:"test,omitempty"`
	Quiz *QuizPaper   `json:"quiz,omitempty"`
}

// PaperOption is an option as shown to a student.
type PaperOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// QuestionPaper is a question without its correct index.
type QuestionPaper struct {
	ID      uuid.UUID     `json:"id"`
	Number  int           `json:"number"`
	Text    string        `json:"text"`
	Weight  Score         `json:"weight"`
	Options []PaperOption `json:"options"`
}

// GroupPaper is a question group as shown to a student.
type GroupPaper struct {
	ID          uuid.UUID       `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Instruction string          `json:"instruction,omitempty"`
	ReadingText string          `json:"reading_text,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	Questions   []QuestionPaper `json:"questions"`
}

// SectionPaper is a section as shown to a student.
type SectionPaper struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Type            SectionType  `json:"type"`
	DurationMinutes int          `json:"duration_minutes"`
	Groups          []GroupPaper `json:"groups"`
}

// TestPaper is the sanitized multi-section test.
type TestPaper struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Level           Level          `json:"level"`
	DurationMinutes int            `json:"duration_minutes"`
	Sections        []SectionPaper `json:"sections"`
}

// QuizQuestionPaper is a quiz question without its correct index.
type QuizQuestionPaper struct {
	ID              uuid.UUID     `json:"id"`
	Text            string        `json:"text"`
	Type            string        `json:"type"`
	DurationSeconds int           `json:"duration_seconds"`
	Points          Score         `json:"points"`
	Options         []PaperOption `json:"options"`
}

// QuizPaper is the sanitized quiz.
type QuizPaper struct {
	ID              uuid.UUID           `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	DurationSeconds int                 `json:"duration_seconds"`
	Questions       []QuizQuestionPaper `json:"questions"`
}

// StartedAttempt is returned by the admission endpoints.
type StartedAttempt struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	StartedAt    time.Time `json:"started_at"`
	Resumed      bool      `json:"resumed"`
	Paper        *Paper    `json:"paper"`
}
