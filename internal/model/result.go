package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionResult is the graded outcome of one answered question.
// It intentionally has no field for the correct option.
type QuestionResult struct {
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	Correct       bool      `json:"correct"`
	Score         Score     `json:"score"`
	MaxScore      Score     `json:"max_score"`
}

// SectionResult is the earned and possible score of one test section.
type SectionResult struct {
	SectionID uuid.UUID        `json:"section_id"`
	Name      string           `json:"name"`
	Type      SectionType      `json:"type"`
	Score     Score            `json:"score"`
	MaxScore  Score            `json:"max_score"`
	Questions []QuestionResult `json:"questions"`
}

// SubScore is one named sectional score checked against its floor.
type SubScore struct {
	Name        string `json:"name"`
	Score       Score  `json:"score"`
	MinRequired Score  `json:"min_required"`
	Passed      bool   `json:"passed"`
}

// Verdict is the level-specific pass/fail decision.
type Verdict struct {
	Level             Level      `json:"level"`
	TotalScore        Score      `json:"total_score"`
	PassMark          Score      `json:"pass_mark"`
	TotalPassed       bool       `json:"total_passed"`
	AllSectionsPassed bool       `json:"all_sections_passed"`
	Passed            bool       `json:"passed"`
	SubScores         []SubScore `json:"sub_scores"`
}

// Result is the full grading breakdown stored on a submission.
type Result struct {
	Kind       ResourceKind    `json:"kind"`
	TotalScore Score           `json:"total_score"`
	MaxScore   Score           `json:"max_score"`
	Sections   []SectionResult `json:"sections,omitempty"` // Test only
	Verdict    *Verdict        `json:"verdict,omitempty"`  // Test only, nil for unknown levels
	// Quiz only
	CorrectCount  int              `json:"correct_count,omitempty"`
	AnsweredCount int              `json:"answered_count,omitempty"`
	TotalCount    int              `json:"total_count,omitempty"`
	Percentage    *Score           `json:"percentage,omitempty"`
	Questions     []QuestionResult `json:"questions,omitempty"`
}

// SubmitOutcome is returned by the submit endpoint. Result is nil when the
// assignment defers disclosure.
type SubmitOutcome struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	CompletedAt  time.Time        `json:"completed_at"`
	Result       *Result          `json:"result,omitempty"`
}


// ResultView is a graded submission as returned by the result endpoints.
// Snapshot is only filled for administrative callers.
type ResultView struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	Assignment   AssignmentRef    `json:"assignment"`
	Resource     ResourceRef      `json:"resource"`
	Status       SubmissionStatus `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Score        Score            `json:"score"`
	Answers      Answers          `json:"answers"`
	Result       *Result          `json:"result"`
	Snapshot     *Snapshot        `json:"snapshot,omitempty"`
}
