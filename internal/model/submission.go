package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates attempt states.
type SubmissionStatus string

const (
	SubmissionStatusStarted SubmissionStatus = "STARTED"
	// SubmissionStatusSubmitted is reserved for a two-phase "received, pending
	// review" finalization. No flow in this service produces it.
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
)

// CanTransition reports whether the state machine allows from -> to.
// GRADED is terminal.
func CanTransition(from, to SubmissionStatus) bool {
	switch from {
	case SubmissionStatusStarted:
		return to == SubmissionStatusGraded || to == SubmissionStatusSubmitted
	case SubmissionStatusSubmitted:
		return to == SubmissionStatusGraded
	default:
		return false
	}
}

// Completed reports whether the attempt can no longer be resumed.
func (s SubmissionStatus) Completed() bool {
	return s == SubmissionStatusSubmitted || s == SubmissionStatusGraded
}

// AssignmentKind distinguishes the two assignment families.
type AssignmentKind string

const (
	AssignmentExam     AssignmentKind = "EXAM"
	AssignmentHomework AssignmentKind = "HOMEWORK"
)

// AssignmentRef points at exactly one assignment.
type AssignmentRef struct {
	Kind AssignmentKind `json:"kind"`
	ID   uuid.UUID      `json:"id"`
}

// ResourceKind distinguishes the two gradable resource families.
type ResourceKind string

const (
	ResourceTest ResourceKind = "TEST"
	ResourceQuiz ResourceKind = "QUIZ"
)

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool {
	return k == ResourceTest || k == ResourceQuiz
}

// ResourceRef points at exactly one test or quiz.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Answers maps a question id to a zero-based selected option index.
type Answers map[string]int

// Clone returns a copy that shares no storage with a.
func (a Answers) Clone() Answers {
	c := make(Answers, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Submission is one user's attempt at one resource of one assignment.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	Assignment  AssignmentRef    `json:"assignment"`
	Resource    ResourceRef      `json:"resource"`
	Status      SubmissionStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Score       Score            `json:"score"`
	Answers     Answers          `json:"answers"`
	Result      *Result          `json:"result,omitempty"`
	Snapshot    *Snapshot        `json:"snapshot,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Validate checks the reference invariants the schema also enforces.
func (s *Submission) Validate() error {
	switch s.Assignment.Kind {
	case AssignmentExam:
		if s.Resource.Kind != ResourceTest {
			return fmt.Errorf("exam submission must reference a test, got %s", s.Resource.Kind)
		}
	case AssignmentHomework:
		if !s.Resource.Kind.Valid() {
			return fmt.Errorf("unknown resource kind %q", s.Resource.Kind)
		}
	default:
		return fmt.Errorf("unknown assignment kind %q", s.Assignment.Kind)
	}
	if s.Assignment.ID == uuid.Nil || s.Resource.ID == uuid.Nil {
		return fmt.Errorf("assignment and resource ids are required")
	}
	return nil
}

// Finalization is everything written by the STARTED -> GRADED transition.
type Finalization struct {
	Answers     Answers
	CompletedAt time.Time
	Score       Score
	Result      *Result
	Snapshot    *Snapshot
}

// Snapshot is the materialized resource a submission was graded against.
type Snapshot struct {
	Kind       ResourceKind `json:"kind"`
	Test       *Test        `json:"test,omitempty"`
	Quiz       *Quiz        `json:"quiz,omitempty"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Resource exposes the snapshot as a gradable resource.
func (s *Snapshot) Resource() Resource {
	return Resource{Test: s.Test, Quiz: s.Quiz}
}

// StartAttemptRequest is the payload for opening a homework attempt.
type StartAttemptRequest struct {
	ResourceKind ResourceKind `json:"resource_kind" binding:"required,oneof=TEST QUIZ"`
	ResourceID   string       `json:"resource_id" binding:"required,uuid"`
}

// AnswersRequest carries a full answer map for submit, preview and autosave.
type AnswersRequest struct {
	Answers Answers `json:"answers" binding:"required,dive,keys,uuid,endkeys,gte=0"`
}

// AttemptState is what a client needs to restore an in-progress attempt.
type AttemptState struct {
	SubmissionID     uuid.UUID        `json:"submission_id"`
	Status           SubmissionStatus `json:"status"`
	StartedAt        time.Time        `json:"started_at"`
	EndsAt           time.Time        `json:"ends_at"`
	RemainingSeconds float64          `json:"remaining_seconds"`
	AutosavedAnswers Answers          `json:"autosaved_answers"`
}
