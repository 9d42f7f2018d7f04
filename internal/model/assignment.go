package model

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is the open/closed state of an exam assignment.
type Visibility string

const (
	VisibilityOpen   Visibility = "OPEN"
	VisibilityClosed Visibility = "CLOSED"
)

// Assignment is the registry view of an exam or homework assignment.
type Assignment struct {
	ID                     uuid.UUID      `json:"id"`
	Kind                   AssignmentKind `json:"kind"`
	Title                  string         `json:"title"`
	Visibility             Visibility     `json:"visibility,omitempty"` // Exam only
	Deadline               *time.Time     `json:"deadline,omitempty"`   // Homework only
	TestID                 uuid.UUID      `json:"test_id,omitempty"`    // Exam only
	TestIDs                []uuid.UUID    `json:"test_ids,omitempty"`   // Homework only
	QuizIDs                []uuid.UUID    `json:"quiz_ids,omitempty"`   // Homework only
	ShowResultsImmediately bool           `json:"show_results_immediately"`
	ResultsPublished       bool           `json:"results_published"`
}

// Ref returns the tagged reference to this assignment.
func (a *Assignment) Ref() AssignmentRef {
	return AssignmentRef{Kind: a.Kind, ID: a.ID}
}

// Includes reports whether the resource is linked to this assignment.
func (a *Assignment) Includes(ref ResourceRef) bool {
	switch a.Kind {
	case AssignmentExam:
		return ref.Kind == ResourceTest && ref.ID == a.TestID
	case AssignmentHomework:
		ids := a.TestIDs
		if ref.Kind == ResourceQuiz {
			ids = a.QuizIDs
		}
		for _, id := range ids {
			if id == ref.ID {
				return true
			}
		}
	}
	return false
}

// DeadlinePassed reports whether a homework deadline is at or before now.
func (a *Assignment) DeadlinePassed(now time.Time) bool {
	return a.Deadline != nil && !now.Before(*a.Deadline)
}

// DisclosesResults reports whether an owner may see a graded result.
func (a *Assignment) DisclosesResults() bool {
	if a.Kind == AssignmentExam {
		return a.ResultsPublished
	}
	return a.ShowResultsImmediately || a.ResultsPublished
}
