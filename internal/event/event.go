package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
)

// Trigger names what moved a submission to GRADED.
type Trigger string

const (
	TriggerSubmit Trigger = "submit"
	TriggerExpiry Trigger = "expiry"
)

// SubmissionGraded is published once per finalized submission, after commit.
type SubmissionGraded struct {
	SubmissionID uuid.UUID           `json:"submission_id"`
	UserID       uuid.UUID           `json:"user_id"`
	Assignment   model.AssignmentRef `json:"assignment"`
	Resource     model.ResourceRef   `json:"resource"`
	Score        model.Score         `json:"score"`
	Trigger      Trigger             `json:"trigger"`
	GradedAt     time.Time           `json:"graded_at"`
}

// NewSubmissionGraded builds the event for a graded row.
func NewSubmissionGraded(s *model.Submission, trigger Trigger) SubmissionGraded {
	ev := SubmissionGraded{
		SubmissionID: s.ID,
		UserID:       s.UserID,
		Assignment:   s.Assignment,
		Resource:     s.Resource,
		Score:        s.Score,
		Trigger:      trigger,
	}
	if s.CompletedAt != nil {
		ev.GradedAt = *s.CompletedAt
	}
	return ev
}

// Publisher delivers graded events to downstream consumers.
type Publisher interface {
	PublishGraded(ctx context.Context, ev SubmissionGraded) error
}

// Nop discards every event. Used when no bus is configured.
type Nop struct{}

func (Nop) PublishGraded(context.Context, SubmissionGraded) error { return nil }
