package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

// SnapshotBuilder captures a fully materialized copy of a resource, answer key
// included, so later catalog edits cannot change what a grade was computed against.
type SnapshotBuilder struct {
	catalog ContentCatalog
	now     func() time.Time
}

// NewSnapshotBuilder creates a new SnapshotBuilder.
func NewSnapshotBuilder(catalog ContentCatalog) *SnapshotBuilder {
	return &SnapshotBuilder{catalog: catalog, now: time.Now}
}

// Build reads the resource from the catalog and deep-copies it.
func (b *SnapshotBuilder) Build(ctx context.Context, ref model.ResourceRef) (*model.Snapshot, error) {
	res, err := b.catalog.GetResource(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource %s: %w", ref, err)
	}

	snap := &model.Snapshot{Kind: ref.Kind, CapturedAt: b.now().UTC()}
	switch ref.Kind {
	case model.ResourceTest:
		if res.Test == nil {
			return nil, ErrNotFound
		}
		snap.Test = res.Test.Clone()
	case model.ResourceQuiz:
		if res.Quiz == nil {
			return nil, ErrNotFound
		}
		snap.Quiz = res.Quiz.Clone()
	default:
		return nil, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
	return snap, nil
}
