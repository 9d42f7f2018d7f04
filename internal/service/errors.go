package service

import (
	"errors"

	"github.com/stemsi/exstem-grading/internal/repository"
)

// Domain errors surfaced to callers. Handlers map each one to a response code.
var (
	ErrNotFound               = errors.New("not found")
	ErrNotOpen                = errors.New("assignment is not open")
	ErrDeadlinePassed         = errors.New("assignment deadline has passed")
	ErrAlreadyCompleted       = errors.New("attempt already completed")
	ErrInvalidState           = errors.New("only an in-progress attempt can be finalized")
	ErrResourceNotPublishable = errors.New("resource is not publishable")
	ErrValidation             = errors.New("invalid answers payload")
	ErrForbidden              = errors.New("submission belongs to another user")
	ErrResultsNotPublished    = errors.New("results are not published yet")
)

// fromStore translates repository errors into domain errors.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrNotStarted), errors.Is(err, repository.ErrImmutable):
		return ErrInvalidState
	default:
		return err
	}
}
