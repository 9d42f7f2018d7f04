package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository-level errors. Services translate these into domain errors.
var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record already exists")
	ErrNotStarted = errors.New("submission is not in STARTED state")
	ErrImmutable  = errors.New("graded submission is immutable")
)

const (
	sqlStateUniqueViolation = "23505"
	sqlStateCheckViolation  = "23514"
	// sqlStateFrozen is raised by the submissions freeze triggers.
	sqlStateFrozen = "EX001"
)

// querier is the subset of pgxpool.Pool and pgx.Tx used by the repositories.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classify maps driver errors onto repository errors and leaves the rest wrapped as-is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case sqlStateFrozen:
			return fmt.Errorf("%w: %s", ErrImmutable, pgErr.Message)
		case sqlStateCheckViolation:
			return fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
		}
	}
	return err
}
