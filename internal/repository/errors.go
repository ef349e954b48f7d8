package repository

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"showshelf/internal/metrics"
)

var (
	// ErrShowNotFound is returned when no record exists for the requested id.
	ErrShowNotFound = errors.New("show not found")
	// ErrShowExists is returned by strict inserts when the id is already stored.
	ErrShowExists = errors.New("show already exists")
	// ErrTitleRequired is returned when a write would store an absent or empty title.
	ErrTitleRequired = errors.New("show title is required")
	// ErrInvalidID is returned for ids that cannot identify a show.
	ErrInvalidID = errors.New("show id must be positive")
)

// translateError maps SQLite constraint failures onto the repository's
// sentinel errors. The driver error stays in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		metrics.ConstraintRejectionsTotal.WithLabelValues("title").Inc()
		return fmt.Errorf("%w: %w", ErrTitleRequired, err)
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		metrics.ConstraintRejectionsTotal.WithLabelValues("primary_key").Inc()
		return fmt.Errorf("%w: %w", ErrShowExists, err)
	}
	return err
}
