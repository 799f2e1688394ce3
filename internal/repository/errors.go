package repository

import (
	"errors"
	"fmt"

	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// Store level guard failures surfaced to services.
var (
	// ErrDuplicateKey reports a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrOverlap reports the tutor schedule exclusion constraint firing.
	ErrOverlap = errors.New("overlapping schedule")
	// ErrCapacity reports a conditional enrollment insert that matched no row.
	ErrCapacity = errors.New("course capacity reached")
)

// translate maps driver failures onto the guard sentinels, keeping the
// original error in the chain.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
	case database.IsExclusionViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrOverlap, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
