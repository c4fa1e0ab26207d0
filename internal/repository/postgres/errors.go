package postgres

import (
	"github.com/lib/pq"

	ierr "github.com/cartpay/cartpay/internal/errors"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// isUniqueViolation reports whether the error is a postgres unique constraint
// violation. Idempotent replays racing on the same key surface here.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation
}

// isLockConflict reports whether the error is a serialization failure or a
// deadlock on a row lock. Concurrent mutators of the same cart payment
// surface here; the losing caller may retry.
func isLockConflict(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && (pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected)
}

func markWriteErr(err error, hint string) error {
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHint(hint).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}
