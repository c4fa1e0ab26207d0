package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	ierr "github.com/cartpay/cartpay/internal/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: pqUniqueViolation}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: pqSerializationFailure}))
	assert.False(t, isUniqueViolation(assert.AnError))
}

func TestIsLockConflict(t *testing.T) {
	assert.True(t, isLockConflict(&pq.Error{Code: pqSerializationFailure}))
	assert.True(t, isLockConflict(&pq.Error{Code: pqDeadlockDetected}))
	assert.False(t, isLockConflict(&pq.Error{Code: pqUniqueViolation}))
	assert.False(t, isLockConflict(assert.AnError))
}

func TestMarkWriteErr(t *testing.T) {
	err := markWriteErr(&pq.Error{Code: pqUniqueViolation}, "duplicate")
	assert.True(t, ierr.IsAlreadyExists(err))

	err = markWriteErr(assert.AnError, "boom")
	assert.False(t, ierr.IsAlreadyExists(err))
	assert.True(t, ierr.Is(err, ierr.ErrDatabase))
}
