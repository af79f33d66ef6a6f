package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeakPasswordError_IsAndMessage(t *testing.T) {
	err := error(&WeakPasswordError{Violations: []string{"too short", "contains whitespace"}})

	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "weak password: too short; contains whitespace", err.Error())

	var wp *WeakPasswordError
	require.ErrorAs(t, err, &wp)
	assert.Len(t, wp.Violations, 2)
}

func TestAccountLockedError(t *testing.T) {
	until := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	err := error(&AccountLockedError{Until: &until})

	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Contains(t, err.Error(), "2025-01-02T03:04:05Z")

	assert.Equal(t, ErrAccountLocked.Error(), (&AccountLockedError{}).Error())
}

func TestStoreError_KeepsBothChains(t *testing.T) {
	err := StoreError("get user", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.NotErrorIs(t, err, ErrorNotFound)

	assert.NoError(t, StoreError("noop", nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(ErrInvalidCredentials))
}
