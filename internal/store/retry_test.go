package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_RetriesBusyThenSucceeds(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	constraint := errors.New("constraint failed: UNIQUE constraint failed: records.key (1555)")
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return fmt.Errorf("put: %w", constraint)
	})
	require.ErrorIs(t, err, constraint)
	require.Equal(t, 1, calls)
	require.True(t, IsConstraintErr(err))
}

func TestRetryWithBackoff_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	require.LessOrEqual(t, calls, 1)
}
