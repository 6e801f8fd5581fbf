package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroysmeta/normcat-cli/internal/etl"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New()
	err := s.Add("etl", "not a cron spec", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Entries())
}

func TestAddSixFieldSpec(t *testing.T) {
	s := New()
	err := s.Add("etl", "0 0 */6 * * *", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "etl", entries[0].Name)
	assert.True(t, entries[0].NextRun.After(time.Now()))
}

func TestRunWithoutEntries(t *testing.T) {
	err := New().Run(context.Background())
	assert.Error(t, err)
}

func TestRunFiresAndStops(t *testing.T) {
	s := New()
	var fired atomic.Int32
	// Every second, so the test observes at least one firing quickly.
	require.NoError(t, s.Add("tick", "* * * * * *", func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, fired.Load(), int32(1))
}

func TestFireToleratesJobConflict(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("etl", "* * * * * *", func(ctx context.Context) error {
		return &etl.JobConflictError{RunningJobID: "abc"}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	// A conflict is a skip, not a failure; Run keeps going until cancelled.
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
