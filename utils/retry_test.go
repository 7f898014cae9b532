package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffEventuallySucceeds(t *testing.T) {
	b := Backoff{Attempts: 3, Logger: NewNopLogger()}
	calls := 0
	err := b.Run(context.Background(), "postgres ping", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffGivesUp(t *testing.T) {
	b := Backoff{Attempts: 2}
	down := errors.New("down")
	calls := 0
	err := b.Run(context.Background(), "postgres ping", func(context.Context) error {
		calls++
		return down
	})
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "postgres ping: gave up after 2 attempts")
}

func TestBackoffStopsOnPermanentError(t *testing.T) {
	denied := errors.New("password authentication failed")
	b := Backoff{
		Attempts:  5,
		Retryable: func(err error) bool { return !errors.Is(err, denied) },
	}
	calls := 0
	err := b.Run(context.Background(), "postgres ping", func(context.Context) error {
		calls++
		return denied
	})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, calls)
}

func TestBackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := Backoff{Attempts: 3, Delay: time.Hour}
	calls := 0
	start := time.Now()
	err := b.Run(ctx, "postgres ping", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}
