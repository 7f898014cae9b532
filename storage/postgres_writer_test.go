package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-prices/utils"
)

func TestTransientConnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"bad password", &pq.Error{Code: "28P01"}, false},
		{"unknown database", fmt.Errorf("ping: %w", &pq.Error{Code: "3D000"}), false},
		{"too many clients", &pq.Error{Code: "53300"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transientConnError(tt.err))
		})
	}
}

func TestNewPostgresWriterStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	pw, err := NewPostgresWriter(ctx, "host=127.0.0.1 port=1 sslmode=disable connect_timeout=1",
		utils.Backoff{Attempts: 3, Delay: time.Hour})
	require.Error(t, err)
	assert.Nil(t, pw)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
}
