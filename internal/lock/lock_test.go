package lock

import (
	"context"
	"testing"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "batch-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "batch-1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	other, err := l.Acquire(ctx, "batch-2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "batch-1")
	require.NoError(t, err)
	again()
}

func TestNewFallsBackToLocal(t *testing.T) {
	locker, err := New(context.Background(), config.RedisOptions{})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, locker)
}
