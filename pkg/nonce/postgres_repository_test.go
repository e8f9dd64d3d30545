package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/azure-login/pkg/pgtest"
)

func TestPostgresRepository(t *testing.T) {
	pool := pgtest.NewPool(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	t.Run("CreateAndConsume", func(t *testing.T) {
		value := uuid.NewString()
		createdAt := time.Now().UTC().Truncate(time.Microsecond)

		n, err := repo.Create(ctx, value, createdAt)
		require.NoError(t, err)
		assert.Equal(t, value, n.Value)

		consumed, err := repo.Consume(ctx, value)
		require.NoError(t, err)
		assert.True(t, createdAt.Equal(consumed.CreatedAt))

		_, err = repo.Consume(ctx, value)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateValue", func(t *testing.T) {
		value := uuid.NewString()
		_, err := repo.Create(ctx, value, time.Now())
		require.NoError(t, err)
		_, err = repo.Create(ctx, value, time.Now())
		assert.Error(t, err)
	})

	t.Run("ConcurrentConsume", func(t *testing.T) {
		value := uuid.NewString()
		_, err := repo.Create(ctx, value, time.Now())
		require.NoError(t, err)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Consume(ctx, value); err == nil {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("DeleteCreatedBefore", func(t *testing.T) {
		now := time.Now()
		stale := uuid.NewString()
		fresh := uuid.NewString()
		_, err := repo.Create(ctx, stale, now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = repo.Create(ctx, fresh, now)
		require.NoError(t, err)

		removed, err := repo.DeleteCreatedBefore(ctx, now.Add(-5*time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, int64(1))

		_, err = repo.Consume(ctx, stale)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.Consume(ctx, fresh)
		assert.NoError(t, err)
	})
}
