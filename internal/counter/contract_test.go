package counter

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("increment and read", func(t *testing.T) {
		key := "contract:incr"
		require.NoError(t, s.Reset(ctx, key))

		n, err := s.GetCurrent(ctx, key)
		require.NoError(t, err)
		require.Zero(t, n)

		for want := 1; want <= 3; want++ {
			got, err := s.IncrementAndGet(ctx, key, DefaultTTL)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
		n, err = s.GetCurrent(ctx, key)
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("reset clears counter and flag", func(t *testing.T) {
		key := "contract:reset"
		_, err := s.IncrementAndGet(ctx, key, DefaultTTL)
		require.NoError(t, err)
		require.NoError(t, s.SetFlag(ctx, key, true, DefaultTTL))

		require.NoError(t, s.Reset(ctx, key))

		n, err := s.GetCurrent(ctx, key)
		require.NoError(t, err)
		require.Zero(t, n)
		flagged, err := s.GetFlag(ctx, key)
		require.NoError(t, err)
		require.False(t, flagged)
	})

	t.Run("flags", func(t *testing.T) {
		key := "contract:flag"
		require.NoError(t, s.Reset(ctx, key))

		flagged, err := s.GetFlag(ctx, key)
		require.NoError(t, err)
		require.False(t, flagged)

		require.NoError(t, s.SetFlag(ctx, key, true, DefaultTTL))
		flagged, err = s.GetFlag(ctx, key)
		require.NoError(t, err)
		require.True(t, flagged)

		n, err := s.GetCurrent(ctx, key)
		require.NoError(t, err)
		require.Zero(t, n, "flag must not leak into the counter")

		require.NoError(t, s.SetFlag(ctx, key, false, DefaultTTL))
		flagged, err = s.GetFlag(ctx, key)
		require.NoError(t, err)
		require.False(t, flagged)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		key := "contract:concurrent"
		require.NoError(t, s.Reset(ctx, key))

		const workers = 50
		var (
			mu   sync.Mutex
			seen []int
		)
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				n, err := s.IncrementAndGet(ctx, key, time.Minute)
				if err != nil {
					return err
				}
				mu.Lock()
				seen = append(seen, n)
				mu.Unlock()
				return nil
			})
		}
		require.NoError(t, g.Wait())

		sort.Ints(seen)
		want := make([]int, workers)
		for i := range want {
			want[i] = i + 1
		}
		require.Equal(t, want, seen)

		n, err := s.GetCurrent(ctx, key)
		require.NoError(t, err)
		require.Equal(t, workers, n)
	})
}
