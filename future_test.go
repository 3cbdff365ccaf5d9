package finder_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/theplant/finder"
)

type ctxKey struct{}

func TestFuture(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), ctxKey{}, "v")
		f := finder.Go(ctx, func(ctx context.Context) (string, error) {
			return ctx.Value(ctxKey{}).(string), nil
		})
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, "v", v)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := finder.Go(context.Background(), func(ctx context.Context) (int, error) {
			return 0, boom
		}).Await(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("panic", func(t *testing.T) {
		_, err := finder.Go(context.Background(), func(ctx context.Context) (int, error) {
			panic("boom")
		}).Await(context.Background())
		require.ErrorContains(t, err, "panic: boom")
	})

	t.Run("cancel stops waiting only", func(t *testing.T) {
		release := make(chan struct{})
		started, cancelStart := context.WithCancel(context.Background())
		cancelStart()

		f := finder.Go(started, func(ctx context.Context) (int, error) {
			<-release
			return 1, ctx.Err()
		})

		waitCtx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Await(waitCtx)
		require.ErrorIs(t, err, context.Canceled)

		close(release)
		<-f.Done()
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, v)
	})
}
