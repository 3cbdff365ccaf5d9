package gormfinder

import (
	"context"

	"github.com/samber/lo"

	"github.com/theplant/finder"
)

// AsyncRepository runs the operations of a Repository on their own goroutines.
// A started operation is not cancelled by its context, Await only stops waiting.
type AsyncRepository[T any] struct {
	r *Repository[T]
}

func (r *Repository[T]) Async() *AsyncRepository[T] {
	return &AsyncRepository[T]{r: r}
}

func (a *AsyncRepository[T]) GetAll(ctx context.Context, opts ...Option) *finder.Future[[]T] {
	return finder.Go(ctx, func(ctx context.Context) ([]T, error) {
		return a.r.GetAll(ctx, opts...)
	})
}

func (a *AsyncRepository[T]) Find(ctx context.Context, param *finder.InputParam, opts ...Option) *finder.Future[*finder.OutputParam[T]] {
	return finder.Go(ctx, func(ctx context.Context) (*finder.OutputParam[T], error) {
		return a.r.Find(ctx, param, opts...)
	})
}

func (a *AsyncRepository[T]) Distinct(ctx context.Context, param *finder.InputParam, opts ...Option) *finder.Future[*finder.OutputParam[T]] {
	return finder.Go(ctx, func(ctx context.Context) (*finder.OutputParam[T], error) {
		return a.r.Distinct(ctx, param, opts...)
	})
}

func (a *AsyncRepository[T]) First(ctx context.Context, opts ...Option) *finder.Future[T] {
	return finder.Go(ctx, func(ctx context.Context) (T, error) {
		return a.r.First(ctx, opts...)
	})
}

// FirstOrDefault resolves to the row and whether one was found.
func (a *AsyncRepository[T]) FirstOrDefault(ctx context.Context, opts ...Option) *finder.Future[lo.Tuple2[T, bool]] {
	return finder.Go(ctx, func(ctx context.Context) (lo.Tuple2[T, bool], error) {
		v, found, err := a.r.FirstOrDefault(ctx, opts...)
		return lo.T2(v, found), err
	})
}

func (a *AsyncRepository[T]) Any(ctx context.Context, opts ...Option) *finder.Future[bool] {
	return finder.Go(ctx, func(ctx context.Context) (bool, error) {
		return a.r.Any(ctx, opts...)
	})
}

func (a *AsyncRepository[T]) Count(ctx context.Context, opts ...Option) *finder.Future[int64] {
	return finder.Go(ctx, func(ctx context.Context) (int64, error) {
		return a.r.Count(ctx, opts...)
	})
}

func (a *AsyncRepository[T]) CountDistinct(ctx context.Context, field string, opts ...Option) *finder.Future[int64] {
	return finder.Go(ctx, func(ctx context.Context) (int64, error) {
		return a.r.CountDistinct(ctx, field, opts...)
	})
}

func (a *AsyncRepository[T]) GetByID(ctx context.Context, id any, opts ...Option) *finder.Future[T] {
	return finder.Go(ctx, func(ctx context.Context) (T, error) {
		return a.r.GetByID(ctx, id, opts...)
	})
}

func MaxAsync[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) *finder.Future[N] {
	return finder.Go(ctx, func(ctx context.Context) (N, error) {
		return Max[N](ctx, r, field, opts...)
	})
}

func MinAsync[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) *finder.Future[N] {
	return finder.Go(ctx, func(ctx context.Context) (N, error) {
		return Min[N](ctx, r, field, opts...)
	})
}

func SumAsync[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) *finder.Future[N] {
	return finder.Go(ctx, func(ctx context.Context) (N, error) {
		return Sum[N](ctx, r, field, opts...)
	})
}

func GroupedCountAsync[K comparable, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) *finder.Future[map[K]int64] {
	return finder.Go(ctx, func(ctx context.Context) (map[K]int64, error) {
		return GroupedCount[K](ctx, r, field, opts...)
	})
}

func GroupedSumAsync[K comparable, N Number, T any](ctx context.Context, r *Repository[T], keyField, valueField string, opts ...Option) *finder.Future[map[K]N] {
	return finder.Go(ctx, func(ctx context.Context) (map[K]N, error) {
		return GroupedSum[K, N](ctx, r, keyField, valueField, opts...)
	})
}
