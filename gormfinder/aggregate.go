package gormfinder

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/finder"
)

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Max returns the largest value of field over the matching rows,
// *finder.NotFoundError when no row has a value.
func Max[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) (N, error) {
	return extreme[N](ctx, r, "MAX", field, opts)
}

// Min returns the smallest value of field over the matching rows,
// *finder.NotFoundError when no row has a value.
func Min[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) (N, error) {
	return extreme[N](ctx, r, "MIN", field, opts)
}

func extreme[N Number, T any](ctx context.Context, r *Repository[T], fn, field string, opts []Option) (N, error) {
	v, err := aggregate[N](ctx, r, fn, field, opts)
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, &finder.NotFoundError{Type: typeName[T](r.db), Err: gorm.ErrRecordNotFound}
	}
	return v.V, nil
}

// Sum returns the sum of field over the matching rows, 0 when nothing matches.
func Sum[N Number, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) (N, error) {
	v, err := aggregate[N](ctx, r, "SUM", field, opts)
	if err != nil {
		return 0, err
	}
	return v.V, nil
}

func aggregate[N Number, T any](ctx context.Context, r *Repository[T], fn, field string, opts []Option) (sql.Null[N], error) {
	var v sql.Null[N]
	p, err := r.plan(nil, opts)
	if err != nil {
		return v, err
	}
	column, err := p.column(field)
	if err != nil {
		return v, err
	}

	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		rows, err := p.query(tx).Select(fn+"(?)", column).Rows()
		if err != nil {
			return storeError(fn, errors.WithStack(err))
		}
		return scanRows(fn, rows, func(rows *sql.Rows) error {
			return rows.Scan(&v)
		})
	})
	return v, err
}

// GroupedCount counts the matching rows per distinct value of field. NULL groups under the zero key.
func GroupedCount[K comparable, T any](ctx context.Context, r *Repository[T], field string, opts ...Option) (map[K]int64, error) {
	return grouped[K, int64](ctx, r, field, "COUNT(*)", "", opts)
}

// GroupedSum sums valueField per distinct value of keyField. NULL groups under the zero key.
func GroupedSum[K comparable, N Number, T any](ctx context.Context, r *Repository[T], keyField, valueField string, opts ...Option) (map[K]N, error) {
	return grouped[K, N](ctx, r, keyField, "SUM(?)", valueField, opts)
}

func grouped[K comparable, N Number, T any](ctx context.Context, r *Repository[T], keyField, expr, valueField string, opts []Option) (map[K]N, error) {
	p, err := r.plan(nil, opts)
	if err != nil {
		return nil, err
	}
	key, err := p.column(keyField)
	if err != nil {
		return nil, err
	}
	vars := []any{key}
	if valueField != "" {
		value, err := p.column(valueField)
		if err != nil {
			return nil, err
		}
		vars = append(vars, value)
	}

	result := map[K]N{}
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		rows, err := p.query(tx).
			Select("?, "+expr, vars...).
			Clauses(clause.GroupBy{Columns: []clause.Column{key}}).
			Rows()
		if err != nil {
			return storeError("group by", errors.WithStack(err))
		}
		return scanRows("group by", rows, func(rows *sql.Rows) error {
			var (
				k sql.Null[K]
				v sql.Null[N]
			)
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			result[k.V] += v.V
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *plan) column(field string) (clause.Column, error) {
	f, err := p.entity.field(field)
	if err != nil {
		return clause.Column{}, err
	}
	return clause.Column{Table: clause.CurrentTable, Name: f.DBName}, nil
}

func scanRows(op string, rows *sql.Rows, scan func(rows *sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return storeError(op, errors.WithStack(err))
		}
	}
	if err := rows.Err(); err != nil {
		return storeError(op, errors.WithStack(err))
	}
	return nil
}
