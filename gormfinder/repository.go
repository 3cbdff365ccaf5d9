package gormfinder

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/theplant/finder"
)

// QueryRepository is the read side of an entity store.
type QueryRepository[T any] interface {
	GetAll(ctx context.Context, opts ...Option) ([]T, error)
	Find(ctx context.Context, param *finder.InputParam, opts ...Option) (*finder.OutputParam[T], error)
	Distinct(ctx context.Context, param *finder.InputParam, opts ...Option) (*finder.OutputParam[T], error)
	First(ctx context.Context, opts ...Option) (T, error)
	FirstOrDefault(ctx context.Context, opts ...Option) (T, bool, error)
	Any(ctx context.Context, opts ...Option) (bool, error)
	Count(ctx context.Context, opts ...Option) (int64, error)
	CountDistinct(ctx context.Context, field string, opts ...Option) (int64, error)
	GetByID(ctx context.Context, id any, opts ...Option) (T, error)
}

var _ QueryRepository[any] = (*Repository[any])(nil)

type Repository[T any] struct {
	db       *gorm.DB
	executor *Executor
	opts     Options
}

// New returns a repository of T. T is a struct or a pointer to a struct, opts are the defaults of every call.
func New[T any](db *gorm.DB, opts ...Option) *Repository[T] {
	return &Repository[T]{
		db:       db,
		executor: NewExecutor(db),
		opts:     defaultOptions().apply(opts...),
	}
}

func newModel[T any]() any {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() == reflect.Ptr {
		return reflect.New(rt.Elem()).Interface()
	}
	return new(T)
}

// plan is everything one call compiles before it touches the store.
type plan struct {
	opts      Options
	model     any
	entity    *entity
	predicate *Predicate
	ordering  *Ordering
	joins     []string
	columns   []string
}

func (r *Repository[T]) plan(param *finder.InputParam, opts []Option) (*plan, error) {
	o := r.opts.apply(opts...)
	if param != nil {
		o = o.apply(WithFilterSet(param.FilterSet), WithJoins(param.Joins...))
		if len(param.OrderBy) > 0 {
			o.OrderBy = param.OrderBy
		}
	}

	model := newModel[T]()
	e, err := lookupEntity(r.db, model)
	if err != nil {
		return nil, err
	}

	for _, fs := range o.FilterSets {
		if err := finder.CheckComplexity(fs, o.ComplexityLimits); err != nil {
			return nil, err
		}
	}
	predicate, err := Compile(r.db, model, o.FilterSets...)
	if err != nil {
		return nil, err
	}
	if err := finder.ValidateOrder(o.OrderBy); err != nil {
		return nil, err
	}
	ordering, err := compileOrder(e, o.OrderBy)
	if err != nil {
		return nil, err
	}
	joins, err := resolveJoins(e, o.Joins)
	if err != nil {
		return nil, err
	}
	columns, err := e.columns(o.Select)
	if err != nil {
		return nil, err
	}

	return &plan{
		opts:      o,
		model:     model,
		entity:    e,
		predicate: predicate,
		ordering:  ordering,
		joins:     joins,
		columns:   columns,
	}, nil
}

// query is the filtered, unordered and unpaged query, reusable for count and find.
func (p *plan) query(tx *gorm.DB) *gorm.DB {
	db := tx.Model(p.model)
	if p.predicate != nil {
		db = db.Where(p.predicate.Expression())
	}
	if len(p.opts.Scopes) > 0 {
		db = db.Scopes(p.opts.Scopes...)
	}
	return db.Session(&gorm.Session{})
}

func (p *plan) primaryField() (*schema.Field, error) {
	return p.entity.primaryField()
}

// withPrimaryOrder is the ordering followed by the primary key ascending.
func (p *plan) withPrimaryOrder() (*Ordering, error) {
	pk, err := p.primaryField()
	if err != nil {
		return nil, err
	}
	return compileOrder(p.entity, finder.AppendPrimaryOrder(p.opts.OrderBy, finder.Asc(pk.Name)))
}

// distinctOrdering orders distinct rows by the primary key, or by the projected
// columns when the projection leaves the primary key out.
func (p *plan) distinctOrdering(columns []string) (*Ordering, error) {
	if len(p.ordering.Columns) > 0 {
		return p.ordering, nil
	}
	pk, err := p.primaryField()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 || lo.Contains(columns, pk.DBName) {
		return compileOrder(p.entity, []finder.Order{finder.Asc(pk.Name)})
	}
	o := &Ordering{}
	for _, column := range columns {
		o.Columns = append(o.Columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: column},
		})
	}
	return o, nil
}

// projection returns the columns to select when scanning into R.
// An empty result selects the whole entity.
func projection[R any](db *gorm.DB, p *plan) ([]string, error) {
	if len(p.columns) > 0 {
		return p.columns, nil
	}
	rt := reflect.TypeOf((*R)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == p.entity.schema.ModelType {
		return nil, nil
	}
	if rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("projection of %s into %s needs WithSelect", p.entity.name(), rt)
	}
	s, err := parseSchema(db, reflect.New(rt).Interface())
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, name := range s.DBNames {
		if _, ok := p.entity.schema.FieldsByDBName[name]; ok {
			columns = append(columns, name)
		}
	}
	if len(columns) == 0 {
		return nil, errors.Errorf("%s shares no column with %s", rt, p.entity.name())
	}
	return columns, nil
}

func (r *Repository[T]) execute(ctx context.Context, p *plan, fn func(tx *gorm.DB) error) error {
	return r.executor.Execute(ctx, p.opts.ReadUncommitted, func(_ context.Context, tx *gorm.DB) error {
		return fn(tx)
	})
}

func (r *Repository[T]) GetAll(ctx context.Context, opts ...Option) ([]T, error) {
	return GetAllAs[T](ctx, r, opts...)
}

// GetAllAs returns the matching rows scanned into R, at most WithMaxCount of them.
func GetAllAs[R, T any](ctx context.Context, r *Repository[T], opts ...Option) ([]R, error) {
	p, err := r.plan(nil, opts)
	if err != nil {
		return nil, err
	}
	columns, err := projection[R](r.db, p)
	if err != nil {
		return nil, err
	}

	var rows []R
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		db := p.query(tx)
		if len(columns) > 0 {
			db = db.Select(columns)
		}
		if c := p.ordering.Clause(); c != nil {
			db = db.Clauses(c)
		}
		if p.opts.MaxCount > 0 {
			db = db.Limit(p.opts.MaxCount)
		}
		db = preload(db, p.joins)
		if err := db.Find(&rows).Error; err != nil {
			return storeError("get all", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository[T]) Find(ctx context.Context, param *finder.InputParam, opts ...Option) (*finder.OutputParam[T], error) {
	return FindAs[T](ctx, r, param, opts...)
}

func (r *Repository[T]) Distinct(ctx context.Context, param *finder.InputParam, opts ...Option) (*finder.OutputParam[T], error) {
	return DistinctAs[T](ctx, r, param, opts...)
}

// FindAs filters, orders and pages the rows, scanning them into R.
func FindAs[R, T any](ctx context.Context, r *Repository[T], param *finder.InputParam, opts ...Option) (*finder.OutputParam[R], error) {
	return find[R](ctx, r, param, opts, false)
}

// DistinctAs is FindAs over distinct rows of the projection.
func DistinctAs[R, T any](ctx context.Context, r *Repository[T], param *finder.InputParam, opts ...Option) (*finder.OutputParam[R], error) {
	return find[R](ctx, r, param, opts, true)
}

func find[R, T any](ctx context.Context, r *Repository[T], param *finder.InputParam, opts []Option, distinct bool) (*finder.OutputParam[R], error) {
	if param == nil {
		param = &finder.InputParam{}
	}
	p, err := r.plan(param, opts)
	if err != nil {
		return nil, err
	}
	columns, err := projection[R](r.db, p)
	if err != nil {
		return nil, err
	}

	ordering := p.ordering
	if distinct {
		if ordering, err = p.distinctOrdering(columns); err != nil {
			return nil, err
		}
	}

	paging, err := clonePagination(param.Paging)
	if err != nil {
		return nil, err
	}
	var pk string
	if paging.Kind() == finder.PaginationKindInfinite {
		field, err := p.primaryField()
		if err != nil {
			return nil, err
		}
		pk = field.DBName
	}

	out := &finder.OutputParam[R]{InputParam: *param}
	out.Paging = paging
	out.Result = []R{}

	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		filtered := p.query(tx)

		listing := filtered
		if len(columns) > 0 {
			listing = listing.Select(columns)
		}
		if distinct {
			listing = listing.Distinct()
		}
		listing = listing.Session(&gorm.Session{})

		if paging.NeedsTotalCount() {
			var count int64
			var err error
			if distinct {
				err = tx.Table("(?) AS distinct_rows", listing).Count(&count).Error
			} else {
				err = filtered.Count(&count).Error
			}
			if err != nil {
				return storeError("count", errors.WithStack(err))
			}
			paging.SetTotalCount(int(count))
		}

		db, err := paginate(listing, paging, pk)
		if err != nil {
			return err
		}
		if c := ordering.Clause(); c != nil {
			db = db.Clauses(c)
		}
		db = preload(db, p.joins)

		var rows []R
		if err := db.Find(&rows).Error; err != nil {
			return storeError("find", errors.WithStack(err))
		}
		if rows != nil {
			out.Result = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// clonePagination copies paging so the caller's value is not written to.
// Nil becomes the first page of the default size.
func clonePagination(paging finder.Pagination) (finder.Pagination, error) {
	switch p := paging.(type) {
	case nil:
		return finder.NewPageNumberPagination(1, finder.DefaultPageSize), nil
	case *finder.PageNumberPagination:
		if p == nil {
			return finder.NewPageNumberPagination(1, finder.DefaultPageSize), nil
		}
		c := *p
		return &c, nil
	case *finder.InfinitePagination:
		if p == nil {
			return finder.NewInfinitePagination(0, 0, finder.DefaultPageSize), nil
		}
		c := *p
		return &c, nil
	default:
		return nil, errors.Errorf("unsupported pagination %T", paging)
	}
}

func (r *Repository[T]) First(ctx context.Context, opts ...Option) (T, error) {
	return FirstAs[T](ctx, r, opts...)
}

// FirstAs returns the first matching row scanned into R, *finder.NotFoundError when there is none.
func FirstAs[R, T any](ctx context.Context, r *Repository[T], opts ...Option) (R, error) {
	v, found, err := first[R](ctx, r, opts)
	if err != nil {
		return v, err
	}
	if !found {
		return v, &finder.NotFoundError{Type: typeName[T](r.db), Err: gorm.ErrRecordNotFound}
	}
	return v, nil
}

func (r *Repository[T]) FirstOrDefault(ctx context.Context, opts ...Option) (T, bool, error) {
	return first[T](ctx, r, opts)
}

func first[R, T any](ctx context.Context, r *Repository[T], opts []Option) (R, bool, error) {
	var zero R
	p, err := r.plan(nil, opts)
	if err != nil {
		return zero, false, err
	}
	columns, err := projection[R](r.db, p)
	if err != nil {
		return zero, false, err
	}
	ordering, err := p.withPrimaryOrder()
	if err != nil {
		return zero, false, err
	}

	var rows []R
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		db := p.query(tx)
		if len(columns) > 0 {
			db = db.Select(columns)
		}
		db = preload(db.Clauses(ordering.Clause()).Limit(1), p.joins)
		if err := db.Find(&rows).Error; err != nil {
			return storeError("first", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return zero, false, err
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}

func typeName[T any](db *gorm.DB) string {
	e, err := lookupEntity(db, newModel[T]())
	if err != nil {
		return reflect.TypeOf((*T)(nil)).Elem().String()
	}
	return e.name()
}

func (r *Repository[T]) Any(ctx context.Context, opts ...Option) (bool, error) {
	p, err := r.plan(nil, opts)
	if err != nil {
		return false, err
	}

	var ones []int
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		if err := p.query(tx).Select("1").Limit(1).Find(&ones).Error; err != nil {
			return storeError("any", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return len(ones) > 0, nil
}

func (r *Repository[T]) Count(ctx context.Context, opts ...Option) (int64, error) {
	p, err := r.plan(nil, opts)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		if err := p.query(tx).Count(&count).Error; err != nil {
			return storeError("count", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountDistinct counts the distinct non-null values of field.
func (r *Repository[T]) CountDistinct(ctx context.Context, field string, opts ...Option) (int64, error) {
	p, err := r.plan(nil, opts)
	if err != nil {
		return 0, err
	}
	f, err := p.entity.field(field)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		if err := p.query(tx).Distinct(f.DBName).Count(&count).Error; err != nil {
			return storeError("count distinct", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetByID returns the row whose primary key is id, *finder.NotFoundError when there is none.
// id is converted to the primary key type first, so "7" finds the row with integer key 7.
func (r *Repository[T]) GetByID(ctx context.Context, id any, opts ...Option) (T, error) {
	var zero T
	p, err := r.plan(nil, opts)
	if err != nil {
		return zero, err
	}
	pk, err := p.primaryField()
	if err != nil {
		return zero, err
	}
	value, err := coerceField(pk, pk.Name, id)
	if err != nil {
		return zero, err
	}

	var rows []T
	err = r.execute(ctx, p, func(tx *gorm.DB) error {
		db := p.query(tx).Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: pk.DBName},
			Value:  value,
		})
		if len(p.columns) > 0 {
			db = db.Select(p.columns)
		}
		db = preload(db.Limit(1), p.joins)
		if err := db.Find(&rows).Error; err != nil {
			return storeError("get by id", errors.WithStack(err))
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, &finder.NotFoundError{Type: p.entity.name(), Err: gorm.ErrRecordNotFound}
	}
	return rows[0], nil
}
