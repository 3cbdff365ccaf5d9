package gormfinder

import (
	"gorm.io/gorm"

	"github.com/theplant/finder"
)

// DefaultMaxCount caps the number of rows GetAll returns.
const DefaultMaxCount = 500

type Option func(*Options)

type Options struct {
	Scopes           []func(*gorm.DB) *gorm.DB
	FilterSets       []finder.FilterSet
	OrderBy          []finder.Order
	Joins            []string
	Select           []string
	MaxCount         int
	ReadUncommitted  bool
	ComplexityLimits *finder.ComplexityLimits
}

func defaultOptions() Options {
	return Options{
		MaxCount:        DefaultMaxCount,
		ReadUncommitted: true,
	}
}

func (o Options) apply(opts ...Option) Options {
	// per-call options must not write into the repository defaults
	o.Scopes = append([]func(*gorm.DB) *gorm.DB(nil), o.Scopes...)
	o.OrderBy = append([]finder.Order(nil), o.OrderBy...)
	o.Joins = append([]string(nil), o.Joins...)
	o.Select = append([]string(nil), o.Select...)
	o.FilterSets = append([]finder.FilterSet(nil), o.FilterSets...)
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Where adds a raw condition, same arguments as gorm's (*DB).Where.
func Where(query any, args ...any) Option {
	return WithScopes(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func WithScopes(scopes ...func(*gorm.DB) *gorm.DB) Option {
	return func(o *Options) {
		o.Scopes = append(o.Scopes, scopes...)
	}
}

// WithFilterSet adds fs as its own group. Groups are joined with AND, the
// logic of fs only joins the chains inside it.
func WithFilterSet(fs finder.FilterSet) Option {
	return func(o *Options) {
		if fs.IsEmpty() {
			return
		}
		o.FilterSets = append(o.FilterSets, fs)
	}
}

// WithFilters adds chains joined with AND.
func WithFilters(filters ...*finder.Filter) Option {
	return WithFilterSet(finder.AllOf(filters...))
}

// WithOrder replaces the sort mapping.
func WithOrder(orders ...finder.Order) Option {
	return func(o *Options) {
		o.OrderBy = orders
	}
}

func WithJoins(joins ...string) Option {
	return func(o *Options) {
		o.Joins = append(o.Joins, joins...)
	}
}

// WithSelect restricts the projection to the given fields.
func WithSelect(fields ...string) Option {
	return func(o *Options) {
		o.Select = fields
	}
}

func WithMaxCount(maxCount int) Option {
	return func(o *Options) {
		o.MaxCount = maxCount
	}
}

// ReadUncommitted chooses between read-uncommitted (true) and read-committed (false) isolation.
func ReadUncommitted(readUncommitted bool) Option {
	return func(o *Options) {
		o.ReadUncommitted = readUncommitted
	}
}

func WithComplexityLimits(limits *finder.ComplexityLimits) Option {
	return func(o *Options) {
		o.ComplexityLimits = limits
	}
}
