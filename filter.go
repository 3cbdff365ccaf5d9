package finder

import (
	"github.com/pkg/errors"
)

type Operator string

const (
	OperatorEqual              Operator = "Equal"
	OperatorNotEqual           Operator = "NotEqual"
	OperatorLessThan           Operator = "LessThan"
	OperatorLessThanOrEqual    Operator = "LessThanOrEqual"
	OperatorGreaterThan        Operator = "GreaterThan"
	OperatorGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OperatorIsIn               Operator = "IsIn"
	OperatorIsNotIn            Operator = "IsNotIn"
	OperatorStartsWith         Operator = "StartsWith"
	OperatorEndsWith           Operator = "EndsWith"
	OperatorLike               Operator = "Like"
	OperatorDoNotLike          Operator = "DoNotLike"
	OperatorIsNull             Operator = "IsNull"
	OperatorIsNotNull          Operator = "IsNotNull"
)

// HasValue reports whether the operator binds a parameter.
func (o Operator) HasValue() bool {
	return o != OperatorIsNull && o != OperatorIsNotNull
}

// IsList reports whether the operator compares against a list of values.
func (o Operator) IsList() bool {
	return o == OperatorIsIn || o == OperatorIsNotIn
}

// IsPattern reports whether the operator matches string patterns.
func (o Operator) IsPattern() bool {
	switch o {
	case OperatorStartsWith, OperatorEndsWith, OperatorLike, OperatorDoNotLike:
		return true
	}
	return false
}

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Keyword returns the SQL keyword of the logic, empty logic means AND.
func (l Logic) Keyword() string {
	if l == LogicOr {
		return string(LogicOr)
	}
	return string(LogicAnd)
}

// Filter is one node of a filter chain.
// Logic combines this node with NextFilter.
type Filter struct {
	Field      string   `json:"field"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value,omitempty"`
	Logic      Logic    `json:"logic,omitempty"`
	NextFilter *Filter  `json:"nextFilter,omitempty"`
}

func Where(field string, operator Operator, value any) *Filter {
	return &Filter{
		Field:    field,
		Operator: operator,
		Value:    value,
	}
}

// And appends next to the end of the chain, combined with AND.
func (f *Filter) And(next *Filter) *Filter {
	return f.append(LogicAnd, next)
}

// Or appends next to the end of the chain, combined with OR.
func (f *Filter) Or(next *Filter) *Filter {
	return f.append(LogicOr, next)
}

func (f *Filter) append(logic Logic, next *Filter) *Filter {
	tail := f
	for tail.NextFilter != nil {
		tail = tail.NextFilter
	}
	tail.Logic = logic
	tail.NextFilter = next
	return f
}

// Nodes returns the nodes of the chain in order.
func (f *Filter) Nodes() ([]*Filter, error) {
	var nodes []*Filter
	seen := map[*Filter]struct{}{}
	for node := f; node != nil; node = node.NextFilter {
		if _, ok := seen[node]; ok {
			return nil, errors.Errorf("filter chain starting at %q is cyclic", f.Field)
		}
		seen[node] = struct{}{}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// FilterSet holds independent chains joined by Logic.
type FilterSet struct {
	Filters []*Filter `json:"filters,omitempty"`
	Logic   Logic     `json:"logic,omitempty"`
}

func AllOf(filters ...*Filter) FilterSet {
	return FilterSet{Filters: filters, Logic: LogicAnd}
}

func AnyOf(filters ...*Filter) FilterSet {
	return FilterSet{Filters: filters, Logic: LogicOr}
}

// IsEmpty reports whether the set restricts nothing.
func (fs FilterSet) IsEmpty() bool {
	for _, f := range fs.Filters {
		if f != nil {
			return false
		}
	}
	return true
}
