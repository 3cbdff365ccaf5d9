package finder

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// ComplexityLimits defines limits for filter set complexity.
// A value of 0 means no limit for that metric.
type ComplexityLimits struct {
	MaxChains       int // Maximum number of top-level chains
	MaxChainLength  int // Maximum number of nodes in one chain
	MaxTotalFilters int // Maximum number of nodes over all chains
	MaxDepth        int // Maximum number of segments in a field path
	MaxOrOperators  int // Maximum number of OR combinators, including the set logic
	MaxListValues   int // Maximum number of values of one IsIn/IsNotIn node
}

// ComplexityResult contains the calculated complexity metrics of a filter set.
type ComplexityResult struct {
	Chains       int
	ChainLength  int
	TotalFilters int
	Depth        int
	OrOperators  int
	ListValues   int
}

// Predefined complexity limits
var (
	// DefaultLimits provides reasonable defaults for most use cases.
	DefaultLimits = &ComplexityLimits{
		MaxChains:       5,
		MaxChainLength:  10,
		MaxTotalFilters: 20,
		MaxDepth:        3,
		MaxOrOperators:  5,
		MaxListValues:   100,
	}

	// StrictLimits provides tighter limits for security-sensitive contexts.
	StrictLimits = &ComplexityLimits{
		MaxChains:       2,
		MaxChainLength:  5,
		MaxTotalFilters: 5,
		MaxDepth:        2,
		MaxOrOperators:  2,
		MaxListValues:   20,
	}

	// RelaxedLimits provides looser limits for trusted/internal use.
	RelaxedLimits = &ComplexityLimits{
		MaxChains:       10,
		MaxChainLength:  20,
		MaxTotalFilters: 50,
		MaxDepth:        5,
		MaxOrOperators:  10,
		MaxListValues:   1000,
	}
)

// CheckComplexity validates that a filter set doesn't exceed the specified limits.
// If limits is nil, only the shape of the chains is validated.
func CheckComplexity(fs FilterSet, limits *ComplexityLimits) error {
	result, err := CalculateComplexity(fs)
	if err != nil {
		return err
	}
	if limits == nil {
		return nil
	}

	if limits.MaxChains > 0 && result.Chains > limits.MaxChains {
		return errors.Errorf("filter chain count %d exceeds limit %d", result.Chains, limits.MaxChains)
	}
	if limits.MaxChainLength > 0 && result.ChainLength > limits.MaxChainLength {
		return errors.Errorf("filter chain length %d exceeds limit %d", result.ChainLength, limits.MaxChainLength)
	}
	if limits.MaxTotalFilters > 0 && result.TotalFilters > limits.MaxTotalFilters {
		return errors.Errorf("filter count %d exceeds limit %d", result.TotalFilters, limits.MaxTotalFilters)
	}
	if limits.MaxDepth > 0 && result.Depth > limits.MaxDepth {
		return errors.Errorf("filter depth %d exceeds limit %d", result.Depth, limits.MaxDepth)
	}
	if limits.MaxOrOperators > 0 && result.OrOperators > limits.MaxOrOperators {
		return errors.Errorf("filter OR count %d exceeds limit %d", result.OrOperators, limits.MaxOrOperators)
	}
	if limits.MaxListValues > 0 && result.ListValues > limits.MaxListValues {
		return errors.Errorf("filter list size %d exceeds limit %d", result.ListValues, limits.MaxListValues)
	}

	return nil
}

// CalculateComplexity analyzes a filter set and returns its complexity metrics.
func CalculateComplexity(fs FilterSet) (*ComplexityResult, error) {
	result := &ComplexityResult{}
	for _, head := range fs.Filters {
		if head == nil {
			continue
		}
		nodes, err := head.Nodes()
		if err != nil {
			return nil, err
		}
		result.Chains++
		result.TotalFilters += len(nodes)
		result.ChainLength = max(result.ChainLength, len(nodes))
		for i, node := range nodes {
			result.Depth = max(result.Depth, strings.Count(node.Field, ".")+1)
			if i < len(nodes)-1 && node.Logic == LogicOr {
				result.OrOperators++
			}
			if node.Operator.IsList() {
				result.ListValues = max(result.ListValues, listSize(node.Value))
			}
		}
	}
	if result.Chains > 1 && fs.Logic == LogicOr {
		result.OrOperators++
	}
	return result, nil
}

func listSize(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return strings.Count(v, ",") + 1
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 1
}
