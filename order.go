package finder

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type OrderDirection string

const (
	OrderDirectionAsc  OrderDirection = "ASC"
	OrderDirectionDesc OrderDirection = "DESC"
)

func (d OrderDirection) IsDesc() bool {
	return strings.EqualFold(string(d), string(OrderDirectionDesc))
}

// Order is one entry of a sort mapping, the first entry is the primary sort key.
type Order struct {
	Field     string         `json:"field"`
	Direction OrderDirection `json:"direction"`
}

func Asc(field string) Order {
	return Order{Field: field, Direction: OrderDirectionAsc}
}

func Desc(field string) Order {
	return Order{Field: field, Direction: OrderDirectionDesc}
}

// AppendPrimaryOrder appends the orders of primaryOrder whose fields are not ordered yet.
func AppendPrimaryOrder(orderBy []Order, primaryOrder ...Order) []Order {
	if len(primaryOrder) == 0 {
		return orderBy
	}
	orderByFields := lo.SliceToMap(orderBy, func(order Order) (string, bool) {
		return strings.ToLower(order.Field), true
	})
	for _, primary := range primaryOrder {
		if _, ok := orderByFields[strings.ToLower(primary.Field)]; !ok {
			orderBy = append(orderBy, primary)
		}
	}
	return orderBy
}

func ValidateOrder(orderBy []Order) error {
	dups := lo.FindDuplicatesBy(orderBy, func(item Order) string {
		return strings.ToLower(item.Field)
	})
	if len(dups) > 0 {
		return errors.Errorf("duplicated order by fields %v", lo.Map(dups, func(item Order, _ int) string {
			return item.Field
		}))
	}
	return nil
}
