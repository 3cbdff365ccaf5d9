package gormfinder

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/finder"
)

// Ordering is a compiled sort mapping.
type Ordering struct {
	Columns []clause.OrderByColumn
	// Text is the readable form, e.g. "Name, Age descending".
	Text string
}

// Clause returns the ORDER BY clause, nil when there is nothing to order by.
func (o *Ordering) Clause() clause.Expression {
	if o == nil || len(o.Columns) == 0 {
		return nil
	}
	return clause.OrderBy{Columns: o.Columns}
}

func CompileOrder(db *gorm.DB, model any, orders []finder.Order) (*Ordering, error) {
	if len(orders) == 0 {
		return &Ordering{}, nil
	}
	if err := finder.ValidateOrder(orders); err != nil {
		return nil, err
	}

	e, err := lookupEntity(db, model)
	if err != nil {
		return nil, err
	}
	return compileOrder(e, orders)
}

func compileOrder(e *entity, orders []finder.Order) (*Ordering, error) {
	o := &Ordering{Columns: make([]clause.OrderByColumn, 0, len(orders))}
	texts := make([]string, 0, len(orders))
	for _, order := range orders {
		field, err := e.field(order.Field)
		if err != nil {
			return nil, err
		}
		desc := order.Direction.IsDesc()
		o.Columns = append(o.Columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: field.DBName},
			Desc:   desc,
		})
		text := field.Name
		if desc {
			text += " descending"
		}
		texts = append(texts, text)
	}
	o.Text = strings.Join(texts, ", ")
	return o, nil
}
