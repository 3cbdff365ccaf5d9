package gormfinder

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/finder"
)

// paginate applies paging to db. pk is the primary key column used for id bounds.
func paginate(db *gorm.DB, paging finder.Pagination, pk string) (*gorm.DB, error) {
	switch p := paging.(type) {
	case *finder.PageNumberPagination:
		if skip := p.Skip(); skip > 0 {
			db = db.Offset(skip)
		}
		return db.Limit(p.Take()), nil
	case *finder.InfinitePagination:
		column := clause.Column{Table: clause.CurrentTable, Name: pk}
		if p.FirstItemID > 0 {
			db = db.Where(clause.Gt{Column: column, Value: p.FirstItemID})
		}
		if p.LastItemID > 0 {
			db = db.Where(clause.Lt{Column: column, Value: p.LastItemID})
		}
		return db.Limit(p.Size()), nil
	case nil:
		return db, nil
	default:
		return nil, errors.Errorf("unsupported pagination %T", paging)
	}
}

// PaginationScope applies paging to a query on model, errors are added to the db.
func PaginationScope(paging finder.Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		model := db.Statement.Model
		if model == nil {
			model = db.Statement.Dest
		}
		e, err := lookupEntity(db, model)
		if err != nil {
			db.AddError(err)
			return db
		}
		pk, err := e.primaryField()
		if err != nil {
			db.AddError(err)
			return db
		}
		paged, err := paginate(db, paging, pk.DBName)
		if err != nil {
			db.AddError(err)
			return db
		}
		return paged
	}
}
