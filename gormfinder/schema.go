package gormfinder

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/theplant/finder"
)

// entity is the field metadata table of one model, built once per parsed schema.
type entity struct {
	schema    *schema.Schema
	fields    map[string]*schema.Field
	relations map[string]*schema.Relationship
}

var entities sync.Map // *schema.Schema -> *entity

// fieldKey normalises Go names, column names and json-ish names to one key,
// so "CreatedAt", "created_at" and "createdAt" resolve to the same field.
func fieldKey(name string) string {
	return strings.ToLower(lo.PascalCase(name))
}

func parseSchema(db *gorm.DB, model any) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, errors.Wrap(err, "failed to parse schema for model")
	}
	return stmt.Schema, nil
}

func lookupEntity(db *gorm.DB, model any) (*entity, error) {
	s, err := parseSchema(db, model)
	if err != nil {
		return nil, err
	}
	return entityOf(s), nil
}

func entityOf(s *schema.Schema) *entity {
	if v, ok := entities.Load(s); ok {
		return v.(*entity)
	}

	e := &entity{
		schema:    s,
		fields:    make(map[string]*schema.Field, len(s.Fields)*2),
		relations: make(map[string]*schema.Relationship, len(s.Relationships.Relations)),
	}
	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}
		e.fields[fieldKey(field.Name)] = field
	}
	// column names only fill the gaps left by Go names
	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}
		if _, ok := e.fields[fieldKey(field.DBName)]; !ok {
			e.fields[fieldKey(field.DBName)] = field
		}
	}
	for name, rel := range s.Relationships.Relations {
		e.relations[fieldKey(name)] = rel
	}

	v, _ := entities.LoadOrStore(s, e)
	return v.(*entity)
}

func (e *entity) name() string {
	return e.schema.Name
}

func (e *entity) field(name string) (*schema.Field, error) {
	field, ok := e.fields[fieldKey(name)]
	if !ok {
		return nil, &finder.InvalidFieldError{Field: name, Type: e.name()}
	}
	return field, nil
}

func (e *entity) relation(name string) (*schema.Relationship, bool) {
	rel, ok := e.relations[fieldKey(name)]
	return rel, ok
}

func (e *entity) primaryField() (*schema.Field, error) {
	if e.schema.PrioritizedPrimaryField == nil {
		return nil, errors.Errorf("%s has no primary key", e.name())
	}
	return e.schema.PrioritizedPrimaryField, nil
}

// columns resolves field names to column names.
func (e *entity) columns(names []string) ([]string, error) {
	columns := make([]string, 0, len(names))
	for _, name := range names {
		field, err := e.field(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, field.DBName)
	}
	return columns, nil
}
