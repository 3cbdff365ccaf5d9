package gormfinder

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theplant/finder"
)

// ResolveJoins resolves dotted relation paths against the schema of model and
// returns them in gorm's Preload form, e.g. "orders.items" becomes "Orders.Items".
func ResolveJoins(db *gorm.DB, model any, joins []string) ([]string, error) {
	if len(joins) == 0 {
		return nil, nil
	}
	e, err := lookupEntity(db, model)
	if err != nil {
		return nil, err
	}
	return resolveJoins(e, joins)
}

func resolveJoins(root *entity, joins []string) ([]string, error) {
	resolved := make([]string, 0, len(joins))
	seen := make(map[string]struct{}, len(joins))
	for _, path := range joins {
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, errors.New("join path is empty")
		}
		e := root
		segments := strings.Split(path, ".")
		names := make([]string, 0, len(segments))
		for _, segment := range segments {
			rel, ok := e.relation(segment)
			if !ok {
				return nil, &finder.InvalidJoinError{Path: path, Segment: segment, Type: e.name()}
			}
			names = append(names, rel.Name)
			e = entityOf(rel.FieldSchema)
		}
		canonical := strings.Join(names, ".")
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		resolved = append(resolved, canonical)
	}
	return resolved, nil
}

func preload(db *gorm.DB, joins []string) *gorm.DB {
	for _, join := range joins {
		db = db.Preload(join)
	}
	return db
}
