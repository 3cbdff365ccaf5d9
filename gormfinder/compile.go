package gormfinder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/theplant/finder"
)

// Predicate is a compiled filter set: SQL with @N placeholders where N indexes Vars.
type Predicate struct {
	SQL  string
	Vars []any
}

// Expression resolves the placeholders through gorm's named expression builder.
func (p *Predicate) Expression() clause.Expression {
	named := make(map[string]any, len(p.Vars))
	for i, v := range p.Vars {
		named[strconv.Itoa(i)] = v
	}
	return clause.NamedExpr{SQL: p.SQL, Vars: []any{named}}
}

var comparisonOperators = map[finder.Operator]string{
	finder.OperatorEqual:              "=",
	finder.OperatorNotEqual:           "<>",
	finder.OperatorLessThan:           "<",
	finder.OperatorLessThanOrEqual:    "<=",
	finder.OperatorGreaterThan:        ">",
	finder.OperatorGreaterThanOrEqual: ">=",
}

const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// Compile compiles the filter sets against the schema of model. Each set is
// one group and groups are joined with AND. Empty sets are skipped and no
// groups at all compile to a nil predicate.
func Compile(db *gorm.DB, model any, sets ...finder.FilterSet) (*Predicate, error) {
	sets = lo.Filter(sets, func(fs finder.FilterSet, _ int) bool { return !fs.IsEmpty() })
	if len(sets) == 0 {
		return nil, nil
	}

	e, err := lookupEntity(db, model)
	if err != nil {
		return nil, err
	}

	table := db.Statement.Table
	if table == "" {
		table = e.schema.Table
	}

	c := &compiler{
		stmt:     &gorm.Statement{DB: db},
		root:     e,
		table:    table,
		unscoped: db.Statement.Unscoped,
	}
	groups := make([]string, 0, len(sets))
	for _, fs := range sets {
		sql, err := c.compileSet(fs)
		if err != nil {
			return nil, err
		}
		groups = append(groups, sql)
	}
	if len(groups) == 1 {
		return &Predicate{SQL: groups[0], Vars: c.vars}, nil
	}
	for i, g := range groups {
		groups[i] = "(" + g + ")"
	}
	return &Predicate{SQL: strings.Join(groups, " AND "), Vars: c.vars}, nil
}

// compiler holds the state of one Compile call. len(vars) is the next placeholder index.
type compiler struct {
	stmt     *gorm.Statement
	root     *entity
	table    string
	unscoped bool
	vars     []any
}

func (c *compiler) compileSet(fs finder.FilterSet) (string, error) {
	chains := make([]string, 0, len(fs.Filters))
	for _, head := range fs.Filters {
		if head == nil {
			continue
		}
		sql, err := c.compileChain(head, map[*finder.Filter]struct{}{})
		if err != nil {
			return "", err
		}
		chains = append(chains, "("+sql+")")
	}
	return strings.Join(chains, " "+fs.Logic.Keyword()+" "), nil
}

// compileChain renders a node before its successor so placeholders follow the text order.
func (c *compiler) compileChain(f *finder.Filter, seen map[*finder.Filter]struct{}) (string, error) {
	if _, ok := seen[f]; ok {
		return "", errors.Errorf("filter chain at %q is cyclic", f.Field)
	}
	seen[f] = struct{}{}

	sql, err := c.compilePath(c.root, c.table, []string{c.table}, strings.Split(f.Field, "."), f)
	if err != nil {
		return "", err
	}
	if f.NextFilter == nil {
		return sql, nil
	}
	next, err := c.compileChain(f.NextFilter, seen)
	if err != nil {
		return "", err
	}
	return "(" + sql + " " + f.Logic.Keyword() + " " + next + ")", nil
}

// compilePath compiles f against e, whose rows are named table. scope holds
// every table name visible at this depth.
func (c *compiler) compilePath(e *entity, table string, scope []string, path []string, f *finder.Filter) (string, error) {
	if len(path) == 1 {
		field, err := e.field(path[0])
		if err != nil {
			return "", &finder.InvalidFieldError{Field: f.Field, Type: e.name()}
		}
		return c.compileComparison(f, field, c.column(table, field.DBName))
	}

	rel, ok := e.relation(path[0])
	if !ok {
		return "", &finder.InvalidFieldError{Field: f.Field, Type: e.name()}
	}
	tables := newRelationTables(rel, scope)
	cond, err := c.compilePath(entityOf(rel.FieldSchema), tables.targetName(), tables.scope, path[1:], f)
	if err != nil {
		return "", err
	}
	return c.exists(rel, table, tables, cond)
}

// relationTables names the tables of one EXISTS sub-predicate. A table that
// is already in scope gets an alias, so a relation to the same table still
// correlates with the outer row.
type relationTables struct {
	target clause.Table
	join   clause.Table
	scope  []string
}

func newRelationTables(rel *schema.Relationship, scope []string) relationTables {
	t := relationTables{scope: append([]string(nil), scope...)}
	if rel.JoinTable != nil {
		t.join = t.name(rel.JoinTable.Table)
	}
	t.target = t.name(rel.FieldSchema.Table)
	return t
}

func (t *relationTables) name(table string) clause.Table {
	ct := clause.Table{Name: table}
	if lo.Contains(t.scope, table) {
		ct.Alias = fmt.Sprintf("%s_%d", table, len(t.scope))
	}
	t.scope = append(t.scope, tableName(ct))
	return ct
}

func (t *relationTables) targetName() string { return tableName(t.target) }

func tableName(t clause.Table) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// exists renders an existential sub-predicate over the related rows of rel.
func (c *compiler) exists(rel *schema.Relationship, owner string, tables relationTables, cond string) (string, error) {
	target := tables.targetName()

	if rel.JoinTable != nil {
		join := tableName(tables.join)
		var on, where []string
		for _, ref := range rel.References {
			switch {
			case ref.OwnPrimaryKey:
				where = append(where, c.column(join, ref.ForeignKey.DBName)+" = "+c.column(owner, ref.PrimaryKey.DBName))
			case ref.PrimaryValue != "":
				where = append(where, c.column(join, ref.ForeignKey.DBName)+" = "+quoteLiteral(ref.PrimaryValue))
			default:
				on = append(on, c.column(join, ref.ForeignKey.DBName)+" = "+c.column(target, ref.PrimaryKey.DBName))
			}
		}
		where = append(where, c.softDeleted(rel.JoinTable, join)...)
		where = append(where, c.softDeleted(rel.FieldSchema, target)...)
		where = append(where, cond)
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s JOIN %s ON %s WHERE %s)",
			c.stmt.Quote(tables.join),
			c.stmt.Quote(tables.target),
			strings.Join(on, " AND "),
			strings.Join(where, " AND "),
		), nil
	}

	var where []string
	for _, ref := range rel.References {
		switch {
		case ref.PrimaryValue != "":
			where = append(where, c.column(target, ref.ForeignKey.DBName)+" = "+quoteLiteral(ref.PrimaryValue))
		case ref.PrimaryKey == nil || ref.ForeignKey == nil:
			return "", errors.Errorf("relation %q has an incomplete reference", rel.Name)
		case ref.OwnPrimaryKey:
			where = append(where, c.column(target, ref.ForeignKey.DBName)+" = "+c.column(owner, ref.PrimaryKey.DBName))
		default:
			where = append(where, c.column(target, ref.PrimaryKey.DBName)+" = "+c.column(owner, ref.ForeignKey.DBName))
		}
	}
	where = append(where, c.softDeleted(rel.FieldSchema, target)...)
	where = append(where, cond)
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)",
		c.stmt.Quote(tables.target),
		strings.Join(where, " AND "),
	), nil
}

// softDeleted keeps soft deleted rows of s out of a sub-predicate, the same
// rows gorm's own queries and preloads leave out.
func (c *compiler) softDeleted(s *schema.Schema, table string) []string {
	if c.unscoped || s == nil {
		return nil
	}
	var conds []string
	for _, qc := range s.QueryClauses {
		sd, ok := qc.(gorm.SoftDeleteQueryClause)
		if !ok || sd.Field == nil {
			continue
		}
		column := c.column(table, sd.Field.DBName)
		if sd.ZeroValue.Valid {
			conds = append(conds, column+" = "+c.bind(sd.ZeroValue.String))
		} else {
			conds = append(conds, column+" IS NULL")
		}
	}
	return conds
}

func (c *compiler) compileComparison(f *finder.Filter, field *schema.Field, column string) (string, error) {
	switch op := f.Operator; {
	case op == finder.OperatorIsNull:
		return column + " IS NULL", nil
	case op == finder.OperatorIsNotNull:
		return column + " IS NOT NULL", nil
	case op.IsList():
		list, err := coerceFieldList(field, f.Field, f.Value)
		if err != nil {
			return "", err
		}
		keyword := "IN"
		if op == finder.OperatorIsNotIn {
			keyword = "NOT IN"
		}
		return column + " " + keyword + " " + c.bind(list), nil
	case op.IsPattern():
		pattern, err := likePattern(f, field)
		if err != nil {
			return "", err
		}
		keyword := "LIKE"
		if op == finder.OperatorDoNotLike {
			keyword = "NOT LIKE"
		}
		return column + " " + keyword + " " + c.bind(pattern) + " ESCAPE '" + likeEscape + "'", nil
	default:
		symbol, ok := comparisonOperators[op]
		if !ok {
			return "", errors.Errorf("unsupported operator %q on field %q", op, f.Field)
		}
		v, err := coerceField(field, f.Field, f.Value)
		if err != nil {
			return "", err
		}
		return column + " " + symbol + " " + c.bind(v), nil
	}
}

func likePattern(f *finder.Filter, field *schema.Field) (string, error) {
	if t := fieldType(field); t.Kind() != reflect.String {
		return "", &finder.TypeCoercionError{
			Field: f.Field,
			Type:  t.String(),
			Value: f.Value,
			Err:   errors.Errorf("operator %s needs a string field", f.Operator),
		}
	}
	v, err := coerce(reflect.TypeOf(""), f.Value)
	if err != nil {
		return "", &finder.TypeCoercionError{Field: f.Field, Type: "string", Value: f.Value, Err: err}
	}
	s := likeEscaper.Replace(v.(string))
	switch f.Operator {
	case finder.OperatorStartsWith:
		return s + "%", nil
	case finder.OperatorEndsWith:
		return "%" + s, nil
	default:
		return "%" + s + "%", nil
	}
}

func (c *compiler) bind(v any) string {
	c.vars = append(c.vars, v)
	return "@" + strconv.Itoa(len(c.vars)-1)
}

func (c *compiler) column(table, name string) string {
	return c.stmt.Quote(clause.Column{Table: table, Name: name})
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FilterScope applies fs to the query, compile errors are added to the db.
func FilterScope(fs finder.FilterSet) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		model := db.Statement.Model
		if model == nil {
			model = db.Statement.Dest
		}
		if model == nil {
			db.AddError(errors.New("FilterScope needs db.Statement.Model"))
			return db
		}
		p, err := Compile(db, model, fs)
		if err != nil {
			db.AddError(err)
			return db
		}
		if p == nil {
			return db
		}
		return db.Where(p.Expression())
	}
}
