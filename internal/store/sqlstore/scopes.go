package sqlstore

import (
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/catalog/internal/query"
)

// likeEscape is the ESCAPE character of every LIKE pattern built here.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// filterScope returns a GORM scope applying f. Column names come from schema
// and are quoted by the dialect, never interpolated.
func filterScope(f query.Filter, schema query.Schema) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		exprs, err := filterExprs(f, schema)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if len(exprs) == 0 {
			return db
		}
		return db.Clauses(clause.Where{Exprs: exprs})
	}
}

func filterExprs(f query.Filter, schema query.Schema) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(f.All)+len(f.AnyOf))
	for _, c := range f.All {
		e, err := conditionExpr(c, schema)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	for _, group := range f.AnyOf {
		or := make([]clause.Expression, 0, len(group))
		for _, c := range group {
			e, err := conditionExpr(c, schema)
			if err != nil {
				return nil, err
			}
			or = append(or, e)
		}
		if len(or) > 0 {
			exprs = append(exprs, clause.Or(or...))
		}
	}
	return exprs, nil
}

func conditionExpr(c query.Condition, schema query.Schema) (clause.Expression, error) {
	col := clause.Column{Name: schema.Column(c.Field)}
	switch c.Op {
	case query.OpEq:
		return clause.Eq{Column: col, Value: c.Value}, nil
	case query.OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("condition %s: in expects a list, got %T", c.Field, c.Value)
		}
		return clause.IN{Column: col, Values: values}, nil
	case query.OpGt:
		return clause.Gt{Column: col, Value: c.Value}, nil
	case query.OpGte:
		return clause.Gte{Column: col, Value: c.Value}, nil
	case query.OpLt:
		return clause.Lt{Column: col, Value: c.Value}, nil
	case query.OpLte:
		return clause.Lte{Column: col, Value: c.Value}, nil
	case query.OpContains:
		pattern := "%" + likeEscaper.Replace(strings.ToLower(fmt.Sprint(c.Value))) + "%"
		return clause.Expr{SQL: "LOWER(?) LIKE ? ESCAPE '" + likeEscape + "'", Vars: []any{col, pattern}}, nil
	default:
		return nil, fmt.Errorf("condition %s: unsupported operator %q", c.Field, c.Op)
	}
}

// selectScope limits the selected columns to the projection. columns lists
// every column of the model.
func selectScope(p query.Projection, schema query.Schema, columns []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		var selected []string
		if len(p.Include) > 0 {
			for _, f := range p.Include {
				if p.Keeps(f) {
					selected = append(selected, schema.Column(f))
				}
			}
		} else {
			if len(p.Exclude) == 0 {
				return db
			}
			excluded := make([]string, 0, len(p.Exclude))
			for _, f := range p.Exclude {
				excluded = append(excluded, schema.Column(f))
			}
			for _, col := range columns {
				if !slices.Contains(excluded, col) {
					selected = append(selected, col)
				}
			}
		}
		if len(selected) == 0 {
			return db
		}
		return db.Select(selected)
	}
}

// sortScope orders by keys and then by id so pages never overlap.
func sortScope(keys []query.SortField, schema query.Schema) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		idCol := schema.Column(query.IDField)
		hasID := false
		for _, k := range keys {
			col := schema.Column(k.Field)
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: k.Desc})
			hasID = hasID || col == idCol
		}
		if !hasID {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: idCol}})
		}
		return db
	}
}

// paginateScope applies OFFSET and LIMIT; a zero limit leaves the query unbounded.
func paginateScope(skip, limit int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if skip > 0 {
			db = db.Offset(int(skip))
		}
		if limit > 0 {
			db = db.Limit(int(limit))
		}
		return db
	}
}
