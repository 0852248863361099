package mongostore

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/simp-lee/catalog/internal/query"
)

var comparisonOps = map[query.Op]string{
	query.OpIn:  "$in",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
}

// filterDoc translates f into a match document. Every condition becomes its
// own clause under $and so repeated bounds on one field never overwrite each
// other.
func filterDoc(f query.Filter) (bson.D, error) {
	var clauses []bson.D
	for _, c := range f.All {
		d, err := conditionDoc(c)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, d)
	}
	for _, group := range f.AnyOf {
		or := make(bson.A, 0, len(group))
		for _, c := range group {
			d, err := conditionDoc(c)
			if err != nil {
				return nil, err
			}
			or = append(or, d)
		}
		if len(or) > 0 {
			clauses = append(clauses, bson.D{{Key: "$or", Value: or}})
		}
	}

	switch len(clauses) {
	case 0:
		return bson.D{}, nil
	case 1:
		return clauses[0], nil
	default:
		and := make(bson.A, len(clauses))
		for i, c := range clauses {
			and[i] = c
		}
		return bson.D{{Key: "$and", Value: and}}, nil
	}
}

func conditionDoc(c query.Condition) (bson.D, error) {
	switch c.Op {
	case query.OpEq:
		v, err := bsonValue(c.Kind, c.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: c.Field, Value: v}}, nil
	case query.OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("condition %s: $in expects a list, got %T", c.Field, c.Value)
		}
		arr := make(bson.A, 0, len(values))
		for _, raw := range values {
			v, err := bsonValue(c.Kind, raw)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return bson.D{{Key: c.Field, Value: bson.D{{Key: "$in", Value: arr}}}}, nil
	case query.OpContains:
		term := fmt.Sprint(c.Value)
		return bson.D{{Key: c.Field, Value: primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}}, nil
	default:
		op, ok := comparisonOps[c.Op]
		if !ok {
			return nil, fmt.Errorf("condition %s: unsupported operator %q", c.Field, c.Op)
		}
		v, err := bsonValue(c.Kind, c.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: c.Field, Value: bson.D{{Key: op, Value: v}}}}, nil
	}
}

// bsonValue converts identifiers to ObjectIDs; every other kind is stored as is.
func bsonValue(kind query.Kind, v any) (any, error) {
	if kind != query.KindID {
		return v, nil
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return oid, nil
}

// projectionDoc returns nil when every field is kept.
func projectionDoc(p query.Projection) bson.D {
	var d bson.D
	if len(p.Include) > 0 {
		for _, f := range p.Include {
			d = append(d, bson.E{Key: f, Value: 1})
		}
		for _, f := range p.Exclude {
			if f == query.IDField {
				d = append(d, bson.E{Key: f, Value: 0})
			}
		}
		return d
	}
	for _, f := range p.Exclude {
		d = append(d, bson.E{Key: f, Value: 0})
	}
	return d
}

// sortDoc appends _id as a tie-breaker so pages never overlap.
func sortDoc(keys []query.SortField) bson.D {
	d := make(bson.D, 0, len(keys)+1)
	hasID := false
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: k.Field, Value: dir})
		hasID = hasID || k.Field == query.IDField
	}
	if !hasID {
		d = append(d, bson.E{Key: query.IDField, Value: 1})
	}
	return d
}
