package vectorstore

import (
	"fmt"
	"math"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantFilter translates where and where_document clauses into a native
// Qdrant filter. Metadata fields live under the "metadata." payload prefix.
// Returns nil when both clauses are empty.
func QdrantFilter(where, whereDocument map[string]any) (*qdrant.Filter, error) {
	if len(where) == 0 && len(whereDocument) == 0 {
		return nil, nil
	}
	if err := ValidateWhere(where); err != nil {
		return nil, err
	}
	if err := ValidateWhereDocument(whereDocument); err != nil {
		return nil, err
	}
	f := &qdrant.Filter{}
	if err := translateWhere(f, where); err != nil {
		return nil, err
	}
	if err := translateWhereDocument(f, whereDocument); err != nil {
		return nil, err
	}
	return f, nil
}

func translateWhere(f *qdrant.Filter, where map[string]any) error {
	for _, key := range sortedKeys(where) {
		val := where[key]
		switch key {
		case opAnd, opOr:
			sub, err := combine(key, val, translateWhere)
			if err != nil {
				return err
			}
			f.Must = append(f.Must, sub)
		default:
			if err := translateField(f, payloadMetadata+"."+key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func translateWhereDocument(f *qdrant.Filter, where map[string]any) error {
	for _, key := range sortedKeys(where) {
		val := where[key]
		switch key {
		case opContains:
			f.Must = append(f.Must, textCondition(val.(string)))
		case opNotContains:
			f.MustNot = append(f.MustNot, textCondition(val.(string)))
		case opAnd, opOr:
			sub, err := combine(key, val, translateWhereDocument)
			if err != nil {
				return err
			}
			f.Must = append(f.Must, sub)
		}
	}
	return nil
}

// combine builds a nested filter for $and (all Must) or $or (all Should).
func combine(op string, val any, translate func(*qdrant.Filter, map[string]any) error) (*qdrant.Condition, error) {
	clauses, err := clauseList(op, val)
	if err != nil {
		return nil, err
	}
	group := &qdrant.Filter{}
	for _, clause := range clauses {
		inner := &qdrant.Filter{}
		if err := translate(inner, clause); err != nil {
			return nil, err
		}
		if op == opAnd {
			group.Must = append(group.Must, nestedCondition(inner))
		} else {
			group.Should = append(group.Should, nestedCondition(inner))
		}
	}
	return nestedCondition(group), nil
}

func translateField(f *qdrant.Filter, key string, expr any) error {
	ops, ok := expr.(map[string]any)
	if !ok {
		ops = map[string]any{opEq: expr}
	}
	for op, operand := range ops {
		switch op {
		case opEq:
			f.Must = append(f.Must, equalCondition(key, operand))
		case opNe:
			f.MustNot = append(f.MustNot, equalCondition(key, operand))
		case opGt, opGte, opLt, opLte:
			n, _ := toFloat(operand)
			r := &qdrant.Range{}
			switch op {
			case opGt:
				r.Gt = &n
			case opGte:
				r.Gte = &n
			case opLt:
				r.Lt = &n
			default:
				r.Lte = &n
			}
			f.Must = append(f.Must, rangeCondition(key, r))
		case opIn:
			f.Must = append(f.Must, anyOfCondition(key, operand.([]any)))
		case opNin:
			f.MustNot = append(f.MustNot, anyOfCondition(key, operand.([]any)))
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidInput, op)
		}
	}
	return nil
}

// equalCondition matches a scalar. Non-integral numbers become a point range.
func equalCondition(key string, v any) *qdrant.Condition {
	switch val := v.(type) {
	case string:
		return matchCondition(key, &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val}})
	case bool:
		return matchCondition(key, &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: val}})
	}
	n, _ := toFloat(v)
	if n == math.Trunc(n) {
		return matchCondition(key, &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(n)}})
	}
	return rangeCondition(key, &qdrant.Range{Gte: &n, Lte: &n})
}

// anyOfCondition matches any listed value, using a keyword or integer set
// when the list is homogeneous.
func anyOfCondition(key string, values []any) *qdrant.Condition {
	var (
		strs []string
		ints []int64
	)
	for _, v := range values {
		switch val := v.(type) {
		case string:
			strs = append(strs, val)
		default:
			if n, ok := toFloat(val); ok && n == math.Trunc(n) {
				ints = append(ints, int64(n))
			}
		}
	}
	if len(strs) == len(values) {
		return keywordsCondition(key, strs)
	}
	if len(ints) == len(values) {
		return matchCondition(key, &qdrant.Match{
			MatchValue: &qdrant.Match_Integers{Integers: &qdrant.RepeatedIntegers{Integers: ints}},
		})
	}
	group := &qdrant.Filter{}
	for _, v := range values {
		group.Should = append(group.Should, equalCondition(key, v))
	}
	return nestedCondition(group)
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	return matchCondition(key, &qdrant.Match{
		MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: values}},
	})
}

// textCondition is a substring match on the document payload. Without a
// full-text index Qdrant evaluates it as an exact substring.
func textCondition(s string) *qdrant.Condition {
	return matchCondition(payloadDocument, &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: s}})
}

func matchCondition(key string, m *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Match: m},
		},
	}
}

func rangeCondition(key string, r *qdrant.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Range: r},
		},
	}
}

func nestedCondition(f *qdrant.Filter) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Filter{Filter: f}}
}
