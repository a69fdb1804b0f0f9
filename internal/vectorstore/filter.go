package vectorstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Metadata filter operators accepted in a where clause.
const (
	opEq  = "$eq"
	opNe  = "$ne"
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
	opLte = "$lte"
	opIn  = "$in"
	opNin = "$nin"
	opAnd = "$and"
	opOr  = "$or"

	opContains    = "$contains"
	opNotContains = "$not_contains"
)

// ValidateWhere checks a metadata filter for unknown operators and bad operands.
// A nil or empty filter is valid.
func ValidateWhere(where map[string]any) error {
	if err := validateWhere(where); err != nil {
		return fmt.Errorf("%w: invalid where clause: %v", ErrInvalidInput, err)
	}
	return nil
}

func validateWhere(where map[string]any) error {
	for key, val := range where {
		switch key {
		case opAnd, opOr:
			clauses, err := clauseList(key, val)
			if err != nil {
				return err
			}
			for _, c := range clauses {
				if err := validateWhere(c); err != nil {
					return err
				}
			}
		default:
			if strings.HasPrefix(key, "$") {
				return fmt.Errorf("unsupported operator %q at top level", key)
			}
			if err := validateFieldExpr(key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFieldExpr(field string, expr any) error {
	ops, ok := expr.(map[string]any)
	if !ok {
		if !isScalar(expr) {
			return fmt.Errorf("value for %q must be a string, number or bool", field)
		}
		return nil
	}
	if len(ops) != 1 {
		return fmt.Errorf("expression for %q must have exactly one operator", field)
	}
	for op, operand := range ops {
		switch op {
		case opEq, opNe:
			if !isScalar(operand) {
				return fmt.Errorf("%s operand for %q must be a string, number or bool", op, field)
			}
		case opGt, opGte, opLt, opLte:
			if _, ok := toFloat(operand); !ok {
				return fmt.Errorf("%s operand for %q must be a number", op, field)
			}
		case opIn, opNin:
			list, ok := operand.([]any)
			if !ok || len(list) == 0 {
				return fmt.Errorf("%s operand for %q must be a non-empty list", op, field)
			}
			for _, v := range list {
				if !isScalar(v) {
					return fmt.Errorf("%s values for %q must be strings, numbers or bools", op, field)
				}
			}
		default:
			return fmt.Errorf("unsupported operator %q for %q", op, field)
		}
	}
	return nil
}

// ValidateWhereDocument checks a document filter.
func ValidateWhereDocument(where map[string]any) error {
	if err := validateWhereDocument(where); err != nil {
		return fmt.Errorf("%w: invalid where_document clause: %v", ErrInvalidInput, err)
	}
	return nil
}

func validateWhereDocument(where map[string]any) error {
	for key, val := range where {
		switch key {
		case opContains, opNotContains:
			if _, ok := val.(string); !ok {
				return fmt.Errorf("%s operand must be a string", key)
			}
		case opAnd, opOr:
			clauses, err := clauseList(key, val)
			if err != nil {
				return err
			}
			for _, c := range clauses {
				if err := validateWhereDocument(c); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unsupported operator %q", key)
		}
	}
	return nil
}

func clauseList(op string, val any) ([]map[string]any, error) {
	list, ok := val.([]any)
	if !ok {
		if typed, ok := val.([]map[string]any); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("%s operand must be a list of clauses", op)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s operand must not be empty", op)
	}
	out := make([]map[string]any, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s clause %d must be an object", op, i)
		}
		out[i] = m
	}
	return out, nil
}

// MatchWhere reports whether metadata satisfies a validated where clause.
// Top-level keys are combined with AND. A record without the field fails
// every operator except $ne and $nin.
func MatchWhere(where map[string]any, metadata map[string]any) bool {
	for key, val := range where {
		switch key {
		case opAnd:
			clauses, _ := clauseList(key, val)
			for _, c := range clauses {
				if !MatchWhere(c, metadata) {
					return false
				}
			}
		case opOr:
			clauses, _ := clauseList(key, val)
			matched := false
			for _, c := range clauses {
				if MatchWhere(c, metadata) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			if !matchField(metadata, key, val) {
				return false
			}
		}
	}
	return true
}

func matchField(metadata map[string]any, field string, expr any) bool {
	actual, present := metadata[field]
	ops, ok := expr.(map[string]any)
	if !ok {
		return present && scalarEqual(actual, expr)
	}
	for op, operand := range ops {
		switch op {
		case opEq:
			return present && scalarEqual(actual, operand)
		case opNe:
			return !present || !scalarEqual(actual, operand)
		case opGt, opGte, opLt, opLte:
			a, okA := toFloat(actual)
			b, okB := toFloat(operand)
			if !present || !okA || !okB {
				return false
			}
			switch op {
			case opGt:
				return a > b
			case opGte:
				return a >= b
			case opLt:
				return a < b
			default:
				return a <= b
			}
		case opIn, opNin:
			list, _ := operand.([]any)
			found := false
			if present {
				for _, v := range list {
					if scalarEqual(actual, v) {
						found = true
						break
					}
				}
			}
			if op == opIn {
				return found
			}
			return !found
		}
	}
	return false
}

// MatchWhereDocument reports whether a document satisfies a validated
// where_document clause. A missing document contains nothing.
func MatchWhereDocument(where map[string]any, document *string) bool {
	text := ""
	if document != nil {
		text = *document
	}
	for key, val := range where {
		switch key {
		case opContains:
			s, _ := val.(string)
			if document == nil || !strings.Contains(text, s) {
				return false
			}
		case opNotContains:
			s, _ := val.(string)
			if document != nil && strings.Contains(text, s) {
				return false
			}
		case opAnd:
			clauses, _ := clauseList(key, val)
			for _, c := range clauses {
				if !MatchWhereDocument(c, document) {
					return false
				}
			}
		case opOr:
			clauses, _ := clauseList(key, val)
			matched := false
			for _, c := range clauses {
				if MatchWhereDocument(c, document) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

func (r record) matches(where, whereDocument map[string]any) bool {
	return MatchWhere(where, r.Metadata) && MatchWhereDocument(whereDocument, r.Document)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := toFloat(v)
	return ok
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sortedKeys returns map keys in order so filter translation is deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
