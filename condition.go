package authorizer

import (
	"fmt"
	"reflect"
	"time"

	"github.com/oarkflow/date"
)

// ConditionEvaluator evaluates and validates policy conditions. Evaluation
// never errors: anything that cannot be resolved or compared is false.
type ConditionEvaluator struct{}

func NewConditionEvaluator() *ConditionEvaluator { return &ConditionEvaluator{} }

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNeq: {}, OpGt: {}, OpLt: {},
	OpIn: {}, OpNotIn: {}, OpIntersects: {}, OpHasAll: {}, OpHasAny: {},
}

// Validate reports whether the condition is structurally sound: known
// operator, non-empty attribute, and a value shape the operator can use.
func (e *ConditionEvaluator) Validate(cond PolicyCondition) error {
	if cond.Attribute == "" {
		return &InvalidConditionError{Attribute: cond.Attribute, Operator: cond.Operator, Reason: "empty attribute"}
	}
	if _, ok := knownOperators[cond.Operator]; !ok {
		return &InvalidConditionError{Attribute: cond.Attribute, Operator: cond.Operator, Reason: "unknown operator"}
	}
	if cond.Value == nil {
		return &InvalidConditionError{Attribute: cond.Attribute, Operator: cond.Operator, Reason: "nil value"}
	}
	switch cond.Operator {
	case OpIn, OpNotIn, OpIntersects, OpHasAll, OpHasAny:
		if _, isTemplate := templatePath(cond.Value); isTemplate {
			return nil
		}
		if _, ok := toSlice(cond.Value); !ok {
			return &InvalidConditionError{Attribute: cond.Attribute, Operator: cond.Operator, Reason: "value is not a list"}
		}
	}
	return nil
}

// Evaluate resolves the condition against the attribute context. Missing
// attributes, unresolvable templates and type mismatches all yield false.
func (e *ConditionEvaluator) Evaluate(cond PolicyCondition, attrs AttributeContext) bool {
	if _, ok := knownOperators[cond.Operator]; !ok {
		return false
	}
	left, ok := attrs.Lookup(cond.Attribute)
	if !ok {
		return false
	}

	right := cond.Value
	if path, isTemplate := templatePath(right); isTemplate {
		right, ok = attrs.Lookup(path)
		if !ok {
			return false
		}
	}

	switch cond.Operator {
	case OpEq:
		return scalarEqual(left, right)
	case OpNeq:
		if !comparableFamilies(left, right) {
			return false
		}
		return !scalarEqual(left, right)
	case OpGt:
		cmp, ok := compareOrdered(left, right)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := compareOrdered(left, right)
		return ok && cmp < 0
	case OpIn:
		set, ok := toSlice(right)
		return ok && containsScalar(set, left)
	case OpNotIn:
		set, ok := toSlice(right)
		return ok && !containsScalar(set, left)
	case OpIntersects, OpHasAny:
		ls, lok := toSlice(left)
		rs, rok := toSlice(right)
		if !lok || !rok {
			return false
		}
		for _, lv := range ls {
			if containsScalar(rs, lv) {
				return true
			}
		}
		return false
	case OpHasAll:
		ls, lok := toSlice(left)
		rs, rok := toSlice(right)
		if !lok || !rok {
			return false
		}
		for _, rv := range rs {
			if !containsScalar(ls, rv) {
				return false
			}
		}
		return true
	}
	return false
}

// EvaluateAll ANDs the conditions with short-circuit on the first failure.
// An empty set holds.
func (e *ConditionEvaluator) EvaluateAll(conds []PolicyCondition, attrs AttributeContext) bool {
	for _, c := range conds {
		if !e.Evaluate(c, attrs) {
			return false
		}
	}
	return true
}

func containsScalar(set []any, v any) bool {
	for _, sv := range set {
		if scalarEqual(sv, v) {
			return true
		}
	}
	return false
}

// scalarEqual compares two values, treating all numeric types as one family.
func scalarEqual(a, b any) bool {
	if af, aok := toFloat64(a); aok {
		bf, bok := toFloat64(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := toTime(b)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

func comparableFamilies(a, b any) bool {
	if _, ok := toFloat64(a); ok {
		_, bok := toFloat64(b)
		return bok
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// compareOrdered orders numerics first, then timestamps (time.Time or any
// string the date package can parse).
func compareOrdered(a, b any) (int, bool) {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	at, aok := toTime(a)
	bt, bok := toTime(b)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := date.Parse(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// toSlice normalizes any slice-like value to []any. A bare string is not a
// collection.
func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func (e *ConditionEvaluator) describe(cond PolicyCondition) string {
	return fmt.Sprintf("%s %s %v", cond.Attribute, cond.Operator, cond.Value)
}
