package detector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

// Predicate is a compiled rule. Violated receives the extracted value and
// whether it was present in the snapshot.
type Predicate interface {
	Violated(actual interface{}, present bool) bool
	Expected() string
}

// CompileRule turns a stored rule into a typed predicate. Unknown operators
// fail with UNKNOWN_OPERATOR, operands of the wrong shape with
// INVALID_CONFIGURATION.
func CompileRule(rule constraint.Rule) (Predicate, error) {
	switch rule.Operator {
	case constraint.OpEqual, constraint.OpNotEqual:
		if isCollection(rule.Value) {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("operator %q needs a scalar value", rule.Operator))
		}
		return equality{negate: rule.Operator == constraint.OpNotEqual, value: rule.Value}, nil

	case constraint.OpLessThan, constraint.OpGreaterThan, constraint.OpLessOrEqual, constraint.OpGreaterOrEqual:
		n, ok := toNumber(rule.Value)
		if !ok {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("operator %q needs a numeric value, got %v", rule.Operator, rule.Value))
		}
		return comparison{op: rule.Operator, value: n}, nil

	case constraint.OpBetween:
		low, high, err := betweenBounds(rule.Value)
		if err != nil {
			return nil, err
		}
		return between{low: low, high: high}, nil

	case constraint.OpIn, constraint.OpNotIn:
		values, ok := toList(rule.Value)
		if !ok {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("operator %q needs a list value, got %v", rule.Operator, rule.Value))
		}
		return membership{negate: rule.Operator == constraint.OpNotIn, values: values}, nil

	default:
		return nil, errors.UnknownOperator(string(rule.Operator))
	}
}

// equality is violated when "=" does not hold, or when "!=" does not hold
type equality struct {
	negate bool
	value  interface{}
}

func (p equality) Violated(actual interface{}, present bool) bool {
	equal := present && looseEqual(actual, p.value) || !present && p.value == nil
	if p.negate {
		return equal
	}
	return !equal
}

func (p equality) Expected() string {
	if p.negate {
		return "!= " + FormatValue(p.value)
	}
	return "= " + FormatValue(p.value)
}

// comparison is violated when the opposite relation holds
type comparison struct {
	op    constraint.Operator
	value float64
}

func (p comparison) Violated(actual interface{}, present bool) bool {
	if !present {
		return false
	}
	n, ok := toNumber(actual)
	if !ok {
		return false
	}

	switch p.op {
	case constraint.OpLessThan:
		return n >= p.value
	case constraint.OpGreaterThan:
		return n <= p.value
	case constraint.OpLessOrEqual:
		return n > p.value
	case constraint.OpGreaterOrEqual:
		return n < p.value
	}
	return false
}

func (p comparison) Expected() string {
	return fmt.Sprintf("%s %s", p.op, formatNumber(p.value))
}

// between is violated outside the inclusive [low, high] range
type between struct {
	low, high float64
}

func (p between) Violated(actual interface{}, present bool) bool {
	if !present {
		return false
	}
	n, ok := toNumber(actual)
	if !ok {
		return false
	}
	return n < p.low || n > p.high
}

func (p between) Expected() string {
	return fmt.Sprintf("between %s and %s", formatNumber(p.low), formatNumber(p.high))
}

// membership is violated when "in" misses or "not_in" hits
type membership struct {
	negate bool
	values []interface{}
}

func (p membership) Violated(actual interface{}, present bool) bool {
	member := false
	if present {
		for _, v := range p.values {
			if looseEqual(actual, v) {
				member = true
				break
			}
		}
	}
	if p.negate {
		return member
	}
	return !member
}

func (p membership) Expected() string {
	parts := make([]string, len(p.values))
	for i, v := range p.values {
		parts[i] = FormatValue(v)
	}
	op := "in"
	if p.negate {
		op = "not in"
	}
	return fmt.Sprintf("%s [%s]", op, strings.Join(parts, ", "))
}

func betweenBounds(value interface{}) (float64, float64, error) {
	var lowRaw, highRaw interface{}

	if m, ok := value.(map[string]interface{}); ok {
		lowRaw, highRaw = m["low"], m["high"]
	} else {
		list, ok := toList(value)
		if !ok || len(list) != 2 {
			return 0, 0, errors.InvalidConfiguration(fmt.Sprintf("between needs exactly two bounds [low, high], got %v", value))
		}
		lowRaw, highRaw = list[0], list[1]
	}

	low, lowOK := toNumber(lowRaw)
	high, highOK := toNumber(highRaw)
	if !lowOK || !highOK {
		return 0, 0, errors.InvalidConfiguration(fmt.Sprintf("between bounds must be numeric, got %v", value))
	}
	if low > high {
		return 0, 0, errors.InvalidConfiguration(fmt.Sprintf("between lower bound %v exceeds upper bound %v", low, high))
	}
	return low, high, nil
}

// looseEqual compares the way a weakly typed rule author expects: numbers,
// booleans and numeric strings compare numerically, other strings compare
// verbatim
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if isNumberLike(a) || isNumberLike(b) {
		na, okA := toNumber(a)
		nb, okB := toNumber(b)
		return okA && okB && na == nb
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return sa == sb
	}

	return reflect.DeepEqual(a, b)
}

func isNumberLike(v interface{}) bool {
	switch v.(type) {
	case bool, json.Number:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toList(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isCollection(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatValue renders a snapshot value as JSON text for the violation ledger
func FormatValue(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
