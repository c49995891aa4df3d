package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/vibarr/vibarr/models"
)

// regexTimeout bounds matches_regex so a pathological user-supplied
// pattern cannot stall a dispatch.
const regexTimeout = time.Second

// Evaluate reports whether every condition holds against the context.
// Conditions are AND-joined; an empty list matches unconditionally.
func Evaluate(conditions []models.RuleCondition, ctx Context) bool {
	for _, cond := range conditions {
		if !evalCondition(cond, ctx) {
			return false
		}
	}
	return true
}

// ConditionResult pairs one condition with its outcome.
type ConditionResult struct {
	Condition models.RuleCondition `json:"condition"`
	Matched   bool                 `json:"matched"`
}

// Explain evaluates each condition separately, for dry-run rule testing.
func Explain(conditions []models.RuleCondition, ctx Context) []ConditionResult {
	out := make([]ConditionResult, 0, len(conditions))
	for _, cond := range conditions {
		out = append(out, ConditionResult{Condition: cond, Matched: evalCondition(cond, ctx)})
	}
	return out
}

func evalCondition(cond models.RuleCondition, ctx Context) bool {
	field, ok := ctx[cond.Field]
	if !ok || field == nil {
		// Absent fields satisfy only the negated operators.
		return cond.Operator.Negated()
	}
	switch cond.Operator {
	case models.OpEquals:
		return equals(field, cond.Value)
	case models.OpNotEquals:
		return !equals(field, cond.Value)
	case models.OpContains:
		return contains(field, cond.Value)
	case models.OpNotContains:
		return !contains(field, cond.Value)
	case models.OpGreaterThan:
		a, b, ok := floatPair(field, cond.Value)
		return ok && a > b
	case models.OpLessThan:
		a, b, ok := floatPair(field, cond.Value)
		return ok && a < b
	case models.OpInList:
		return inList(field, cond.Value)
	case models.OpNotInList:
		return !inList(field, cond.Value)
	case models.OpMatchesRegex:
		return matchesRegex(field, cond.Value)
	}
	return false
}

// equals compares numerically when both sides coerce to float, otherwise
// as normalized strings.
func equals(field, want any) bool {
	if a, b, ok := floatPair(field, want); ok {
		return a == b
	}
	return norm(asString(field)) == norm(asString(want))
}

// contains does substring matching; a list field matches when any
// element contains the target.
func contains(field, want any) bool {
	target := norm(asString(want))
	if target == "" {
		return false
	}
	if list, ok := stringList(field); ok {
		for _, item := range list {
			if strings.Contains(norm(item), target) {
				return true
			}
		}
		return false
	}
	return strings.Contains(norm(asString(field)), target)
}

// inList matches the field against a condition value given as a list or
// a comma-separated string. A list field matches when any element is in
// the allowed set.
func inList(field, want any) bool {
	options := conditionList(want)
	if len(options) == 0 {
		return false
	}
	if list, ok := stringList(field); ok {
		for _, item := range list {
			if listHas(options, item) {
				return true
			}
		}
		return false
	}
	return listHas(options, asString(field))
}

// matchesRegex applies a user-supplied pattern case-insensitively under
// a hard match timeout. Invalid patterns and timeouts both report false.
func matchesRegex(field, want any) bool {
	pattern, ok := want.(string)
	if !ok || pattern == "" {
		return false
	}
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return false
	}
	re.MatchTimeout = regexTimeout
	if list, ok := stringList(field); ok {
		for _, item := range list {
			if matched, err := re.MatchString(item); err == nil && matched {
				return true
			}
		}
		return false
	}
	matched, err := re.MatchString(asString(field))
	return err == nil && matched
}

func listHas(options []string, value string) bool {
	v := norm(value)
	for _, opt := range options {
		if opt == v {
			return true
		}
	}
	return false
}

// conditionList splits a condition value into normalized non-empty
// options.
func conditionList(v any) []string {
	var raw []string
	if list, ok := stringList(v); ok {
		raw = list
	} else {
		raw = strings.Split(asString(v), ",")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if n := norm(item); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// stringList recognizes the list shapes a context or condition value can
// carry. JSON-decoded rule values arrive as []any.
func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out, true
	}
	return nil, false
}

// norm canonicalizes a string for comparison.
func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// asFloat coerces numbers and numeric strings.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func floatPair(a, b any) (float64, float64, bool) {
	fa, okA := asFloat(a)
	fb, okB := asFloat(b)
	return fa, fb, okA && okB
}
