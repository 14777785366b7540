package authorizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// condExprRe: attribute, operator token, raw right-hand side.
var condExprRe = regexp.MustCompile(`^(\S+)\s+(==|!=|>|<|eq|neq|gt|lt|in|not_in|intersects|has_all|has_any)\s+(.+)$`)

var operatorAliases = map[string]Operator{
	"==": OpEq, "!=": OpNeq, ">": OpGt, "<": OpLt,
	"eq": OpEq, "neq": OpNeq, "gt": OpGt, "lt": OpLt,
	"in": OpIn, "not_in": OpNotIn,
	"intersects": OpIntersects, "has_all": OpHasAll, "has_any": OpHasAny,
}

// ParseCondition turns a compact condition string into a PolicyCondition.
// Supported forms:
//
//	user.department == engineering
//	user_id eq {resource.owner_id}
//	user.roles intersects ["admin", "ops"]
//	user.clearance gt 3
//
// Lists use bracket syntax, templates keep their braces, quoted strings
// keep embedded spaces, and bare true/false/number literals are typed.
func ParseCondition(s string) (PolicyCondition, error) {
	s = strings.TrimSpace(s)
	m := condExprRe.FindStringSubmatch(s)
	if m == nil {
		return PolicyCondition{}, &ConfigurationError{Subject: "condition", Reason: fmt.Sprintf("cannot parse %q", s)}
	}
	op, ok := operatorAliases[m[2]]
	if !ok {
		return PolicyCondition{}, &ConfigurationError{Subject: "condition", Reason: fmt.Sprintf("unknown operator %q", m[2])}
	}
	value, err := parseConditionValue(strings.TrimSpace(m[3]))
	if err != nil {
		return PolicyCondition{}, err
	}
	return PolicyCondition{Attribute: m[1], Operator: op, Value: value}, nil
}

func parseConditionValue(raw string) (any, error) {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []any{}, nil
		}
		parts := splitCSV(inner)
		vals := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := parseConditionValue(p)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return raw, nil // template, resolved at evaluation time
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1], nil
	}
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(n), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatCondition renders a condition back to its compact string form.
func FormatCondition(c PolicyCondition) string {
	return fmt.Sprintf("%s %s %s", c.Attribute, c.Operator, formatConditionValue(c.Value))
}

func formatConditionValue(v any) string {
	switch vv := v.(type) {
	case string:
		if strings.HasPrefix(vv, "{") || !strings.ContainsAny(vv, " \t") {
			return vv
		}
		return strconv.Quote(vv)
	case []any:
		parts := make([]string, len(vv))
		for i, e := range vv {
			parts[i] = formatConditionValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
