package authorizer_test

import (
	"testing"

	"github.com/oarkflow/authorizer"
)

func testAttrs() authorizer.AttributeContext {
	return authorizer.ResolveAttributes(&authorizer.AuthorizationContext{
		UserID:         "u1",
		OrganizationID: "org1",
		ResourceType:   "document",
		ResourceID:     "doc1",
		Action:         "read",
		UserAttributes: map[string]any{
			"department": "engineering",
			"clearance":  3,
			"roles":      []string{"RH", "eng"},
		},
		ResourceAttributes: map[string]any{
			"owner_id":          "u1",
			"shared_with_roles": []string{"RH", "DP"},
			"shared_with_users": []string{"u2", "u3"},
			"is_archived":       false,
			"created_at":        "2024-01-15T10:00:00Z",
		},
	})
}

func TestEvaluateEq(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpEq, Value: "engineering"}, attrs) {
		t.Fatalf("expected eq to hold")
	}
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpEq, Value: "sales"}, attrs) {
		t.Fatalf("expected eq to fail")
	}
	// numeric family: int attribute vs float literal
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.clearance", Operator: authorizer.OpEq, Value: 3.0}, attrs) {
		t.Fatalf("expected numeric eq across int/float")
	}
}

func TestEvaluateNeq(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpNeq, Value: "sales"}, attrs) {
		t.Fatalf("expected neq to hold")
	}
	// incompatible type families fail closed, not trivially true
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpNeq, Value: 42}, attrs) {
		t.Fatalf("expected neq across type families to fail closed")
	}
}

func TestEvaluateOrdering(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.clearance", Operator: authorizer.OpGt, Value: 2}, attrs) {
		t.Fatalf("expected gt to hold")
	}
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.clearance", Operator: authorizer.OpLt, Value: 10}, attrs) {
		t.Fatalf("expected lt to hold")
	}
	// chronological comparison on string timestamps
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "resource.created_at", Operator: authorizer.OpGt, Value: "2023-12-31"}, attrs) {
		t.Fatalf("expected chronological gt to hold")
	}
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpGt, Value: 5}, attrs) {
		t.Fatalf("expected incomparable gt to fail closed")
	}
}

func TestEvaluateMembership(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpIn, Value: []any{"engineering", "sales"}}, attrs) {
		t.Fatalf("expected in to hold")
	}
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpNotIn, Value: []any{"sales", "hr"}}, attrs) {
		t.Fatalf("expected not_in to hold")
	}
	// missing attribute fails closed even for not_in
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.missing", Operator: authorizer.OpNotIn, Value: []any{"x"}}, attrs) {
		t.Fatalf("expected not_in on missing attribute to fail closed")
	}
}

func TestEvaluateCollections(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	// roles [RH, eng] vs shared_with_roles [RH, DP] share RH
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.roles", Operator: authorizer.OpIntersects, Value: "{resource.shared_with_roles}"}, attrs) {
		t.Fatalf("expected intersects to hold")
	}
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.roles", Operator: authorizer.OpHasAny, Value: []any{"RH", "nope"}}, attrs) {
		t.Fatalf("expected has_any to hold")
	}
	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.roles", Operator: authorizer.OpHasAll, Value: []any{"RH", "eng"}}, attrs) {
		t.Fatalf("expected has_all to hold")
	}
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.roles", Operator: authorizer.OpHasAll, Value: []any{"RH", "DP"}}, attrs) {
		t.Fatalf("expected has_all to fail on missing element")
	}
	// scalar left side is not a collection
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.OpIntersects, Value: []any{"engineering"}}, attrs) {
		t.Fatalf("expected intersects on scalar to fail closed")
	}
}

func TestEvaluateTemplates(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if !eval.Evaluate(authorizer.PolicyCondition{Attribute: "user_id", Operator: authorizer.OpEq, Value: "{resource.owner_id}"}, attrs) {
		t.Fatalf("expected owner template to hold")
	}
	// unresolvable template fails closed
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user_id", Operator: authorizer.OpEq, Value: "{resource.nonexistent}"}, attrs) {
		t.Fatalf("expected missing template target to fail closed")
	}
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user_id", Operator: authorizer.OpIn, Value: "{resource.shared_with_users}"}, attrs) {
		t.Fatalf("u1 is not in shared_with_users")
	}
}

func TestEvaluateFailClosed(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.missing", Operator: authorizer.OpEq, Value: "x"}, attrs) {
		t.Fatalf("missing attribute must be false")
	}
	if eval.Evaluate(authorizer.PolicyCondition{Attribute: "user.department", Operator: authorizer.Operator("matches"), Value: "x"}, attrs) {
		t.Fatalf("unknown operator must be false")
	}
}

func TestEvaluateAllShortCircuit(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()
	attrs := testAttrs()

	conds := []authorizer.PolicyCondition{
		{Attribute: "user.department", Operator: authorizer.OpEq, Value: "engineering"},
		{Attribute: "user.clearance", Operator: authorizer.OpGt, Value: 2},
	}
	if !eval.EvaluateAll(conds, attrs) {
		t.Fatalf("expected all conditions to hold")
	}
	conds = append([]authorizer.PolicyCondition{{Attribute: "user.department", Operator: authorizer.OpEq, Value: "sales"}}, conds...)
	if eval.EvaluateAll(conds, attrs) {
		t.Fatalf("expected AND to fail on first condition")
	}
	if !eval.EvaluateAll(nil, attrs) {
		t.Fatalf("empty condition set must hold")
	}
}

func TestValidateCondition(t *testing.T) {
	eval := authorizer.NewConditionEvaluator()

	if err := eval.Validate(authorizer.PolicyCondition{Attribute: "user_id", Operator: authorizer.OpEq, Value: "x"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := eval.Validate(authorizer.PolicyCondition{Attribute: "", Operator: authorizer.OpEq, Value: "x"}); err == nil {
		t.Fatalf("expected empty attribute error")
	}
	if err := eval.Validate(authorizer.PolicyCondition{Attribute: "a", Operator: authorizer.Operator("regex"), Value: "x"}); err == nil {
		t.Fatalf("expected unknown operator error")
	}
	if err := eval.Validate(authorizer.PolicyCondition{Attribute: "a", Operator: authorizer.OpIn, Value: "scalar"}); err == nil {
		t.Fatalf("expected non-list value error for in")
	}
	// templates are legal list sources
	if err := eval.Validate(authorizer.PolicyCondition{Attribute: "a", Operator: authorizer.OpIn, Value: "{resource.shared_with_users}"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestParseCondition(t *testing.T) {
	cond, err := authorizer.ParseCondition("user.department == engineering")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Attribute != "user.department" || cond.Operator != authorizer.OpEq || cond.Value != "engineering" {
		t.Fatalf("unexpected condition: %+v", cond)
	}

	cond, err = authorizer.ParseCondition("user_id eq {resource.owner_id}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Value != "{resource.owner_id}" {
		t.Fatalf("template not preserved: %v", cond.Value)
	}

	cond, err = authorizer.ParseCondition(`user.roles intersects ["admin", "ops"]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	list, ok := cond.Value.([]any)
	if !ok || len(list) != 2 || list[0] != "admin" {
		t.Fatalf("unexpected list: %v", cond.Value)
	}

	cond, err = authorizer.ParseCondition("user.clearance gt 3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Value != 3 {
		t.Fatalf("expected typed int, got %T", cond.Value)
	}

	cond, err = authorizer.ParseCondition("resource.is_archived eq true")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Value != true {
		t.Fatalf("expected bool, got %T", cond.Value)
	}

	if _, err := authorizer.ParseCondition("no operator here"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFormatConditionRoundTrip(t *testing.T) {
	orig := authorizer.PolicyCondition{Attribute: "user.roles", Operator: authorizer.OpIntersects, Value: []any{"admin", "ops"}}
	parsed, err := authorizer.ParseCondition(authorizer.FormatCondition(orig))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if parsed.Attribute != orig.Attribute || parsed.Operator != orig.Operator {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}
