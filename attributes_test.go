package authorizer_test

import (
	"testing"

	"github.com/oarkflow/authorizer"
)

func TestResolveAttributesTopLevel(t *testing.T) {
	actx := &authorizer.AuthorizationContext{
		UserID: "u1", OrganizationID: "org1",
		ResourceType: "document", ResourceID: "doc1", Action: "read",
	}
	attrs := authorizer.ResolveAttributes(actx)
	for key, want := range map[string]any{
		"user_id": "u1", "organization_id": "org1",
		"resource_type": "document", "resource_id": "doc1", "action": "read",
	} {
		got, ok := attrs.Lookup(key)
		if !ok || got != want {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}
}

func TestResolveAttributesComputedEnv(t *testing.T) {
	attrs := authorizer.ResolveAttributes(&authorizer.AuthorizationContext{UserID: "u1"})
	for _, key := range []string{"environment.current_hour", "environment.day_of_week", "environment.is_weekend", "environment.is_business_hours"} {
		if _, ok := attrs.Lookup(key); !ok {
			t.Fatalf("computed attribute %s missing", key)
		}
	}

	// caller values win over computed ones
	attrs = authorizer.ResolveAttributes(&authorizer.AuthorizationContext{
		UserID:      "u1",
		Environment: map[string]any{"current_hour": 3},
	})
	got, _ := attrs.Lookup("environment.current_hour")
	if got != 3 {
		t.Fatalf("caller-supplied env value overwritten: %v", got)
	}
}

func TestLookupNested(t *testing.T) {
	attrs := authorizer.AttributeContext{
		"resource": map[string]any{
			"meta": map[string]any{"level": "secret"},
		},
	}
	v, ok := attrs.Lookup("resource.meta.level")
	if !ok || v != "secret" {
		t.Fatalf("nested lookup failed: %v %v", v, ok)
	}
	if _, ok := attrs.Lookup("resource.meta.missing"); ok {
		t.Fatalf("expected miss")
	}
	if _, ok := attrs.Lookup("resource.meta.level.deeper"); ok {
		t.Fatalf("descending through a scalar must miss")
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	actx := &authorizer.AuthorizationContext{
		UserID:      "u1",
		Environment: map[string]any{},
	}
	authorizer.ResolveAttributes(actx)
	if len(actx.Environment) != 0 {
		t.Fatalf("input environment mutated: %v", actx.Environment)
	}
}
