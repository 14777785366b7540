package authorizer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oarkflow/authorizer"
	"github.com/oarkflow/authorizer/stores"
)

func mustCreatePolicy(t *testing.T, store *stores.MemoryPolicyStore, p *authorizer.Policy) {
	t.Helper()
	if err := store.CreatePolicy(context.Background(), p); err != nil {
		t.Fatalf("create policy %s: %v", p.ID, err)
	}
}

func TestABACResolveSelectsByScope(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryPolicyStore()

	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("doc-read").Name("doc-read").
		ResourceType("document").Action("read").Priority(50).Build())
	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("any-action").Name("any-action").
		ResourceType("document").Action("*").Priority(10).Build())
	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("other-type").Name("other-type").
		ResourceType("invoice").Action("read").Build())

	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)
	actx := &authorizer.AuthorizationContext{UserID: "u1", ResourceType: "document", Action: "read"}
	results, err := r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected doc-read + any-action, got %d", len(results))
	}
	byID := map[string]authorizer.PolicyResult{}
	for _, res := range results {
		byID[res.PolicyID] = res
	}
	if !byID["doc-read"].Exact || byID["any-action"].Exact {
		t.Fatalf("exactness flags wrong: %+v", byID)
	}
}

func TestABACResolveOrganizationScoping(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryPolicyStore()

	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("org1-only").Name("org1-only").
		ResourceType("document").Action("read").Organization("org1").Build())
	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("global").Name("global").
		ResourceType("document").Action("read").Build())

	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)

	actx := &authorizer.AuthorizationContext{UserID: "u1", OrganizationID: "org2", ResourceType: "document", Action: "read"}
	results, err := r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 1 || results[0].PolicyID != "global" {
		t.Fatalf("org2 must see only global policies, got %+v", results)
	}

	actx.OrganizationID = "org1"
	results, err = r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("org1 must see both, got %d", len(results))
	}
}

func TestABACResolveConditionsGateApplicability(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryPolicyStore()

	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("owner").Name("owner").
		ResourceType("document").Action("read").Priority(100).
		Condition("user_id", authorizer.OpEq, "{resource.owner_id}").Build())

	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)

	actx := &authorizer.AuthorizationContext{
		UserID: "u1", ResourceType: "document", Action: "read",
		ResourceAttributes: map[string]any{"owner_id": "u1"},
	}
	results, err := r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil || len(results) != 1 {
		t.Fatalf("owner policy should apply: %v %v", results, err)
	}

	// non-applicable is silence, not a deny
	actx.ResourceAttributes["owner_id"] = "someone-else"
	results, err = r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("failed condition must drop the policy, got %+v", results)
	}
}

func TestABACResolveMalformedConditionExcludesPolicy(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryPolicyStore()

	bad := authorizer.NewPolicyBuilder().ID("bad").Name("bad").
		ResourceType("document").Action("read").Build()
	bad.Conditions = []authorizer.PolicyCondition{{Attribute: "user_id", Operator: "regex", Value: ".*"}}
	mustCreatePolicy(t, store, bad)
	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("good").Name("good").
		ResourceType("document").Action("read").Build())

	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)
	actx := &authorizer.AuthorizationContext{UserID: "u1", ResourceType: "document", Action: "read"}
	results, err := r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil {
		t.Fatalf("malformed condition must not abort: %v", err)
	}
	if len(results) != 1 || results[0].PolicyID != "good" {
		t.Fatalf("only the well-formed policy should survive, got %+v", results)
	}
}

func TestABACResolveInactivePolicySkipped(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryPolicyStore()
	mustCreatePolicy(t, store, authorizer.NewPolicyBuilder().ID("off").Name("off").
		ResourceType("document").Action("read").Active(false).Build())

	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)
	actx := &authorizer.AuthorizationContext{UserID: "u1", ResourceType: "document", Action: "read"}
	results, err := r.Resolve(ctx, actx, authorizer.ResolveAttributes(actx))
	if err != nil || len(results) != 0 {
		t.Fatalf("inactive policy must not apply: %v %v", results, err)
	}
}

type failingPolicyStore struct {
	*stores.MemoryPolicyStore
}

func (f *failingPolicyStore) GetApplicablePolicies(ctx context.Context, resourceType, action, organizationID string) ([]*authorizer.Policy, error) {
	return nil, errors.New("connection refused")
}

func TestABACResolveRepositoryError(t *testing.T) {
	store := &failingPolicyStore{stores.NewMemoryPolicyStore()}
	r := authorizer.NewABACResolver(store, authorizer.NewConditionEvaluator(), nil)
	actx := &authorizer.AuthorizationContext{UserID: "u1", ResourceType: "document", Action: "read"}
	_, err := r.Resolve(context.Background(), actx, authorizer.ResolveAttributes(actx))
	var repoErr *authorizer.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %v", err)
	}
}
