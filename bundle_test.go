package authorizer_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/oarkflow/authorizer"
	"github.com/oarkflow/authorizer/stores"
)

func TestBundleSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	b := &authorizer.RuleBundle{
		Policies: []*authorizer.Policy{
			authorizer.NewPolicyBuilder().ID("p1").Name("p1").ResourceType("document").Action("read").Build(),
		},
	}
	if err := authorizer.SignBundle(priv, b); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := authorizer.VerifyBundle(pub, b); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// tampering breaks the signature
	b.Policies[0].Priority = 999
	if err := authorizer.VerifyBundle(pub, b); err == nil {
		t.Fatalf("tampered bundle must fail verification")
	}
}

func TestBundleVerifyMissingSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	b := &authorizer.RuleBundle{
		Policies: []*authorizer.Policy{
			authorizer.NewPolicyBuilder().ID("p1").Name("p1").ResourceType("document").Action("read").Build(),
		},
	}
	if err := authorizer.VerifyBundle(pub, b); err == nil {
		t.Fatalf("unsigned bundle must fail verification")
	}
}

type flakyPolicyStore struct {
	*stores.MemoryPolicyStore
	updateErr error
	creates   int
}

func (s *flakyPolicyStore) UpdatePolicy(ctx context.Context, p *authorizer.Policy) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryPolicyStore.UpdatePolicy(ctx, p)
}

func (s *flakyPolicyStore) CreatePolicy(ctx context.Context, p *authorizer.Policy) error {
	s.creates++
	return s.MemoryPolicyStore.CreatePolicy(ctx, p)
}

func TestImportBundleSurfacesTransientUpdateError(t *testing.T) {
	ctx := context.Background()
	ps := &flakyPolicyStore{
		MemoryPolicyStore: stores.NewMemoryPolicyStore(),
		updateErr:         errors.New("connection refused"),
	}
	svc := authorizer.New(stores.NewMemoryRoleStore(), ps, stores.NewMemoryResourceStore())
	t.Cleanup(svc.Close)

	b := &authorizer.RuleBundle{
		Policies: []*authorizer.Policy{
			authorizer.NewPolicyBuilder().ID("p1").Name("p1").ResourceType("document").Action("read").Build(),
		},
	}
	err := svc.ImportBundle(ctx, nil, b)
	if !errors.Is(err, ps.updateErr) {
		t.Fatalf("import should surface the update error, got %v", err)
	}
	if ps.creates != 0 {
		t.Fatalf("a failed update must not fall back to create, got %d creates", ps.creates)
	}

	// not-found still falls back to create
	ps.updateErr = nil
	if err := svc.ImportBundle(ctx, nil, b); err != nil {
		t.Fatalf("import: %v", err)
	}
	if ps.creates != 1 {
		t.Fatalf("missing policy should be created once, got %d creates", ps.creates)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	src := newEnv(t)
	if err := src.svc.SeedOrganization(ctx, "org1", "system", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	bundle, err := src.svc.ExportBundle(ctx, "org1", priv)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(bundle.Roles) == 0 || len(bundle.Permissions) == 0 || len(bundle.Policies) == 0 {
		t.Fatalf("bundle missing content: %d roles %d perms %d policies",
			len(bundle.Roles), len(bundle.Permissions), len(bundle.Policies))
	}

	dst := newEnv(t)
	if err := dst.svc.ImportBundle(ctx, pub, bundle); err != nil {
		t.Fatalf("import: %v", err)
	}

	// imported rules behave the same on the destination
	roles, err := dst.roles.ListRoles(ctx, "org1")
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	var memberID string
	for _, r := range roles {
		if r.Name == "member" {
			memberID = r.ID
		}
	}
	if memberID == "" {
		t.Fatalf("member role not imported")
	}
	if err := dst.svc.AssignRole(ctx, "u1", memberID, "org1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	d := dst.svc.Authorize(ctx, &authorizer.AuthorizationContext{
		UserID: "u1", OrganizationID: "org1", ResourceType: "resource", Action: "read",
	})
	if !d.Allowed {
		t.Fatalf("imported chain should allow: %+v", d.Reasons)
	}
}
