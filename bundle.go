package authorizer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RuleBundle is a portable, signable snapshot of an organization's rules.
// Signatures map rule IDs to base64 ed25519 signatures over each rule's
// checksum.
type RuleBundle struct {
	OrganizationID string            `json:"organization_id,omitempty"`
	ExportedAt     time.Time         `json:"exported_at"`
	Roles          []*Role           `json:"roles,omitempty"`
	Permissions    []*Permission     `json:"permissions,omitempty"`
	Policies       []*Policy         `json:"policies,omitempty"`
	Signatures     map[string]string `json:"signatures,omitempty"`
}

// ruleChecksum hashes the canonical JSON of a rule.
func ruleChecksum(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func signChecksum(priv ed25519.PrivateKey, id, checksum string) string {
	sig := ed25519.Sign(priv, []byte(id+":"+checksum))
	return base64.StdEncoding.EncodeToString(sig)
}

func verifyChecksum(pub ed25519.PublicKey, id, checksum, sigB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(id+":"+checksum), sig)
}

// SignBundle signs every rule in the bundle with the private key.
func SignBundle(priv ed25519.PrivateKey, b *RuleBundle) error {
	b.Signatures = make(map[string]string, len(b.Roles)+len(b.Permissions)+len(b.Policies))
	sign := func(id string, v any) error {
		cs, err := ruleChecksum(v)
		if err != nil {
			return err
		}
		b.Signatures[id] = signChecksum(priv, id, cs)
		return nil
	}
	for _, r := range b.Roles {
		if err := sign(r.ID, r); err != nil {
			return err
		}
	}
	for _, p := range b.Permissions {
		if err := sign(p.ID, p); err != nil {
			return err
		}
	}
	for _, p := range b.Policies {
		if err := sign(p.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// VerifyBundle checks that every rule carries a valid signature.
func VerifyBundle(pub ed25519.PublicKey, b *RuleBundle) error {
	verify := func(id string, v any) error {
		sig, ok := b.Signatures[id]
		if !ok {
			return fmt.Errorf("bundle: missing signature for %s", id)
		}
		cs, err := ruleChecksum(v)
		if err != nil {
			return err
		}
		if !verifyChecksum(pub, id, cs, sig) {
			return fmt.Errorf("bundle: bad signature for %s", id)
		}
		return nil
	}
	for _, r := range b.Roles {
		if err := verify(r.ID, r); err != nil {
			return err
		}
	}
	for _, p := range b.Permissions {
		if err := verify(p.ID, p); err != nil {
			return err
		}
	}
	for _, p := range b.Policies {
		if err := verify(p.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// ExportBundle snapshots one organization's roles, their permissions and
// policies, signed when a private key is supplied.
func (s *Service) ExportBundle(ctx context.Context, organizationID string, priv ed25519.PrivateKey) (*RuleBundle, error) {
	roles, err := s.roles.ListRoles(ctx, organizationID)
	if err != nil {
		return nil, &RepositoryError{Op: "list roles", Err: err}
	}
	policies, err := s.policies.ListPolicies(ctx, organizationID)
	if err != nil {
		return nil, &RepositoryError{Op: "list policies", Err: err}
	}

	b := &RuleBundle{OrganizationID: organizationID, ExportedAt: time.Now(), Roles: roles, Policies: policies}
	seen := map[string]struct{}{}
	for _, role := range roles {
		perms, err := s.roles.GetPermissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, &RepositoryError{Op: "permissions for role", Err: err}
		}
		for _, p := range perms {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			b.Permissions = append(b.Permissions, p)
		}
	}

	if priv != nil {
		if err := SignBundle(priv, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ImportBundle verifies the bundle against the public key and upserts its
// rules through the admin surface, so validation and cache invalidation
// apply as usual. Permissions first, then roles, then policies.
func (s *Service) ImportBundle(ctx context.Context, pub ed25519.PublicKey, b *RuleBundle) error {
	if pub != nil {
		if err := VerifyBundle(pub, b); err != nil {
			return err
		}
	}
	for _, p := range b.Permissions {
		if err := s.upsertPermission(ctx, p); err != nil {
			return err
		}
	}
	// Roles land in two passes so a child can precede its parent in the
	// bundle: first without parents, then with inheritance restored.
	for _, r := range b.Roles {
		cp := *r
		cp.ParentRoleID = ""
		if err := s.upsertRole(ctx, &cp); err != nil {
			return err
		}
	}
	for _, r := range b.Roles {
		if r.ParentRoleID == "" {
			continue
		}
		if err := s.SetRoleParent(ctx, r.ID, r.ParentRoleID); err != nil {
			return err
		}
	}
	for _, p := range b.Policies {
		if err := s.upsertPolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) upsertPermission(ctx context.Context, p *Permission) error {
	cp := *p
	err := s.UpdatePermission(ctx, &cp)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	cp = *p
	return s.CreatePermission(ctx, &cp)
}

func (s *Service) upsertRole(ctx context.Context, r *Role) error {
	cp := *r
	err := s.UpdateRole(ctx, &cp)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	cp = *r
	return s.CreateRole(ctx, &cp)
}

func (s *Service) upsertPolicy(ctx context.Context, p *Policy) error {
	cp := *p
	err := s.UpdatePolicy(ctx, &cp)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	cp = *p
	return s.CreatePolicy(ctx, &cp)
}
