package authorizer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Admin operations mutate rule data. Every mutation that can change any
// user's effective permissions clears the permission cache; assignment
// changes invalidate only the affected user.

func (s *Service) CreateRole(ctx context.Context, role *Role) error {
	if role.Name == "" {
		return &ConfigurationError{Subject: "role", Reason: "empty name"}
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if err := s.checkParent(ctx, role); err != nil {
		return err
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now
	if err := s.roles.CreateRole(ctx, role); err != nil {
		return &RepositoryError{Op: "create role", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) UpdateRole(ctx context.Context, role *Role) error {
	if err := s.checkParent(ctx, role); err != nil {
		return err
	}
	role.UpdatedAt = time.Now()
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return &RepositoryError{Op: "update role", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	if err := s.roles.DeleteRole(ctx, roleID); err != nil {
		return &RepositoryError{Op: "delete role", Err: err}
	}
	s.clearCache()
	return nil
}

// SetRoleParent rewires inheritance after checking for cycles and
// cross-organization links.
func (s *Service) SetRoleParent(ctx context.Context, roleID, parentRoleID string) error {
	role, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return &RepositoryError{Op: "role by id", Err: err}
	}
	role.ParentRoleID = parentRoleID
	if err := s.checkParent(ctx, role); err != nil {
		return err
	}
	role.UpdatedAt = time.Now()
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return &RepositoryError{Op: "update role", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) checkParent(ctx context.Context, role *Role) error {
	if role.ParentRoleID == "" {
		return nil
	}
	if role.ParentRoleID == role.ID {
		return &ConfigurationError{Subject: "role " + role.ID, Reason: "role cannot be its own parent"}
	}
	parent, err := s.roles.GetRoleByID(ctx, role.ParentRoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ConfigurationError{Subject: "role " + role.ID, Reason: "parent role does not exist"}
		}
		return &RepositoryError{Op: "role by id", Err: err}
	}
	if parent.OrganizationID != role.OrganizationID {
		return &ConfigurationError{Subject: "role " + role.ID, Reason: "parent role belongs to another organization"}
	}
	return s.checkCycle(ctx, role.ID, parent)
}

// checkCycle walks up from the proposed parent; reaching the role again
// means the new edge would close a loop.
func (s *Service) checkCycle(ctx context.Context, roleID string, parent *Role) error {
	seen := map[string]struct{}{roleID: {}}
	current := parent
	for depth := 0; depth < MaxInheritanceDepth; depth++ {
		if _, ok := seen[current.ID]; ok {
			return &ConfigurationError{Subject: "role " + roleID, Reason: "parent assignment creates a cycle"}
		}
		seen[current.ID] = struct{}{}
		if current.ParentRoleID == "" {
			return nil
		}
		next, err := s.roles.GetRoleByID(ctx, current.ParentRoleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return &RepositoryError{Op: "role by id", Err: err}
		}
		current = next
	}
	return &ConfigurationError{Subject: "role " + roleID, Reason: "parent chain exceeds max inheritance depth"}
}

func (s *Service) ActivateRole(ctx context.Context, roleID string) error {
	return s.setRoleActive(ctx, roleID, true)
}

func (s *Service) DeactivateRole(ctx context.Context, roleID string) error {
	return s.setRoleActive(ctx, roleID, false)
}

func (s *Service) setRoleActive(ctx context.Context, roleID string, active bool) error {
	role, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return &RepositoryError{Op: "role by id", Err: err}
	}
	role.IsActive = active
	role.UpdatedAt = time.Now()
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return &RepositoryError{Op: "update role", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) CreatePermission(ctx context.Context, perm *Permission) error {
	if err := s.validatePermission(perm); err != nil {
		return err
	}
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	now := time.Now()
	perm.CreatedAt = now
	perm.UpdatedAt = now
	if err := s.roles.CreatePermission(ctx, perm); err != nil {
		return &RepositoryError{Op: "create permission", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) UpdatePermission(ctx context.Context, perm *Permission) error {
	if err := s.validatePermission(perm); err != nil {
		return err
	}
	perm.UpdatedAt = time.Now()
	if err := s.roles.UpdatePermission(ctx, perm); err != nil {
		return &RepositoryError{Op: "update permission", Err: err}
	}
	s.clearCache()
	return nil
}

// AddPermissionToRole attaches an existing permission to a role.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID, permID string) error {
	role, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return &RepositoryError{Op: "role by id", Err: err}
	}
	if _, err := s.roles.GetPermissionByID(ctx, permID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ConfigurationError{Subject: "role " + roleID, Reason: "permission does not exist"}
		}
		return &RepositoryError{Op: "permission by id", Err: err}
	}
	for _, id := range role.PermissionIDs {
		if id == permID {
			return nil
		}
	}
	role.PermissionIDs = append(role.PermissionIDs, permID)
	role.UpdatedAt = time.Now()
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return &RepositoryError{Op: "update role", Err: err}
	}
	s.clearCache()
	return nil
}

func (s *Service) validatePermission(perm *Permission) error {
	if perm.ResourceType == "" || perm.Action == "" {
		return &ConfigurationError{Subject: "permission", Reason: "resource type and action required"}
	}
	if perm.Effect != EffectAllow && perm.Effect != EffectDeny {
		return &ConfigurationError{Subject: "permission", Reason: "effect must be allow or deny"}
	}
	for _, c := range perm.Conditions {
		if err := s.eval.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreatePolicy(ctx context.Context, p *Policy) error {
	if err := s.ValidatePolicy(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.policies.CreatePolicy(ctx, p); err != nil {
		return &RepositoryError{Op: "create policy", Err: err}
	}
	return nil
}

func (s *Service) UpdatePolicy(ctx context.Context, p *Policy) error {
	if err := s.ValidatePolicy(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	if err := s.policies.UpdatePolicy(ctx, p); err != nil {
		return &RepositoryError{Op: "update policy", Err: err}
	}
	return nil
}

func (s *Service) DeletePolicy(ctx context.Context, policyID string) error {
	if err := s.policies.DeletePolicy(ctx, policyID); err != nil {
		return &RepositoryError{Op: "delete policy", Err: err}
	}
	return nil
}

func (s *Service) SetPolicyActive(ctx context.Context, policyID string, active bool) error {
	p, err := s.policies.GetPolicyByID(ctx, policyID)
	if err != nil {
		return &RepositoryError{Op: "policy by id", Err: err}
	}
	p.IsActive = active
	p.UpdatedAt = time.Now()
	if err := s.policies.UpdatePolicy(ctx, p); err != nil {
		return &RepositoryError{Op: "update policy", Err: err}
	}
	return nil
}

// ValidatePolicy checks a policy before it is persisted, including each
// condition against the evaluator's closed operator set.
func (s *Service) ValidatePolicy(p *Policy) error {
	if p.Name == "" {
		return &ConfigurationError{Subject: "policy", Reason: "empty name"}
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return &ConfigurationError{Subject: "policy " + p.Name, Reason: "effect must be allow or deny"}
	}
	if p.ResourceType == "" || p.Action == "" {
		return &ConfigurationError{Subject: "policy " + p.Name, Reason: "resource type and action required (use * for any)"}
	}
	for _, c := range p.Conditions {
		if err := s.eval.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateResource(ctx context.Context, r *Resource) error {
	if r.ResourceType == "" || r.ResourceID == "" {
		return &ConfigurationError{Subject: "resource", Reason: "resource type and id required"}
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.resources.CreateResource(ctx, r); err != nil {
		return &RepositoryError{Op: "create resource", Err: err}
	}
	return nil
}

func (s *Service) UpdateResourceAttributes(ctx context.Context, resourceType, resourceID string, attrs map[string]any) error {
	if err := s.resources.UpdateResourceAttributes(ctx, resourceType, resourceID, attrs); err != nil {
		return &RepositoryError{Op: "update resource attributes", Err: err}
	}
	return nil
}

func (s *Service) AssignRole(ctx context.Context, userID, roleID, organizationID string) error {
	if _, err := s.roles.GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ConfigurationError{Subject: "assignment", Reason: "role does not exist"}
		}
		return &RepositoryError{Op: "role by id", Err: err}
	}
	if err := s.roles.AssignRole(ctx, userID, roleID, organizationID); err != nil {
		return &RepositoryError{Op: "assign role", Err: err}
	}
	if s.cache != nil {
		s.cache.Invalidate(userID, organizationID)
	}
	return nil
}

func (s *Service) RevokeRole(ctx context.Context, userID, roleID, organizationID string) error {
	if err := s.roles.RevokeRole(ctx, userID, roleID, organizationID); err != nil {
		return &RepositoryError{Op: "revoke role", Err: err}
	}
	if s.cache != nil {
		s.cache.Invalidate(userID, organizationID)
	}
	return nil
}

func (s *Service) clearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}
