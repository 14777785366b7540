package stores

import (
	"context"
	"sync"
	"time"

	"github.com/oarkflow/authorizer"
)

// In-memory stores back tests and small single-process deployments.

// MemoryRoleStore keeps roles, permissions and assignments in maps.
type MemoryRoleStore struct {
	mu      sync.RWMutex
	roles   map[string]*authorizer.Role
	perms   map[string]*authorizer.Permission
	members map[string]map[string]struct{} // user+org -> role IDs
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{
		roles:   map[string]*authorizer.Role{},
		perms:   map[string]*authorizer.Permission{},
		members: map[string]map[string]struct{}{},
	}
}

func memberKey(userID, organizationID string) string {
	return organizationID + "\x00" + userID
}

func cloneRole(r *authorizer.Role) *authorizer.Role {
	dup := *r
	dup.PermissionIDs = append([]string(nil), r.PermissionIDs...)
	return &dup
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *authorizer.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *authorizer.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return authorizer.ErrNotFound
	}
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleID)
	for _, roleIDs := range s.members {
		delete(roleIDs, roleID)
	}
	return nil
}

func (s *MemoryRoleStore) GetRoleByID(ctx context.Context, roleID string) (*authorizer.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, authorizer.ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context, organizationID string) ([]*authorizer.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authorizer.Role, 0)
	for _, r := range s.roles {
		if r.OrganizationID == organizationID || r.OrganizationID == "" {
			out = append(out, cloneRole(r))
		}
	}
	return out, nil
}

func (s *MemoryRoleStore) AssignRole(ctx context.Context, userID, roleID, organizationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(userID, organizationID)
	if s.members[key] == nil {
		s.members[key] = map[string]struct{}{}
	}
	s.members[key][roleID] = struct{}{}
	return nil
}

func (s *MemoryRoleStore) RevokeRole(ctx context.Context, userID, roleID, organizationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[memberKey(userID, organizationID)], roleID)
	return nil
}

func (s *MemoryRoleStore) GetRolesForUser(ctx context.Context, userID, organizationID string) ([]*authorizer.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authorizer.Role, 0)
	for roleID := range s.members[memberKey(userID, organizationID)] {
		if r, ok := s.roles[roleID]; ok {
			out = append(out, cloneRole(r))
		}
	}
	return out, nil
}

func (s *MemoryRoleStore) CreatePermission(ctx context.Context, p *authorizer.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *p
	s.perms[p.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) UpdatePermission(ctx context.Context, p *authorizer.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[p.ID]; !ok {
		return authorizer.ErrNotFound
	}
	dup := *p
	s.perms[p.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) GetPermissionByID(ctx context.Context, permID string) (*authorizer.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.perms[permID]
	if !ok {
		return nil, authorizer.ErrNotFound
	}
	dup := *p
	return &dup, nil
}

func (s *MemoryRoleStore) GetPermissionsForRole(ctx context.Context, roleID string) ([]*authorizer.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, authorizer.ErrNotFound
	}
	out := make([]*authorizer.Permission, 0, len(r.PermissionIDs))
	for _, id := range r.PermissionIDs {
		if p, ok := s.perms[id]; ok {
			dup := *p
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryPolicyStore keeps policies in a map.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*authorizer.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: map[string]*authorizer.Policy{}}
}

func clonePolicy(p *authorizer.Policy) *authorizer.Policy {
	dup := *p
	dup.Conditions = append([]authorizer.PolicyCondition(nil), p.Conditions...)
	return &dup
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *authorizer.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = clonePolicy(p)
	return nil
}

func (s *MemoryPolicyStore) UpdatePolicy(ctx context.Context, p *authorizer.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return authorizer.ErrNotFound
	}
	s.policies[p.ID] = clonePolicy(p)
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, policyID)
	return nil
}

func (s *MemoryPolicyStore) GetPolicyByID(ctx context.Context, policyID string) (*authorizer.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, authorizer.ErrNotFound
	}
	return clonePolicy(p), nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, organizationID string) ([]*authorizer.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authorizer.Policy, 0)
	for _, p := range s.policies {
		if p.OrganizationID == organizationID || p.OrganizationID == "" {
			out = append(out, clonePolicy(p))
		}
	}
	return out, nil
}

func (s *MemoryPolicyStore) GetApplicablePolicies(ctx context.Context, resourceType, action, organizationID string) ([]*authorizer.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authorizer.Policy, 0)
	for _, p := range s.policies {
		if !p.IsActive {
			continue
		}
		if p.ResourceType != "*" && p.ResourceType != resourceType {
			continue
		}
		if p.Action != "*" && p.Action != action {
			continue
		}
		if p.OrganizationID != "" && p.OrganizationID != organizationID {
			continue
		}
		out = append(out, clonePolicy(p))
	}
	return out, nil
}

// MemoryResourceStore keeps resource records in a map.
type MemoryResourceStore struct {
	mu        sync.RWMutex
	resources map[string]*authorizer.Resource
}

func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{resources: map[string]*authorizer.Resource{}}
}

func resourceKey(resourceType, resourceID string) string {
	return resourceType + "\x00" + resourceID
}

func cloneResource(r *authorizer.Resource) *authorizer.Resource {
	dup := *r
	if r.Attributes != nil {
		dup.Attributes = make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			dup.Attributes[k] = v
		}
	}
	return &dup
}

func (s *MemoryResourceStore) CreateResource(ctx context.Context, r *authorizer.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resourceKey(r.ResourceType, r.ResourceID)] = cloneResource(r)
	return nil
}

func (s *MemoryResourceStore) UpdateResourceAttributes(ctx context.Context, resourceType, resourceID string, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[resourceKey(resourceType, resourceID)]
	if !ok {
		return authorizer.ErrNotFound
	}
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	for k, v := range attrs {
		r.Attributes[k] = v
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryResourceStore) DeleteResource(ctx context.Context, resourceType, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, resourceKey(resourceType, resourceID))
	return nil
}

func (s *MemoryResourceStore) GetResource(ctx context.Context, resourceType, resourceID string) (*authorizer.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[resourceKey(resourceType, resourceID)]
	if !ok {
		return nil, authorizer.ErrNotFound
	}
	return cloneResource(r), nil
}

// MemoryAuditStore appends entries to a slice.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*authorizer.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore { return &MemoryAuditStore{} }

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *authorizer.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *entry
	s.entries = append(s.entries, &dup)
	return nil
}

func (s *MemoryAuditStore) GetAccessLog(ctx context.Context, filter authorizer.AuditFilter) ([]*authorizer.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authorizer.AuditEntry, 0)
	for _, e := range s.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.OrganizationID != "" && e.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && e.ResourceID != filter.ResourceID {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && e.Timestamp.After(filter.Until) {
			continue
		}
		dup := *e
		out = append(out, &dup)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
