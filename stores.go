package authorizer

import (
	"context"
	"time"
)

// RoleStore persists roles, permissions and user-role assignments.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role) error
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, roleID string) error
	GetRoleByID(ctx context.Context, roleID string) (*Role, error)
	ListRoles(ctx context.Context, organizationID string) ([]*Role, error)

	AssignRole(ctx context.Context, userID, roleID, organizationID string) error
	RevokeRole(ctx context.Context, userID, roleID, organizationID string) error
	GetRolesForUser(ctx context.Context, userID, organizationID string) ([]*Role, error)

	CreatePermission(ctx context.Context, perm *Permission) error
	UpdatePermission(ctx context.Context, perm *Permission) error
	GetPermissionByID(ctx context.Context, permID string) (*Permission, error)
	GetPermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error)
}

// RoleMembershipStore is the assignment subset of RoleStore. SQL role stores
// can delegate to a Redis-backed implementation for hot membership lookups.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, userID, roleID, organizationID string) error
	RevokeRole(ctx context.Context, userID, roleID, organizationID string) error
	ListRoleIDs(ctx context.Context, userID, organizationID string) ([]string, error)
}

// PolicyStore persists ABAC policies.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	UpdatePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, policyID string) error
	GetPolicyByID(ctx context.Context, policyID string) (*Policy, error)
	ListPolicies(ctx context.Context, organizationID string) ([]*Policy, error)

	// GetApplicablePolicies returns active policies whose resource type and
	// action scopes match (wildcards included) for the organization, plus
	// global policies with no organization.
	GetApplicablePolicies(ctx context.Context, resourceType, action, organizationID string) ([]*Policy, error)
}

// ResourceStore persists resource records and their attributes.
type ResourceStore interface {
	CreateResource(ctx context.Context, r *Resource) error
	UpdateResourceAttributes(ctx context.Context, resourceType, resourceID string, attrs map[string]any) error
	DeleteResource(ctx context.Context, resourceType, resourceID string) error
	GetResource(ctx context.Context, resourceType, resourceID string) (*Resource, error)
}

// AuditEntry is one persisted authorization decision.
type AuditEntry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	UserID         string         `json:"user_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id,omitempty"`
	Action         string         `json:"action"`
	Allowed        bool           `json:"allowed"`
	Reasons        []Reason       `json:"reasons,omitempty"`
	DurationMS     float64        `json:"duration_ms"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AuditFilter narrows GetAccessLog queries. Zero fields match everything.
type AuditFilter struct {
	UserID         string
	OrganizationID string
	ResourceType   string
	ResourceID     string
	Since          time.Time
	Until          time.Time
	Limit          int
}

// AuditStore persists the decision trail.
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
