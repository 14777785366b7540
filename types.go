package authorizer

import (
	"maps"
	"time"
)

// Effect is the outcome a rule asks for when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Operator is one of the closed set of condition comparators.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpLt         Operator = "lt"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpIntersects Operator = "intersects"
	OpHasAll     Operator = "has_all"
	OpHasAny     Operator = "has_any"
)

// PolicyCondition is a single attribute comparison. Value may be a literal,
// a list, or a "{resource.field}" style template resolved at evaluation time.
type PolicyCondition struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value" yaml:"value"`
}

// Permission is an RBAC grant (or denial) carried by a role. Optional
// static Conditions gate the grant against the request attributes.
type Permission struct {
	ID           string            `json:"id"`
	ResourceType string            `json:"resource_type"`
	Action       string            `json:"action"`
	Effect       Effect            `json:"effect"`
	Priority     int               `json:"priority"`
	Conditions   []PolicyCondition `json:"conditions,omitempty"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Role belongs to one organization and may inherit from a single parent.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	ParentRoleID   string    `json:"parent_role_id,omitempty"`
	PermissionIDs  []string  `json:"permission_ids,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Policy is an ABAC rule: scoped by resource type and action (either may be
// the "*" wildcard), optionally bound to one organization, and applicable
// only when every condition holds.
type Policy struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Effect         Effect            `json:"effect"`
	ResourceType   string            `json:"resource_type"`
	Action         string            `json:"action"`
	OrganizationID string            `json:"organization_id,omitempty"`
	Conditions     []PolicyCondition `json:"conditions,omitempty"`
	Priority       int               `json:"priority"`
	IsActive       bool              `json:"is_active"`
	CreatedBy      string            `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Resource is the persisted record a request may target. Attributes feed
// condition evaluation under the "resource." prefix.
type Resource struct {
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id"`
	OwnerID        string         `json:"owner_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AuthorizationContext is the immutable input to a single decision.
type AuthorizationContext struct {
	UserID             string         `json:"user_id"`
	OrganizationID     string         `json:"organization_id,omitempty"`
	ResourceType       string         `json:"resource_type"`
	ResourceID         string         `json:"resource_id,omitempty"`
	Action             string         `json:"action"`
	UserAttributes     map[string]any `json:"user_attributes,omitempty"`
	ResourceAttributes map[string]any `json:"resource_attributes,omitempty"`
	Environment        map[string]any `json:"environment,omitempty"`
}

// Clone returns a deep-enough copy: the attribute maps are copied one level
// so enrichment never mutates the caller's context.
func (a *AuthorizationContext) Clone() *AuthorizationContext {
	cp := *a
	cp.UserAttributes = maps.Clone(a.UserAttributes)
	cp.ResourceAttributes = maps.Clone(a.ResourceAttributes)
	cp.Environment = maps.Clone(a.Environment)
	return &cp
}

// ReasonKind classifies where a reason came from.
type ReasonKind string

const (
	ReasonRBACAllow   ReasonKind = "rbac_allow"
	ReasonRBACDeny    ReasonKind = "rbac_deny"
	ReasonABACAllow   ReasonKind = "abac_allow"
	ReasonABACDeny    ReasonKind = "abac_deny"
	ReasonDefaultDeny ReasonKind = "default_deny"
	ReasonError       ReasonKind = "error"
)

// Reason records one rule that matched the request, or the fallback.
type Reason struct {
	Kind     ReasonKind `json:"kind"`
	RuleID   string     `json:"rule_id,omitempty"`
	RoleID   string     `json:"role_id,omitempty"`
	Priority int        `json:"priority"`
	Message  string     `json:"message,omitempty"`
}

// Decision is the final verdict. Reasons[0] is the winning rule (or the
// default-deny / error marker); the rest are the other matches in rank order.
type Decision struct {
	Allowed     bool          `json:"allowed"`
	Reasons     []Reason      `json:"reasons"`
	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Err         error         `json:"-"`
}

// Winner returns the top-ranked reason, if any.
func (d *Decision) Winner() (Reason, bool) {
	if len(d.Reasons) == 0 {
		return Reason{}, false
	}
	return d.Reasons[0], true
}

// EffectivePermission is a permission together with the role that granted it.
// Duplicates from different roles in a chain are kept distinct so that every
// deny stays visible to the combinator.
type EffectivePermission struct {
	Permission Permission `json:"permission"`
	RoleID     string     `json:"role_id"`
	RoleName   string     `json:"role_name,omitempty"`
}

// PolicyResult is one applicable ABAC policy after condition evaluation.
type PolicyResult struct {
	PolicyID string `json:"policy_id"`
	Effect   Effect `json:"effect"`
	Priority int    `json:"priority"`
	Exact    bool   `json:"exact"`
}
